// Package script loads cue-list documents: HCL files declaring lists, their
// parameter sets, and their actions.
//
// Action arguments are captured as unevaluated expressions and resolved
// against the running list's parameter values on every activation. The
// document layer validates topology strictly at load time (unknown kinds,
// missing required arguments, dangling jump targets are errors); everything
// value-shaped is deferred and degrades gracefully at run time.
package script

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/fsutil"
	"github.com/vk/stagecue/internal/list"
)

// Document is a loaded set of lists, ready to register with a scheduler.
type Document struct {
	Lists map[string]*list.List
	// Order preserves document order for deterministic registration.
	Order []string
}

// Load parses every .hcl file under the given paths into one Document.
// A path may be a single file or a directory searched recursively.
func Load(ctx context.Context, paths ...string) (*Document, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("script path %q: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("scanning %q: %w", path, err)
			}
			files = append(files, found...)
		} else {
			files = append(files, path)
		}
	}
	logger.Debug("script files discovered", "count", len(files))

	parser := hclparse.NewParser()
	doc := &Document{Lists: make(map[string]*list.List)}
	c := &compiler{doc: doc}

	var allDiags hcl.Diagnostics
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		allDiags = append(allDiags, diags...)
		if diags.HasErrors() {
			continue
		}
		allDiags = append(allDiags, c.compileFile(ctx, hclFile)...)
	}
	if allDiags.HasErrors() {
		return nil, allDiags
	}

	logger.Debug("scripts loaded", "lists", len(doc.Lists))
	return doc, nil
}

// ParseBytes compiles a single in-memory document, the test-harness entry
// point.
func ParseBytes(ctx context.Context, src []byte, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	doc := &Document{Lists: make(map[string]*list.List)}
	c := &compiler{doc: doc}
	if diags := c.compileFile(ctx, hclFile); diags.HasErrors() {
		return nil, diags
	}
	return doc, nil
}

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "list", LabelNames: []string{"name"}},
	},
}

func (c *compiler) compileFile(ctx context.Context, file *hcl.File) hcl.Diagnostics {
	content, diags := file.Body.Content(rootSchema)
	if diags.HasErrors() {
		return diags
	}
	for _, block := range content.Blocks {
		diags = append(diags, c.compileList(ctx, block)...)
	}
	return diags
}

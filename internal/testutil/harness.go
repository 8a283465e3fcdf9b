package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stagecue/internal/app"
	"github.com/vk/stagecue/internal/effect/sim"
	"github.com/vk/stagecue/internal/sched"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a scripted test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Stage     *sim.Stage
	Sched     *sched.Scheduler
}

// HarnessOptions tune a scripted run without obscuring the common case.
type HarnessOptions struct {
	World string // YAML world content, optional
	Entry string // list started first; defaults to the first declared
	Skip  bool   // fast-forward instead of ticking
	Seed  int64
}

// RunScripts writes the given HCL files to a temporary directory, builds an
// app over a fresh simulated stage, runs it to quiescence, and returns the
// resulting state for assertions.
func RunScripts(t *testing.T, files map[string]string) *HarnessResult {
	t.Helper()
	return RunScriptsWith(t, files, HarnessOptions{})
}

// RunScriptsWith is RunScripts with explicit options.
func RunScriptsWith(t *testing.T, files map[string]string, opts HarnessOptions) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	scriptDir := filepath.Join(tmpDir, "scripts")
	require.NoError(t, os.Mkdir(scriptDir, 0755))

	for name, content := range files {
		filePath := filepath.Join(scriptDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	cfg := app.Config{
		ScriptPath: scriptDir,
		Entry:      opts.Entry,
		Skip:       opts.Skip,
		FrameRate:  60,
		MaxSeconds: 600,
		Seed:       opts.Seed,
		LogLevel:   "debug",
		LogFormat:  "text",
	}
	if opts.World != "" {
		worldPath := filepath.Join(tmpDir, "world.yaml")
		require.NoError(t, os.WriteFile(worldPath, []byte(opts.World), 0644))
		cfg.WorldPath = worldPath
	}

	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	ctx := context.Background()

	testApp, err := app.NewApp(ctx, logBuffer, appConfig)
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err}
	}

	runErr := testApp.Run(ctx)

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		Stage:     testApp.Stage(),
		Sched:     testApp.Scheduler(),
	}
}

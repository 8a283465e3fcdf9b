package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/stagecue/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("stagecue", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
StageCue - A headless cue-list execution engine for scripted scenes.

Usage:
  stagecue [options] [SCRIPT_PATH]

Arguments:
  SCRIPT_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	scriptsFlag := flagSet.String("scripts", "", "Path to the script file or directory.")
	sFlag := flagSet.String("s", "", "Path to the script file or directory (shorthand).")
	worldFlag := flagSet.String("world", "", "Path to a YAML world file seeding the stage.")
	entryFlag := flagSet.String("entry", "", "List to start first. Defaults to the first declared list.")
	skipFlag := flagSet.Bool("skip", false, "Fast-forward the run to its end state instead of ticking.")
	fpsFlag := flagSet.Int("fps", 60, "Simulated frames per second.")
	maxSecondsFlag := flagSet.Float64("max-seconds", 300, "Simulated-time cap before the run is ended. 0 disables the cap.")
	seedFlag := flagSet.Int64("seed", 1, "Seed for random branch selection.")
	remoteURLFlag := flagSet.String("remote-url", "", "socket.io URL of a presentation client. Empty runs fully simulated.")
	remoteNamespaceFlag := flagSet.String("remote-namespace", "/", "socket.io namespace on the presentation client.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *scriptsFlag != "" {
		path = *scriptsFlag
	} else if *sFlag != "" {
		path = *sFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *fpsFlag <= 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid fps: must be a positive integer"}
	}
	if *maxSecondsFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid max-seconds: must not be negative"}
	}

	config, err := app.NewConfig(app.Config{
		ScriptPath:      path,
		WorldPath:       *worldFlag,
		Entry:           *entryFlag,
		Skip:            *skipFlag,
		FrameRate:       *fpsFlag,
		MaxSeconds:      *maxSecondsFlag,
		Seed:            *seedFlag,
		RemoteURL:       *remoteURLFlag,
		RemoteNamespace: *remoteNamespaceFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}

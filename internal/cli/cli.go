package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/rtprop/internal/app"
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
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("rtprop", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
rtprop - Inspect and edit a registered scene through its property paths.

Usage:
  rtprop [options] [OVERRIDES_PATH]

Arguments:
  OVERRIDES_PATH
    Override document to replay onto the scene: a .hcl or .json file, or a
    directory containing .hcl files.

Examples:
  rtprop --get 'layers["Paint"].opacity'
  rtprop --set 'layers["Paint"].hide=true' --diff
  rtprop --schema

Options:
`)
		flagSet.PrintDefaults()
	}

	var gets []string
	var sets []app.Assignment
	flagSet.Func("get", "Print the value at a property path. May be repeated.", func(s string) error {
		gets = append(gets, s)
		return nil
	})
	flagSet.Func("set", "Assign path=value, value being an HCL literal. May be repeated.", func(s string) error {
		a, err := app.ParseAssignment(s)
		if err != nil {
			return err
		}
		sets = append(sets, a)
		return nil
	})
	overridesFlag := flagSet.String("overrides", "", "Path to the override document or directory.")
	oFlag := flagSet.String("o", "", "Path to the override document or directory (shorthand).")
	schemaFlag := flagSet.Bool("schema", false, "Print the registered type schema as JSON.")
	diffFlag := flagSet.Bool("diff", false, "Print the overrides recorded against the library scene as JSON.")
	notifyURLFlag := flagSet.String("notify-url", "", "socket.io endpoint receiving property change events.")
	notifyNSFlag := flagSet.String("notify-namespace", "/", "socket.io namespace for property change events.")
	insecureFlag := flagSet.Bool("notify-insecure", false, "Skip TLS verification for the notification endpoint.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent recompute workers.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *overridesFlag != "" {
		path = *overridesFlag
	} else if *oFlag != "" {
		path = *oFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Overrides path determined.", "path", path)

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
	slog.Debug("CLI parameter validation complete.")

	cfg := app.Config{
		OverridesPath:   path,
		Gets:            gets,
		Sets:            sets,
		DumpSchema:      *schemaFlag,
		DumpDiff:        *diffFlag,
		NotifyURL:       *notifyURLFlag,
		NotifyNamespace: *notifyNSFlag,
		NotifyInsecure:  *insecureFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		WorkerCount:     *workersFlag,
	}
	if !cfg.HasWork() {
		slog.Debug("Nothing to do, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/procgrid/internal/app"
	"github.com/specialistvlad/procgrid/internal/handoff"
	"github.com/specialistvlad/procgrid/internal/remote"
	"github.com/specialistvlad/procgrid/internal/steering"
	"github.com/spf13/cobra"
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

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// options collects the flags shared by assemble and dump.
type options struct {
	logFormat string
	logLevel  string

	test          bool
	full          bool
	steeringFile  string
	hostname      string
	batchPatterns []string
	format        string

	out           string
	engineURL     string
	engineTimeout time.Duration
}

func (o *options) config(paths []string) (*app.Config, error) {
	format, err := handoff.ParseFormat(o.format)
	if err != nil {
		return nil, usageError("%s", err)
	}

	mode := app.ModeAuto
	if o.test {
		mode = app.ModeTest
	} else if o.full {
		mode = app.ModeFull
	}

	cfg, err := app.NewConfig(app.Config{
		Paths:         paths,
		Mode:          mode,
		SteeringFile:  o.steeringFile,
		Hostname:      o.hostname,
		BatchPatterns: o.batchPatterns,
		OutPath:       o.out,
		Format:        format,
		EngineURL:     o.engineURL,
		EngineTimeout: o.engineTimeout,
		LogFormat:     o.logFormat,
		LogLevel:      o.logLevel,
	})
	if err != nil {
		return nil, usageError("%s", err)
	}
	slog.Debug("CLI parameter validation complete.", "config", cfg)
	return cfg, nil
}

// NewRootCommand builds the procgrid command tree. Results go to outW and
// logs to errW.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "procgrid",
		Short: "Assemble event-processing configurations from HCL",
		Long: `procgrid assembles a process of modules, parameter sets and paths from
HCL configuration files, validates it and hands the result to an engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%s", err)
	})
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "Log output format. Options: 'text' or 'json'.")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	root.AddCommand(
		newAssembleCommand(opts, outW, errW),
		newDumpCommand(opts, outW, errW),
		newCallCommand(outW),
	)
	return root
}

func steeringFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().BoolVar(&opts.test, "test", false, "Apply the test steering profile.")
	cmd.Flags().BoolVar(&opts.full, "full", false, "Apply the full steering profile.")
	cmd.MarkFlagsMutuallyExclusive("test", "full")
	cmd.Flags().StringVar(&opts.steeringFile, "steering", "", "YAML file with test and full profiles, replacing those in the configuration.")
	cmd.Flags().StringVar(&opts.hostname, "hostname", "", "Hostname used to pick a profile when neither --test nor --full is set.")
	cmd.Flags().StringSliceVar(&opts.batchPatterns, "batch-host", nil, fmt.Sprintf("Hostname patterns of batch machines, which run the full profile (default %s).", strings.Join(steering.DefaultBatchPatterns, ",")))
	cmd.Flags().StringVar(&opts.format, "format", string(handoff.FormatHCL), "Output format. Options: 'hcl', 'json', 'yaml'.")
}

func pathArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usageError("%s requires at least one configuration file or directory", cmd.Name())
	}
	return nil
}

func newAssembleCommand(opts *options, outW, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble PATH...",
		Short: "Load, steer and finalize a process, then hand it off",
		Long: `Loads .hcl files or directories into one process, applies the steering
profile, validates the result and hands it off: to --out, to the engine
at --engine-url, or to stdout when neither is given.

With neither --test nor --full the profile follows the hostname: batch
hosts (see --batch-host) run the full profile, anything else the test one.`,
		Args: pathArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, errW, cfg).Run(cmd.Context())
		},
	}
	steeringFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the result to this file.")
	cmd.Flags().StringVar(&opts.engineURL, "engine-url", "", "Socket.IO endpoint of the engine to hand the process to.")
	cmd.Flags().DurationVar(&opts.engineTimeout, "engine-timeout", handoff.DefaultTimeout, "How long to wait for the engine to accept the process.")
	return cmd
}

func newDumpCommand(opts *options, outW, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump PATH...",
		Short: "Print the loaded and steered configuration without validating it",
		Args:  pathArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, errW, cfg).Dump(cmd.Context())
		},
	}
	steeringFlags(cmd, opts)
	return cmd
}

func newCallCommand(outW io.Writer) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "call ENDPOINT METHOD [PARAM...]",
		Short: "Invoke an XML-RPC method and print the raw response",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return usageError("call requires an endpoint and a method")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			client := remote.New(timeout)
			defer client.Close()

			res, err := client.Call(cmd.Context(), args[0], args[1], args[2:]...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(outW, res)
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", remote.DefaultTimeout, "Request timeout.")
	return cmd
}

// Execute runs the command line in args.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	slog.Debug("CLI parser started.")
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) && strings.Contains(err.Error(), "if any flags in the group") {
		// Flag groups are checked after parsing, past the flag error func.
		return usageError("%s", err)
	}
	return err
}


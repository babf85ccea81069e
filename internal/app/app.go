package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/handoff"
	"github.com/specialistvlad/procgrid/internal/hclconfig"
	"github.com/specialistvlad/procgrid/internal/process"
	"github.com/specialistvlad/procgrid/internal/steering"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader *hclconfig.Loader
}

// NewApp is the constructor for the main application. Results are written
// to outW and logs to logW.
func NewApp(outW, logW io.Writer, cfg *Config, opts ...hclconfig.Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		loader: hclconfig.NewLoader(opts...),
	}
}

// Load reads the configuration files and applies the selected steering
// profile.
func (a *App) Load(ctx context.Context) (*hclconfig.Config, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	cfg, err := a.loader.Load(ctx, a.config.Paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	a.logger.Debug("Configuration loaded.", "process", cfg.Process.Name(), "files", len(cfg.Files))

	if a.config.SteeringFile != "" {
		profiles, err := steering.LoadFile(a.config.SteeringFile)
		if err != nil {
			return nil, err
		}
		cfg.Profiles = profiles
	}

	test, err := a.testMode()
	if err != nil {
		return nil, err
	}
	profile := steering.Select(cfg.Profiles, test)
	if profile.IsZero() {
		a.logger.Debug("No steering profile to apply.", "test", test)
		return cfg, nil
	}
	if err := steering.Apply(ctx, cfg.Process, profile); err != nil {
		return nil, fmt.Errorf("failed to apply steering profile: %w", err)
	}
	a.logger.Info("Steering profile applied.", "test", test, "files", len(profile.Files), "max_events", profile.MaxEvents)
	return cfg, nil
}

func (a *App) testMode() (bool, error) {
	switch a.config.Mode {
	case ModeTest:
		return true, nil
	case ModeFull:
		return false, nil
	}
	host := a.config.Hostname
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			return false, fmt.Errorf("failed to detect hostname: %w", err)
		}
		host = h
	}
	return steering.DetectTest(host, a.config.BatchPatterns)
}

// Assemble loads, steers and finalizes the process.
func (a *App) Assemble(ctx context.Context) (*process.Process, *process.Plan, error) {
	cfg, err := a.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	plan, err := cfg.Process.Finalize(ctxlog.WithLogger(ctx, a.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("process %q is invalid:\n%w", cfg.Process.Name(), err)
	}
	a.logger.Info("Process finalized.", "process", plan.Process, "paths", len(plan.Paths))
	return cfg.Process, plan, nil
}

// Run assembles the process and hands it off: to OutPath, to the engine at
// EngineURL, or to the output writer when neither is set.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	proc, plan, err := a.Assemble(ctx)
	if err != nil {
		return err
	}

	var targets []handoff.Handoff
	if a.config.OutPath != "" {
		targets = append(targets, &handoff.File{Path: a.config.OutPath, Format: a.config.Format})
	}
	if a.config.EngineURL != "" {
		targets = append(targets, &handoff.SocketIO{URL: a.config.EngineURL, Timeout: a.config.EngineTimeout})
	}
	if len(targets) == 0 {
		out, err := handoff.Render(proc, plan, a.config.Format)
		if err != nil {
			return err
		}
		_, err = a.outW.Write(out)
		return err
	}

	for _, h := range targets {
		if err := h.Deliver(ctx, proc, plan); err != nil {
			return fmt.Errorf("handoff failed: %w", err)
		}
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// Dump loads and steers the process and prints it without finalizing.
func (a *App) Dump(ctx context.Context) error {
	cfg, err := a.Load(ctx)
	if err != nil {
		return err
	}
	var out []byte
	if a.config.Format == handoff.FormatHCL {
		out = cfg.Dump()
	} else if out, err = handoff.Render(cfg.Process, nil, a.config.Format); err != nil {
		return err
	}
	_, err = a.outW.Write(out)
	return err
}

package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/procgrid/internal/handoff"
)

// Steering modes. ModeAuto picks the profile from the hostname.
const (
	ModeAuto = "auto"
	ModeTest = "test"
	ModeFull = "full"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Paths []string // hcl files or directories

	Mode          string
	SteeringFile  string // yaml profiles, overriding those in the hcl files
	Hostname      string // empty means os.Hostname
	BatchPatterns []string

	OutPath       string
	Format        handoff.Format
	EngineURL     string
	EngineTimeout time.Duration

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}

	switch cfg.Mode {
	case "":
		cfg.Mode = ModeAuto
	case ModeAuto, ModeTest, ModeFull:
	default:
		return nil, fmt.Errorf("invalid mode %q: must be auto, test or full", cfg.Mode)
	}

	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if err := checkLogFormat(cfg.LogFormat); err != nil {
		return nil, err
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if cfg.Format == "" {
		cfg.Format = handoff.FormatHCL
	}
	if _, err := handoff.ParseFormat(string(cfg.Format)); err != nil {
		return nil, err
	}

	return &cfg, nil
}

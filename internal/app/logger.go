package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Accepted values of Config.LogLevel and Config.LogFormat.
var (
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// parseLogLevel maps a level name to its slog level. The empty name is info.
func parseLogLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	level, ok := logLevels[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("invalid log-level %q: must be one of %s", s, strings.Join(LogLevels, ", "))
	}
	return level, nil
}

func checkLogFormat(s string) error {
	switch strings.ToLower(s) {
	case "", "text", "json":
		return nil
	}
	return fmt.Errorf("invalid log-format %q: must be one of %s", s, strings.Join(LogFormats, ", "))
}

// newLogger creates a logger writing to outW. It does not set the global
// logger, so every App logs in isolation. Unknown levels fall back to info.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	level, err := parseLogLevel(levelStr)
	if err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(formatStr, "json") {
		return slog.New(slog.NewJSONHandler(outW, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(outW, handlerOpts))
}

// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/config"
)

// New returns a slog.Logger writing to stderr.
func New(cfg config.LogConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter charmLog.Formatter
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		formatter = charmLog.TextFormatter
	case "json":
		formatter = charmLog.JSONFormatter
	case "logfmt":
		formatter = charmLog.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	handler := charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       formatter,
	})
	return slog.New(handler), nil
}

func parseLevel(s string) (charmLog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return charmLog.DebugLevel, nil
	case "", "info":
		return charmLog.InfoLevel, nil
	case "warn", "warning":
		return charmLog.WarnLevel, nil
	case "error":
		return charmLog.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", s)
	}
}

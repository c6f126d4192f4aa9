// ABOUTME: Builds the charm logger shared by the engine, server and CLI
// ABOUTME: Routes output to a file when the terminal belongs to the TUI
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

func parseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// NewLogger writes to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *log.Logger {
	level, err := parseLevel(c.LogLevel)
	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          AppName,
	})
	if err != nil {
		logger.Warn("falling back to info", "err", err)
	}
	return logger
}

// OpenLogFile opens the configured log file (or LogPath) for appending.
func (c *Config) OpenLogFile() (*os.File, error) {
	path := c.LogFile
	if path == "" {
		path = LogPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

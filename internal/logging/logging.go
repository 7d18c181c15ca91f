// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging sets up the structured logger used across rigchat.
//
// The TUI owns the terminal, so log output goes to a file
// (~/.rigchat/logs/rigchat.log by default) rather than stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	// Path of the log file; empty means ~/.rigchat/logs/rigchat.log
	Path string
	// Level is one of trace, debug, info, warn, error, disabled
	Level string
	// Console mirrors output to Out in human-readable form
	Console bool
	Out     io.Writer
}

// Logger is a zerolog.Logger bound to an open log file.
type Logger struct {
	zerolog.Logger
	file *os.File
	path string
}

// DefaultPath returns ~/.rigchat/logs/rigchat.log.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".rigchat", "logs", "rigchat.log")
	}
	return filepath.Join(home, ".rigchat", "logs", "rigchat.log")
}

// New opens the log file and returns a logger writing to it.
func New(cfg Config) (*Logger, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = file
	if cfg.Console {
		out := cfg.Out
		if out == nil {
			out = os.Stderr
		}
		w = zerolog.MultiLevelWriter(file, zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}

	zl := zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", "rigchat").
		Logger()

	return &Logger{Logger: zl, file: file, path: path}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Path returns the log file path, or "" for a Nop logger.
func (l *Logger) Path() string {
	return l.path
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a config level to a zerolog level. Unknown values are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

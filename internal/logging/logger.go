package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"kaptam/internal/config"

	"github.com/rs/zerolog"
)

// New builds the process logger from config.
// Empty fields mean JSON at info level on stdout; development environments
// switch to the console writer unless a format is set explicitly.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	var (
		out    io.Writer = os.Stdout
		closer io.Closer
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stdout":
	case "stderr":
		out = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	default:
		return nil, nil, fmt.Errorf("unknown logging.output %q", cfg.Output)
	}

	if useConsole(cfg.Format, app.Environment) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	l := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &l, closer, nil
}

func useConsole(format, env string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console":
		return true
	case "json":
		return false
	}
	return strings.EqualFold(env, "development")
}

// Component derives a child logger tagged with the component name.
func Component(l *zerolog.Logger, name string) *zerolog.Logger {
	if l == nil {
		nop := zerolog.Nop()
		return &nop
	}
	child := l.With().Str("component", name).Logger()
	return &child
}

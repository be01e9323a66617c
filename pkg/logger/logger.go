// Package logger builds the application slog handler chain.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/Nickdtt/ia-crm/pkg/config"
)

// levelVar allows hot reload of the log level via config file watching.
var levelVar slog.LevelVar

// New creates the root logger: text or JSON output, optional rotated file,
// sensitive-field masking, and Sentry forwarding for warn and above.
func New(cfg config.Config) *slog.Logger {
	levelVar.Set(ParseLevel(cfg.Logger.Level))

	var out io.Writer = os.Stdout
	if cfg.Logger.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logger.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: &levelVar}

	var base slog.Handler
	if cfg.Logger.Format == "json" {
		base = slog.NewJSONHandler(out, opts)
	} else {
		base = slog.NewTextHandler(out, opts)
	}

	handler := slog.Handler(NewMaskingHandler(base))

	if cfg.Sentry.Enabled {
		sentryHandler := slogsentry.Option{Level: slog.LevelWarn}.NewSentryHandler()
		handler = slogmulti.Fanout(handler, sentryHandler)
	}

	log := slog.New(handler).With(slog.String("env", cfg.AppEnv))
	slog.SetDefault(log)

	return log
}

// SetLevel updates the level of every logger built by New.
func SetLevel(level string) {
	levelVar.Set(ParseLevel(level))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

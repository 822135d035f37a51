package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/calorhome/ramses-core/internal/infrastructure/config"
)

// Logger is the process-wide structured logger. It embeds *slog.Logger,
// so the variadic key-value methods (Debug, Info, Warn, Error) satisfy
// the narrow Logger interfaces the domain packages declare.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of config.yaml: format
// (json or text), minimum level, output stream, plus service and
// version attrs stamped on every record.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return &Logger{Logger: slog.New(newHandler(cfg, output, version))}
}

// newHandler builds the slog handler over an explicit writer.
func newHandler(cfg config.LoggingConfig, w io.Writer, version string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return handler.WithAttrs([]slog.Attr{
		slog.String("service", "ramsesd"),
		slog.String("version", version),
	})
}

// parseLevel maps a config level string to a slog.Level, defaulting to
// info for anything unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before configuration is loaded:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

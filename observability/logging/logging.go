package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig enables a rotating log file alongside stdout.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided. When file.Path is set
// the output is also written to a size-rotated file.
func Setup(service, env string, file FileConfig) *slog.Logger {
	return slog.New(newHandler(writer(file))).With(baseArgs(service, env)...)
}

// SetupDefault is Setup plus installing the logger as the process default and
// bridging the standard log package into it.
func SetupDefault(service, env string, file FileConfig) *slog.Logger {
	out := writer(file)
	handler := newHandler(out)
	args := baseArgs(service, env)
	base := slog.New(handler).With(args...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(base.Handler(), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func writer(file FileConfig) io.Writer {
	path := strings.TrimSpace(file.Path)
	if path == "" {
		return os.Stdout
	}
	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    positiveOr(file.MaxSizeMB, 100),
		MaxBackups: positiveOr(file.MaxBackups, 5),
		MaxAge:     positiveOr(file.MaxAgeDays, 28),
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, rotating)
}

func newHandler(out io.Writer) slog.Handler {
	return slog.NewJSONHandler(out, &slog.HandlerOptions{
		AddSource: false,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				level := strings.ToUpper(attr.Value.String())
				return slog.String("severity", level)
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})
}

func baseArgs(service, env string) []any {
	args := []any{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		args = append(args, slog.String("env", env))
	}
	return args
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

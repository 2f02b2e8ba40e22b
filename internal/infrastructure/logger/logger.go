package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	ctxutil "amlchecker/internal/infrastructure/context"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var levelColors = strings.NewReplacer(
	"level=DEBUG", colorCyan+"level=DEBUG"+colorReset,
	"level=INFO", colorGreen+"level=INFO"+colorReset,
	"level=WARN", colorYellow+"level=WARN"+colorReset,
	"level=ERROR", colorRed+"level=ERROR"+colorReset,
)

// colorWriter colors the level token of slog.TextHandler output.
type colorWriter struct {
	writer  io.Writer
	enabled bool
}

func (cw *colorWriter) Write(p []byte) (int, error) {
	if !cw.enabled {
		return cw.writer.Write(p)
	}
	if _, err := cw.writer.Write([]byte(levelColors.Replace(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// New builds a structured slog logger honoring the configured level and environment.
// Development environments (local, dev, development) get colored text output;
// everything else gets JSON.
func New(appName, level, environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, appName, level, environment)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, appName, level, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "local", "dev", "development":
		handler = slog.NewTextHandler(&colorWriter{writer: w, enabled: isTerminal(w)}, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("app", appName)
}

// FromContext returns log enriched with the request correlation id and,
// when present, the caller's organization.
func FromContext(ctx context.Context, log *slog.Logger) *slog.Logger {
	if id := ctxutil.GetCorrelationID(ctx); id != "" {
		log = log.With("request_id", id)
	}
	if who, ok := ctxutil.GetIdentity(ctx); ok && who.OrganizationID != "" {
		log = log.With("organization_id", who.OrganizationID)
	}
	return log
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	attrTraceID    = "trace_id"
	attrSpanID     = "span_id"
	attrService    = "service"
	attrEnv        = "env"
	attrMode       = "mode"
	attrRepository = "repository"
)

type repositoryKey struct{}

// ContextWithRepository tags ctx with the repository being mined. Records
// logged through a TracingHandler with that context carry a repository
// attribute.
func ContextWithRepository(ctx context.Context, repository string) context.Context {
	return context.WithValue(ctx, repositoryKey{}, repository)
}

// RepositoryFromContext returns the repository set by ContextWithRepository.
func RepositoryFromContext(ctx context.Context) (string, bool) {
	repository, ok := ctx.Value(repositoryKey{}).(string)

	return repository, ok && repository != ""
}

// TracingHandler is an [slog.Handler] that adds the active span, the mined
// repository and the service identity to every record. Service attributes
// are attached once at construction so WithGroup does not nest them.
type TracingHandler struct {
	next slog.Handler
}

// NewTracingHandler wraps next with trace and repository context.
func NewTracingHandler(next slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &TracingHandler{next: next.WithAttrs(attrs)}
}

// Enabled delegates to the wrapped handler.
func (h *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds context attributes to record and delegates.
func (h *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if repository, ok := RepositoryFromContext(ctx); ok {
		record.AddAttrs(slog.String(attrRepository, repository))
	}

	if err := h.next.Handle(ctx, record); err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (h *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (h *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{next: h.next.WithGroup(name)}
}

// LogWriter returns stderr, or a rotating file when LogFile is set. Rotated
// files are gzipped.
func LogWriter(cfg Config) io.Writer {
	if cfg.LogFile == "" {
		return os.Stderr
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   true,
	}
}

// NewLogger builds the text or JSON logger on w behind a TracingHandler.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(NewTracingHandler(handler, cfg.ServiceName, cfg.Environment, cfg.Mode))
}

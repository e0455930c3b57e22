package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportPolicy decides which span attributes leave the process. Denied
// prefixes win over allowed ones; keys matching neither are dropped.
type exportPolicy struct {
	allowPrefixes []string
	denyPrefixes  []string
	denyKeys      map[string]bool
}

// spanPolicy keeps pipeline counters, tool names and error details. Commit
// authors, messages and remote URLs can carry personal data or credentials.
var spanPolicy = exportPolicy{
	allowPrefixes: []string{"repominer.", "mining.", "mcp.", "error.", "repository."},
	denyPrefixes:  []string{"user.", "commit.author", "commit.message"},
	denyKeys:      map[string]bool{"email": true, "repository.url": true},
}

func (p exportPolicy) allows(key string) bool {
	if p.denyKeys[key] {
		return false
	}

	for _, prefix := range p.denyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return false
		}
	}

	if key == "error" {
		return true
	}

	for _, prefix := range p.allowPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

// attributeFilter strips span attributes the policy denies before handing
// the span to the exporting processor.
type attributeFilter struct {
	next   sdktrace.SpanProcessor
	policy exportPolicy
	// dropLog reports every dropped key when set.
	dropLog *slog.Logger
}

// NewAttributeFilter wraps next so that only allowed attributes are
// exported. When dropLog is non-nil each dropped key is logged at warn.
func NewAttributeFilter(next sdktrace.SpanProcessor, dropLog *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{next: next, policy: spanPolicy, dropLog: dropLog}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.next.OnStart(parent, s)
}

// OnEnd forwards a filtered view of s; ended spans are read-only.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.next.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	if err := f.next.Shutdown(ctx); err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	if err := f.next.ForceFlush(ctx); err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) keep(key string) bool {
	if f.policy.allows(key) {
		return true
	}

	if f.dropLog != nil {
		f.dropLog.Warn("span attribute dropped", "key", key)
	}

	return false
}

type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

// Attributes returns the attributes the policy allows.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	all := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(all))

	for _, kv := range all {
		if s.filter.keep(string(kv.Key)) {
			kept = append(kept, kv)
		}
	}

	return kept
}

package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "repominer.requests.total"
	metricRequestDuration  = "repominer.request.duration.seconds"
	metricErrorsTotal      = "repominer.errors.total"
	metricInflightRequests = "repominer.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"
)

// Request outcomes recorded by REDMetrics.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries spans a small repository (well under a second)
// to a full label run over a long history (tens of minutes).
var durationBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}

// REDMetrics records rate, errors and duration of MCP tool calls.
type REDMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

// NewREDMetrics creates the tool-call instruments on mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	requests, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Tool calls served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Tool call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errs, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Tool calls that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Tool calls in progress"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{requests: requests, duration: duration, errors: errs, inflight: inflight}, nil
}

// Begin marks a call to op as in flight. The returned function ends the call
// with the given status and records its duration; call it exactly once.
func (rm *REDMetrics) Begin(ctx context.Context, op string) func(status string) {
	start := time.Now()
	opAttr := attribute.String(attrOp, op)
	rm.inflight.Add(ctx, 1, metric.WithAttributes(opAttr))

	return func(status string) {
		rm.inflight.Add(ctx, -1, metric.WithAttributes(opAttr))
		rm.RecordRequest(ctx, op, status, time.Since(start))
	}
}

// RecordRequest records one finished call.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrOp, op), attribute.String(attrStatus, status))

	rm.requests.Add(ctx, 1, attrs)
	rm.duration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

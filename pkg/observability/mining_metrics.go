package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsClassified = "repominer.mining.commits.classified.total"
	metricFixingCommits     = "repominer.mining.fixing_commits.total"
	metricDiscardedCommits  = "repominer.mining.discarded_commits.total"
	metricBlameCalls        = "repominer.mining.blame.calls.total"
	metricFixedFiles        = "repominer.mining.fixed_files.total"
	metricFailureProneFiles = "repominer.mining.failure_prone_files.total"
	metricStageDuration     = "repominer.mining.stage.duration.seconds"

	attrStage = "stage"
)

// Mining stages.
const (
	StageSelect  = "select"
	StageResolve = "resolve"
	StageLabel   = "label"
)

// MiningMetrics holds the instruments of the mining pipeline.
// All methods are no-ops on a nil receiver.
type MiningMetrics struct {
	classified    metric.Int64Counter
	fixing        metric.Int64Counter
	discarded     metric.Int64Counter
	blameCalls    metric.Int64Counter
	fixedFiles    metric.Int64Counter
	failureProne  metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// NewMiningMetrics creates the mining instruments from mt.
func NewMiningMetrics(mt metric.Meter) (*MiningMetrics, error) {
	mm := &MiningMetrics{}

	counters := []struct {
		name, desc, unit string
		dst              *metric.Int64Counter
	}{
		{metricCommitsClassified, "Commits run through the defect classifier", "{commit}", &mm.classified},
		{metricFixingCommits, "Commits kept as fixing commits", "{commit}", &mm.fixing},
		{metricDiscardedCommits, "Candidate fixing commits discarded as irrelevant", "{commit}", &mm.discarded},
		{metricBlameCalls, "Blame oracle invocations", "{call}", &mm.blameCalls},
		{metricFixedFiles, "Fixed-file windows resolved", "{file}", &mm.fixedFiles},
		{metricFailureProneFiles, "Failure-prone file records emitted", "{record}", &mm.failureProne},
	}

	for _, c := range counters {
		counter, err := mt.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}

		*c.dst = counter
	}

	hist, err := mt.Float64Histogram(metricStageDuration,
		metric.WithDescription("Mining stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStageDuration, err)
	}

	mm.stageDuration = hist

	return mm, nil
}

// SelectionStats summarizes one fixing-commit selection.
type SelectionStats struct {
	Classified int
	Fixing     int
	Discarded  int
}

// RecordSelection records the outcome of a selection.
func (mm *MiningMetrics) RecordSelection(ctx context.Context, stats SelectionStats, took time.Duration) {
	if mm == nil {
		return
	}

	mm.classified.Add(ctx, int64(stats.Classified))
	mm.fixing.Add(ctx, int64(stats.Fixing))
	mm.discarded.Add(ctx, int64(stats.Discarded))
	mm.recordStage(ctx, StageSelect, took)
}

// RecordResolution records the outcome of bug-introducing resolution.
func (mm *MiningMetrics) RecordResolution(ctx context.Context, blameCalls, fixedFiles int, took time.Duration) {
	if mm == nil {
		return
	}

	mm.blameCalls.Add(ctx, int64(blameCalls))
	mm.fixedFiles.Add(ctx, int64(fixedFiles))
	mm.recordStage(ctx, StageResolve, took)
}

// RecordLabeling records the outcome of labeling.
func (mm *MiningMetrics) RecordLabeling(ctx context.Context, records int, took time.Duration) {
	if mm == nil {
		return
	}

	mm.failureProne.Add(ctx, int64(records))
	mm.recordStage(ctx, StageLabel, took)
}

func (mm *MiningMetrics) recordStage(ctx context.Context, stage string, took time.Duration) {
	mm.stageDuration.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.String(attrStage, stage)))
}

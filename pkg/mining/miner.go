package mining

import (
	"context"
	"iter"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/persist"
)

// Miner runs the pipeline over one branch and keeps its running results:
// the fixing commits in chronological order and the fixed files. Steps run
// out of order return empty results. A Miner is not safe for concurrent use.
type Miner struct {
	index    *history.Index
	cfg      Config
	selector *Selector
	resolver *Resolver
	labeler  *Labeler

	fixing []string
	labels map[string]classifier.LabelSet
	fixed  []FixedFile
}

// Result is the outcome of Run.
type Result struct {
	FixingCommits []string                       `json:"fixing_commits" yaml:"fixing_commits"`
	Labels        map[string]classifier.LabelSet `json:"labels" yaml:"labels"`
	FixedFiles    []FixedFile                    `json:"fixed_files" yaml:"fixed_files"`
	FailureProne  []FailureProneFile             `json:"failure_prone" yaml:"failure_prone"`
}

// New creates a miner over the indexed history of source.
func New(index *history.Index, source history.Source, cfg Config) *Miner {
	cfg = cfg.withDefaults()

	return &Miner{
		index:    index,
		cfg:      cfg,
		selector: NewSelector(index, source, cfg),
		resolver: NewResolver(index, source, cfg),
		labeler:  NewLabeler(index, source, cfg),
		fixing:   []string{},
		labels:   map[string]classifier.LabelSet{},
	}
}

// Index returns the commit index the miner works on.
func (m *Miner) Index() *history.Index {
	return m.index
}

// FixingCommits returns the known fixing commits, oldest first.
func (m *Miner) FixingCommits() []string {
	return slices.Clone(m.fixing)
}

// Labels returns the labels of the fixing commits found so far.
func (m *Miner) Labels() map[string]classifier.LabelSet {
	return maps.Clone(m.labels)
}

// FixedFiles returns the fixed files of the last resolution.
func (m *Miner) FixedFiles() []FixedFile {
	return slices.Clone(m.fixed)
}

// Seed adds previously known fixing commits. Hashes outside the history are dropped.
func (m *Miner) Seed(known []string) {
	m.fixing = m.index.Sort(append(m.fixing, known...))
}

// SelectFixingCommits classifies the commits not yet known as fixing and
// merges the new fixing commits into the running list. It returns the labels
// of the newly found commits.
func (m *Miner) SelectFixingCommits(ctx context.Context) (map[string]classifier.LabelSet, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "repominer.mining.select",
		trace.WithAttributes(attribute.Int("mining.known", len(m.fixing))))
	defer span.End()

	start := time.Now()

	labels, kept, stats, err := m.selector.run(ctx, m.fixing)
	if err != nil {
		failSpan(span, err)

		return nil, err
	}

	m.fixing = m.index.Sort(append(m.fixing, kept...))
	maps.Copy(m.labels, labels)

	took := time.Since(start)
	m.cfg.Metrics.RecordSelection(ctx, stats, took)
	span.SetAttributes(
		attribute.Int("mining.classified", stats.Classified),
		attribute.Int("mining.fixing", stats.Fixing),
		attribute.Int("mining.discarded", stats.Discarded),
	)

	m.cfg.Logger.InfoContext(ctx, "fixing commits selected",
		"new", len(kept), "total", len(m.fixing), "discarded", stats.Discarded, "took", took)

	return labels, nil
}

// ResolveFixedFiles resolves the fixed files of the running fixing commits
// and replaces the running fixed-file list.
func (m *Miner) ResolveFixedFiles(ctx context.Context) ([]FixedFile, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "repominer.mining.resolve",
		trace.WithAttributes(attribute.Int("mining.fixing", len(m.fixing))))
	defer span.End()

	start := time.Now()

	fixed, calls, err := m.resolver.run(ctx, m.fixing)
	if err != nil {
		failSpan(span, err)

		return nil, err
	}

	m.fixed = fixed

	took := time.Since(start)
	m.cfg.Metrics.RecordResolution(ctx, calls, len(fixed), took)
	span.SetAttributes(attribute.Int("mining.blame_calls", calls), attribute.Int("mining.fixed_files", len(fixed)))

	m.cfg.Logger.InfoContext(ctx, "fixed files resolved", "files", len(fixed), "blame_calls", calls, "took", took)

	return m.FixedFiles(), nil
}

// Label yields the failure-prone files of the running fixed files.
func (m *Miner) Label(ctx context.Context) iter.Seq2[FailureProneFile, error] {
	fixed := m.FixedFiles()
	fixing := m.FixingCommits()

	return func(yield func(FailureProneFile, error) bool) {
		ctx, span := otel.Tracer(tracerName).Start(ctx, "repominer.mining.label",
			trace.WithAttributes(attribute.Int("mining.fixed_files", len(fixed))))
		defer span.End()

		start := time.Now()
		records := 0

		defer func() {
			m.cfg.Metrics.RecordLabeling(ctx, records, time.Since(start))
			span.SetAttributes(attribute.Int("mining.failure_prone", records))
		}()

		for record, err := range m.labeler.Label(ctx, fixed, fixing) {
			if err != nil {
				failSpan(span, err)
				yield(FailureProneFile{}, err)

				return
			}

			records++

			if !yield(record, nil) {
				return
			}
		}
	}
}

// Run executes selection, resolution and labeling and collects the records.
func (m *Miner) Run(ctx context.Context) (*Result, error) {
	if _, err := m.SelectFixingCommits(ctx); err != nil {
		return nil, err
	}

	if _, err := m.ResolveFixedFiles(ctx); err != nil {
		return nil, err
	}

	result := &Result{
		FixingCommits: m.FixingCommits(),
		Labels:        m.Labels(),
		FixedFiles:    m.FixedFiles(),
		FailureProne:  []FailureProneFile{},
	}

	for record, err := range m.Label(ctx) {
		if err != nil {
			return nil, err
		}

		result.FailureProne = append(result.FailureProne, record)
	}

	return result, nil
}

// Snapshot captures the running lists.
func (m *Miner) Snapshot(repository, branch string) *persist.MiningState {
	state := &persist.MiningState{
		Version:       persist.StateVersion,
		Repository:    repository,
		Branch:        branch,
		FixingCommits: m.FixingCommits(),
		Labels:        m.Labels(),
		FixedFiles:    make([]persist.FileWindow, len(m.fixed)),
		CreatedAt:     time.Now().UTC(),
	}

	for i, f := range m.fixed {
		state.FixedFiles[i] = persist.FileWindow(f)
	}

	return state
}

// Restore replaces the running lists with state. Commits and windows that
// are no longer part of the history are dropped.
func (m *Miner) Restore(state *persist.MiningState) {
	m.fixing = m.index.Sort(state.FixingCommits)
	m.labels = map[string]classifier.LabelSet{}

	for _, hash := range m.fixing {
		if set, ok := state.Labels[hash]; ok {
			m.labels[hash] = set
		}
	}

	m.fixed = m.fixed[:0]

	for _, w := range state.FixedFiles {
		if m.index.Contains(w.BIC) && m.index.Contains(w.FIC) {
			m.fixed = append(m.fixed, FixedFile(w))
		}
	}
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package mining

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
)

// Selector finds the fixing commits of a branch.
type Selector struct {
	index  *history.Index
	source history.Source
	cfg    Config
}

// NewSelector creates a selector over the indexed history of source.
func NewSelector(index *history.Index, source history.Source, cfg Config) *Selector {
	return &Selector{index: index, source: source, cfg: cfg.withDefaults()}
}

// Select classifies every commit not in known and keeps those that carry a
// label and modify at least one relevant file. It returns the labels of the
// kept commits and their hashes in chronological order.
func (s *Selector) Select(ctx context.Context, known []string) (map[string]classifier.LabelSet, []string, error) {
	labels, kept, _, err := s.run(ctx, known)

	return labels, kept, err
}

func (s *Selector) run(
	ctx context.Context, known []string,
) (map[string]classifier.LabelSet, []string, observability.SelectionStats, error) {
	stats, labels, err := s.classify(ctx, known)
	if err != nil {
		return nil, nil, stats, err
	}

	candidates := make([]string, 0, len(labels))
	for hash := range labels {
		candidates = append(candidates, hash)
	}

	candidates = s.index.Sort(candidates)

	kept, err := s.discardUndesired(ctx, candidates)
	if err != nil {
		return nil, nil, stats, err
	}

	result := make(map[string]classifier.LabelSet, len(kept))
	for _, hash := range kept {
		result[hash] = labels[hash]
	}

	stats.Fixing = len(kept)
	stats.Discarded = len(candidates) - len(kept)

	s.cfg.Logger.DebugContext(ctx, "fixing commits selected",
		"classified", stats.Classified, "candidates", len(candidates), "kept", len(kept))

	return result, kept, stats, nil
}

// classify runs the classifier over every unknown commit. Traversal stays on
// the calling goroutine; classification is spread over the worker pool.
func (s *Selector) classify(
	ctx context.Context, known []string,
) (observability.SelectionStats, map[string]classifier.LabelSet, error) {
	var stats observability.SelectionStats

	if s.cfg.Classifier == nil {
		return stats, nil, ErrNoClassifier
	}

	skip := make(map[string]struct{}, len(known))
	for _, hash := range known {
		skip[hash] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	var mu sync.Mutex

	labels := map[string]classifier.LabelSet{}

	var walkErr error

	for commit, err := range s.index.All(gctx, s.source, history.Ascending) {
		if err != nil {
			walkErr = fmt.Errorf("walk history: %w", err)

			break
		}

		if _, ok := skip[commit.Hash]; ok {
			continue
		}

		stats.Classified++

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			set := s.cfg.Classifier.Classify(commit)
			if set.Empty() {
				return nil
			}

			mu.Lock()
			labels[commit.Hash] = set
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil && walkErr == nil {
		walkErr = fmt.Errorf("classify commits: %w", err)
	}

	if walkErr != nil {
		return stats, nil, walkErr
	}

	return stats, labels, nil
}

// discardUndesired replays the span of the candidates and keeps those with
// at least one relevant modified file.
func (s *Selector) discardUndesired(ctx context.Context, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return []string{}, nil
	}

	pending := make(map[string]struct{}, len(candidates))
	for _, hash := range candidates {
		pending[hash] = struct{}{}
	}

	kept := make([]string, 0, len(candidates))

	first, last := candidates[0], candidates[len(candidates)-1]

	for commit, err := range s.index.Range(ctx, s.source, first, last, history.Ascending) {
		if err != nil {
			return nil, fmt.Errorf("replay candidates: %w", err)
		}

		if _, ok := pending[commit.Hash]; !ok {
			continue
		}

		if s.touchesRelevant(commit) {
			kept = append(kept, commit.Hash)
		} else {
			s.cfg.Logger.DebugContext(ctx, "discarding fixing commit", "commit", commit.ShortHash())
		}
	}

	return kept, nil
}

func (s *Selector) touchesRelevant(commit *history.Commit) bool {
	for _, file := range commit.Files {
		if file.Kind == history.Modify && s.cfg.Relevant(file.NewPath, file.Source) {
			return true
		}
	}

	return false
}

package gitlib

import (
	"context"
	"fmt"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/repominer/pkg/alg/lru"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
)

// lineOverhead is the per-line cost of a DiffLine beyond its text.
const lineOverhead = 24

// Source is the history of one branch of a libgit2 repository. It
// implements history.Source and is not safe for concurrent use.
type Source struct {
	repo      *Repository
	locator   Locator
	hashes    []Hash
	positions map[Hash]int
	commits   *lru.Cache[Hash, *history.Commit]
}

// Option configures a Source.
type Option func(*Source)

// WithCommitCache keeps up to maxBytes of decoded commits in memory. The
// selector and the resolver walk the same commits, so the second walk is
// served from the cache. A non-positive size disables caching.
func WithCommitCache(maxBytes int64) Option {
	return func(s *Source) {
		if maxBytes <= 0 {
			s.commits = nil

			return
		}

		s.commits = lru.New(lru.WithMaxBytes[Hash](maxBytes, commitSize))
	}
}

// OpenHistory opens the repository named by locator, cloning remote
// repositories into cloneDir, and lists the commits of branch. An empty
// branch means HEAD.
func OpenHistory(ctx context.Context, locator, branch, cloneDir string, opts ...Option) (*Source, error) {
	ctx, span := otel.Tracer(observability.GitTracerName).Start(ctx, "repominer.gitlib.open")
	defer span.End()

	loc, err := ParseLocator(locator, cloneDir)
	if err != nil {
		span.SetStatus(codes.Error, "invalid locator")

		return nil, err
	}

	repo, err := loc.Open(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")

		return nil, err
	}

	src, err := newSource(repo, loc, branch)
	if err != nil {
		repo.Free()
		span.RecordError(err)
		span.SetStatus(codes.Error, "list commits failed")

		return nil, err
	}

	for _, opt := range opts {
		opt(src)
	}

	span.SetAttributes(attribute.Int("repominer.commits", len(src.hashes)))

	return src, nil
}

func newSource(repo *Repository, loc Locator, branch string) (*Source, error) {
	tip, err := repo.ResolveBranch(branch)
	if err != nil {
		return nil, err
	}

	src := &Source{repo: repo, locator: loc, positions: map[Hash]int{}}

	if tip.IsZero() {
		return src, nil
	}

	src.hashes, err = repo.branchHashes(tip)
	if err != nil {
		return nil, err
	}

	for i, h := range src.hashes {
		src.positions[h] = i
	}

	return src, nil
}

// Close releases the repository.
func (s *Source) Close() {
	s.repo.Free()
}

// Repository returns the underlying repository.
func (s *Source) Repository() *Repository {
	return s.repo
}

// Locator returns where the repository was opened from.
func (s *Source) Locator() Locator {
	return s.locator
}

// CacheStats reports the commit cache counters. The zero value is returned
// when caching is disabled.
func (s *Source) CacheStats() lru.Stats {
	if s.commits == nil {
		return lru.Stats{}
	}

	return s.commits.Stats()
}

// Blame returns the blame oracle over the same repository.
func (s *Source) Blame() *Blame {
	return NewBlame(s.repo)
}

// Hashes implements history.Source.
func (s *Source) Hashes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]string, len(s.hashes))
	for i, h := range s.hashes {
		out[i] = h.String()
	}

	return out, nil
}

// Commit implements history.Source.
func (s *Source) Commit(ctx context.Context, hash string) (*history.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pos, err := s.position(hash)
	if err != nil {
		return nil, err
	}

	return s.load(s.hashes[pos])
}

// Traverse implements history.Source.
func (s *Source) Traverse(ctx context.Context, from, to string, order history.Order) iter.Seq2[*history.Commit, error] {
	return func(yield func(*history.Commit, error) bool) {
		if len(s.hashes) == 0 {
			return
		}

		start, end := 0, len(s.hashes)-1

		var err error

		if from != "" {
			if start, err = s.position(from); err != nil {
				yield(nil, err)

				return
			}
		}

		if to != "" {
			if end, err = s.position(to); err != nil {
				yield(nil, err)

				return
			}
		}

		if start > end {
			start, end = end, start
		}

		for i := range end - start + 1 {
			pos := start + i
			if order == history.Descending {
				pos = end - i
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(nil, ctxErr)

				return
			}

			commit, loadErr := s.load(s.hashes[pos])
			if loadErr != nil {
				yield(nil, loadErr)

				return
			}

			if !yield(commit, nil) {
				return
			}
		}
	}
}

func (s *Source) position(hash string) (int, error) {
	h, err := ParseHash(hash)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", history.ErrNotFound, hash)
	}

	pos, ok := s.positions[h]
	if !ok {
		return 0, fmt.Errorf("%w: %s", history.ErrNotFound, hash)
	}

	return pos, nil
}

func (s *Source) load(hash Hash) (*history.Commit, error) {
	if s.commits != nil {
		if cached, ok := s.commits.Get(hash); ok {
			return cached, nil
		}
	}

	commit, err := s.repo.LookupCommit(hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	files, err := s.repo.modifiedFiles(commit)
	if err != nil {
		return nil, fmt.Errorf("changes of %s: %w", hash, err)
	}

	out := &history.Commit{
		Hash:     hash.String(),
		Position: s.positions[hash],
		Message:  commit.Message(),
		Files:    files,
	}

	if s.commits != nil {
		s.commits.Put(hash, out)
	}

	return out, nil
}

// commitSize approximates the retained bytes of a decoded commit.
func commitSize(c *history.Commit) int64 {
	size := int64(len(c.Hash) + len(c.Message))

	for _, f := range c.Files {
		size += int64(len(f.OldPath) + len(f.NewPath) + len(f.Content()))

		for _, l := range f.Added {
			size += int64(len(l.Text)) + lineOverhead
		}

		for _, l := range f.Deleted {
			size += int64(len(l.Text)) + lineOverhead
		}
	}

	return size
}

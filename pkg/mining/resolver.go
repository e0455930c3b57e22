package mining

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"

	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
)

// Resolver finds, for every file fixed by a fixing commit, the oldest commit
// that introduced the fixed lines.
type Resolver struct {
	index  *history.Index
	source history.Source
	cfg    Config
}

// NewResolver creates a resolver over the indexed history of source.
func NewResolver(index *history.Index, source history.Source, cfg Config) *Resolver {
	return &Resolver{index: index, source: source, cfg: cfg.withDefaults()}
}

// Resolve walks from the newest to the oldest fixing commit and returns the
// fixed files with their defect windows. Windows of the same file are merged
// when they overlap and kept apart when the later fix ends before the
// earlier window starts.
func (r *Resolver) Resolve(ctx context.Context, fixing []string) ([]FixedFile, error) {
	fixed, _, err := r.run(ctx, fixing)

	return fixed, err
}

func (r *Resolver) run(ctx context.Context, fixing []string) ([]FixedFile, int, error) {
	fixing = r.index.Sort(fixing)
	if len(fixing) == 0 {
		return []FixedFile{}, 0, nil
	}

	if r.cfg.Blame == nil {
		return nil, 0, ErrNoBlame
	}

	isFixing := make(map[string]struct{}, len(fixing))
	for _, hash := range fixing {
		isFixing[hash] = struct{}{}
	}

	tracer := otel.Tracer(tracerName)
	renames := renameMap{}
	fixed := []FixedFile{}
	calls := 0

	oldest, newest := fixing[0], fixing[len(fixing)-1]

	for commit, err := range r.index.Range(ctx, r.source, newest, oldest, history.Descending) {
		if err != nil {
			return nil, calls, fmt.Errorf("walk fixing commits: %w", err)
		}

		_, fixes := isFixing[commit.Hash]

		for _, file := range commit.Files {
			if file.Kind != history.Modify && file.Kind != history.Rename {
				continue
			}

			if file.Kind == history.Rename {
				renames.trackForward(file.OldPath, file.NewPath)
			}

			if !fixes || !r.cfg.Relevant(file.NewPath, file.Source) {
				continue
			}

			spanCtx, span := tracer.Start(ctx, observability.BlameSpanName)
			blamed, blameErr := r.cfg.Blame.LastModifiedLines(spanCtx, commit, file)
			span.End()

			calls++

			if blameErr != nil {
				return nil, calls, fmt.Errorf("blame %s at %s: %w", file.NewPath, commit.ShortHash(), blameErr)
			}

			bic, ok := r.index.Oldest(blamed[file.NewPath])
			if !ok {
				continue
			}

			fixed = r.merge(ctx, fixed, renames, file.NewPath, bic, commit)
		}
	}

	return fixed, calls, nil
}

// merge folds the window [bic, fic) of path into fixed.
func (r *Resolver) merge(
	ctx context.Context, fixed []FixedFile, renames renameMap, path, bic string, fic *history.Commit,
) []FixedFile {
	bicPos := r.position(bic)

	if bicPos > fic.Position {
		r.cfg.Logger.WarnContext(ctx, "blame returned a descendant of the fixing commit",
			"file", path, "bic", bic, "fic", fic.Hash)

		return fixed
	}

	key := renames.resolve(path)

	i := slices.IndexFunc(fixed, func(f FixedFile) bool { return f.Filepath == key })
	if i < 0 {
		return append(fixed, FixedFile{Filepath: key, BIC: bic, FIC: fic.Hash})
	}

	existingBIC := r.position(fixed[i].BIC)

	switch {
	case fic.Position < existingBIC:
		renames.forget(path)

		return append(fixed, FixedFile{Filepath: path, BIC: bic, FIC: fic.Hash})
	case bicPos < existingBIC:
		fixed[i].BIC = bic
	}

	return fixed
}

// position returns the index position of a hash already known to be indexed.
func (r *Resolver) position(hash string) int {
	pos, err := r.index.PositionOf(hash)
	if err != nil {
		return -1
	}

	return pos
}

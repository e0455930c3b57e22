package mining

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/Sumatoshi-tech/repominer/pkg/alg/interval"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
)

// Labeler replays history and emits a failure-prone record for every commit
// inside a fixed file's defect window.
type Labeler struct {
	index  *history.Index
	source history.Source
	cfg    Config
}

// NewLabeler creates a labeler over the indexed history of source.
func NewLabeler(index *history.Index, source history.Source, cfg Config) *Labeler {
	return &Labeler{index: index, source: source, cfg: cfg.withDefaults()}
}

// Label walks from the newest fixing commit back to the first commit of the
// branch. For each commit it emits, in list order, the fixed files whose
// window [BIC, FIC) contains the commit, named as they were at that commit.
// The sequence is lazy and stops when the consumer stops.
func (l *Labeler) Label(ctx context.Context, fixed []FixedFile, fixing []string) iter.Seq2[FailureProneFile, error] {
	return func(yield func(FailureProneFile, error) bool) {
		fixing = l.index.Sort(fixing)
		if len(fixed) == 0 || len(fixing) == 0 {
			return
		}

		windows := l.windows(ctx, fixed)
		if windows.Len() == 0 {
			return
		}

		renames := renameMap{}
		hits := make([]int, 0, len(fixed))

		for commit, err := range l.index.Range(ctx, l.source, fixing[len(fixing)-1], l.index.First(), history.Descending) {
			if err != nil {
				yield(FailureProneFile{}, fmt.Errorf("walk history: %w", err))

				return
			}

			hits = hits[:0]
			for iv := range windows.Overlapping(commit.Position, commit.Position) {
				hits = append(hits, iv.Value)
			}

			slices.Sort(hits)

			for _, i := range hits {
				record := FailureProneFile{
					Filepath:     renames.resolve(fixed[i].Filepath),
					Commit:       commit.Hash,
					FixingCommit: fixed[i].FIC,
				}

				if !yield(record, nil) {
					return
				}
			}

			for _, file := range commit.Files {
				if file.Kind == history.Rename {
					renames.trackBackward(file.OldPath, file.NewPath)
				}
			}
		}
	}
}

// windows indexes the fixed files by the positions [BIC, FIC-1]. The value
// is the position of the file in the input list.
func (l *Labeler) windows(ctx context.Context, fixed []FixedFile) *interval.Tree[int, int] {
	tree := interval.New[int, int]()

	for i, f := range fixed {
		bic, bicErr := l.index.PositionOf(f.BIC)
		fic, ficErr := l.index.PositionOf(f.FIC)

		if bicErr != nil || ficErr != nil {
			l.cfg.Logger.WarnContext(ctx, "fixed file outside history", "file", f.Filepath, "bic", f.BIC, "fic", f.FIC)

			continue
		}

		tree.Insert(bic, fic-1, i)
	}

	return tree
}

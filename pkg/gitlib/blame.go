package gitlib

import (
	"context"
	"fmt"
	"slices"

	git2go "github.com/libgit2/git2go/v34"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/repominer/pkg/history"
)

// Blame finds the commits that last touched the lines a change deleted, by
// blaming the old file at the first parent of the changing commit.
// Whitespace-only changes are looked through.
type Blame struct {
	repo *Repository
}

// NewBlame creates a blame oracle over repo.
func NewBlame(repo *Repository) *Blame {
	return &Blame{repo: repo}
}

// LastModifiedLines returns, keyed by the file's new path, the sorted hashes
// of the commits that last modified the deleted lines of file. Blank and
// comment-only lines are ignored.
func (b *Blame) LastModifiedLines(
	ctx context.Context, commit *history.Commit, file history.ModifiedFile,
) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := map[string][]string{}

	lines := make([]int, 0, len(file.Deleted))
	for _, line := range file.Deleted {
		if !history.UselessLine(line.Text) {
			lines = append(lines, line.Number)
		}
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("mining.blamed_lines", len(lines)))

	if len(lines) == 0 || file.OldPath == "" {
		return result, nil
	}

	parent, err := b.firstParent(commit.Hash)
	if err != nil {
		return nil, err
	}

	opts, err := git2go.DefaultBlameOptions()
	if err != nil {
		return nil, fmt.Errorf("blame options: %w", err)
	}

	opts.NewestCommit = parent.ToOid()
	opts.Flags |= git2go.BlameIgnoreWhitespace

	blame, err := b.repo.repo.BlameFile(file.OldPath, &opts)
	if err != nil {
		return nil, fmt.Errorf("blame %s at %s: %w", file.OldPath, parent, err)
	}

	defer func() {
		_ = blame.Free()
	}()

	seen := map[string]struct{}{}

	for _, n := range lines {
		hunk, hunkErr := blame.HunkByLine(n)
		if hunkErr != nil {
			continue
		}

		seen[HashFromOid(hunk.FinalCommitId).String()] = struct{}{}
	}

	if len(seen) == 0 {
		return result, nil
	}

	hashes := make([]string, 0, len(seen))
	for h := range seen {
		hashes = append(hashes, h)
	}

	slices.Sort(hashes)
	result[file.NewPath] = hashes

	return result, nil
}

func (b *Blame) firstParent(hash string) (Hash, error) {
	h, err := ParseHash(hash)
	if err != nil {
		return Hash{}, err
	}

	commit, err := b.repo.LookupCommit(h)
	if err != nil {
		return Hash{}, err
	}
	defer commit.Free()

	parent, err := commit.Parent(0)
	if err != nil {
		return Hash{}, err
	}
	defer parent.Free()

	return parent.Hash(), nil
}

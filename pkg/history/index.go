package history

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrNotFound is returned when a commit hash is not part of the branch history.
	ErrNotFound = errors.New("commit not found in history")
	// ErrDuplicateCommit is returned when a hash appears twice in the branch history.
	ErrDuplicateCommit = errors.New("duplicate commit in history")
)

// Index is the chronological order of the commits of one branch.
// Position 0 is the oldest commit.
type Index struct {
	hashes    []string
	positions map[string]int
}

// NewIndex builds an index from hashes given oldest first.
func NewIndex(hashes []string) (*Index, error) {
	idx := &Index{
		hashes:    make([]string, len(hashes)),
		positions: make(map[string]int, len(hashes)),
	}

	for i, hash := range hashes {
		if _, dup := idx.positions[hash]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommit, hash)
		}

		idx.positions[hash] = i
		idx.hashes[i] = hash
	}

	return idx, nil
}

// Open reads the branch history of src and indexes it.
func Open(ctx context.Context, src Source) (*Index, error) {
	hashes, err := src.Hashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}

	return NewIndex(hashes)
}

// Len returns the number of commits in the history.
func (idx *Index) Len() int {
	return len(idx.hashes)
}

// Hashes returns a copy of all hashes, oldest first.
func (idx *Index) Hashes() []string {
	out := make([]string, len(idx.hashes))
	copy(out, idx.hashes)

	return out
}

// At returns the hash at the given position.
func (idx *Index) At(pos int) (string, bool) {
	if pos < 0 || pos >= len(idx.hashes) {
		return "", false
	}

	return idx.hashes[pos], true
}

// First returns the oldest commit hash, or "" for an empty history.
func (idx *Index) First() string {
	if len(idx.hashes) == 0 {
		return ""
	}

	return idx.hashes[0]
}

// Last returns the newest commit hash, or "" for an empty history.
func (idx *Index) Last() string {
	if len(idx.hashes) == 0 {
		return ""
	}

	return idx.hashes[len(idx.hashes)-1]
}

// Contains reports whether hash belongs to the history.
func (idx *Index) Contains(hash string) bool {
	_, ok := idx.positions[hash]

	return ok
}

// PositionOf returns the chronological position of hash.
func (idx *Index) PositionOf(hash string) (int, error) {
	pos, ok := idx.positions[hash]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	return pos, nil
}

// Compare returns -1, 0 or +1 when a is older than, equal to, or newer than b.
func (idx *Index) Compare(a, b string) (int, error) {
	posA, err := idx.PositionOf(a)
	if err != nil {
		return 0, err
	}

	posB, err := idx.PositionOf(b)
	if err != nil {
		return 0, err
	}

	switch {
	case posA < posB:
		return -1, nil
	case posA > posB:
		return 1, nil
	default:
		return 0, nil
	}
}

// Sort returns hashes reordered chronologically. Duplicates and hashes that
// are not part of the history are dropped.
func (idx *Index) Sort(hashes []string) []string {
	present := make([]bool, len(idx.hashes))
	count := 0

	for _, hash := range hashes {
		pos, ok := idx.positions[hash]
		if !ok || present[pos] {
			continue
		}

		present[pos] = true
		count++
	}

	sorted := make([]string, 0, count)

	for pos, ok := range present {
		if ok {
			sorted = append(sorted, idx.hashes[pos])
		}
	}

	return sorted
}

// Oldest returns the chronologically oldest of hashes that belong to the
// history. The boolean is false when none does.
func (idx *Index) Oldest(hashes []string) (string, bool) {
	best := -1

	for _, hash := range hashes {
		pos, ok := idx.positions[hash]
		if ok && (best < 0 || pos < best) {
			best = pos
		}
	}

	if best < 0 {
		return "", false
	}

	return idx.hashes[best], true
}

// Range yields the commits of src between from and to inclusive in the
// requested order. The endpoints may be given in either order. The sequence
// is lazy and single-pass; an unknown endpoint yields one error.
// Positions of the yielded commits are taken from the index.
func (idx *Index) Range(ctx context.Context, src Source, from, to string, order Order) iter.Seq2[*Commit, error] {
	return func(yield func(*Commit, error) bool) {
		fromPos, err := idx.PositionOf(from)
		if err != nil {
			yield(nil, err)

			return
		}

		toPos, err := idx.PositionOf(to)
		if err != nil {
			yield(nil, err)

			return
		}

		if fromPos > toPos {
			fromPos, toPos = toPos, fromPos
		}

		for commit, walkErr := range src.Traverse(ctx, idx.hashes[fromPos], idx.hashes[toPos], order) {
			if walkErr != nil {
				yield(nil, walkErr)

				return
			}

			pos, posErr := idx.PositionOf(commit.Hash)
			if posErr != nil {
				yield(nil, posErr)

				return
			}

			commit.Position = pos

			if !yield(commit, nil) {
				return
			}
		}
	}
}

// All yields every commit of src in the requested order.
func (idx *Index) All(ctx context.Context, src Source, order Order) iter.Seq2[*Commit, error] {
	if len(idx.hashes) == 0 {
		return func(func(*Commit, error) bool) {}
	}

	return idx.Range(ctx, src, idx.First(), idx.Last(), order)
}

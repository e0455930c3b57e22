package history

import (
	"context"
	"iter"
)

// Order is the traversal direction over the commit index.
type Order int

const (
	// Ascending walks from older to newer commits.
	Ascending Order = iota
	// Descending walks from newer to older commits.
	Descending
)

// String returns the order name.
func (o Order) String() string {
	if o == Descending {
		return "descending"
	}

	return "ascending"
}

// Source supplies the commits of a single branch.
//
// Hashes must return every commit hash of the branch in chronological order,
// oldest first. Traverse yields the commits between from and to inclusive,
// where both endpoints are given in chronological order; an empty from or to
// means the start or the end of the branch. Implementations are not required
// to be safe for concurrent use.
type Source interface {
	Hashes(ctx context.Context) ([]string, error)
	Commit(ctx context.Context, hash string) (*Commit, error)
	Traverse(ctx context.Context, from, to string, order Order) iter.Seq2[*Commit, error]
}

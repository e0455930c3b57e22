package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// branchHashes returns every commit reachable from tip, oldest first.
// Topological order ensures a parent never follows one of its children.
func (r *Repository) branchHashes(tip Hash) ([]Hash, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	walk.Sorting(git2go.SortTime | git2go.SortTopological | git2go.SortReverse)

	err = walk.Push(tip.ToOid())
	if err != nil {
		return nil, fmt.Errorf("push %s to revwalk: %w", tip, err)
	}

	var hashes []Hash

	oid := new(git2go.Oid)

	for {
		err = walk.Next(oid)
		if git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
			return hashes, nil
		}

		if err != nil {
			return nil, fmt.Errorf("revwalk next: %w", err)
		}

		hashes = append(hashes, HashFromOid(oid))
	}
}

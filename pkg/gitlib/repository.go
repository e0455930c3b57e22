package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit HEAD points to. The zero hash is returned for a
// repository without commits.
func (r *Repository) Head() (Hash, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err == nil && unborn {
		return Hash{}, nil
	}

	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// ResolveBranch returns the tip of branch. Local branches are looked up
// first, then the branch of the origin remote. An empty name means HEAD.
func (r *Repository) ResolveBranch(branch string) (Hash, error) {
	if branch == "" {
		return r.Head()
	}

	candidates := []struct {
		name string
		kind git2go.BranchType
	}{
		{branch, git2go.BranchLocal},
		{"origin/" + branch, git2go.BranchRemote},
	}

	for _, c := range candidates {
		ref, err := r.repo.LookupBranch(c.name, c.kind)
		if err != nil {
			continue
		}

		target := ref.Target()
		if target == nil {
			ref.Free()

			continue
		}

		tip := HashFromOid(target)
		ref.Free()

		return tip, nil
	}

	return Hash{}, fmt.Errorf("%w: branch %q", ErrNotFound, branch)
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("%w: commit %s: %w", ErrNotFound, hash, err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob %s: %w", hash, err)
	}

	return &Blob{blob: blob}, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}

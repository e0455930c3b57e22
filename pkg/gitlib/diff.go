package gitlib

import (
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/repominer/pkg/history"
)

// changeKind maps a libgit2 delta status to a change kind. Copies are
// reported as additions of the destination path.
func changeKind(status git2go.Delta) (history.ChangeKind, bool) {
	switch status {
	case git2go.DeltaAdded, git2go.DeltaCopied:
		return history.Add, true
	case git2go.DeltaDeleted:
		return history.Delete, true
	case git2go.DeltaModified, git2go.DeltaTypeChange:
		return history.Modify, true
	case git2go.DeltaRenamed:
		return history.Rename, true
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return 0, false
	}

	return 0, false
}

// fileDelta is a modified file together with the blob of its new side.
type fileDelta struct {
	file    history.ModifiedFile
	newBlob Hash
	binary  bool
}

// modifiedFiles diffs commit against its first parent, or against the empty
// tree for a root commit, with rename detection. Merge commits carry no
// modified files; their changes belong to the merged commits.
func (r *Repository) modifiedFiles(commit *Commit) ([]history.ModifiedFile, error) {
	if commit.NumParents() > 1 {
		return []history.ModifiedFile{}, nil
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	var parentTree *Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return nil, parentErr
		}
		defer parent.Free()

		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
		defer parentTree.Free()
	}

	if parentTree != nil && parentTree.Hash() == tree.Hash() {
		return []history.ModifiedFile{}, nil
	}

	deltas, err := r.diffTrees(parentTree, tree)
	if err != nil {
		return nil, err
	}

	files := make([]history.ModifiedFile, 0, len(deltas))

	for _, d := range deltas {
		if d.file.Kind != history.Delete && !d.binary {
			d.file.Source = r.blobText(d.newBlob)
		}

		files = append(files, d.file)
	}

	return files, nil
}

func (r *Repository) diffTrees(oldTree, newTree *Tree) ([]*fileDelta, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree.native(), newTree.native(), &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	defer func() {
		// Free errors are not actionable in cleanup.
		_ = diff.Free()
	}()

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return nil, fmt.Errorf("get find options: %w", err)
	}

	findOpts.Flags = git2go.DiffFindRenames

	err = diff.FindSimilar(&findOpts)
	if err != nil {
		return nil, fmt.Errorf("detect renames: %w", err)
	}

	var deltas []*fileDelta

	skipHunk := func(git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
		return func(git2go.DiffLine) error { return nil }, nil
	}

	err = diff.ForEach(func(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		kind, ok := changeKind(delta.Status)
		if !ok {
			return skipHunk, nil
		}

		d := &fileDelta{
			file: history.ModifiedFile{
				Kind:    kind,
				OldPath: delta.OldFile.Path,
				NewPath: delta.NewFile.Path,
			},
			newBlob: HashFromOid(delta.NewFile.Oid),
			binary:  delta.Flags&git2go.DiffFlagBinary != 0,
		}

		if kind == history.Add {
			d.file.OldPath = ""
		}

		if kind == history.Delete {
			d.file.NewPath = ""
		}

		deltas = append(deltas, d)

		return func(git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			return func(line git2go.DiffLine) error {
				d.addLine(line)

				return nil
			}, nil
		}, nil
	}, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("walk diff: %w", err)
	}

	return deltas, nil
}

func (d *fileDelta) addLine(line git2go.DiffLine) {
	text := strings.TrimSuffix(line.Content, "\n")

	switch line.Origin {
	case git2go.DiffLineAddition:
		d.file.Added = append(d.file.Added, history.DiffLine{Number: line.NewLineno, Text: text})
	case git2go.DiffLineDeletion:
		d.file.Deleted = append(d.file.Deleted, history.DiffLine{Number: line.OldLineno, Text: text})
	case git2go.DiffLineContext, git2go.DiffLineContextEOFNL, git2go.DiffLineAddEOFNL,
		git2go.DiffLineDelEOFNL, git2go.DiffLineFileHdr, git2go.DiffLineHunkHdr, git2go.DiffLineBinary:
	}
}

// blobText returns the text of a blob, or nil for binary or missing blobs.
func (r *Repository) blobText(hash Hash) *string {
	if hash.IsZero() {
		return nil
	}

	blob, err := r.LookupBlob(hash)
	if err != nil {
		return nil
	}
	defer blob.Free()

	return blob.Text()
}

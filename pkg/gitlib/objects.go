package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/repominer/pkg/textutil"
)

// Blob is file content stored in the object database.
type Blob struct {
	blob *git2go.Blob
}

// Text returns the blob as source text, or nil for binary content.
func (b *Blob) Text() *string {
	data := b.blob.Contents()
	if textutil.IsBinary(data) {
		return nil
	}

	text := string(data)

	return &text
}

// Free releases the blob.
func (b *Blob) Free() {
	if b.blob != nil {
		b.blob.Free()
		b.blob = nil
	}
}

// Tree is the root directory snapshot of a commit.
type Tree struct {
	tree *git2go.Tree
}

// Hash returns the tree hash. Equal hashes mean the commit changed no file.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// Free releases the tree.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

func (t *Tree) native() *git2go.Tree {
	if t == nil {
		return nil
	}

	return t.tree
}

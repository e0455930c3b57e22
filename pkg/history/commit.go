// Package history provides the chronological commit index of a branch and the
// commit model consumed by the mining pipeline.
package history

import "strings"

// ChangeKind is the kind of change a commit applied to a file.
type ChangeKind int

const (
	// Add indicates a new file.
	Add ChangeKind = iota
	// Modify indicates an in-place content change.
	Modify
	// Delete indicates a removed file.
	Delete
	// Rename indicates a file moved to a new path, possibly with edits.
	Rename
)

// String returns the upper-case name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case Add:
		return "ADD"
	case Modify:
		return "MODIFY"
	case Delete:
		return "DELETE"
	case Rename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// DiffLine is one added or deleted line of a diff hunk.
// Number is 1-based: in the new file for additions, in the old file for deletions.
type DiffLine struct {
	Number int
	Text   string
}

// ModifiedFile is a single file change inside a commit.
type ModifiedFile struct {
	Kind    ChangeKind
	OldPath string
	NewPath string
	// Source is the full content after the change; nil when unavailable.
	Source  *string
	Added   []DiffLine
	Deleted []DiffLine
}

// Path returns the path the change is known under: the old path for
// deletions, the new path otherwise.
func (f ModifiedFile) Path() string {
	if f.Kind == Delete {
		return f.OldPath
	}

	return f.NewPath
}

// Content returns the source content or the empty string.
func (f ModifiedFile) Content() string {
	if f.Source == nil {
		return ""
	}

	return *f.Source
}

// Commit is a read-only view of one commit of the branch.
type Commit struct {
	Hash     string
	Position int
	Message  string
	Files    []ModifiedFile
}

// ShortHash returns the first seven characters of the hash.
func (c *Commit) ShortHash() string {
	const shortLen = 7

	if len(c.Hash) <= shortLen {
		return c.Hash
	}

	return c.Hash[:shortLen]
}

// Summary returns the first line of the commit message.
func (c *Commit) Summary() string {
	summary, _, _ := strings.Cut(c.Message, "\n")

	return strings.TrimSpace(summary)
}

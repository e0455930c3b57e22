package classifier

import (
	"strings"

	"github.com/Sumatoshi-tech/repominer/pkg/history"
)

// Signals are structural change hooks evaluated on a commit. A domain variant
// embeds BaseSignals and overrides the hooks it can detect.
type Signals interface {
	CommentChanged(c *history.Commit) bool
	DataChanged(c *history.Commit) bool
	IncludeChanged(c *history.Commit) bool
	ServiceChanged(c *history.Commit) bool
}

// DefaultCommentMarker starts a line comment in shell, YAML and Python.
const DefaultCommentMarker = "#"

// BaseSignals detects comment changes and reports no other structural change.
type BaseSignals struct {
	// CommentMarkers are the line prefixes that mark a comment.
	// Empty means DefaultCommentMarker.
	CommentMarkers []string
}

// CommentChanged reports whether an added or deleted line of a modified file
// starts with a comment marker once trimmed.
func (b BaseSignals) CommentChanged(c *history.Commit) bool {
	markers := b.CommentMarkers
	if len(markers) == 0 {
		markers = []string{DefaultCommentMarker}
	}

	for _, file := range c.Files {
		if file.Kind != history.Modify {
			continue
		}

		if anyCommentLine(file.Added, markers) || anyCommentLine(file.Deleted, markers) {
			return true
		}
	}

	return false
}

// DataChanged always reports false.
func (BaseSignals) DataChanged(*history.Commit) bool { return false }

// IncludeChanged always reports false.
func (BaseSignals) IncludeChanged(*history.Commit) bool { return false }

// ServiceChanged always reports false.
func (BaseSignals) ServiceChanged(*history.Commit) bool { return false }

func anyCommentLine(lines []history.DiffLine, markers []string) bool {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line.Text)

		for _, marker := range markers {
			if marker != "" && strings.HasPrefix(trimmed, marker) {
				return true
			}
		}
	}

	return false
}

// Package memrepo provides an in-memory branch history with line-level diffs
// and line provenance. It implements history.Source and the blame oracle used
// by the mining pipeline, which makes synthetic histories usable wherever a
// libgit2 repository would be.
package memrepo

import (
	"context"
	"crypto/sha1" //nolint:gosec // hashes are identifiers, not security material.
	"encoding/hex"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/repominer/pkg/history"
)

// Op is a file operation applied by a commit.
type Op struct {
	kind    history.ChangeKind
	oldPath string
	newPath string
	content *string
}

// Add creates path with content.
func Add(path, content string) Op {
	return Op{kind: history.Add, newPath: path, content: &content}
}

// Modify replaces the content of path.
func Modify(path, content string) Op {
	return Op{kind: history.Modify, oldPath: path, newPath: path, content: &content}
}

// Delete removes path.
func Delete(path string) Op {
	return Op{kind: history.Delete, oldPath: path}
}

// Rename moves oldPath to newPath keeping its content.
func Rename(oldPath, newPath string) Op {
	return Op{kind: history.Rename, oldPath: oldPath, newPath: newPath}
}

// RenameModify moves oldPath to newPath and replaces its content.
func RenameModify(oldPath, newPath, content string) Op {
	return Op{kind: history.Rename, oldPath: oldPath, newPath: newPath, content: &content}
}

// fileState is the content of one file with the commit that last touched each line.
type fileState struct {
	lines   []string
	origins []string
}

type entry struct {
	commit history.Commit
	// parents holds the line origins of each changed file before this commit,
	// keyed by the old path.
	parents map[string][]string
}

// Repo is an in-memory branch. It is built once and then read; building and
// reading must not happen concurrently.
type Repo struct {
	entries    []*entry
	positions  map[string]int
	files      map[string]*fileState
	blameCalls atomic.Int64
}

// New creates an empty repository.
func New() *Repo {
	return &Repo{
		positions: map[string]int{},
		files:     map[string]*fileState{},
	}
}

// Apply appends a commit applying ops in order and returns its hash.
// It panics on operations that do not match the current tree.
func (r *Repo) Apply(message string, ops ...Op) string {
	hash := commitHash(len(r.entries), message)

	ent := &entry{
		commit: history.Commit{
			Hash:     hash,
			Position: len(r.entries),
			Message:  message,
		},
		parents: map[string][]string{},
	}

	for _, op := range ops {
		ent.commit.Files = append(ent.commit.Files, r.apply(hash, op, ent))
	}

	r.positions[hash] = len(r.entries)
	r.entries = append(r.entries, ent)

	return hash
}

// BlameCalls returns how many times LastModifiedLines was invoked.
func (r *Repo) BlameCalls() int64 {
	return r.blameCalls.Load()
}

// Hashes implements history.Source.
func (r *Repo) Hashes(_ context.Context) ([]string, error) {
	out := make([]string, len(r.entries))
	for i, ent := range r.entries {
		out[i] = ent.commit.Hash
	}

	return out, nil
}

// Commit implements history.Source.
func (r *Repo) Commit(_ context.Context, hash string) (*history.Commit, error) {
	pos, ok := r.positions[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", history.ErrNotFound, hash)
	}

	return cloneCommit(&r.entries[pos].commit), nil
}

// Traverse implements history.Source.
func (r *Repo) Traverse(ctx context.Context, from, to string, order history.Order) iter.Seq2[*history.Commit, error] {
	return func(yield func(*history.Commit, error) bool) {
		if len(r.entries) == 0 {
			return
		}

		start, end := 0, len(r.entries)-1

		if from != "" {
			pos, ok := r.positions[from]
			if !ok {
				yield(nil, fmt.Errorf("%w: %s", history.ErrNotFound, from))

				return
			}

			start = pos
		}

		if to != "" {
			pos, ok := r.positions[to]
			if !ok {
				yield(nil, fmt.Errorf("%w: %s", history.ErrNotFound, to))

				return
			}

			end = pos
		}

		if start > end {
			start, end = end, start
		}

		for i := range end - start + 1 {
			pos := start + i
			if order == history.Descending {
				pos = end - i
			}

			if ctx.Err() != nil {
				yield(nil, ctx.Err())

				return
			}

			if !yield(cloneCommit(&r.entries[pos].commit), nil) {
				return
			}
		}
	}
}

// LastModifiedLines returns, keyed by the file's new path, the commits that
// last touched the lines the given change deleted. Blank and comment-only
// lines are ignored.
func (r *Repo) LastModifiedLines(_ context.Context, commit *history.Commit, file history.ModifiedFile) (map[string][]string, error) {
	r.blameCalls.Add(1)

	pos, ok := r.positions[commit.Hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", history.ErrNotFound, commit.Hash)
	}

	origins := r.entries[pos].parents[file.OldPath]
	seen := map[string]struct{}{}

	for _, line := range file.Deleted {
		if history.UselessLine(line.Text) || line.Number < 1 || line.Number > len(origins) {
			continue
		}

		seen[origins[line.Number-1]] = struct{}{}
	}

	result := map[string][]string{}
	if len(seen) == 0 {
		return result, nil
	}

	hashes := make([]string, 0, len(seen))
	for hash := range seen {
		hashes = append(hashes, hash)
	}

	slices.Sort(hashes)
	result[file.NewPath] = hashes

	return result, nil
}

func (r *Repo) apply(hash string, op Op, ent *entry) history.ModifiedFile {
	switch op.kind {
	case history.Add:
		lines := splitLines(*op.content)
		r.files[op.newPath] = &fileState{lines: lines, origins: repeat(hash, len(lines))}

		return history.ModifiedFile{
			Kind:    history.Add,
			NewPath: op.newPath,
			Source:  op.content,
			Added:   numbered(lines),
		}
	case history.Delete:
		state := r.mustFile(op.oldPath)
		ent.parents[op.oldPath] = slices.Clone(state.origins)
		delete(r.files, op.oldPath)

		return history.ModifiedFile{
			Kind:    history.Delete,
			OldPath: op.oldPath,
			Deleted: numbered(state.lines),
		}
	case history.Modify, history.Rename:
		state := r.mustFile(op.oldPath)
		ent.parents[op.oldPath] = slices.Clone(state.origins)

		content := strings.Join(state.lines, "\n")
		if len(state.lines) > 0 {
			content += "\n"
		}

		if op.content != nil {
			content = *op.content
		}

		next, added, deleted := diffLines(state, splitLines(content), hash)

		delete(r.files, op.oldPath)
		r.files[op.newPath] = next

		return history.ModifiedFile{
			Kind:    op.kind,
			OldPath: op.oldPath,
			NewPath: op.newPath,
			Source:  &content,
			Added:   added,
			Deleted: deleted,
		}
	}

	panic(fmt.Sprintf("memrepo: unsupported change kind %s", op.kind))
}

func (r *Repo) mustFile(path string) *fileState {
	state, ok := r.files[path]
	if !ok {
		panic("memrepo: no such file " + path)
	}

	return state
}

// diffLines computes the line diff from old to lines and the provenance of
// the resulting file.
func diffLines(old *fileState, lines []string, hash string) (*fileState, []history.DiffLine, []history.DiffLine) {
	dmp := diffmatchpatch.New()

	oldChars, newChars, lineArray := dmp.DiffLinesToChars(joinLines(old.lines), joinLines(lines))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineArray)

	next := &fileState{lines: lines, origins: make([]string, 0, len(lines))}

	var added, deleted []history.DiffLine

	oldLine, newLine := 0, 0

	for _, diff := range diffs {
		count := strings.Count(diff.Text, "\n")

		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			next.origins = append(next.origins, old.origins[oldLine:oldLine+count]...)
			oldLine += count
			newLine += count
		case diffmatchpatch.DiffDelete:
			for i := range count {
				deleted = append(deleted, history.DiffLine{Number: oldLine + i + 1, Text: old.lines[oldLine+i]})
			}

			oldLine += count
		case diffmatchpatch.DiffInsert:
			for i := range count {
				added = append(added, history.DiffLine{Number: newLine + i + 1, Text: lines[newLine+i]})
				next.origins = append(next.origins, hash)
			}

			newLine += count
		}
	}

	return next, added, deleted
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// joinLines terminates every line so that line-mode diffs count them uniformly.
func joinLines(lines []string) string {
	var sb strings.Builder

	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	return sb.String()
}

func numbered(lines []string) []history.DiffLine {
	out := make([]history.DiffLine, len(lines))
	for i, line := range lines {
		out[i] = history.DiffLine{Number: i + 1, Text: line}
	}

	return out
}

func repeat(value string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = value
	}

	return out
}

func commitHash(seq int, message string) string {
	sum := sha1.Sum(fmt.Appendf(nil, "%d\x00%s", seq, message)) //nolint:gosec // identifiers only.

	return hex.EncodeToString(sum[:])
}

func cloneCommit(c *history.Commit) *history.Commit {
	out := *c
	out.Files = make([]history.ModifiedFile, len(c.Files))

	for i, f := range c.Files {
		f.Added = slices.Clone(f.Added)
		f.Deleted = slices.Clone(f.Deleted)
		out.Files[i] = f
	}

	return &out
}

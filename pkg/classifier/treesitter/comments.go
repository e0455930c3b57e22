// Package treesitter detects comment changes by parsing the changed file with
// a tree-sitter grammar instead of matching line prefixes.
package treesitter

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	forest "github.com/alexaandru/go-sitter-forest"
	golang "github.com/alexaandru/go-sitter-forest/go"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
)

// grammarNames maps enry language names to grammar names where the
// lower-cased, underscored enry name does not match.
var grammarNames = map[string]string{
	"c#":    "c_sharp",
	"c++":   "cpp",
	"shell": "bash",
}

// CommentSignals reports a comment change when an added line of a modified
// file falls inside a comment node of the new source. Deleted lines, files
// without a grammar and files without source fall back to the comment
// markers of the embedded BaseSignals.
type CommentSignals struct {
	classifier.BaseSignals

	languages sync.Map // grammar name -> *sitter.Language, nil when unavailable
	parsers   sync.Map // grammar name -> *sync.Pool of *sitter.Parser
}

// NewCommentSignals creates syntax-aware comment detection with markers as
// the fallback.
func NewCommentSignals(markers []string) *CommentSignals {
	return &CommentSignals{BaseSignals: classifier.BaseSignals{CommentMarkers: markers}}
}

// CommentChanged implements classifier.Signals.
func (s *CommentSignals) CommentChanged(c *history.Commit) bool {
	for _, file := range c.Files {
		if file.Kind != history.Modify {
			continue
		}

		if s.fileCommentChanged(file) {
			return true
		}
	}

	return false
}

func (s *CommentSignals) fileCommentChanged(file history.ModifiedFile) bool {
	rows, ok := s.commentRows(file.NewPath, file.Source)
	if !ok {
		return s.markersChanged(file)
	}

	for _, line := range file.Added {
		if rows[line.Number-1] {
			return true
		}
	}

	return s.markersChanged(history.ModifiedFile{Kind: file.Kind, Deleted: file.Deleted})
}

func (s *CommentSignals) markersChanged(file history.ModifiedFile) bool {
	return s.BaseSignals.CommentChanged(&history.Commit{Files: []history.ModifiedFile{file}})
}

// commentRows parses source and returns the zero-based rows covered by
// comment nodes. ok is false when the file has no grammar or cannot be parsed.
func (s *CommentSignals) commentRows(path string, source *string) (map[int]bool, bool) {
	if source == nil {
		return nil, false
	}

	content := []byte(*source)

	name := grammarName(path, content)
	if name == "" {
		return nil, false
	}

	pool := s.parserPool(name)
	if pool == nil {
		return nil, false
	}

	parser, _ := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseString(context.Background(), nil, content)
	if err != nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, false
	}

	rows := map[int]bool{}
	collectComments(root, rows)

	return rows, true
}

func collectComments(n sitter.Node, rows map[int]bool) {
	if strings.Contains(n.Type(), "comment") {
		for row := int(n.StartPoint().Row); row <= int(n.EndPoint().Row); row++ {
			rows[row] = true
		}

		return
	}

	for idx := range n.NamedChildCount() {
		collectComments(n.NamedChild(idx), rows)
	}
}

func (s *CommentSignals) parserPool(name string) *sync.Pool {
	if cached, ok := s.parsers.Load(name); ok {
		pool, _ := cached.(*sync.Pool)

		return pool
	}

	lang := s.language(name)
	if lang == nil {
		s.parsers.Store(name, (*sync.Pool)(nil))

		return nil
	}

	pool := &sync.Pool{New: func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(lang)

		return parser
	}}

	actual, _ := s.parsers.LoadOrStore(name, pool)
	pool, _ = actual.(*sync.Pool)

	return pool
}

// language loads a grammar. The forest panics on some unknown names.
func (s *CommentSignals) language(name string) (lang *sitter.Language) {
	if cached, ok := s.languages.Load(name); ok {
		lang, _ = cached.(*sitter.Language)

		return lang
	}

	if name == "go" {
		lang = sitter.NewLanguage(golang.GetLanguage())
	} else {
		func() {
			defer func() {
				_ = recover()
			}()

			lang = forest.GetLanguage(name)
		}()
	}

	s.languages.Store(name, lang)

	return lang
}

// grammarName detects the language of path with enry and maps it to a
// grammar name.
func grammarName(path string, content []byte) string {
	lang := enry.GetLanguage(filepath.Base(path), content)
	if lang == "" {
		return ""
	}

	lower := strings.ToLower(lang)
	if name, ok := grammarNames[lower]; ok {
		return name
	}

	return strings.ReplaceAll(lower, " ", "_")
}

package classifier

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/neurosnap/sentences.v1"
	"gopkg.in/neurosnap/sentences.v1/english"

	"github.com/Sumatoshi-tech/repominer/pkg/textutil"
)

// Tokenizer splits a commit message into sentences.
type Tokenizer interface {
	Sentences(text string) []string
}

// DependencyParser derives the dependency phrase of a cleaned sentence.
type DependencyParser interface {
	Phrase(sentence string) string
}

// TokenizerFunc adapts a function to Tokenizer.
type TokenizerFunc func(text string) []string

// Sentences implements Tokenizer.
func (f TokenizerFunc) Sentences(text string) []string { return f(text) }

// ParserFunc adapts a function to DependencyParser.
type ParserFunc func(sentence string) string

// Phrase implements DependencyParser.
func (f ParserFunc) Phrase(sentence string) string { return f(sentence) }

var (
	punktOnce sync.Once
	punkt     *sentences.DefaultSentenceTokenizer
	errPunkt  error
)

// SentenceTokenizer splits text with the Punkt English model. The model is
// loaded once per process.
type SentenceTokenizer struct{}

// NewSentenceTokenizer loads the Punkt model.
func NewSentenceTokenizer() (*SentenceTokenizer, error) {
	punktOnce.Do(func() {
		punkt, errPunkt = english.NewSentenceTokenizer(nil)
	})

	if errPunkt != nil {
		return nil, fmt.Errorf("load sentence model: %w", errPunkt)
	}

	return &SentenceTokenizer{}, nil
}

// Sentences implements Tokenizer. Blank sentences are dropped.
func (*SentenceTokenizer) Sentences(text string) []string {
	var out []string

	for _, s := range punkt.Tokenize(text) {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

// CleanSentence keeps only the alphabetic words of sentence, joined by a space.
func CleanSentence(sentence string) string {
	return strings.Join(textutil.AlphaWords(sentence), " ")
}

// HeadDependents approximates the head of a sentence and its dependents by
// its lower-cased content words, in order.
type HeadDependents struct{}

// Phrase implements DependencyParser.
func (HeadDependents) Phrase(sentence string) string {
	words := textutil.AlphaWords(sentence)
	kept := make([]string, 0, len(words))

	for _, word := range words {
		lower := strings.ToLower(word)
		if _, stop := stopwords[lower]; stop {
			continue
		}

		kept = append(kept, lower)
	}

	return strings.Join(kept, " ")
}

var stopwords = func() map[string]struct{} {
	words := strings.Fields(`
		a about above after again against all am an and any are as at be because
		been before being below between both but by can did do does doing down
		during each few for from further had has have having he her here hers
		herself him himself his how i if in into is it its itself just me more
		most my myself no nor not now of off on once only or other our ours
		ourselves out over own same she should so some such than that the their
		theirs them themselves then there these they this those through to too
		under until up very was we were what when where which while who whom why
		will with you your yours yourself yourselves`)

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	return set
}()

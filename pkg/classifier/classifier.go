package classifier

import (
	"regexp"

	"github.com/Sumatoshi-tech/repominer/pkg/history"
)

// Hook selects the structural signal that can stand in for a topic match.
type Hook uint8

// Structural hooks.
const (
	NoHook Hook = iota
	CommentHook
	DataHook
	IncludeHook
	ServiceHook
)

// Rule decides one label: a sentence qualifies when its dependency phrase
// matches any topic or the hook fires.
type Rule struct {
	Topics []*regexp.Regexp
	Hook   Hook
}

// Table is the compiled rule data.
type Table struct {
	// Defect must match the cleaned sentence for any label to apply.
	Defect []*regexp.Regexp
	Rules  map[Label]Rule
}

// Classifier labels commits. It is safe for concurrent use when its
// collaborators are.
type Classifier struct {
	table     Table
	tokenizer Tokenizer
	parser    DependencyParser
	signals   Signals
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTokenizer sets the sentence tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(c *Classifier) { c.tokenizer = t }
}

// WithParser sets the dependency parser.
func WithParser(p DependencyParser) Option {
	return func(c *Classifier) { c.parser = p }
}

// WithSignals sets the structural signals.
func WithSignals(s Signals) Option {
	return func(c *Classifier) { c.signals = s }
}

// New creates a classifier for table. Without options it splits messages on
// lines, uses HeadDependents and BaseSignals.
func New(table Table, opts ...Option) *Classifier {
	c := &Classifier{
		table:     table,
		tokenizer: TokenizerFunc(splitLines),
		parser:    HeadDependents{},
		signals:   BaseSignals{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Classify returns the labels carried by commit. An empty set means the
// commit is not a fixing commit.
func (c *Classifier) Classify(commit *history.Commit) LabelSet {
	type sentence struct{ text, phrase string }

	var sentences []sentence

	for _, raw := range c.tokenizer.Sentences(commit.Message) {
		text := CleanSentence(raw)
		if !matchAny(c.table.Defect, text) {
			continue
		}

		sentences = append(sentences, sentence{text: text, phrase: c.parser.Phrase(text)})
	}

	if len(sentences) == 0 {
		return 0
	}

	hooks := map[Hook]bool{}

	var set LabelSet

	for _, label := range AllLabels() {
		rule, ok := c.table.Rules[label]
		if !ok {
			continue
		}

		for _, s := range sentences {
			if matchAny(rule.Topics, s.phrase) || c.fires(rule.Hook, commit, hooks) {
				set = set.With(label)

				break
			}
		}
	}

	return set
}

// fires evaluates a hook once per commit.
func (c *Classifier) fires(hook Hook, commit *history.Commit, cache map[Hook]bool) bool {
	if hook == NoHook {
		return false
	}

	if v, ok := cache[hook]; ok {
		return v
	}

	var v bool

	switch hook {
	case CommentHook:
		v = c.signals.CommentChanged(commit)
	case DataHook:
		v = c.signals.DataChanged(commit)
	case IncludeHook:
		v = c.signals.IncludeChanged(commit)
	case ServiceHook:
		v = c.signals.ServiceChanged(commit)
	case NoHook:
	}

	cache[hook] = v

	return v
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}

	return false
}

var lineBreak = regexp.MustCompile(`\r?\n`)

func splitLines(text string) []string {
	return lineBreak.Split(text, -1)
}

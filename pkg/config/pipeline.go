package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/classifier/rules"
	"github.com/Sumatoshi-tech/repominer/pkg/classifier/treesitter"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
	"github.com/Sumatoshi-tech/repominer/pkg/relevance"
)

// Classifier builds the commit classifier: the rules file when set, the
// shipped dictionaries otherwise, Punkt sentence splitting and comment
// detection by markers or by syntax.
func (m MiningConfig) Classifier() (*classifier.Classifier, error) {
	table := rules.DefaultTable()

	if m.RulesFile != "" {
		loaded, err := rules.Load(m.RulesFile)
		if err != nil {
			return nil, err
		}

		table = loaded
	}

	tokenizer, err := classifier.NewSentenceTokenizer()
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	return classifier.New(table,
		classifier.WithTokenizer(tokenizer),
		classifier.WithSignals(m.signals()),
	), nil
}

func (m MiningConfig) signals() classifier.Signals {
	if strings.EqualFold(m.CommentDetection, CommentDetectionSyntax) {
		return treesitter.NewCommentSignals(m.CommentMarkers)
	}

	return classifier.BaseSignals{CommentMarkers: m.CommentMarkers}
}

// Pipeline assembles the mining configuration around blame. metrics may be nil.
func (c *Config) Pipeline(
	blame mining.BlameOracle, logger *slog.Logger, metrics *observability.MiningMetrics,
) (mining.Config, error) {
	clf, err := c.Mining.Classifier()
	if err != nil {
		return mining.Config{}, err
	}

	return mining.Config{
		Classifier: clf,
		Blame:      blame,
		Relevant:   relevance.FromConfig(c.Relevance),
		Workers:    c.Mining.Workers,
		Logger:     logger,
		Metrics:    metrics,
	}, nil
}

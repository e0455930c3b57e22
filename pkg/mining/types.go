// Package mining finds defect-fixing commits in a branch history, resolves the
// commits that introduced the fixed defects, and labels every file version
// that lived inside a defect window as failure-prone.
package mining

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
)

const tracerName = "repominer.mining"

// FixedFile is a file fixed by a fixing commit. The file was defective from
// BIC, the oldest commit that last touched the fixed lines, up to FIC.
type FixedFile struct {
	Filepath string `json:"filepath" yaml:"filepath"`
	BIC      string `json:"bic"      yaml:"bic"`
	FIC      string `json:"fic"      yaml:"fic"`
}

// FailureProneFile is a file, under its name at Commit, that was defective
// at Commit and later fixed by FixingCommit.
type FailureProneFile struct {
	Filepath     string `json:"filepath"      yaml:"filepath"`
	Commit       string `json:"commit"        yaml:"commit"`
	FixingCommit string `json:"fixing_commit" yaml:"fixing_commit"`
}

// Classifier labels a commit; an empty set means it fixes nothing.
type Classifier interface {
	Classify(c *history.Commit) classifier.LabelSet
}

// BlameOracle returns, keyed by path, the commits that last modified the
// lines file deleted in commit.
type BlameOracle interface {
	LastModifiedLines(ctx context.Context, commit *history.Commit, file history.ModifiedFile) (map[string][]string, error)
}

// BlameFunc adapts a function to BlameOracle.
type BlameFunc func(ctx context.Context, commit *history.Commit, file history.ModifiedFile) (map[string][]string, error)

// LastModifiedLines implements BlameOracle.
func (f BlameFunc) LastModifiedLines(
	ctx context.Context, commit *history.Commit, file history.ModifiedFile,
) (map[string][]string, error) {
	return f(ctx, commit, file)
}

// RelevanceFunc reports whether a file belongs to the mined domain.
// content is nil when the source is unavailable.
type RelevanceFunc func(path string, content *string) bool

// AcceptAll is the default relevance predicate.
func AcceptAll(string, *string) bool { return true }

// Config wires the collaborators of the pipeline.
type Config struct {
	// Classifier is required to select fixing commits.
	Classifier Classifier
	// Blame is required to resolve fixed files.
	Blame BlameOracle
	// Relevant defaults to AcceptAll.
	Relevant RelevanceFunc
	// Workers bounds concurrent classification. Defaults to runtime.NumCPU().
	Workers int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *observability.MiningMetrics
}

func (c Config) withDefaults() Config {
	if c.Relevant == nil {
		c.Relevant = AcceptAll
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return c
}

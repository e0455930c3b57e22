package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/config"
	"github.com/Sumatoshi-tech/repominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
	"github.com/Sumatoshi-tech/repominer/pkg/relevance"
)

// History is an opened branch history with its blame oracle.
type History struct {
	Source history.Source
	Blame  mining.BlameOracle
	// Close releases the history. May be nil.
	Close func()
}

// OpenFunc opens the history of branch in the repository at repoPath.
type OpenFunc func(ctx context.Context, repoPath, branch string) (*History, error)

// GitOpener opens local git repositories with libgit2, keeping up to
// cacheBytes of decoded commits per opened history.
func GitOpener(cacheBytes int64) OpenFunc {
	return func(ctx context.Context, repoPath, branch string) (*History, error) {
		src, err := gitlib.OpenHistory(ctx, repoPath, branch, "", gitlib.WithCommitCache(cacheBytes))
		if err != nil {
			return nil, err
		}

		return &History{Source: src, Blame: src.Blame(), Close: src.Close}, nil
	}
}

// FixingCommit is a fixing commit with its defect labels.
type FixingCommit struct {
	Hash   string              `json:"hash"`
	Labels classifier.LabelSet `json:"labels"`
}

// FixingCommitsOutput is the result of repominer_fixing_commits.
type FixingCommitsOutput struct {
	Commits       int            `json:"commits"`
	FixingCommits []FixingCommit `json:"fixing_commits"`
}

// LabelOutput is the result of repominer_label.
type LabelOutput struct {
	FixingCommits []FixingCommit            `json:"fixing_commits"`
	FixedFiles    []mining.FixedFile        `json:"fixed_files"`
	FailureProne  []mining.FailureProneFile `json:"failure_prone"`
	// Truncated is set when the limit cut the failure-prone records.
	Truncated bool `json:"truncated,omitempty"`
}

type minerTools struct {
	cfg     config.Config
	open    OpenFunc
	logger  *slog.Logger
	metrics *observability.MiningMetrics
}

func newMinerTools(deps ServerDeps) *minerTools {
	tools := &minerTools{open: deps.Open, logger: deps.Logger, metrics: deps.Mining}

	if deps.Config != nil {
		tools.cfg = *deps.Config
	}

	if tools.open == nil {
		cacheBytes, err := tools.cfg.Repository.CommitCacheBytes()
		if err != nil {
			logger := tools.logger
			if logger == nil {
				logger = slog.Default()
			}

			logger.Warn("commit cache disabled", "error", err)
		}

		tools.open = GitOpener(cacheBytes)
	}

	return tools
}

// handleFixingCommits processes repominer_fixing_commits tool calls.
func (t *minerTools) handleFixingCommits(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input FixingCommitsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateRepoPath(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}

	ctx = observability.ContextWithRepository(ctx, input.RepoPath)

	miner, release, err := t.newMiner(ctx, &t.cfg, input.RepoPath, input.Branch)
	if err != nil {
		return errorResult(err)
	}
	defer release()

	_, err = miner.SelectFixingCommits(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("select fixing commits: %w", err))
	}

	return jsonResult(FixingCommitsOutput{
		Commits:       miner.Index().Len(),
		FixingCommits: fixingCommits(miner),
	})
}

// handleLabel processes repominer_label tool calls.
func (t *minerTools) handleLabel(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input LabelInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateRepoPath(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}

	limit, err := validateLimit(input.Limit)
	if err != nil {
		return errorResult(err)
	}

	cfg := t.cfg
	if len(input.Extensions) > 0 || len(input.Languages) > 0 {
		cfg.Relevance = relevance.Config{
			Extensions:   input.Extensions,
			Languages:    input.Languages,
			SkipVendored: t.cfg.Relevance.SkipVendored,
		}
	}

	ctx = observability.ContextWithRepository(ctx, input.RepoPath)

	miner, release, err := t.newMiner(ctx, &cfg, input.RepoPath, input.Branch)
	if err != nil {
		return errorResult(err)
	}
	defer release()

	output, err := label(ctx, miner, limit)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(output)
}

func label(ctx context.Context, miner *mining.Miner, limit int) (*LabelOutput, error) {
	_, err := miner.SelectFixingCommits(ctx)
	if err != nil {
		return nil, fmt.Errorf("select fixing commits: %w", err)
	}

	fixed, err := miner.ResolveFixedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fixed files: %w", err)
	}

	output := &LabelOutput{
		FixingCommits: fixingCommits(miner),
		FixedFiles:    fixed,
		FailureProne:  []mining.FailureProneFile{},
	}

	for record, labelErr := range miner.Label(ctx) {
		if labelErr != nil {
			return nil, fmt.Errorf("label files: %w", labelErr)
		}

		if len(output.FailureProne) == limit {
			output.Truncated = true

			break
		}

		output.FailureProne = append(output.FailureProne, record)
	}

	return output, nil
}

// newMiner opens the branch history and builds a miner configured by cfg.
// The returned release function must be called when done.
func (t *minerTools) newMiner(
	ctx context.Context, cfg *config.Config, repoPath, branch string,
) (*mining.Miner, func(), error) {
	hist, err := t.open(ctx, repoPath, branch)
	if err != nil {
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}

	release := func() {
		if hist.Close != nil {
			hist.Close()
		}
	}

	index, err := history.Open(ctx, hist.Source)
	if err != nil {
		release()

		return nil, nil, fmt.Errorf("index history: %w", err)
	}

	pipeline, err := cfg.Pipeline(hist.Blame, t.logger, t.metrics)
	if err != nil {
		release()

		return nil, nil, err
	}

	return mining.New(index, hist.Source, pipeline), release, nil
}

func fixingCommits(miner *mining.Miner) []FixingCommit {
	labels := miner.Labels()
	hashes := miner.FixingCommits()
	out := make([]FixingCommit, len(hashes))

	for i, hash := range hashes {
		out[i] = FixingCommit{Hash: hash, Labels: labels[hash]}
	}

	return out
}

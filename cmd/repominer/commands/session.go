// Package commands implements CLI command handlers for repominer.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repominer/pkg/alg/lru"
	"github.com/Sumatoshi-tech/repominer/pkg/config"
	"github.com/Sumatoshi-tech/repominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
	"github.com/Sumatoshi-tech/repominer/pkg/version"
)

// Persistent flag names shared by every command.
const (
	flagConfig  = "config"
	flagNoColor = "no-color"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format (use table, json or yaml)")

// openedHistory is a branch history ready for mining.
type openedHistory struct {
	source history.Source
	blame  mining.BlameOracle
	// name identifies the repository in saved state.
	name  string
	close func()
	// cacheStats is nil when the source keeps no commit cache.
	cacheStats func() lru.Stats
}

type historyOpener func(ctx context.Context, locator string, repo config.RepositoryConfig) (*openedHistory, error)

// deps are the collaborators replaced in tests.
type deps struct {
	open historyOpener
}

func defaultDeps() deps {
	return deps{open: openGitHistory}
}

// openGitHistory opens locator with libgit2. Without a clone directory,
// remote repositories are cloned into a temporary directory removed on close.
func openGitHistory(ctx context.Context, locator string, repo config.RepositoryConfig) (*openedHistory, error) {
	cacheBytes, err := repo.CommitCacheBytes()
	if err != nil {
		return nil, err
	}

	cleanup := func() {}
	cloneDir := repo.CloneDir

	if cloneDir == "" {
		tmp, err := os.MkdirTemp("", "repominer-")
		if err != nil {
			return nil, fmt.Errorf("create clone dir: %w", err)
		}

		cloneDir = tmp
		cleanup = func() { _ = os.RemoveAll(tmp) }
	}

	src, err := gitlib.OpenHistory(ctx, locator, repo.Branch, cloneDir, gitlib.WithCommitCache(cacheBytes))
	if err != nil {
		cleanup()

		return nil, err
	}

	name := src.Locator().Path
	if src.Locator().Remote() {
		name = src.Locator().URL
	}

	return &openedHistory{
		source: src,
		blame:  src.Blame(),
		name:   name,
		close: func() {
			src.Close()
			cleanup()
		},
		cacheStats: src.CacheStats,
	}, nil
}

// session is the configured environment of one command run.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.MiningMetrics
	noColor   bool
}

func (s *session) logger() *slog.Logger {
	return s.providers.Logger
}

func (s *session) close() {
	err := s.providers.Shutdown(context.Background())
	if err != nil {
		s.logger().Warn("observability shutdown failed", "error", err)
	}
}

// startSession loads the configuration named by --config, lets override
// adjust it and initializes logging, tracing and metrics.
func startSession(cmd *cobra.Command, mode observability.AppMode, override func(*config.Config)) (*session, error) {
	configPath, _ := cmd.Flags().GetString(flagConfig)
	noColor, _ := cmd.Flags().GetBool(flagNoColor)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if override != nil {
		override(cfg)

		err = cfg.Validate()
		if err != nil {
			return nil, fmt.Errorf("validate flags: %w", err)
		}
	}

	providers, err := observability.Init(cfg.Observability(version.Version, mode))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewMiningMetrics(providers.Meter)
	if err != nil {
		_ = providers.Shutdown(context.Background())

		return nil, err
	}

	return &session{cfg: cfg, providers: providers, metrics: metrics, noColor: noColor}, nil
}

// newMiner opens the branch history named by locator and builds a miner.
func (s *session) newMiner(
	ctx context.Context, open historyOpener, locator string,
) (*mining.Miner, *openedHistory, error) {
	hist, err := open(ctx, locator, s.cfg.Repository)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", locator, err)
	}

	if hist.cacheStats != nil {
		release := hist.close
		hist.close = func() {
			s.logCacheStats(ctx, hist.cacheStats())
			release()
		}
	}

	index, err := history.Open(ctx, hist.source)
	if err != nil {
		hist.close()

		return nil, nil, fmt.Errorf("index history: %w", err)
	}

	pipeline, err := s.cfg.Pipeline(hist.blame, s.logger(), s.metrics)
	if err != nil {
		hist.close()

		return nil, nil, err
	}

	s.logger().InfoContext(ctx, "history indexed", "commits", index.Len())

	return mining.New(index, hist.source, pipeline), hist, nil
}

func (s *session) logCacheStats(ctx context.Context, stats lru.Stats) {
	s.logger().DebugContext(ctx, "commit cache",
		"hits", stats.Hits,
		"misses", stats.Misses,
		"hit_rate", stats.HitRate(),
		"entries", stats.Entries,
		"size", humanize.IBytes(uint64(max(stats.CurrentSize, 0))),
	)
}

package commands

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/repominer/pkg/config"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
	"github.com/Sumatoshi-tech/repominer/pkg/persist"
)

// stateStore saves and restores mining state in the configured directory.
type stateStore struct {
	dir       string
	persister *persist.Persister[persist.MiningState]
	logger    *slog.Logger
}

// newStateStore returns nil when no state directory is configured.
func newStateStore(cfg *config.Config, logger *slog.Logger) (*stateStore, error) {
	if cfg.State.Dir == "" {
		return nil, nil //nolint:nilnil // persistence is disabled
	}

	codec, err := cfg.StateCodec()
	if err != nil {
		return nil, err
	}

	return &stateStore{dir: cfg.State.Dir, persister: persist.NewStatePersister(codec), logger: logger}, nil
}

// restore loads the saved state into miner when it belongs to the same
// repository and branch. It reports whether state was restored.
func (s *stateStore) restore(ctx context.Context, miner *mining.Miner, repository, branch string) (bool, error) {
	if !s.persister.Exists(s.dir) {
		s.logger.InfoContext(ctx, "no saved state, starting fresh", "dir", s.dir)

		return false, nil
	}

	state, err := s.persister.Load(s.dir)
	if err != nil {
		return false, err
	}

	if state.Version != persist.StateVersion || state.Repository != repository || state.Branch != branch {
		s.logger.WarnContext(ctx, "saved state belongs to another run, ignoring",
			"repository", state.Repository, "branch", state.Branch, "version", state.Version)

		return false, nil
	}

	miner.Restore(state)

	s.logger.InfoContext(ctx, "resuming from saved state",
		"fixing_commits", len(miner.FixingCommits()), "saved", humanize.Time(state.CreatedAt))

	return true, nil
}

func (s *stateStore) save(ctx context.Context, miner *mining.Miner, repository, branch string) error {
	err := s.persister.Save(s.dir, miner.Snapshot(repository, branch))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "state saved", "path", s.persister.Path(s.dir))

	return nil
}

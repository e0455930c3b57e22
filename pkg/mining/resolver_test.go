package mining_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/history/memrepo"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
)

func TestResolver_BugScenario(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)

	fixed, err := mining.NewResolver(fx.index, fx.repo, fx.config()).Resolve(context.Background(), []string{fx.hashes[2]})
	require.NoError(t, err)

	assert.Equal(t, []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]}}, fixed)
}

func TestResolver_EmptyInputSkipsBlame(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)

	fixed, err := mining.NewResolver(fx.index, fx.repo, fx.config()).Resolve(context.Background(), nil)
	require.NoError(t, err)

	assert.NotNil(t, fixed)
	assert.Empty(t, fixed)
	assert.Zero(t, fx.repo.BlameCalls())
}

func TestResolver_UnknownFixingCommitsIgnored(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)

	fixed, err := mining.NewResolver(fx.index, fx.repo, fx.config()).Resolve(context.Background(), []string{"deadbeef"})
	require.NoError(t, err)

	assert.Empty(t, fixed)
	assert.Zero(t, fx.repo.BlameCalls())
}

func TestResolver_DisjointWindowsStaySeparate(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, disjointScenario)

	fixed, err := mining.NewResolver(fx.index, fx.repo, fx.config()).
		Resolve(context.Background(), []string{fx.hashes[4], fx.hashes[2]})
	require.NoError(t, err)

	assert.Equal(t, []mining.FixedFile{
		{Filepath: "f.py", BIC: fx.hashes[3], FIC: fx.hashes[4]},
		{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]},
	}, fixed)
}

func TestResolver_OverlappingWindowsMerge(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, overlapScenario)

	fixed, err := mining.NewResolver(fx.index, fx.repo, fx.config()).
		Resolve(context.Background(), []string{fx.hashes[3], fx.hashes[4]})
	require.NoError(t, err)

	assert.Equal(t, []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[4]}}, fixed)
}

func TestResolver_TracksRenames(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, renameScenario)

	fixed, err := mining.NewResolver(fx.index, fx.repo, fx.config()).Resolve(context.Background(), []string{fx.hashes[4]})
	require.NoError(t, err)

	assert.Equal(t, []mining.FixedFile{{Filepath: "b.txt", BIC: fx.hashes[1], FIC: fx.hashes[4]}}, fixed)
}

func TestResolver_MergesAcrossRename(t *testing.T) {
	t.Parallel()

	// The older fix edits a.txt, the newer one edits it as b.txt.
	fx := newFixture(t, func(r *memrepo.Repo) []string {
		return []string{
			r.Apply("init", memrepo.Add("a.txt", "x\ny\n")),
			r.Apply("change x", memrepo.Modify("a.txt", "X\ny\n")),
			r.Apply("change y", memrepo.Modify("a.txt", "X\nY\n")),
			r.Apply("fix server bug", memrepo.Modify("a.txt", "X\nY2\n")),
			r.Apply("move", memrepo.Rename("a.txt", "b.txt")),
			r.Apply("fix server error", memrepo.Modify("b.txt", "X2\nY2\n")),
		}
	})

	fixed, err := mining.NewResolver(fx.index, fx.repo, fx.config()).
		Resolve(context.Background(), []string{fx.hashes[3], fx.hashes[5]})
	require.NoError(t, err)

	assert.Equal(t, []mining.FixedFile{{Filepath: "b.txt", BIC: fx.hashes[1], FIC: fx.hashes[5]}}, fixed)
}

func TestResolver_SplitsWindowsAcrossRename(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, splitRenameScenario)

	fixed, err := mining.NewResolver(fx.index, fx.repo, fx.config()).
		Resolve(context.Background(), []string{fx.hashes[2], fx.hashes[4], fx.hashes[7]})
	require.NoError(t, err)

	// The window before the rename no longer maps onto b.txt.
	assert.Equal(t, []mining.FixedFile{
		{Filepath: "b.txt", BIC: fx.hashes[5], FIC: fx.hashes[7]},
		{Filepath: "a.txt", BIC: fx.hashes[3], FIC: fx.hashes[4]},
		{Filepath: "a.txt", BIC: fx.hashes[1], FIC: fx.hashes[2]},
	}, fixed)
}

func TestResolver_BICNeverAfterFIC(t *testing.T) {
	t.Parallel()

	for name, build := range map[string]func(*memrepo.Repo) []string{
		"bug":      bugScenario,
		"disjoint": disjointScenario,
		"overlap":  overlapScenario,
		"rename":   renameScenario,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t, build)

			fixed, err := fx.miner(fx.config()).Run(context.Background())
			require.NoError(t, err)
			require.NotEmpty(t, fixed.FixedFiles)

			for _, f := range fixed.FixedFiles {
				assert.LessOrEqual(t, fx.position(t, f.BIC), fx.position(t, f.FIC), f.Filepath)
			}
		})
	}
}

func TestResolver_IgnoresDescendantBIC(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)

	cfg := fx.config()
	cfg.Blame = mining.BlameFunc(func(context.Context, *history.Commit, history.ModifiedFile) (map[string][]string, error) {
		return map[string][]string{"f.py": {fx.hashes[3]}}, nil
	})

	fixed, err := mining.NewResolver(fx.index, fx.repo, cfg).Resolve(context.Background(), []string{fx.hashes[2]})
	require.NoError(t, err)
	assert.Empty(t, fixed)
}

func TestResolver_IgnoresUnknownBlamedHashes(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)

	cfg := fx.config()
	cfg.Blame = mining.BlameFunc(func(context.Context, *history.Commit, history.ModifiedFile) (map[string][]string, error) {
		return map[string][]string{"f.py": {"0000", fx.hashes[1]}}, nil
	})

	fixed, err := mining.NewResolver(fx.index, fx.repo, cfg).Resolve(context.Background(), []string{fx.hashes[2]})
	require.NoError(t, err)
	assert.Equal(t, []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]}}, fixed)
}

func TestResolver_BlameErrorPropagates(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)
	boom := errors.New("blame failed")

	cfg := fx.config()
	cfg.Blame = mining.BlameFunc(func(context.Context, *history.Commit, history.ModifiedFile) (map[string][]string, error) {
		return nil, boom
	})

	_, err := mining.NewResolver(fx.index, fx.repo, cfg).Resolve(context.Background(), []string{fx.hashes[2]})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "f.py")
}

func TestResolver_NoBlame(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)

	cfg := fx.config()
	cfg.Blame = nil

	_, err := mining.NewResolver(fx.index, fx.repo, cfg).Resolve(context.Background(), []string{fx.hashes[2]})
	require.ErrorIs(t, err, mining.ErrNoBlame)
}

func TestResolver_SkipsIrrelevantFiles(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)

	cfg := fx.config()
	cfg.Relevant = func(string, *string) bool { return false }

	fixed, err := mining.NewResolver(fx.index, fx.repo, cfg).Resolve(context.Background(), []string{fx.hashes[2]})
	require.NoError(t, err)
	assert.Empty(t, fixed)
	assert.Zero(t, fx.repo.BlameCalls())
}

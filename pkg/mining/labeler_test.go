package mining_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repominer/pkg/history/memrepo"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
)

func linearHistory(n int) func(r *memrepo.Repo) []string {
	return func(r *memrepo.Repo) []string {
		hashes := []string{r.Apply("init", memrepo.Add("f.py", "0\n"))}

		for i := 1; i < n; i++ {
			hashes = append(hashes, r.Apply(fmt.Sprintf("step %d", i), memrepo.Modify("f.py", fmt.Sprintf("%d\n", i))))
		}

		return hashes
	}
}

func TestLabeler_WindowIsHalfOpen(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, linearHistory(12))
	fixed := []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[5], FIC: fx.hashes[10]}}

	records := collect(t, mining.NewLabeler(fx.index, fx.repo, fx.config()).
		Label(context.Background(), fixed, []string{fx.hashes[10]}))

	positions := make([]int, 0, len(records))
	for _, r := range records {
		assert.Equal(t, "f.py", r.Filepath)
		assert.Equal(t, fx.hashes[10], r.FixingCommit)

		positions = append(positions, fx.position(t, r.Commit))
	}

	assert.Equal(t, []int{9, 8, 7, 6, 5}, positions)
}

func TestLabeler_BugScenario(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)
	fixed := []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]}}

	records := collect(t, mining.NewLabeler(fx.index, fx.repo, fx.config()).
		Label(context.Background(), fixed, []string{fx.hashes[2]}))

	assert.Equal(t, []mining.FailureProneFile{
		{Filepath: "f.py", Commit: fx.hashes[1], FixingCommit: fx.hashes[2]},
	}, records)
}

func TestLabeler_RenamePropagation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, renameScenario)
	fixed := []mining.FixedFile{{Filepath: "b.txt", BIC: fx.hashes[1], FIC: fx.hashes[4]}}

	records := collect(t, mining.NewLabeler(fx.index, fx.repo, fx.config()).
		Label(context.Background(), fixed, []string{fx.hashes[4]}))

	assert.Equal(t, []mining.FailureProneFile{
		{Filepath: "b.txt", Commit: fx.hashes[3], FixingCommit: fx.hashes[4]},
		{Filepath: "b.txt", Commit: fx.hashes[2], FixingCommit: fx.hashes[4]},
		{Filepath: "a.txt", Commit: fx.hashes[1], FixingCommit: fx.hashes[4]},
	}, records)
}

func TestLabeler_ListOrderWithinCommit(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, linearHistory(4))
	fixed := []mining.FixedFile{
		{Filepath: "z.py", BIC: fx.hashes[1], FIC: fx.hashes[3]},
		{Filepath: "a.py", BIC: fx.hashes[2], FIC: fx.hashes[3]},
	}

	records := collect(t, mining.NewLabeler(fx.index, fx.repo, fx.config()).
		Label(context.Background(), fixed, []string{fx.hashes[3]}))

	require.Len(t, records, 3)
	assert.Equal(t, "z.py", records[0].Filepath)
	assert.Equal(t, "a.py", records[1].Filepath)
	assert.Equal(t, fx.hashes[2], records[1].Commit)
	assert.Equal(t, "z.py", records[2].Filepath)
	assert.Equal(t, fx.hashes[1], records[2].Commit)
}

func TestLabeler_MatchesNaiveScan(t *testing.T) {
	t.Parallel()

	const commits = 60

	fx := newFixture(t, linearHistory(commits))
	rng := rand.New(rand.NewPCG(7, 11))

	fixed := make([]mining.FixedFile, 0, 25)
	fixing := []string{}

	for i := range 25 {
		bic := rng.IntN(commits - 1)
		fic := bic + 1 + rng.IntN(commits-bic-1)

		fixed = append(fixed, mining.FixedFile{
			Filepath: fmt.Sprintf("file%d.py", i),
			BIC:      fx.hashes[bic],
			FIC:      fx.hashes[fic],
		})
		fixing = append(fixing, fx.hashes[fic])
	}

	got := collect(t, mining.NewLabeler(fx.index, fx.repo, fx.config()).Label(context.Background(), fixed, fixing))

	last := 0
	for _, hash := range fixing {
		last = max(last, fx.position(t, hash))
	}

	want := []mining.FailureProneFile{}

	for pos := last; pos >= 0; pos-- {
		for _, f := range fixed {
			if fx.position(t, f.BIC) <= pos && pos < fx.position(t, f.FIC) {
				want = append(want, mining.FailureProneFile{Filepath: f.Filepath, Commit: fx.hashes[pos], FixingCommit: f.FIC})
			}
		}
	}

	assert.Equal(t, want, got)
}

func TestLabeler_EarlyStop(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, linearHistory(12))
	fixed := []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[0], FIC: fx.hashes[10]}}

	count := 0

	for _, err := range mining.NewLabeler(fx.index, fx.repo, fx.config()).
		Label(context.Background(), fixed, []string{fx.hashes[10]}) {
		require.NoError(t, err)

		count++
		if count == 3 {
			break
		}
	}

	assert.Equal(t, 3, count)
}

func TestLabeler_SkipsWindowsOutsideHistory(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)
	fixed := []mining.FixedFile{
		{Filepath: "gone.py", BIC: "feedface", FIC: fx.hashes[2]},
		{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]},
	}

	records := collect(t, mining.NewLabeler(fx.index, fx.repo, fx.config()).
		Label(context.Background(), fixed, []string{fx.hashes[2]}))

	require.Len(t, records, 1)
	assert.Equal(t, "f.py", records[0].Filepath)
}

func TestLabeler_NoWindowInHistory(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)
	fixed := []mining.FixedFile{{Filepath: "gone.py", BIC: "feedface", FIC: fx.hashes[2]}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No window survives, so history is not walked and the cancelled
	// context is never seen.
	assert.Empty(t, collect(t, mining.NewLabeler(fx.index, fx.repo, fx.config()).Label(ctx, fixed, []string{fx.hashes[2]})))
}

func TestLabeler_EmptyInputs(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)
	labeler := mining.NewLabeler(fx.index, fx.repo, fx.config())

	assert.Empty(t, collect(t, labeler.Label(context.Background(), nil, []string{fx.hashes[2]})))
	assert.Empty(t, collect(t, labeler.Label(context.Background(),
		[]mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]}}, nil)))
}

func TestLabeler_CancelledContext(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, linearHistory(6))
	fixed := []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[0], FIC: fx.hashes[5]}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error

	for _, err := range mining.NewLabeler(fx.index, fx.repo, fx.config()).Label(ctx, fixed, []string{fx.hashes[5]}) {
		if err != nil {
			gotErr = err
		}
	}

	require.ErrorIs(t, gotErr, context.Canceled)
}

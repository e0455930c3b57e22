package mining_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/history/memrepo"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
	"github.com/Sumatoshi-tech/repominer/pkg/persist"
)

func TestMiner_RunBugScenario(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)

	result, err := fx.miner(fx.config()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{fx.hashes[2]}, result.FixingCommits)
	assert.True(t, result.Labels[fx.hashes[2]].Has(classifier.Documentation))
	assert.Equal(t, []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]}}, result.FixedFiles)
	assert.Equal(t, []mining.FailureProneFile{
		{Filepath: "f.py", Commit: fx.hashes[1], FixingCommit: fx.hashes[2]},
	}, result.FailureProne)
}

func TestMiner_RunSplitAcrossRename(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, splitRenameScenario)

	result, err := fx.miner(fx.config()).Run(context.Background())
	require.NoError(t, err)

	h := fx.hashes
	assert.Equal(t, []string{h[2], h[4], h[7]}, result.FixingCommits)
	assert.Len(t, result.FixedFiles, 3)
	assert.Equal(t, []mining.FailureProneFile{
		{Filepath: "b.txt", Commit: h[6], FixingCommit: h[7]},
		{Filepath: "a.txt", Commit: h[5], FixingCommit: h[7]},
		{Filepath: "a.txt", Commit: h[3], FixingCommit: h[4]},
		{Filepath: "a.txt", Commit: h[1], FixingCommit: h[2]},
	}, result.FailureProne)
}

func TestMiner_StepsOutOfOrderAreEmpty(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)
	miner := fx.miner(fx.config())

	assert.Empty(t, collect(t, miner.Label(context.Background())))

	fixed, err := miner.ResolveFixedFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fixed)
	assert.Zero(t, fx.repo.BlameCalls())

	assert.Empty(t, collect(t, miner.Label(context.Background())))
}

func TestMiner_StepByStep(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, disjointScenario)
	miner := fx.miner(fx.config())

	labels, err := miner.SelectFixingCommits(context.Background())
	require.NoError(t, err)
	assert.Len(t, labels, 2)
	assert.Equal(t, []string{fx.hashes[2], fx.hashes[4]}, miner.FixingCommits())

	fixed, err := miner.ResolveFixedFiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, fixed, 2)

	records := collect(t, miner.Label(context.Background()))
	assert.Equal(t, []mining.FailureProneFile{
		{Filepath: "f.py", Commit: fx.hashes[3], FixingCommit: fx.hashes[4]},
		{Filepath: "f.py", Commit: fx.hashes[1], FixingCommit: fx.hashes[2]},
	}, records)
}

func TestMiner_SelectionIsIncremental(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, disjointScenario)
	miner := fx.miner(fx.config())

	miner.Seed([]string{fx.hashes[2], "not-in-history"})
	assert.Equal(t, []string{fx.hashes[2]}, miner.FixingCommits())

	labels, err := miner.SelectFixingCommits(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{fx.hashes[4]}, mapKeys(labels))
	assert.Equal(t, []string{fx.hashes[2], fx.hashes[4]}, miner.FixingCommits())

	labels, err = miner.SelectFixingCommits(context.Background())
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestMiner_ClassificationIsDeterministic(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, disjointScenario)

	first, err := fx.miner(fx.config()).Run(context.Background())
	require.NoError(t, err)

	second, err := fx.miner(fx.config()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMiner_SnapshotRestore(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, disjointScenario)
	miner := fx.miner(fx.config())

	_, err := miner.Run(context.Background())
	require.NoError(t, err)

	dir := t.TempDir()
	store := persist.NewStatePersister(persist.NewLZ4Codec(persist.NewJSONCodec()))
	require.NoError(t, store.Save(dir, miner.Snapshot("memory", "main")))

	state, err := store.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, persist.StateVersion, state.Version)
	assert.Equal(t, "main", state.Branch)

	restored := fx.miner(fx.config())
	restored.Restore(state)

	assert.Equal(t, miner.FixingCommits(), restored.FixingCommits())
	assert.Equal(t, miner.Labels(), restored.Labels())
	assert.Equal(t, miner.FixedFiles(), restored.FixedFiles())
	assert.Equal(t,
		collect(t, miner.Label(context.Background())),
		collect(t, restored.Label(context.Background())))
}

func TestMiner_RestoreDropsUnknownCommits(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, bugScenario)
	miner := fx.miner(fx.config())

	miner.Restore(&persist.MiningState{
		FixingCommits: []string{"rewritten", fx.hashes[2]},
		Labels: map[string]classifier.LabelSet{
			"rewritten":   classifier.NewLabelSet(classifier.Service),
			fx.hashes[2]: classifier.NewLabelSet(classifier.Documentation),
		},
		FixedFiles: []persist.FileWindow{
			{Filepath: "old.py", BIC: "rewritten", FIC: fx.hashes[2]},
			{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]},
		},
	})

	assert.Equal(t, []string{fx.hashes[2]}, miner.FixingCommits())
	assert.Len(t, miner.Labels(), 1)
	assert.Equal(t, []mining.FixedFile{{Filepath: "f.py", BIC: fx.hashes[1], FIC: fx.hashes[2]}}, miner.FixedFiles())
}

func TestMiner_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewMiningMetrics(provider.Meter("test"))
	require.NoError(t, err)

	fx := newFixture(t, bugScenario)
	cfg := fx.config()
	cfg.Metrics = metrics

	_, err = fx.miner(cfg).Run(context.Background())
	require.NoError(t, err)

	names := collectMetricNames(t, reader)
	assert.Contains(t, names, "repominer.mining.commits.classified.total")
	assert.Contains(t, names, "repominer.mining.blame.calls.total")
	assert.Contains(t, names, "repominer.mining.failure_prone_files.total")
}

func TestMiner_EmptyHistory(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(*memrepo.Repo) []string { return nil })

	result, err := fx.miner(fx.config()).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.FixingCommits)
	assert.Empty(t, result.FixedFiles)
	assert.Empty(t, result.FailureProne)
}

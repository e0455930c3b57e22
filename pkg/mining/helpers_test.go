package mining_test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/classifier/rules"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
	"github.com/Sumatoshi-tech/repominer/pkg/history/memrepo"
	"github.com/Sumatoshi-tech/repominer/pkg/mining"
)

// fixture is an in-memory history with the hashes of its commits in order.
type fixture struct {
	repo   *memrepo.Repo
	index  *history.Index
	hashes []string
}

func newFixture(t *testing.T, build func(r *memrepo.Repo) []string) *fixture {
	t.Helper()

	repo := memrepo.New()
	hashes := build(repo)

	index, err := history.Open(context.Background(), repo)
	require.NoError(t, err)

	return &fixture{repo: repo, index: index, hashes: hashes}
}

func (f *fixture) config() mining.Config {
	return mining.Config{
		Classifier: classifier.New(rules.DefaultTable()),
		Blame:      f.repo,
		Workers:    4,
	}
}

func (f *fixture) miner(cfg mining.Config) *mining.Miner {
	return mining.New(f.index, f.repo, cfg)
}

func (f *fixture) position(t *testing.T, hash string) int {
	t.Helper()

	pos, err := f.index.PositionOf(hash)
	require.NoError(t, err)

	return pos
}

func collect(t *testing.T, seq func(func(mining.FailureProneFile, error) bool)) []mining.FailureProneFile {
	t.Helper()

	out := []mining.FailureProneFile{}

	for record, err := range seq {
		require.NoError(t, err)

		out = append(out, record)
	}

	return out
}

// bugScenario: c1 adds f, c2 introduces a bug, c3 fixes it, c4 is unrelated.
func bugScenario(r *memrepo.Repo) []string {
	return []string{
		r.Apply("init", memrepo.Add("f.py", "a = 1\nb = compute(a)\n")),
		r.Apply("add feature", memrepo.Modify("f.py", "a = 1\nb = compute(None)\n")),
		r.Apply("fix null check bug", memrepo.Modify("f.py", "a = 1\n# null check\nb = compute(a)\n")),
		r.Apply("add notes", memrepo.Add("NOTES.md", "notes\n")),
	}
}

// disjointScenario: two fixes of f.py whose windows do not overlap.
func disjointScenario(r *memrepo.Repo) []string {
	return []string{
		r.Apply("init", memrepo.Add("f.py", "a\nb\nc\n")),
		r.Apply("change a", memrepo.Modify("f.py", "A\nb\nc\n")),
		r.Apply("fix crash bug in server", memrepo.Modify("f.py", "A2\nb\nc\n")),
		r.Apply("change c", memrepo.Modify("f.py", "A2\nb\nC\n")),
		r.Apply("fix server bug again", memrepo.Modify("f.py", "A2\nb\nC2\n")),
	}
}

// overlapScenario: two fixes of f.py whose windows overlap.
func overlapScenario(r *memrepo.Repo) []string {
	return []string{
		r.Apply("init", memrepo.Add("f.py", "a\nb\n")),
		r.Apply("change a", memrepo.Modify("f.py", "A\nb\n")),
		r.Apply("change b", memrepo.Modify("f.py", "A\nB\n")),
		r.Apply("fix server bug", memrepo.Modify("f.py", "A1\nB\n")),
		r.Apply("fix server error", memrepo.Modify("f.py", "A1\nB1\n")),
	}
}

// renameScenario: a.txt is renamed to b.txt between the bug and its fix.
func renameScenario(r *memrepo.Repo) []string {
	return []string{
		r.Apply("init", memrepo.Add("a.txt", "x\ny\n")),
		r.Apply("change y", memrepo.Modify("a.txt", "x\nbad\n")),
		r.Apply("move", memrepo.Rename("a.txt", "b.txt")),
		r.Apply("touch x", memrepo.Modify("b.txt", "x2\nbad\n")),
		r.Apply("fix server bug", memrepo.Modify("b.txt", "x2\ngood\n")),
	}
}

// splitRenameScenario: a.txt is fixed twice, renamed to b.txt and fixed once
// more. None of the three windows overlap.
func splitRenameScenario(r *memrepo.Repo) []string {
	return []string{
		r.Apply("init", memrepo.Add("a.txt", "p\nq\nr\n")),
		r.Apply("change p", memrepo.Modify("a.txt", "P\nq\nr\n")),
		r.Apply("fix server bug", memrepo.Modify("a.txt", "P2\nq\nr\n")),
		r.Apply("change q", memrepo.Modify("a.txt", "P2\nQ\nr\n")),
		r.Apply("fix server error", memrepo.Modify("a.txt", "P2\nQ2\nr\n")),
		r.Apply("change r", memrepo.Modify("a.txt", "P2\nQ2\nR\n")),
		r.Apply("move", memrepo.Rename("a.txt", "b.txt")),
		r.Apply("fix server typo", memrepo.Modify("b.txt", "P2\nQ2\nR2\n")),
	}
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

func collectMetricNames(t *testing.T, reader *sdkmetric.ManualReader) []string {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := []string{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}

	return names
}

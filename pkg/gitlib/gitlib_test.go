package gitlib_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/repominer/pkg/history"
)

// testRepo wraps a test repository for integration testing.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
	when   time.Time
}

// newTestRepo creates a new test repository.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{
		t:      t,
		path:   dir,
		native: repo,
		when:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// createFile creates a file in the working directory.
func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)

	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

// deleteFile removes a file from the working directory.
func (tr *testRepo) deleteFile(name string) {
	tr.t.Helper()

	require.NoError(tr.t, os.Remove(filepath.Join(tr.path, name)))
}

// renameFile moves a file in the working directory.
func (tr *testRepo) renameFile(oldName, newName string) {
	tr.t.Helper()

	require.NoError(tr.t, os.Rename(filepath.Join(tr.path, oldName), filepath.Join(tr.path, newName)))
}

// commit stages all files and creates a commit on HEAD one minute after the
// previous one.
func (tr *testRepo) commit(message string) string {
	tr.t.Helper()

	var parents []string

	head, err := tr.native.Head()
	if err == nil {
		parents = append(parents, head.Target().String())

		head.Free()
	}

	return tr.commitWithParents("HEAD", message, parents...)
}

// commitWithParents stages all files and creates a commit with the given
// parents. ref is updated to the new commit unless it is empty.
func (tr *testRepo) commitWithParents(ref, message string, parents ...string) string {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.UpdateAll([]string{"*"}, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	tr.when = tr.when.Add(time.Minute)
	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: tr.when}

	commits := make([]*git2go.Commit, 0, len(parents))

	for _, hash := range parents {
		oid, oidErr := git2go.NewOid(hash)
		require.NoError(tr.t, oidErr)

		parent, lookupErr := tr.native.LookupCommit(oid)
		require.NoError(tr.t, lookupErr)

		commits = append(commits, parent)
	}

	oid, err := tr.native.CreateCommit(ref, sig, sig, message, tree, commits...)
	require.NoError(tr.t, err)

	for _, parent := range commits {
		parent.Free()
	}

	return oid.String()
}

// branch creates a local branch pointing at hash.
func (tr *testRepo) branch(name, hash string) {
	tr.t.Helper()

	oid, err := git2go.NewOid(hash)
	require.NoError(tr.t, err)

	commit, err := tr.native.LookupCommit(oid)
	require.NoError(tr.t, err)

	defer commit.Free()

	ref, err := tr.native.CreateBranch(name, commit, false)
	require.NoError(tr.t, err)

	ref.Free()
}

func openHistory(t *testing.T, tr *testRepo, branch string) *gitlib.Source {
	t.Helper()

	src, err := gitlib.OpenHistory(context.Background(), tr.path, branch, "")
	require.NoError(t, err)

	t.Cleanup(src.Close)

	return src
}

func loadCommit(t *testing.T, src *gitlib.Source, hash string) *history.Commit {
	t.Helper()

	commit, err := src.Commit(context.Background(), hash)
	require.NoError(t, err)

	return commit
}

func TestOpenRepository(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("test.txt", "content\n")
	tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, tr.path, repo.Path())
	assert.NotNil(t, repo.Native())
}

func TestOpenRepositoryNotFound(t *testing.T) {
	_, err := gitlib.OpenRepository("/nonexistent/path/to/repo")
	require.Error(t, err)
}

func TestRepositoryHeadUnborn(t *testing.T) {
	tr := newTestRepo(t)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	head, err := repo.Head()
	require.NoError(t, err)
	assert.True(t, head.IsZero())
}

func TestCommitParentNotFound(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("a.txt", "a\n")
	root := tr.commit("root")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	hash, err := gitlib.ParseHash(root)
	require.NoError(t, err)

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	assert.Equal(t, 0, commit.NumParents())

	_, err = commit.Parent(0)
	require.ErrorIs(t, err, gitlib.ErrParentNotFound)
}

func TestOpenHistory_ChronologicalHashes(t *testing.T) {
	tr := newTestRepo(t)

	var want []string

	for i, content := range []string{"one\n", "two\n", "three\n"} {
		tr.createFile("f.txt", content)
		want = append(want, tr.commit("commit "+string(rune('a'+i))))
	}

	src := openHistory(t, tr, "")

	hashes, err := src.Hashes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, hashes)
	assert.False(t, src.Locator().Remote())
}

func TestOpenHistory_Branch(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("f.txt", "one\n")
	first := tr.commit("first")
	tr.createFile("f.txt", "two\n")
	second := tr.commit("second")
	tr.branch("release", first)

	hashes, err := openHistory(t, tr, "release").Hashes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{first}, hashes)

	hashes, err = openHistory(t, tr, "").Hashes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, hashes)
}

func TestOpenHistory_UnknownBranch(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("f.txt", "one\n")
	tr.commit("first")

	_, err := gitlib.OpenHistory(context.Background(), tr.path, "nope", "")
	require.ErrorIs(t, err, gitlib.ErrNotFound)
}

func TestOpenHistory_EmptyRepository(t *testing.T) {
	tr := newTestRepo(t)

	src := openHistory(t, tr, "")

	hashes, err := src.Hashes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hashes)

	for range src.Traverse(context.Background(), "", "", history.Ascending) {
		t.Fatal("empty history yielded a commit")
	}
}

func TestSource_ModifiedFiles(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("keep.py", "a = 1\nb = 2\nc = 3\n")
	tr.createFile("gone.py", "x = 1\n")
	root := tr.commit("init")

	tr.createFile("keep.py", "a = 1\nb = 20\nc = 3\nd = 4\n")
	tr.deleteFile("gone.py")
	tr.createFile("new.py", "n = 1\n")
	second := tr.commit("second")

	src := openHistory(t, tr, "")

	rootCommit := loadCommit(t, src, root)
	require.Len(t, rootCommit.Files, 2)

	for _, f := range rootCommit.Files {
		assert.Equal(t, history.Add, f.Kind)
		assert.Empty(t, f.OldPath)
		assert.NotNil(t, f.Source)
	}

	commit := loadCommit(t, src, second)
	assert.Equal(t, "second", strings.TrimSpace(commit.Message))

	byPath := map[string]history.ModifiedFile{}
	for _, f := range commit.Files {
		byPath[f.Path()] = f
	}

	keep := byPath["keep.py"]
	assert.Equal(t, history.Modify, keep.Kind)
	assert.Equal(t, []history.DiffLine{{Number: 2, Text: "b = 2"}}, keep.Deleted)
	assert.Equal(t, []history.DiffLine{{Number: 2, Text: "b = 20"}, {Number: 4, Text: "d = 4"}}, keep.Added)
	assert.Equal(t, "a = 1\nb = 20\nc = 3\nd = 4\n", keep.Content())

	gone := byPath["gone.py"]
	assert.Equal(t, history.Delete, gone.Kind)
	assert.Empty(t, gone.NewPath)
	assert.Nil(t, gone.Source)

	assert.Equal(t, history.Add, byPath["new.py"].Kind)
}

func TestSource_MergeCommitHasNoFiles(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("a.txt", "one\n")
	base := tr.commit("base")

	tr.createFile("README.md", "fixed typo\n")
	side := tr.commitWithParents("", "Fix typo in readme", base)
	tr.deleteFile("README.md")

	tr.createFile("a.txt", "two\n")
	trunk := tr.commit("change a")

	tr.createFile("README.md", "fixed typo\n")
	merge := tr.commitWithParents("HEAD", "Merge pull request #1\n\nFix typo in readme", trunk, side)

	src := openHistory(t, tr, "")

	hashes, err := src.Hashes(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{base, side, trunk, merge}, hashes)
	assert.Equal(t, merge, hashes[len(hashes)-1])

	assert.Empty(t, loadCommit(t, src, merge).Files)

	sideCommit := loadCommit(t, src, side)
	require.Len(t, sideCommit.Files, 1)
	assert.Equal(t, history.Add, sideCommit.Files[0].Kind)
	assert.Equal(t, "README.md", sideCommit.Files[0].NewPath)
}

func TestSource_DetectsRenames(t *testing.T) {
	tr := newTestRepo(t)
	body := strings.Repeat("line of code that stays the same\n", 20)
	tr.createFile("a.txt", body)
	tr.commit("init")
	tr.renameFile("a.txt", "b.txt")
	moved := tr.commit("move")

	commit := loadCommit(t, openHistory(t, tr, ""), moved)

	require.Len(t, commit.Files, 1)
	assert.Equal(t, history.Rename, commit.Files[0].Kind)
	assert.Equal(t, "a.txt", commit.Files[0].OldPath)
	assert.Equal(t, "b.txt", commit.Files[0].NewPath)
}

func TestSource_BinarySourceIsNil(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("img.bin", "\x00\x01\x02binary")
	added := tr.commit("add binary")

	commit := loadCommit(t, openHistory(t, tr, ""), added)

	require.Len(t, commit.Files, 1)
	assert.Nil(t, commit.Files[0].Source)
}

func TestSource_TraverseOrders(t *testing.T) {
	tr := newTestRepo(t)

	var hashes []string

	for _, content := range []string{"1\n", "2\n", "3\n", "4\n"} {
		tr.createFile("f.txt", content)
		hashes = append(hashes, tr.commit("c"+content))
	}

	src := openHistory(t, tr, "")

	var got []string

	for commit, err := range src.Traverse(context.Background(), hashes[3], hashes[1], history.Descending) {
		require.NoError(t, err)

		got = append(got, commit.Hash)
	}

	assert.Equal(t, []string{hashes[3], hashes[2], hashes[1]}, got)

	_, err := src.Commit(context.Background(), "0123456789abcdef0123456789abcdef01234567")
	require.ErrorIs(t, err, history.ErrNotFound)
}

func TestSource_CommitCache(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("a.py", "a = 1\n")
	first := tr.commit("first")
	tr.createFile("a.py", "a = 2\n")
	second := tr.commit("second")

	src, err := gitlib.OpenHistory(context.Background(), tr.path, "", "", gitlib.WithCommitCache(1<<20))
	require.NoError(t, err)

	t.Cleanup(src.Close)

	for range 2 {
		for commit, walkErr := range src.Traverse(context.Background(), "", "", history.Ascending) {
			require.NoError(t, walkErr)
			require.NotNil(t, commit)
		}
	}

	again := loadCommit(t, src, second)
	assert.Equal(t, second, again.Hash)

	stats := src.CacheStats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(3), stats.Hits)
	assert.Positive(t, stats.CurrentSize)

	assert.Equal(t, first, loadCommit(t, src, first).Hash)
}

func TestSource_CommitCacheDisabled(t *testing.T) {
	tr := newTestRepo(t)
	tr.createFile("a.py", "a = 1\n")
	hash := tr.commit("first")

	src, err := gitlib.OpenHistory(context.Background(), tr.path, "", "", gitlib.WithCommitCache(0))
	require.NoError(t, err)

	t.Cleanup(src.Close)

	loadCommit(t, src, hash)
	loadCommit(t, src, hash)

	assert.Equal(t, int64(0), src.CacheStats().Hits)
}

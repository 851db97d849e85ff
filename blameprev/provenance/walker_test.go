package provenance_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/disciplesalmon/blame-previous/blameprev/pkg/memrepo"
	. "github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func cur(path, rev string, line int) LineCursor {
	return LineCursor{File: FileLocator{Path: path, Revision: Revision(rev)}, Line: line}
}

func newWalker(repo *memrepo.Repo) *Walker {
	return New(Opts{Graph: repo, Differ: repo, Blame: repo})
}

func assertChanged(t *testing.T, want LineCursor, res Result, err error) {
	t.Helper()
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)
	assert.Equal(t, want, res.Cursor)
}

func assertNoPrevious(t *testing.T, res Result, err error) {
	t.Helper()
	require.NoError(t, err)
	assert.Equal(t, NoPreviousChange, res.Outcome)
	assert.Equal(t, LineCursor{}, res.Cursor)
}

func TestIntroducedOnce(t *testing.T) {
	repo := memrepo.New()
	repo.Commit("r0", nil, map[string]string{"F": lines("a", "b", "c", "d")})
	repo.Commit("r1", []string{"r0"}, map[string]string{"F": lines("a", "b", "c", "d", "e")})
	repo.Commit("r2", []string{"r1"}, map[string]string{"F": lines("a", "b", "c", "d", "e", "f")})
	w := newWalker(repo)
	ctx := context.Background()

	res, err := w.FindPreviousChange(ctx, cur("F", "r2", 5))
	assertChanged(t, cur("F", "r1", 5), res, err)
	assert.Equal(t, 2, res.Visited)

	res, err = w.FindPreviousChange(ctx, res.Cursor)
	assertNoPrevious(t, res, err)
}

func chainRepo() *memrepo.Repo {
	repo := memrepo.New()
	repo.Commit("r0", nil, map[string]string{"F": lines("head", "tail")})
	repo.Commit("a", []string{"r0"}, map[string]string{"F": lines("head", "v1", "tail")})
	repo.Commit("b", []string{"a"}, map[string]string{"F": lines("head", "v2", "tail")})
	repo.Commit("c", []string{"b"}, map[string]string{"F": lines("head", "v3", "tail")})
	repo.Commit("d", []string{"c"}, map[string]string{"F": lines("top", "head", "v3", "tail")})
	return repo
}

func TestChainOfChanges(t *testing.T) {
	w := newWalker(chainRepo())
	ctx := context.Background()

	want := []LineCursor{
		cur("F", "c", 2),
		cur("F", "b", 2),
		cur("F", "a", 2),
	}
	c := cur("F", "d", 3)
	for i, w0 := range want {
		res, err := w.FindPreviousChange(ctx, c)
		require.NoError(t, err, "step %v", i)
		require.Equal(t, Changed, res.Outcome, "step %v", i)
		assert.Equal(t, w0, res.Cursor, "step %v", i)
		c = res.Cursor
	}
	res, err := w.FindPreviousChange(ctx, c)
	assertNoPrevious(t, res, err)
}

func TestWithoutRanker(t *testing.T) {
	repo := chainRepo()
	w := New(Opts{Graph: graphOnly{repo}, Differ: repo, Blame: repo})
	res, err := w.FindPreviousChange(context.Background(), cur("F", "d", 3))
	assertChanged(t, cur("F", "c", 2), res, err)
}

type graphOnly struct {
	g RevisionGraph
}

func (s graphOnly) ParentsOf(ctx context.Context, rev Revision) ([]Revision, error) {
	return s.g.ParentsOf(ctx, rev)
}

func TestMergeMatchesOneParent(t *testing.T) {
	repo := memrepo.New()
	repo.Commit("r", nil, map[string]string{"F": lines("a", "c")})
	repo.Commit("x", []string{"r"}, map[string]string{"F": lines("a", "b", "c")})
	repo.Commit("p1", []string{"x"}, map[string]string{"F": lines("a", "B1", "c")})
	repo.Commit("p2", []string{"x"}, map[string]string{"F": lines("a", "b", "c", "z")})
	repo.Commit("m", []string{"p1", "p2"}, map[string]string{"F": lines("a", "b", "c", "z")})
	w := newWalker(repo)

	res, err := w.FindPreviousChange(context.Background(), cur("F", "m", 2))
	assertChanged(t, cur("F", "x", 2), res, err)
	// m, p2 and x diffed, p1 never walked
	assert.Equal(t, 3, res.Visited)
}

func evilMergeRepo() *memrepo.Repo {
	repo := memrepo.New()
	repo.Commit("r", nil, map[string]string{"F": lines("a", "c")})
	repo.Commit("x", []string{"r"}, map[string]string{"F": lines("a", "b", "c")})
	repo.Commit("p1", []string{"x"}, map[string]string{"F": lines("a", "B1", "c")})
	repo.Commit("p2", []string{"x"}, map[string]string{"F": lines("a", "B2", "c")})
	repo.Commit("m", []string{"p1", "p2"}, map[string]string{"F": lines("a", "BM", "c")})
	repo.Commit("h", []string{"m"}, map[string]string{"F": lines("a", "BM", "c", "end")})
	return repo
}

func TestMergeDiffersFromAllParents(t *testing.T) {
	w := newWalker(evilMergeRepo())
	ctx := context.Background()

	res, err := w.FindPreviousChange(ctx, cur("F", "h", 2))
	assertChanged(t, cur("F", "m", 2), res, err)

	// stepping back from the merge follows the first parent
	res, err = w.FindPreviousChange(ctx, res.Cursor)
	assertChanged(t, cur("F", "p1", 2), res, err)

	res, err = w.FindPreviousChange(ctx, res.Cursor)
	assertChanged(t, cur("F", "x", 2), res, err)

	res, err = w.FindPreviousChange(ctx, res.Cursor)
	assertNoPrevious(t, res, err)
}

func TestMergeMatchesBothParents(t *testing.T) {
	repo := memrepo.New()
	repo.Commit("r", nil, map[string]string{"F": lines("a", "c")})
	repo.Commit("x", []string{"r"}, map[string]string{"F": lines("a", "b", "c")})
	repo.Commit("p1", []string{"x"}, map[string]string{"F": lines("a", "b", "c", "p1")})
	repo.Commit("p2", []string{"x"}, map[string]string{"F": lines("p2", "a", "b", "c")})
	repo.Commit("m", []string{"p1", "p2"}, map[string]string{"F": lines("p2", "a", "b", "c", "p1")})
	w := newWalker(repo)

	res, err := w.FindPreviousChange(context.Background(), cur("F", "m", 3))
	assertChanged(t, cur("F", "x", 2), res, err)
	// m, p2, p1, x; x reached twice but diffed once
	assert.Equal(t, 4, res.Visited)
}

func TestRootBoundary(t *testing.T) {
	repo := memrepo.New()
	repo.Commit("r", nil, map[string]string{"F": lines("a", "b")})
	repo.Commit("c", []string{"r"}, map[string]string{"F": lines("a", "b", "c")})
	ctx := context.Background()

	w := newWalker(repo)
	res, err := w.FindPreviousChange(ctx, cur("F", "r", 1))
	assertNoPrevious(t, res, err)

	res, err = w.FindPreviousChange(ctx, cur("F", "c", 1))
	assertNoPrevious(t, res, err)

	w = New(Opts{Graph: repo, Differ: repo, Blame: repo, AttributeRoot: true})
	res, err = w.FindPreviousChange(ctx, cur("F", "c", 1))
	assertChanged(t, cur("F", "r", 1), res, err)

	res, err = w.FindPreviousChange(ctx, res.Cursor)
	assertNoPrevious(t, res, err)
}

func TestRename(t *testing.T) {
	repo := memrepo.New()
	repo.Commit("r", nil, map[string]string{"old.go": lines("a", "c")})
	repo.Commit("x", []string{"r"}, map[string]string{"old.go": lines("a", "b", "c")})
	repo.Commit("y", []string{"x"}, map[string]string{"new.go": lines("a", "b", "c", "d")})
	repo.Rename("y", "old.go", "new.go")
	w := newWalker(repo)

	res, err := w.FindPreviousChange(context.Background(), cur("new.go", "y", 2))
	assertChanged(t, cur("old.go", "x", 2), res, err)
}

func TestErrors(t *testing.T) {
	repo := memrepo.New()
	repo.Commit("r", nil, map[string]string{"F": lines("1", "2", "3", "4", "5", "6", "7", "8", "9", "10")})
	repo.Commit("c", []string{"r"}, map[string]string{"F": lines("1", "2", "3", "4", "5", "6", "7", "8", "9", "10"), "img": memrepo.Binary})
	repo.Commit("d", []string{"c"}, map[string]string{"F": lines("1", "2", "3", "4", "5", "6", "7", "8", "9", "10"), "img": memrepo.Binary})
	w := newWalker(repo)
	ctx := context.Background()

	_, err := w.FindPreviousChange(ctx, cur("F", "c", 50))
	assert.ErrorIs(t, err, ErrLineOutOfRange)

	_, err = w.FindPreviousChange(ctx, cur("F", "c", 0))
	assert.ErrorIs(t, err, ErrLineOutOfRange)

	_, err = w.FindPreviousChange(ctx, cur("missing", "c", 1))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = w.FindPreviousChange(ctx, cur("F", "nope", 1))
	assert.ErrorIs(t, err, ErrRevisionUnresolvable)
	assert.True(t, IsRetryable(err))

	_, err = w.FindPreviousChange(ctx, cur("img", "d", 1))
	assert.ErrorIs(t, err, ErrDiffUnavailable)
	assert.False(t, IsRetryable(err))
}

type cancelingDiffer struct {
	LineDiffer
	cancel func()
}

func (s cancelingDiffer) Correspond(ctx context.Context, newer, older FileLocator, line int) (Correspondence, error) {
	res, err := s.LineDiffer.Correspond(ctx, newer, older, line)
	s.cancel()
	return res, err
}

func TestCancellation(t *testing.T) {
	repo := chainRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(Opts{Graph: repo, Differ: cancelingDiffer{repo, cancel}, Blame: repo})

	_, err := w.FindPreviousChange(ctx, cur("F", "d", 3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, repo.Diffs())
}

func TestDeterministic(t *testing.T) {
	repo := evilMergeRepo()
	w := New(Opts{Graph: repo, Differ: repo, Blame: repo, MaxParallel: 1})
	ctx := context.Background()

	first, err := w.FindPreviousChange(ctx, cur("F", "h", 2))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = w.FindPreviousChange(ctx, cur("F", "h", 2))
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, first, results[i])
	}
}

func TestBlameSeed(t *testing.T) {
	repo := chainRepo()
	repo.SetBlame(FileLocator{Path: "F", Revision: "c"}, []BlameEntry{
		{Line: 1, Revision: "r0", OrigPath: "F", OrigLine: 1},
		{Line: 2, Revision: "c", OrigPath: "F", OrigLine: 2},
		{Line: 3, Revision: "r0", OrigPath: "F", OrigLine: 2},
	})
	w := New(Opts{Graph: repo, Differ: repo, Blame: repo, UseBlameSeed: true})
	ctx := context.Background()

	res, err := w.FindPreviousChange(ctx, cur("F", "d", 3))
	assertChanged(t, cur("F", "c", 2), res, err)
	assert.Equal(t, 1, repo.Diffs())

	// no blame for b, falls back to walking
	res, err = w.FindPreviousChange(ctx, res.Cursor)
	assertChanged(t, cur("F", "b", 2), res, err)
}

func TestBlameSeedRoot(t *testing.T) {
	repo := chainRepo()
	repo.SetBlame(FileLocator{Path: "F", Revision: "c"}, []BlameEntry{
		{Line: 1, Revision: "r0", OrigPath: "F", OrigLine: 1},
	})
	w := New(Opts{Graph: repo, Differ: repo, Blame: repo, UseBlameSeed: true})

	res, err := w.FindPreviousChange(context.Background(), cur("F", "d", 2))
	assertNoPrevious(t, res, err)
}

type failingDiffer struct {
	LineDiffer
	older Revision
}

var errDiffFailed = errors.New("diff failed")

func (s failingDiffer) Correspond(ctx context.Context, newer, older FileLocator, line int) (Correspondence, error) {
	if older.Revision == s.older {
		return Correspondence{}, errDiffFailed
	}
	return s.LineDiffer.Correspond(ctx, newer, older, line)
}

func TestMergeParentError(t *testing.T) {
	for _, failing := range []Revision{"p1", "p2"} {
		for _, parallel := range []int{0, 1} {
			repo := evilMergeRepo()
			w := New(Opts{Graph: repo, Differ: failingDiffer{repo, failing}, Blame: repo, MaxParallel: parallel})
			_, err := w.FindPreviousChange(context.Background(), cur("F", "m", 2))
			assert.ErrorIs(t, err, errDiffFailed, "failing %v parallel %v", failing, parallel)
		}
	}
}

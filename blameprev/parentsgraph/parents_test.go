package parentsgraph

import (
	"context"
	"os"
	"testing"

	"github.com/disciplesalmon/blame-previous/blameprev/pkg/logger"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/testutil"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(repo *testutil.Repo, allBranches bool) *Graph {
	return New(Opts{
		RepoDir:     repo.Dir,
		AllBranches: allBranches,
		Logger:      logger.NewDefaultLogger(os.Stdout, true),
	})
}

func TestMerge(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("a.txt", "1\n")
	c1 := repo.Commit("c1")
	repo.Branch("b")
	repo.Write("b.txt", "2\n")
	c2 := repo.Commit("c2")
	repo.Checkout("main")
	repo.Write("a.txt", "3\n")
	c3 := repo.Commit("c3")
	c4 := repo.Merge("b", "merge", nil)

	pg := newGraph(repo, false)
	require.NoError(t, pg.Read(context.Background()))

	wantParents := map[string][]string{
		c1: nil,
		c2: {c1},
		c3: {c1},
		c4: {c3, c2},
	}
	assert.Equal(t, wantParents, pg.Parents)
	assert.ElementsMatch(t, []string{c2, c3}, pg.Children[c1])
	assert.Equal(t, []string{c4}, pg.Children[c2])
	assert.Nil(t, pg.Children[c4])

	ctx := context.Background()
	parents, err := pg.ParentsOf(ctx, provenance.Revision(c4))
	require.NoError(t, err)
	assert.Equal(t, []provenance.Revision{provenance.Revision(c3), provenance.Revision(c2)}, parents)

	rank := func(c string) int {
		r, err := pg.TopoRank(ctx, provenance.Revision(c))
		require.NoError(t, err)
		return r
	}
	assert.Less(t, rank(c4), rank(c3))
	assert.Less(t, rank(c4), rank(c2))
	assert.Less(t, rank(c3), rank(c1))
	assert.Less(t, rank(c2), rank(c1))
}

func TestMultipleBranches(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("a.txt", "1\n")
	c1 := repo.Commit("c1")
	repo.Branch("b")
	repo.Write("a.txt", "2\n")
	c2 := repo.Commit("c2")
	repo.Checkout("main")

	pg := newGraph(repo, true)
	require.NoError(t, pg.Read(context.Background()))
	assert.Equal(t, map[string][]string{c1: nil, c2: {c1}}, pg.Parents)

	pg = newGraph(repo, false)
	require.NoError(t, pg.Read(context.Background()))
	assert.Equal(t, map[string][]string{c1: nil}, pg.Parents)
}

func TestLoadsUnreachableRevision(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("a.txt", "1\n")
	c1 := repo.Commit("c1")
	repo.Branch("b")
	repo.Write("a.txt", "2\n")
	c2 := repo.Commit("c2")
	repo.Checkout("main")

	pg := newGraph(repo, false)
	parents, err := pg.ParentsOf(context.Background(), provenance.Revision(c2))
	require.NoError(t, err)
	assert.Equal(t, []provenance.Revision{provenance.Revision(c1)}, parents)
}

func TestUnresolvable(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("a.txt", "1\n")
	c1 := repo.Commit("c1")
	ctx := context.Background()

	pg := newGraph(repo, false)
	_, err := pg.ParentsOf(ctx, "0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, provenance.ErrRevisionUnresolvable)

	_, err = pg.ParentsOf(ctx, provenance.Revision(c1[:8]))
	assert.ErrorIs(t, err, provenance.ErrRevisionUnresolvable)

	_, err = pg.Resolve(ctx, "no-such-branch")
	assert.ErrorIs(t, err, provenance.ErrRevisionUnresolvable)

	_, err = pg.Resolve(ctx, "--all")
	assert.ErrorIs(t, err, provenance.ErrRevisionUnresolvable)
}

func TestResolveAndReset(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("a.txt", "1\n")
	c1 := repo.Commit("c1")
	ctx := context.Background()

	pg := newGraph(repo, false)
	got, err := pg.Resolve(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, provenance.Revision(c1), got)

	got, err = pg.Resolve(ctx, c1[:10])
	require.NoError(t, err)
	assert.Equal(t, provenance.Revision(c1), got)

	require.NoError(t, pg.Read(ctx))
	repo.Write("a.txt", "2\n")
	c2 := repo.Commit("c2")
	pg.Reset()
	parents, err := pg.ParentsOf(ctx, provenance.Revision(c2))
	require.NoError(t, err)
	assert.Equal(t, []provenance.Revision{provenance.Revision(c1)}, parents)
}

package gitdiff

import (
	"context"
	"testing"

	"github.com/disciplesalmon/blame-previous/blameprev/pkg/testutil"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loc(path, rev string) provenance.FileLocator {
	return provenance.FileLocator{Path: path, Revision: provenance.Revision(rev)}
}

func TestParseNameStatus(t *testing.T) {
	out := []byte("M\x00a.txt\x00R087\x00old name.txt\x00new.txt\x00A\x00b.txt\x00")
	want := []nameStatus{
		{Status: 'M', PathPrev: "a.txt", Path: "a.txt"},
		{Status: 'R', PathPrev: "old name.txt", Path: "new.txt"},
		{Status: 'A', PathPrev: "b.txt", Path: "b.txt"},
	}
	assert.Equal(t, want, parseNameStatus(out))
	assert.Empty(t, parseNameStatus(nil))
}

func TestCorrespond(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("a.txt", testutil.Lines("1", "2", "3", "4", "5"))
	repo.Write("other.txt", "x\n")
	c1 := repo.Commit("c1")
	repo.Write("a.txt", testutil.Lines("0", "1", "2", "three", "4", "5", "6"))
	c2 := repo.Commit("c2")

	d := New(Opts{RepoDir: repo.Dir})
	ctx := context.Background()
	cases := []struct {
		Line int
		Want provenance.Correspondence
	}{
		{1, provenance.Unmatched},
		{2, provenance.Correspondence{Matched: true, OldPath: "a.txt", OldLine: 1, ContentEqual: true}},
		{4, provenance.Correspondence{Matched: true, OldPath: "a.txt", OldLine: 3, ContentEqual: false}},
		{6, provenance.Correspondence{Matched: true, OldPath: "a.txt", OldLine: 5, ContentEqual: true}},
		{7, provenance.Unmatched},
	}
	for _, c := range cases {
		got, err := d.Correspond(ctx, loc("a.txt", c2), loc("a.txt", c1), c.Line)
		require.NoError(t, err)
		assert.Equal(t, c.Want, got, "line %v", c.Line)
	}

	got, err := d.Correspond(ctx, loc("other.txt", c2), loc("other.txt", c1), 1)
	require.NoError(t, err)
	assert.Equal(t, provenance.Correspondence{Matched: true, OldPath: "other.txt", OldLine: 1, ContentEqual: true}, got)
}

func TestCorrespondRename(t *testing.T) {
	repo := testutil.NewRepo(t)
	content := testutil.Lines("package a", "", "func A() {", "\treturn", "}", "", "// end of file a")
	repo.Write("a.go", content)
	c1 := repo.Commit("c1")
	repo.Move("a.go", "b.go")
	repo.Write("b.go", "// moved\n"+content)
	c2 := repo.Commit("c2")

	d := New(Opts{RepoDir: repo.Dir})
	ctx := context.Background()

	got, err := d.Correspond(ctx, loc("b.go", c2), loc("b.go", c1), 4)
	require.NoError(t, err)
	assert.Equal(t, provenance.Correspondence{Matched: true, OldPath: "a.go", OldLine: 3, ContentEqual: true}, got)

	got, err = d.Correspond(ctx, loc("b.go", c2), loc("b.go", c1), 1)
	require.NoError(t, err)
	assert.Equal(t, provenance.Unmatched, got)

	p, ok, err := d.RenameSource(ctx, loc("b.go", c2), provenance.Revision(c1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a.go", p)
}

func TestCorrespondNewFile(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("a.txt", "a\n")
	c1 := repo.Commit("c1")
	repo.Write("b.txt", "b\n")
	c2 := repo.Commit("c2")

	d := New(Opts{RepoDir: repo.Dir})
	got, err := d.Correspond(context.Background(), loc("b.txt", c2), loc("b.txt", c1), 1)
	require.NoError(t, err)
	assert.Equal(t, provenance.Unmatched, got)

	_, ok, err := d.RenameSource(context.Background(), loc("b.txt", c2), provenance.Revision(c1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIgnoreWhitespace(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("a.txt", testutil.Lines("a", "b", "c"))
	c1 := repo.Commit("c1")
	repo.Write("a.txt", testutil.Lines("a", "  b", "c"))
	c2 := repo.Commit("c2")
	ctx := context.Background()

	got, err := New(Opts{RepoDir: repo.Dir}).Correspond(ctx, loc("a.txt", c2), loc("a.txt", c1), 2)
	require.NoError(t, err)
	assert.False(t, got.ContentEqual)

	got, err = New(Opts{RepoDir: repo.Dir, IgnoreWhitespace: true}).Correspond(ctx, loc("a.txt", c2), loc("a.txt", c1), 2)
	require.NoError(t, err)
	assert.True(t, got.ContentEqual)
	assert.Equal(t, 2, got.OldLine)
}

func TestErrors(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.Write("img.bin", "\x00\x01\x02")
	c1 := repo.Commit("c1")
	repo.Write("img.bin", "\x00\x01\x03")
	c2 := repo.Commit("c2")

	d := New(Opts{RepoDir: repo.Dir})
	ctx := context.Background()
	_, err := d.Correspond(ctx, loc("img.bin", c2), loc("img.bin", c1), 1)
	assert.ErrorIs(t, err, provenance.ErrDiffUnavailable)

	_, err = d.Correspond(ctx, loc("img.bin", c2), loc("img.bin", "0000000000000000000000000000000000000000"), 1)
	assert.ErrorIs(t, err, provenance.ErrRevisionUnresolvable)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.Correspond(cctx, loc("img.bin", c2), loc("img.bin", c1), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCorrespondSpecialPaths(t *testing.T) {
	repo := testutil.NewRepo(t)
	paths := []string{"é.txt", `q"uote.txt`, "a*.txt", "ab.txt"}
	for _, p := range paths {
		repo.Write(p, testutil.Lines("1", "2", "3"))
	}
	c1 := repo.Commit("c1")
	for _, p := range paths {
		repo.Write(p, testutil.Lines("1", "two", "3"))
	}
	c2 := repo.Commit("c2")

	d := New(Opts{RepoDir: repo.Dir})
	ctx := context.Background()
	for _, p := range paths {
		got, err := d.Correspond(ctx, loc(p, c2), loc(p, c1), 2)
		require.NoError(t, err, p)
		assert.Equal(t, provenance.Correspondence{Matched: true, OldPath: p, OldLine: 2, ContentEqual: false}, got, p)
	}

	// the glob must not pull in ab.txt
	diffs, err := d.Diff(ctx, provenance.Revision(c1), provenance.Revision(c2), "a*.txt")
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "a*.txt", diffs[0].Path)
}

func TestCorrespondQuotedRename(t *testing.T) {
	repo := testutil.NewRepo(t)
	content := testutil.Lines("package a", "", "func A() {", "\treturn", "}", "", "// end of file a")
	repo.Write("plain.go", content)
	c1 := repo.Commit("c1")
	repo.Move("plain.go", `ü "b".go`)
	c2 := repo.Commit("c2")

	d := New(Opts{RepoDir: repo.Dir})
	got, err := d.Correspond(context.Background(), loc(`ü "b".go`, c2), loc(`ü "b".go`, c1), 4)
	require.NoError(t, err)
	assert.Equal(t, provenance.Correspondence{Matched: true, OldPath: "plain.go", OldLine: 4, ContentEqual: true}, got)
}

package contentdiff

import (
	"context"
	"testing"

	"github.com/disciplesalmon/blame-previous/blameprev/gitblob"
	"github.com/disciplesalmon/blame-previous/blameprev/gitdiff"
	"github.com/disciplesalmon/blame-previous/blameprev/pkg/testutil"
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blobs map[provenance.FileLocator]string

func (s blobs) Read(ctx context.Context, loc provenance.FileLocator) ([]byte, error) {
	data, ok := s[loc]
	if !ok {
		return nil, errors.Wrapf(provenance.ErrFileNotFound, "file %v", loc)
	}
	return []byte(data), nil
}

func loc(path, rev string) provenance.FileLocator {
	return provenance.FileLocator{Path: path, Revision: provenance.Revision(rev)}
}

func TestCorrespond(t *testing.T) {
	b := blobs{
		loc("a.txt", "r1"): "a\nb\nc\nd\n",
		loc("a.txt", "r2"): "x\na\nB\nB2\nd\n",
	}
	d := New(Opts{Blobs: b})
	ctx := context.Background()
	cases := []struct {
		Line int
		Want provenance.Correspondence
	}{
		{1, provenance.Unmatched},
		{2, provenance.Correspondence{Matched: true, OldPath: "a.txt", OldLine: 1, ContentEqual: true}},
		{3, provenance.Correspondence{Matched: true, OldPath: "a.txt", OldLine: 2}},
		{4, provenance.Correspondence{Matched: true, OldPath: "a.txt", OldLine: 3}},
		{5, provenance.Correspondence{Matched: true, OldPath: "a.txt", OldLine: 4, ContentEqual: true}},
	}
	for _, c := range cases {
		got, err := d.Correspond(ctx, loc("a.txt", "r2"), loc("a.txt", "r1"), c.Line)
		require.NoError(t, err)
		assert.Equal(t, c.Want, got, "line %v", c.Line)
	}
}

func TestMissingInOlder(t *testing.T) {
	b := blobs{loc("a.txt", "r2"): "a\n"}
	got, err := New(Opts{Blobs: b}).Correspond(context.Background(), loc("a.txt", "r2"), loc("a.txt", "r1"), 1)
	require.NoError(t, err)
	assert.Equal(t, provenance.Unmatched, got)
}

func TestBinary(t *testing.T) {
	b := blobs{
		loc("a.bin", "r1"): "\x00\x01",
		loc("a.bin", "r2"): "\x00\x02",
	}
	_, err := New(Opts{Blobs: b}).Correspond(context.Background(), loc("a.bin", "r2"), loc("a.bin", "r1"), 1)
	assert.ErrorIs(t, err, provenance.ErrDiffUnavailable)
}

func TestGitRename(t *testing.T) {
	repo := testutil.NewRepo(t)
	content := testutil.Lines("package a", "", "func A() {", "\treturn", "}", "", "// end of file a")
	repo.Write("a.go", content)
	c1 := repo.Commit("c1")
	repo.Move("a.go", "b.go")
	repo.Write("b.go", "// moved\n"+content)
	c2 := repo.Commit("c2")

	store, err := gitblob.New(gitblob.Opts{RepoDir: repo.Dir})
	require.NoError(t, err)
	d := New(Opts{Blobs: store, Renames: gitdiff.New(gitdiff.Opts{RepoDir: repo.Dir})})

	got, err := d.Correspond(context.Background(), loc("b.go", c2), loc("b.go", c1), 4)
	require.NoError(t, err)
	assert.Equal(t, provenance.Correspondence{Matched: true, OldPath: "a.go", OldLine: 3, ContentEqual: true}, got)
}

package parentsp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasic(t *testing.T) {

	data := `d497eccaf64c229771f471386cf49e4f653a00cb@e99cb00954f08c1d33c5935742809868335483bf
e99cb00954f08c1d33c5935742809868335483bf@`

	p := New(strings.NewReader(data))
	got, err := p.Run()
	require.NoError(t, err)
	want := Log{
		{Commit: "d497eccaf64c229771f471386cf49e4f653a00cb", Parents: []string{
			"e99cb00954f08c1d33c5935742809868335483bf"}},
		{Commit: "e99cb00954f08c1d33c5935742809868335483bf"},
	}
	assert.Equal(t, want, got)

	wantParents := Parents{
		"e99cb00954f08c1d33c5935742809868335483bf": nil,
		"d497eccaf64c229771f471386cf49e4f653a00cb": []string{
			"e99cb00954f08c1d33c5935742809868335483bf"},
	}
	assert.Equal(t, wantParents, got.Parents())
}

func TestMerge(t *testing.T) {

	data := `f82b3491fbf1e4fd5666748efe0b198b82d587be@2fbc9d8afd98d677074ab2dc77658dbc2988e853 b7f8fa5c1794de8c7c36b61ba5e7e41e647ae97a
`

	p := New(strings.NewReader(data))
	got, err := p.Run()
	require.NoError(t, err)
	want := Log{
		{Commit: "f82b3491fbf1e4fd5666748efe0b198b82d587be", Parents: []string{"2fbc9d8afd98d677074ab2dc77658dbc2988e853", "b7f8fa5c1794de8c7c36b61ba5e7e41e647ae97a"}},
	}
	assert.Equal(t, want, got)
}

func TestInvalidLine(t *testing.T) {
	p := New(strings.NewReader("not a log line"))
	_, err := p.Run()
	assert.Error(t, err)
}

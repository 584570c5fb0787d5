package pc

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

func newTestVolume(t *testing.T) *volume.Volume {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(root+"/README.TXT", []byte("hi"), 0644))
	return &volume.Volume{Path: root, Name: "TEST", Type: New()}
}

func TestFindObjectsListsHostFiles(t *testing.T) {
	p := New()
	v := newTestVolume(t)
	found, err := p.FindObjects(context.Background(), v, bbcpath.FQN{Name: "*"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "README.TXT", found[0].FQN.Name)
}

func TestWritesAreNotSupported(t *testing.T) {
	p := New()
	v := newTestVolume(t)
	ctx := context.Background()
	_, err := p.Create(ctx, v, bbcpath.FQN{Name: "X"}, 0, 0)
	assert.True(t, beeberror.Is(err, beeberror.KindNotSupported))
	assert.True(t, beeberror.Is(p.Delete(ctx, v, bbcpath.FQN{Name: "X"}), beeberror.KindNotSupported))
	assert.True(t, beeberror.Is(p.Rename(ctx, v, bbcpath.FQN{Name: "X"}, bbcpath.FQN{Name: "Y"}), beeberror.KindNotSupported))
}

func TestParseFileRejectsLongName(t *testing.T) {
	p := New()
	_, err := p.ParseFile(bbcpath.FilePath{}, "THIS_NAME_IS_DEFINITELY_MORE_THAN_THIRTY_ONE_CHARS")
	assert.Error(t, err)
}

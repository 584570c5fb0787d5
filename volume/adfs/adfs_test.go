package adfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

func newTestVolume(t *testing.T) *volume.Volume {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "0"), 0755))
	return &volume.Volume{Path: root, Name: "TEST", Type: New()}
}

func TestParseFileRoot(t *testing.T) {
	a := New()
	cur := bbcpath.FilePath{Volume: "TEST", Drive: "0", Dir: "$"}
	fqn, err := a.ParseFile(cur, "FILE1")
	require.NoError(t, err)
	assert.Equal(t, "$", fqn.Dir)
	assert.Equal(t, "FILE1", fqn.Name)
}

func TestParseFileAbsoluteNested(t *testing.T) {
	a := New()
	cur := bbcpath.FilePath{Drive: "0", Dir: "$"}
	fqn, err := a.ParseFile(cur, "$.DOCS.SUB.FILE1")
	require.NoError(t, err)
	assert.Equal(t, "$.DOCS.SUB", fqn.Dir)
	assert.Equal(t, "FILE1", fqn.Name)
}

func TestParseFileAscend(t *testing.T) {
	a := New()
	cur := bbcpath.FilePath{Drive: "0", Dir: "$.DOCS"}
	fqn, err := a.ParseFile(cur, "^.FILE1")
	require.NoError(t, err)
	assert.Equal(t, "$", fqn.Dir)
}

func TestParseFileRejectsLongComponent(t *testing.T) {
	a := New()
	cur := bbcpath.FilePath{Drive: "0", Dir: "$"}
	_, err := a.ParseFile(cur, "REALLYLONGNAME")
	assert.Error(t, err)
}

func TestCreateThenCatNested(t *testing.T) {
	a := New()
	v := newTestVolume(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Join(v.Path, "0", "DOCS"), 0755))

	fqn := bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$.DOCS"}, Name: "FILE1"}
	obj, err := a.Create(ctx, v, fqn, 0x1900, 0x8023)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(obj.ServerPath, []byte("HELLO"), 0644))

	got, err := a.GetObject(ctx, v, fqn, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(0x1900), got.Load)

	listed, _, err := a.Cat(ctx, v, bbcpath.FilePath{Drive: "0", Dir: "$.DOCS"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "FILE1", listed[0].FQN.Name)
}

func TestResolveDirAmbiguousWildcard(t *testing.T) {
	a := New()
	v := newTestVolume(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Join(v.Path, "0", "DOC1"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(v.Path, "0", "DOC2"), 0755))

	_, err := a.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$.DOC#"}, Name: "*"})
	assert.True(t, beeberror.Is(err, beeberror.KindAmbiguousName))
}

func TestDeleteIsUnsupported(t *testing.T) {
	a := New()
	v := newTestVolume(t)
	ctx := context.Background()
	err := a.Delete(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: "X"})
	assert.Error(t, err)
}

func TestRenameIsUnsupported(t *testing.T) {
	a := New()
	v := newTestVolume(t)
	ctx := context.Background()
	fqn := bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: "X"}
	err := a.Rename(ctx, v, fqn, fqn)
	assert.Error(t, err)
}

func TestSetAttrRoundTrip(t *testing.T) {
	a := New()
	v := newTestVolume(t)
	ctx := context.Background()
	fqn := bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: "FILE1"}
	_, err := a.Create(ctx, v, fqn, 0, 0)
	require.NoError(t, err)

	require.NoError(t, a.SetAttr(ctx, v, fqn, "RWL"))
	got, err := a.GetObject(ctx, v, fqn, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint8(0b0111), got.Attr)
}

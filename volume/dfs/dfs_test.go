package dfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

func newTestVolume(t *testing.T) *volume.Volume {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "0"), 0755))
	return &volume.Volume{Path: root, Name: "TEST", Type: New()}
}

func TestParseFileDefaultsFromCurrent(t *testing.T) {
	dfs := New()
	cur := bbcpath.FilePath{Volume: "TEST", Drive: "0", Dir: "$"}
	fqn, err := dfs.ParseFile(cur, "FILE1")
	require.NoError(t, err)
	assert.Equal(t, "$", fqn.Dir)
	assert.Equal(t, "FILE1", fqn.Name)
	assert.Equal(t, "0", fqn.Drive)
}

func TestParseFileExplicitDirAndDrive(t *testing.T) {
	dfs := New()
	cur := bbcpath.FilePath{Volume: "TEST", Drive: "0", Dir: "$"}
	fqn, err := dfs.ParseFile(cur, ":2.L.FILE1")
	require.NoError(t, err)
	assert.Equal(t, "2", fqn.Drive)
	assert.Equal(t, "L", fqn.Dir)
	assert.Equal(t, "FILE1", fqn.Name)
}

func TestParseFileRejectsLongName(t *testing.T) {
	dfs := New()
	cur := bbcpath.FilePath{Drive: "0", Dir: "$"}
	_, err := dfs.ParseFile(cur, "TOOLONGNAME")
	assert.Error(t, err)
}

func TestCreateThenGetObjectRoundTrip(t *testing.T) {
	dfs := New()
	v := newTestVolume(t)
	ctx := context.Background()
	fqn := bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: "TEST"}

	obj, err := dfs.Create(ctx, v, fqn, 0x1900, 0x8023)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(obj.ServerPath, []byte("HELLO"), 0644))

	got, err := dfs.GetObject(ctx, v, fqn, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(0x1900), got.Load)
	assert.Equal(t, uint32(0x8023), got.Exec)
	data, err := os.ReadFile(got.ServerPath)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(data))
}

func TestCreateRejectsExisting(t *testing.T) {
	dfs := New()
	v := newTestVolume(t)
	ctx := context.Background()
	fqn := bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: "TEST"}
	_, err := dfs.Create(ctx, v, fqn, 0, 0)
	require.NoError(t, err)
	_, err = dfs.Create(ctx, v, fqn, 0, 0)
	assert.Error(t, err)
}

func TestDeleteLockedFileFails(t *testing.T) {
	dfs := New()
	v := newTestVolume(t)
	ctx := context.Background()
	fqn := bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: "TEST"}
	_, err := dfs.Create(ctx, v, fqn, 0, 0)
	require.NoError(t, err)
	require.NoError(t, dfs.SetAttr(ctx, v, fqn, "L"))
	err = dfs.Delete(ctx, v, fqn)
	assert.Error(t, err)
}

func TestFindObjectsWildcard(t *testing.T) {
	dfs := New()
	v := newTestVolume(t)
	ctx := context.Background()
	for _, name := range []string{"FOO1", "FOO2", "BAR"} {
		_, err := dfs.Create(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: name}, 0, 0)
		require.NoError(t, err)
	}
	found, err := dfs.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: "FOO*"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestGetObjectAmbiguous(t *testing.T) {
	dfs := New()
	v := newTestVolume(t)
	ctx := context.Background()
	for _, name := range []string{"FOO1", "FOO2"} {
		_, err := dfs.Create(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: name}, 0, 0)
		require.NoError(t, err)
	}
	_, err := dfs.GetObject(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0", Dir: "$"}, Name: "FOO*"}, true)
	assert.Error(t, err)
}

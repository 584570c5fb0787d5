package tubehost

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
	require.NoError(t, os.MkdirAll(filepath.Join(root, "folder1", "0.GAME"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "folder1", "1.DEMO"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "folder1", "misc"), 0755))
	return &volume.Volume{Path: root, Name: "TEST", Type: New()}
}

func TestAutoMountOnFirstAccess(t *testing.T) {
	ty := New()
	v := newTestVolume(t)
	v.Type = ty
	ctx := context.Background()

	cur, err := ty.CurrentFolder(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, "folder1", cur)

	_, err = ty.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "0"}, Name: "*"})
	require.NoError(t, err)
	_, err = ty.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "1"}, Name: "*"})
	require.NoError(t, err)
	_, err = ty.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "3"}, Name: "*"})
	assert.True(t, beeberror.Is(err, beeberror.KindDriveEmpty))
}

func TestDinMountsDiskIntoDrive(t *testing.T) {
	ty := New()
	v := newTestVolume(t)
	v.Type = ty
	ctx := context.Background()

	require.NoError(t, ty.Insert(ctx, v, "3", "misc"))

	obj, err := ty.Create(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "3"}, Name: "FILE1"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(v.Path, "folder1", "misc", "FILE1"), obj.ServerPath)
}

func TestDoutEmptiesDrive(t *testing.T) {
	ty := New()
	v := newTestVolume(t)
	v.Type = ty
	ctx := context.Background()

	require.NoError(t, ty.Insert(ctx, v, "3", "misc"))
	require.NoError(t, ty.Eject(ctx, v, "3"))

	_, err := ty.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "3"}, Name: "*"})
	assert.True(t, beeberror.Is(err, beeberror.KindDriveEmpty))
}

func TestStatePersistsAcrossTypeInstances(t *testing.T) {
	v := newTestVolume(t)
	ty1 := New()
	v.Type = ty1
	ctx := context.Background()
	require.NoError(t, ty1.Insert(ctx, v, "3", "misc"))

	ty2 := New() // simulates a server restart
	v.Type = ty2
	dir, err := ty2.diskDir(v, "3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(v.Path, "folder1", "misc"), dir)
}

func TestLibraryFolderMountsToL(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_Library"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_Library", "TOOL"), nil, 0644))
	v := &volume.Volume{Path: root, Name: "TEST"}
	ty := New()
	v.Type = ty
	ctx := context.Background()

	found, err := ty.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Drive: "L"}, Name: "*"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "TOOL", found[0].FQN.Name)
}

var _ Changer = (*Type)(nil)

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/vfs"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

func newOpenFile(t *testing.T, fc *vfs.Facade) *vfs.OpenFile {
	dir := t.TempDir()
	path := filepath.Join(dir, "F")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	f, err := fc.Open(nil, &volume.FSObject{ServerPath: path}, true, false, false, nil)
	require.NoError(t, err)
	return f
}

func TestAllocateWithinDefaultRange(t *testing.T) {
	s := New("link1")
	fc := vfs.NewFacade()
	f := newOpenFile(t, fc)
	h, err := s.Allocate(f)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h, DefaultFirstHandle)
	assert.Less(t, h, DefaultFirstHandle+DefaultHandleCount)
}

func TestAllocateExhaustionFails(t *testing.T) {
	s := New("link1")
	require.NoError(t, s.SetHandleRange(vfs.NewFacade(), 0xB0, 1))
	fc := vfs.NewFacade()
	f1 := newOpenFile(t, fc)
	_, err := s.Allocate(f1)
	require.NoError(t, err)
	f2 := newOpenFile(t, fc)
	_, err = s.Allocate(f2)
	assert.True(t, beeberror.Is(err, beeberror.KindTooManyOpen))
}

func TestGetUnknownHandleFails(t *testing.T) {
	s := New("link1")
	_, err := s.Get(0xB5)
	assert.True(t, beeberror.Is(err, beeberror.KindChannel))
}

func TestSetHandleRangeClosesOpenFiles(t *testing.T) {
	s := New("link1")
	fc := vfs.NewFacade()
	f := newOpenFile(t, fc)
	h, err := s.Allocate(f)
	require.NoError(t, err)

	require.NoError(t, s.SetHandleRange(fc, 0xC0, 4))
	_, err = s.Get(h)
	assert.True(t, beeberror.Is(err, beeberror.KindChannel))
}

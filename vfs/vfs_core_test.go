package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

func newTestObject(t *testing.T, content []byte) *volume.FSObject {
	dir := t.TempDir()
	path := filepath.Join(dir, "FILE1")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return &volume.FSObject{ServerPath: path, Type: volume.ObjectFile}
}

func TestOpenForWriteTwiceFails(t *testing.T) {
	fc := NewFacade()
	obj := newTestObject(t, []byte("HELLO"))

	f1, err := fc.Open(nil, obj, false, true, false, nil)
	require.NoError(t, err)
	defer fc.Close(f1)

	_, err = fc.Open(nil, obj, false, true, false, nil)
	assert.True(t, beeberror.Is(err, beeberror.KindOpen))
}

func TestOpenForReadTwiceSucceeds(t *testing.T) {
	fc := NewFacade()
	obj := newTestObject(t, []byte("HELLO"))
	f1, err := fc.Open(nil, obj, true, false, false, nil)
	require.NoError(t, err)
	f2, err := fc.Open(nil, obj, true, false, false, nil)
	require.NoError(t, err)
	assert.NotNil(t, f1)
	assert.NotNil(t, f2)
}

func TestBGetStickyEOF(t *testing.T) {
	fc := NewFacade()
	obj := newTestObject(t, []byte("AB"))
	f, err := fc.Open(nil, obj, true, false, false, nil)
	require.NoError(t, err)

	b, eof, err := fc.BGet(f)
	require.NoError(t, err)
	assert.False(t, eof)
	assert.Equal(t, byte('A'), b)

	_, _, _ = fc.BGet(f)

	_, eof, err = fc.BGet(f)
	require.NoError(t, err)
	assert.True(t, eof)

	_, _, err = fc.BGet(f)
	assert.True(t, beeberror.Is(err, beeberror.KindEOF))
}

func TestBPutAutoExtendsAndRoundTrips(t *testing.T) {
	fc := NewFacade()
	obj := newTestObject(t, nil)
	f, err := fc.Open(nil, obj, false, true, false, nil)
	require.NoError(t, err)

	for _, b := range []byte("HELLO") {
		require.NoError(t, fc.BPut(f, b))
	}
	require.NoError(t, fc.Close(f))

	data, err := os.ReadFile(obj.ServerPath)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(data))
}

func TestSetPtrZeroExtendsOnWriteHandle(t *testing.T) {
	fc := NewFacade()
	obj := newTestObject(t, []byte("AB"))
	f, err := fc.Open(nil, obj, false, true, false, nil)
	require.NoError(t, err)

	require.NoError(t, fc.SetPtr(f, 5))
	assert.Equal(t, uint32(5), f.Size())
}

func TestSetPtrPastEndOnReadHandleFails(t *testing.T) {
	fc := NewFacade()
	obj := newTestObject(t, []byte("AB"))
	f, err := fc.Open(nil, obj, true, false, false, nil)
	require.NoError(t, err)

	err = fc.SetPtr(f, 5)
	assert.True(t, beeberror.Is(err, beeberror.KindOutsideFile))
}

func TestTextModePrefixAndLineEndings(t *testing.T) {
	fc := NewFacade()
	obj := newTestObject(t, []byte("X\nY\r\nZ"))
	f, err := fc.Open(nil, obj, true, false, true, []string{"REM a", "PRINT 1"})
	require.NoError(t, err)
	assert.Equal(t, "REM a\x0DPRINT 1\x0DX\x0DY\x0DZ\x0D", string(f.Contents()))
}

func TestGBPBWriteThenRead(t *testing.T) {
	fc := NewFacade()
	obj := newTestObject(t, nil)
	f, err := fc.Open(nil, obj, true, true, false, nil)
	require.NoError(t, err)

	require.NoError(t, fc.GBPBWrite(f, []byte("HELLO"), 0, false))
	require.NoError(t, fc.SetPtr(f, 0))
	data, eof, err := fc.GBPBRead(f, 5, 0, false)
	require.NoError(t, err)
	assert.True(t, eof)
	assert.Equal(t, "HELLO", string(data))
}

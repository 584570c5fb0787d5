package infcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsOnEmpty(t *testing.T) {
	info, err := Parse(nil, "TEST")
	require.NoError(t, err)
	assert.True(t, info.NoINF)
	assert.Equal(t, "TEST", info.BBCName)
	assert.Equal(t, uint32(0xFFFFFFFF), info.Load)
	assert.Equal(t, uint32(0xFFFFFFFF), info.Exec)
}

func TestParseBasicLine(t *testing.T) {
	info, err := Parse([]byte("$.TEST 1900 8023\n"), "fallback")
	require.NoError(t, err)
	assert.Equal(t, "$.TEST", info.BBCName)
	assert.Equal(t, uint32(0x1900), info.Load)
	assert.Equal(t, uint32(0x8023), info.Exec)
	assert.False(t, info.HasSize)
	assert.Equal(t, uint8(0), info.Attr)
}

func TestParseWithSizeAndLock(t *testing.T) {
	info, err := Parse([]byte("D.NAME 00001900 00008023 000005 L"), "fallback")
	require.NoError(t, err)
	assert.Equal(t, uint32(5), info.Size)
	assert.True(t, info.HasSize)
	assert.Equal(t, uint8(AttrLocked), info.Attr)
}

func TestParseWithADFSAttrBitmask(t *testing.T) {
	info, err := Parse([]byte("NAME 0 0 0A 03"), "fallback")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x03), info.Attr)
}

func TestParseSignExtendsLegacyDFSAddress(t *testing.T) {
	info, err := Parse([]byte("NAME FF1900 FF8023"), "fallback")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFF1900), info.Load)
	assert.Equal(t, uint32(0xFFFF8023), info.Exec)
}

func TestParseCRCTokenIgnored(t *testing.T) {
	info, err := Parse([]byte("NAME 1900 8023 CRC=ABCD"), "fallback")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), info.Attr)
}

func TestFormatRoundTripDFS(t *testing.T) {
	info := Info{BBCName: "D.NAME", Load: 0x1900, Exec: 0x8023, Attr: AttrLocked}
	out := Format(info, StyleDFS)
	got, err := Parse(out, "ignored")
	require.NoError(t, err)
	assert.Equal(t, info.BBCName, got.BBCName)
	assert.Equal(t, info.Load, got.Load)
	assert.Equal(t, info.Exec, got.Exec)
	assert.Equal(t, info.Attr, got.Attr)
}

func TestFormatRoundTripADFS(t *testing.T) {
	info := Info{BBCName: "NAME", Load: 0xFFFFFFFF, Exec: 0, Attr: AttrRead | AttrWrite | AttrExecute}
	out := Format(info, StyleADFS)
	got, err := Parse(out, "ignored")
	require.NoError(t, err)
	assert.Equal(t, info.Attr, got.Attr)
}

func TestMustNotExistOKWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, MustNotExist(dir+"/nope"))
}

func TestMustNotExistFailsWhenSidecarPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteSidecar(dir+"/file", DefaultInfo("file"), StyleDFS))
	assert.Error(t, MustNotExist(dir+"/file"))
}

package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/transport"
	"github.com/tom-seddon/beeblink-sub000/vfs"
	"github.com/tom-seddon/beeblink-sub000/volume"
	"github.com/tom-seddon/beeblink-sub000/volume/dfs"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *volume.Volume) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "0"), 0755))
	v := &volume.Volume{Path: root, Name: "TEST", Type: dfs.New()}
	disc := &volume.Discoverer{Roots: []string{filepath.Dir(root)}, DFSType: dfs.New(), ADFSType: dfs.New()}
	d := New(vfs.NewFacade(), disc, []byte("ROM"), nil)
	return d, v
}

func newSessionWithVolume(d *Dispatcher, linkID string, v *volume.Volume) {
	s := d.sessionFor(linkID)
	s.Volume = v
	s.Cur = bbcpath.FilePath{Volume: v.Name, Drive: "0", Dir: "$"}
}

func osfileRequest(a byte, block block16, name string, data []byte) transport.Packet {
	payload := append([]byte{a}, block.bytes()...)
	payload = append(payload, []byte(name)...)
	payload = append(payload, 0x0D)
	payload = append(payload, data...)
	return transport.Packet{Type: ReqOSFILE, Payload: payload}
}

func TestGetROM(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp, err := d.Dispatch(context.Background(), "link1", transport.Packet{Type: ReqGetROM})
	require.NoError(t, err)
	assert.Equal(t, byte(RespData), resp.Type)
	assert.Equal(t, []byte("ROM"), resp.Payload)
}

func TestOSFILESaveThenLoad(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	ctx := context.Background()

	save := osfileRequest(OSFILESave, block16{Load: 0x1900, Exec: 0x8023}, "$.TEST", []byte("HELLO"))
	resp, err := d.Dispatch(ctx, "link1", save)
	require.NoError(t, err)
	require.Equal(t, byte(RespOSFILE), resp.Type)
	assert.Equal(t, byte(volume.ObjectFile), resp.Payload[0])

	load := osfileRequest(OSFILELoad, block16{}, "$.TEST", nil)
	resp, err = d.Dispatch(ctx, "link1", load)
	require.NoError(t, err)
	block, err := parseBlock16(resp.Payload[1:17])
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1900), block.Load)
	assert.Equal(t, uint32(0x8023), block.Exec)
	assert.Equal(t, uint32(5), block.Size)
	assert.Equal(t, []byte("HELLO"), resp.Payload[17:])
}

func TestOSFINDOpenWriteThenReadByteRoundTrip(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	ctx := context.Background()

	openPayload := append([]byte{osfindModeOutput}, []byte("$.F")...)
	openPayload = append(openPayload, 0x0D)
	resp, err := d.Dispatch(ctx, "link1", transport.Packet{Type: ReqOSFINDOpen, Payload: openPayload})
	require.NoError(t, err)
	h := resp.Payload[0]
	require.NotZero(t, h)

	put, err := d.Dispatch(ctx, "link1", transport.Packet{Type: ReqOSBPUT, Payload: []byte{h, 'A'}})
	require.NoError(t, err)
	assert.Equal(t, byte(RespYes), put.Type)

	closeResp, err := d.Dispatch(ctx, "link1", transport.Packet{Type: ReqOSFINDClose, Payload: []byte{h}})
	require.NoError(t, err)
	assert.Equal(t, byte(RespOSFIND), closeResp.Type)

	data, err := os.ReadFile(filepath.Join(v.Path, "0", "$.F"))
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), data)
}

func TestOSFINDOpenTwiceForWriteFails(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	newSessionWithVolume(d, "link2", v)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(v.Path, "0", "$.F"), []byte("x"), 0644))

	openPayload := append([]byte{osfindModeUpdate}, []byte("$.F")...)
	openPayload = append(openPayload, 0x0D)
	first, err := d.Dispatch(ctx, "link1", transport.Packet{Type: ReqOSFINDOpen, Payload: openPayload})
	require.NoError(t, err)
	require.NotZero(t, first.Payload[0])

	second, err := d.Dispatch(ctx, "link2", transport.Packet{Type: ReqOSFINDOpen, Payload: openPayload})
	require.NoError(t, err)
	assert.Equal(t, byte(RespError), second.Type)
	assert.Equal(t, beeberror.Default(beeberror.KindOpen).Code(), second.Payload[1])
}

func TestSetFileHandleRangeExhaustion(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(v.Path, "0", "$.A"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(v.Path, "0", "$.B"), []byte("b"), 0644))

	resp, err := d.Dispatch(ctx, "link1", transport.Packet{Type: ReqSetFileHandleRange, Payload: []byte{0xB0, 1}})
	require.NoError(t, err)
	assert.Equal(t, byte(RespYes), resp.Type)

	open := func(name string) transport.Packet {
		p := append([]byte{osfindModeInput}, []byte(name)...)
		p = append(p, 0x0D)
		r, err := d.Dispatch(ctx, "link1", transport.Packet{Type: ReqOSFINDOpen, Payload: p})
		require.NoError(t, err)
		return r
	}
	first := open("$.A")
	require.NotZero(t, first.Payload[0])

	second := open("$.B")
	assert.Equal(t, byte(RespError), second.Type)
	assert.Equal(t, beeberror.Default(beeberror.KindTooManyOpen).Code(), second.Payload[1])
}

func TestUnknownOpcodeIsBadCommand(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	resp, err := d.Dispatch(context.Background(), "link1", transport.Packet{Type: 0x77})
	require.NoError(t, err)
	assert.Equal(t, byte(RespError), resp.Type)
	assert.Equal(t, beeberror.Default(beeberror.KindBadCommand).Code(), resp.Payload[1])
}

func TestStarCommandRunResolvesFile(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(v.Path, "0", "$.PROG"), []byte("code"), 0644))

	resp, err := d.Dispatch(ctx, "link1", transport.Packet{Type: ReqStarRun, Payload: []byte("PROG")})
	require.NoError(t, err)
	assert.Equal(t, byte(RespRun), resp.Type)
}

func TestForgetClosesOpenFiles(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	ctx := context.Background()
	openPayload := append([]byte{osfindModeOutput}, []byte("$.F")...)
	openPayload = append(openPayload, 0x0D)
	_, err := d.Dispatch(ctx, "link1", transport.Packet{Type: ReqOSFINDOpen, Payload: openPayload})
	require.NoError(t, err)

	d.Forget("link1")
	data, err := os.ReadFile(filepath.Join(v.Path, "0", "$.F"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

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
	"github.com/tom-seddon/beeblink-sub000/volume/tubehost"
)

func starCommand(cmdline string) transport.Packet {
	return transport.Packet{Type: ReqStarCommand, Payload: []byte(cmdline)}
}

func TestStarBackSwapsCurrentAndPreviousDir(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	ctx := context.Background()

	s := d.sessionFor("link1")
	s.Cur = bbcpath.FilePath{Volume: v.Name, Drive: "0", Dir: "$"}
	s.PrevDir = bbcpath.FilePath{Volume: v.Name, Drive: "0", Dir: "LIB"}

	resp, err := d.Dispatch(ctx, "link1", starCommand("*BACK"))
	require.NoError(t, err)
	assert.Equal(t, byte(RespYes), resp.Type)
	assert.Equal(t, "LIB", s.Cur.Dir)
	assert.Equal(t, "$", s.PrevDir.Dir)

	// A second *BACK swaps them right back.
	resp, err = d.Dispatch(ctx, "link1", starCommand("*BACK"))
	require.NoError(t, err)
	assert.Equal(t, byte(RespYes), resp.Type)
	assert.Equal(t, "$", s.Cur.Dir)
	assert.Equal(t, "LIB", s.PrevDir.Dir)
}

// newTubeHostDispatcher builds a Dispatcher whose session is already
// pointed at a TubeHost volume with one folder ("GAMES") holding one disk
// ("1.ARCADE"), the auto-mounted layout §4.4.3 describes for a freshly
// discovered volume.
func newTubeHostDispatcher(t *testing.T) (*Dispatcher, *volume.Volume) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "GAMES", "1.ARCADE"), 0755))
	v := &volume.Volume{Path: root, Name: "TH", Type: tubehost.New()}
	disc := &volume.Discoverer{DFSType: dfs.New(), ADFSType: dfs.New()}
	d := New(vfs.NewFacade(), disc, []byte("ROM"), nil)
	newSessionWithVolume(d, "link1", v)
	return d, v
}

func TestStarDinThenDoutRoundTrip(t *testing.T) {
	d, v := newTubeHostDispatcher(t)
	ctx := context.Background()

	// *DIN slot disk: insert "1.ARCADE" from the auto-mounted current
	// folder into slot "2".
	resp, err := d.Dispatch(ctx, "link1", starCommand("*DIN 2 1.ARCADE"))
	require.NoError(t, err)
	assert.Equal(t, byte(RespYes), resp.Type)

	_, err = os.Stat(filepath.Join(v.Path, ".tubehost-state.json"))
	require.NoError(t, err)

	// *DOUT ejects it again.
	resp, err = d.Dispatch(ctx, "link1", starCommand("*DOUT 2"))
	require.NoError(t, err)
	assert.Equal(t, byte(RespYes), resp.Type)
}

func TestStarDinOnNonTubeHostVolumeIsNotSupported(t *testing.T) {
	d, v := newTestDispatcher(t)
	newSessionWithVolume(d, "link1", v)
	ctx := context.Background()

	resp, err := d.Dispatch(ctx, "link1", starCommand("*DIN 2 DISK"))
	require.NoError(t, err)
	assert.Equal(t, byte(RespError), resp.Type)
	assert.Equal(t, beeberror.Default(beeberror.KindNotSupported).Code(), resp.Payload[1])
}

// newVolumeSelectorDispatcher discovers volumes named via their ".volume"
// sidecar file (displayName's override), so *VOLUME selector tests don't
// depend on t.TempDir()'s generated directory names.
func newVolumeSelectorDispatcher(t *testing.T, names ...string) (*Dispatcher, *volume.Volume) {
	t.Helper()
	parent := t.TempDir()
	for _, name := range names {
		dir := filepath.Join(parent, name)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "0"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".volume"), []byte(name), 0644))
	}
	disc := &volume.Discoverer{Roots: []string{parent}, DFSType: dfs.New(), ADFSType: dfs.New()}
	d := New(vfs.NewFacade(), disc, []byte("ROM"), nil)

	volumes, err := disc.Discover(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, volumes)
	v := volumes[0]
	newSessionWithVolume(d, "link1", v)
	return d, v
}

func TestStarVolumeUnknownNameIsFileNotFound(t *testing.T) {
	d, _ := newVolumeSelectorDispatcher(t, "ALPHA")
	ctx := context.Background()

	resp, err := d.Dispatch(ctx, "link1", starCommand("*VOLUME NOSUCHVOL"))
	require.NoError(t, err)
	assert.Equal(t, byte(RespError), resp.Type)
	assert.Equal(t, beeberror.Default(beeberror.KindFileNotFound).Code(), resp.Payload[1])
}

func TestStarVolumeAmbiguousSelectorIsAmbiguousName(t *testing.T) {
	d, _ := newVolumeSelectorDispatcher(t, "DUP1", "DUP2")
	ctx := context.Background()

	resp, err := d.Dispatch(ctx, "link1", starCommand("*VOLUME DUP*"))
	require.NoError(t, err)
	assert.Equal(t, byte(RespError), resp.Type)
	assert.Equal(t, beeberror.Default(beeberror.KindAmbiguousName).Code(), resp.Payload[1])
}

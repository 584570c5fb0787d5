package volume

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-seddon/beeblink-sub000/bbcpath"
)

// stubType is a minimal Type implementation used only to distinguish which
// adapter a discovered volume was tagged with; none of its methods beyond
// Name are exercised here.
type stubType struct{ name string }

func (s stubType) Name() string { return s.name }
func (s stubType) ParseFile(cur bbcpath.FilePath, str string) (bbcpath.FQN, error) {
	return bbcpath.FQN{}, nil
}
func (s stubType) ParseDir(cur bbcpath.FilePath, str string) (bbcpath.FilePath, error) {
	return bbcpath.FilePath{}, nil
}
func (s stubType) FindObjects(ctx context.Context, v *Volume, fqn bbcpath.FQN) ([]*FSObject, error) {
	return nil, nil
}
func (s stubType) GetObject(ctx context.Context, v *Volume, fqn bbcpath.FQN, wildcardsOK bool) (*FSObject, error) {
	return nil, nil
}
func (s stubType) Delete(ctx context.Context, v *Volume, fqn bbcpath.FQN) error { return nil }
func (s stubType) Rename(ctx context.Context, v *Volume, oldFQN, newFQN bbcpath.FQN) error {
	return nil
}
func (s stubType) SetAttr(ctx context.Context, v *Volume, fqn bbcpath.FQN, attrStr string) error {
	return nil
}
func (s stubType) Cat(ctx context.Context, v *Volume, dir bbcpath.FilePath) ([]*FSObject, string, error) {
	return nil, "", nil
}
func (s stubType) BootOption(ctx context.Context, v *Volume, drive string) (byte, error) {
	return 0, nil
}
func (s stubType) Create(ctx context.Context, v *Volume, fqn bbcpath.FQN, load, exec uint32) (*FSObject, error) {
	return nil, nil
}
func (s stubType) WriteMeta(ctx context.Context, v *Volume, obj *FSObject) error { return nil }
func (s stubType) ReadInfo(ctx context.Context, v *Volume, fqn bbcpath.FQN) (string, error) {
	return "", nil
}
func (s stubType) Locate(ctx context.Context, v *Volume, namePattern string) ([]*FSObject, error) {
	return nil, nil
}

func TestDiscoverFindsDFSAndADFS(t *testing.T) {
	root := t.TempDir()

	dfsVol := filepath.Join(root, "dfsvol")
	require.NoError(t, os.MkdirAll(filepath.Join(dfsVol, "0"), 0755))

	adfsVol := filepath.Join(root, "adfsvol")
	require.NoError(t, os.MkdirAll(filepath.Join(adfsVol, "0"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(adfsVol, ".adfs"), nil, 0644))

	ignored := filepath.Join(root, "ignoredvol")
	require.NoError(t, os.MkdirAll(filepath.Join(ignored, "0"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ignored, ".beeblink-ignore"), nil, 0644))

	d := &Discoverer{
		Roots:    []string{root},
		DFSType:  dfsTypeStub,
		ADFSType: adfsTypeStub,
	}
	vols, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, vols, 2)

	byName := map[string]*Volume{}
	for _, v := range vols {
		byName[v.Name] = v
	}
	assert.Equal(t, dfsTypeStub, byName["dfsvol"].Type)
	assert.Equal(t, adfsTypeStub, byName["adfsvol"].Type)
}

func TestDiscoverUsesVolumeSidecarName(t *testing.T) {
	root := t.TempDir()
	vol := filepath.Join(root, "plainname")
	require.NoError(t, os.MkdirAll(filepath.Join(vol, "0"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(vol, ".volume"), []byte("MyDisc\n"), 0644))

	d := &Discoverer{Roots: []string{root}, DFSType: dfsTypeStub}
	vols, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, "MyDisc", vols[0].Name)
}

func TestVolumeEqualByPath(t *testing.T) {
	a := &Volume{Path: "/a", Name: "one"}
	b := &Volume{Path: "/a", Name: "two"}
	c := &Volume{Path: "/b", Name: "one"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestFindByNameWildcard(t *testing.T) {
	vols := []*Volume{{Name: "Games"}, {Name: "Office"}, {Name: "Golf"}}
	got := FindByName(vols, "G*")
	assert.Len(t, got, 2)
}

var dfsTypeStub Type = stubType{name: "DFS"}
var adfsTypeStub Type = stubType{name: "ADFS"}

// Package pc implements the PC filing-system-type adapter (§4.4.4): a
// read-only passthrough onto a host directory with no BBC attribute model
// and no hierarchy, the way rclone's backend/local can be mounted
// --read-only to expose a host tree without any of the write-side
// capabilities a full Fs implementation would otherwise advertise.
package pc

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

const maxNameLen = 31

type Type struct{}

func New() *Type { return &Type{} }

func (t *Type) Name() string { return "PC" }

func (t *Type) ParseFile(cur bbcpath.FilePath, s string) (bbcpath.FQN, error) {
	volName, volExplicit, rest := bbcpath.SplitVolume(s)
	if rest == "" {
		return bbcpath.FQN{}, beeberror.Default(beeberror.KindBadName)
	}
	if len(rest) > maxNameLen {
		return bbcpath.FQN{}, beeberror.Default(beeberror.KindBadName)
	}
	fp := bbcpath.FilePath{Volume: bbcpath.FirstNonEmpty(volName, cur.Volume), VolumeExplicit: volExplicit}
	return bbcpath.FQN{FilePath: fp, Name: rest}, nil
}

func (t *Type) ParseDir(cur bbcpath.FilePath, s string) (bbcpath.FilePath, error) {
	volName, volExplicit, _ := bbcpath.SplitVolume(s)
	return bbcpath.FilePath{Volume: bbcpath.FirstNonEmpty(volName, cur.Volume), VolumeExplicit: volExplicit}, nil
}

func (t *Type) FindObjects(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) ([]*volume.FSObject, error) {
	entries, err := os.ReadDir(v.Path)
	if err != nil {
		return nil, beeberror.FromOS(err)
	}
	var out []*volume.FSObject
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if fqn.Name != "" && !bbcpath.MatchWildcard(fqn.Name, name) {
			continue
		}
		out = append(out, &volume.FSObject{
			ServerPath: filepath.Join(v.Path, name),
			FQN:        bbcpath.FQN{FilePath: fqn.FilePath, Name: name},
			Load:       0xFFFFFFFF,
			Exec:       0xFFFFFFFF,
			Attr:       0,
			Type:       volume.ObjectFile,
		})
	}
	return out, nil
}

func (t *Type) GetObject(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN, wildcardsOK bool) (*volume.FSObject, error) {
	found, err := t.FindObjects(ctx, v, fqn)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, beeberror.Default(beeberror.KindAmbiguousName)
	}
}

func (t *Type) Delete(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) error {
	return beeberror.Default(beeberror.KindNotSupported)
}

func (t *Type) Rename(ctx context.Context, v *volume.Volume, oldFQN, newFQN bbcpath.FQN) error {
	return beeberror.Default(beeberror.KindNotSupported)
}

func (t *Type) SetAttr(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN, attrStr string) error {
	return beeberror.Default(beeberror.KindNotSupported)
}

func (t *Type) WriteMeta(ctx context.Context, v *volume.Volume, obj *volume.FSObject) error {
	return beeberror.Default(beeberror.KindNotSupported)
}

// ReadInfo is not supported: PC volumes carry no BBC attribute model for
// *INFO to report, mirroring SetAttr's own NotSupported.
func (t *Type) ReadInfo(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) (string, error) {
	return "", beeberror.Default(beeberror.KindNotSupported)
}

// Locate is a flat scan: a PC volume has no drives or subdirectories to
// recurse into.
func (t *Type) Locate(ctx context.Context, v *volume.Volume, namePattern string) ([]*volume.FSObject, error) {
	return t.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Volume: v.Name}, Name: namePattern})
}

func (t *Type) Create(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN, load, exec uint32) (*volume.FSObject, error) {
	return nil, beeberror.Default(beeberror.KindNotSupported)
}

func (t *Type) Cat(ctx context.Context, v *volume.Volume, dir bbcpath.FilePath) ([]*volume.FSObject, string, error) {
	found, err := t.FindObjects(ctx, v, bbcpath.FQN{FilePath: dir, Name: "*"})
	if err != nil {
		return nil, "", err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].FQN.Name < found[j].FQN.Name })
	return found, "", nil
}

func (t *Type) BootOption(ctx context.Context, v *volume.Volume, drive string) (byte, error) {
	return 0, nil
}

var _ volume.Type = (*Type)(nil)

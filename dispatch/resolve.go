package dispatch

import (
	"context"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/session"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

// resolveVolume implements the "::name…" volume selector (§4.3): if spec
// names a volume explicitly, it is looked up (with wildcards) against a
// fresh discovery scan; otherwise the session's current volume applies.
func (d *Dispatcher) resolveVolume(ctx context.Context, s *session.Session, spec string) (*volume.Volume, error) {
	volName, explicit, _ := bbcpath.SplitVolume(spec)
	if !explicit {
		if s.Volume == nil {
			return nil, beeberror.Errorf(beeberror.KindDiscFault, "No volume")
		}
		return s.Volume, nil
	}

	volumes, err := d.Discoverer.Discover(ctx)
	if err != nil {
		return nil, beeberror.Wrap(beeberror.KindDiscFault, "volume discovery failed", err)
	}
	matches := volume.FindByName(volumes, volName)
	switch len(matches) {
	case 0:
		return nil, beeberror.Default(beeberror.KindFileNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, beeberror.Default(beeberror.KindAmbiguousName)
	}
}

// resolveFile resolves spec to (volume, fqn), the combination every
// file-addressing opcode needs.
func (d *Dispatcher) resolveFile(ctx context.Context, s *session.Session, spec string) (*volume.Volume, bbcpath.FQN, error) {
	v, err := d.resolveVolume(ctx, s, spec)
	if err != nil {
		return nil, bbcpath.FQN{}, err
	}
	fqn, err := v.Type.ParseFile(s.Cur, spec)
	if err != nil {
		return nil, bbcpath.FQN{}, err
	}
	return v, fqn, nil
}

// resolveDir is resolveFile's directory-only counterpart, used by
// STAR_CAT.
func (d *Dispatcher) resolveDir(ctx context.Context, s *session.Session, spec string) (*volume.Volume, bbcpath.FilePath, error) {
	v, err := d.resolveVolume(ctx, s, spec)
	if err != nil {
		return nil, bbcpath.FilePath{}, err
	}
	fp, err := v.Type.ParseDir(s.Cur, spec)
	if err != nil {
		return nil, bbcpath.FilePath{}, err
	}
	return v, fp, nil
}

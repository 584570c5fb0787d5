// Package dfs implements the DFS filing-system-type adapter (§4.4.1): a
// single-char drive 0-7 maps to a host subdirectory, and the single-char
// BBC directory is folded into the on-disk filename as "<dir>.<name>". The
// scanning and .inf bookkeeping below is adapted from rclone's
// backend/local directory listing and metadata handling — one flat
// directory per drive, one host file (plus optional .inf sidecar) per BBC
// file.
package dfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/infcodec"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

const (
	maxDirLen  = 1
	maxNameLen = 7
)

// Type implements volume.Type for DFS volumes.
type Type struct{}

// New returns a DFS adapter.
func New() *Type { return &Type{} }

func (t *Type) Name() string { return "DFS" }

func (t *Type) ParseFile(cur bbcpath.FilePath, s string) (bbcpath.FQN, error) {
	fp, name, err := t.parse(cur, s)
	if err != nil {
		return bbcpath.FQN{}, err
	}
	if name == "" {
		return bbcpath.FQN{}, beeberror.Default(beeberror.KindBadName)
	}
	return bbcpath.FQN{FilePath: fp, Name: name}, nil
}

func (t *Type) ParseDir(cur bbcpath.FilePath, s string) (bbcpath.FilePath, error) {
	fp, name, err := t.parse(cur, s)
	if err != nil {
		return bbcpath.FilePath{}, err
	}
	if name != "" {
		return bbcpath.FilePath{}, beeberror.Default(beeberror.KindBadDir)
	}
	return fp, nil
}

// parse implements the shared FSP grammar: ::vol:drv.dir.name (or any
// trailing subset of it), defaulting missing components from cur.
func (t *Type) parse(cur bbcpath.FilePath, s string) (bbcpath.FilePath, string, error) {
	volName, volExplicit, rest := bbcpath.SplitVolume(s)
	drive, driveExplicit, rest := bbcpath.SplitDrive(rest)
	comps := bbcpath.SplitComponents(rest)

	var dir, name string
	dirExplicit := false
	switch len(comps) {
	case 0:
		dir = cur.Dir
	case 1:
		dir = cur.Dir
		name = comps[0]
	case 2:
		dir = comps[0]
		dirExplicit = true
		name = comps[1]
	default:
		return bbcpath.FilePath{}, "", beeberror.Default(beeberror.KindBadName)
	}
	if len(dir) > maxDirLen {
		return bbcpath.FilePath{}, "", beeberror.Default(beeberror.KindBadDir)
	}
	if len(name) > maxNameLen {
		return bbcpath.FilePath{}, "", beeberror.Default(beeberror.KindBadName)
	}

	fp := bbcpath.FilePath{
		Volume:         bbcpath.FirstNonEmpty(volName, cur.Volume),
		VolumeExplicit: volExplicit,
		Drive:          bbcpath.FirstNonEmpty(drive, cur.Drive),
		DriveExplicit:  driveExplicit,
		Dir:            dir,
		DirExplicit:    dirExplicit,
	}
	return fp, name, nil
}

func driveDir(v *volume.Volume, drive string) string {
	return filepath.Join(v.Path, drive)
}

// hostFilename is the on-disk name for a (dir, name) pair: both components
// escaped independently and joined with a literal dot, which is always
// unambiguous because Escape never leaves a raw dot in its output.
func hostFilename(dir, name string) string {
	return bbcpath.Escape(dir) + "." + bbcpath.Escape(name)
}

func decodeFilename(entryName string) (dir, name string, ok bool) {
	idx := strings.IndexByte(entryName, '.')
	if idx < 0 {
		return "", "", false
	}
	return bbcpath.Unescape(entryName[:idx]), bbcpath.Unescape(entryName[idx+1:]), true
}

func (t *Type) FindObjects(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) ([]*volume.FSObject, error) {
	dir := driveDir(v, fqn.Drive)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, beeberror.FromOS(err)
	}
	var out []*volume.FSObject
	for _, e := range entries {
		if e.IsDir() || isSidecarOrMeta(e.Name()) {
			continue
		}
		bbcDir, bbcName, ok := decodeFilename(e.Name())
		if !ok {
			continue
		}
		if fqn.Dir != "" && !bbcpath.MatchWildcard(fqn.Dir, bbcDir) {
			continue
		}
		if fqn.Name != "" && !bbcpath.MatchWildcard(fqn.Name, bbcName) {
			continue
		}
		obj, err := t.objectFor(dir, e.Name(), fqn.FilePath, bbcDir, bbcName)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func isSidecarOrMeta(name string) bool {
	return strings.HasSuffix(name, ".inf") || name == ".opt4" || name == ".title"
}

func (t *Type) objectFor(dir, entryName string, fp bbcpath.FilePath, bbcDir, bbcName string) (*volume.FSObject, error) {
	hostPath := filepath.Join(dir, entryName)
	info, err := infcodec.ReadSidecar(hostPath, entryName)
	if err != nil {
		return nil, beeberror.FromOS(err)
	}
	attr := info.Attr & infcodec.AttrLocked // DFS only ever preserves the lock bit
	return &volume.FSObject{
		ServerPath: hostPath,
		FQN: bbcpath.FQN{
			FilePath: bbcpath.FilePath{Volume: fp.Volume, Drive: fp.Drive, Dir: bbcDir, DirExplicit: true},
			Name:     bbcName,
		},
		Load: info.Load,
		Exec: info.Exec,
		Attr: attr,
		Type: volume.ObjectFile,
	}, nil
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
		if !wildcardsOK {
			return nil, beeberror.Default(beeberror.KindAmbiguousName)
		}
		return nil, beeberror.Default(beeberror.KindAmbiguousName)
	}
}

func (t *Type) Delete(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) error {
	obj, err := t.GetObject(ctx, v, fqn, false)
	if err != nil {
		return err
	}
	if obj == nil {
		return beeberror.Default(beeberror.KindFileNotFound)
	}
	if obj.Attr&infcodec.AttrLocked != 0 {
		return beeberror.Default(beeberror.KindLocked)
	}
	if err := os.Remove(obj.ServerPath); err != nil && !os.IsNotExist(err) {
		return beeberror.FromOS(err)
	}
	_ = os.Remove(obj.ServerPath + ".inf")
	return nil
}

func (t *Type) Rename(ctx context.Context, v *volume.Volume, oldFQN, newFQN bbcpath.FQN) error {
	src, err := t.GetObject(ctx, v, oldFQN, false)
	if err != nil {
		return err
	}
	if src == nil {
		return beeberror.Default(beeberror.KindFileNotFound)
	}
	if src.Attr&infcodec.AttrLocked != 0 {
		return beeberror.Default(beeberror.KindLocked)
	}
	dst, err := t.GetObject(ctx, v, newFQN, false)
	if err != nil {
		return err
	}
	if dst != nil {
		return beeberror.Default(beeberror.KindExists)
	}
	destDir := driveDir(v, newFQN.Drive)
	destPath := filepath.Join(destDir, hostFilename(newFQN.Dir, newFQN.Name))
	if err := os.Rename(src.ServerPath, destPath); err != nil {
		return beeberror.FromOS(err)
	}
	if fileExists(src.ServerPath + ".inf") {
		_ = os.Rename(src.ServerPath+".inf", destPath+".inf")
	}
	return nil
}

func (t *Type) SetAttr(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN, attrStr string) error {
	obj, err := t.GetObject(ctx, v, fqn, false)
	if err != nil {
		return err
	}
	if obj == nil {
		return beeberror.Default(beeberror.KindFileNotFound)
	}
	switch strings.ToUpper(strings.TrimSpace(attrStr)) {
	case "":
		obj.Attr = 0
	case "L":
		obj.Attr = infcodec.AttrLocked
	default:
		return beeberror.Default(beeberror.KindBadAttribute)
	}
	return t.WriteMeta(ctx, v, obj)
}

// ReadInfo renders the same load/exec/size/L line SetAttr's counterpart
// writes to the .inf sidecar, the way *INFO echoes a DFS *INFO listing.
func (t *Type) ReadInfo(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) (string, error) {
	obj, err := t.GetObject(ctx, v, fqn, false)
	if err != nil {
		return "", err
	}
	if obj == nil {
		return "", beeberror.Default(beeberror.KindFileNotFound)
	}
	size, err := fileSize(obj.ServerPath)
	if err != nil {
		return "", beeberror.FromOS(err)
	}
	info := infcodec.Info{
		BBCName: hostFilename(obj.FQN.Dir, obj.FQN.Name),
		Load:    obj.Load, Exec: obj.Exec,
		Size: size, HasSize: true,
		Attr: obj.Attr,
	}
	return strings.TrimRight(string(infcodec.Format(info, infcodec.StyleDFS)), "\n"), nil
}

func fileSize(path string) (uint32, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint32(fi.Size()), nil
}

// Locate searches every drive 0-7 for namePattern, since DFS's flat
// per-drive layout already lets FindObjects wildcard across every dir
// within one drive; Locate just repeats that across every drive.
func (t *Type) Locate(ctx context.Context, v *volume.Volume, namePattern string) ([]*volume.FSObject, error) {
	var out []*volume.FSObject
	for drive := byte('0'); drive <= '7'; drive++ {
		found, err := t.FindObjects(ctx, v, bbcpath.FQN{
			FilePath: bbcpath.FilePath{Volume: v.Name, Drive: string(drive), Dir: "*"},
			Name:     namePattern,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (t *Type) WriteMeta(ctx context.Context, v *volume.Volume, obj *volume.FSObject) error {
	info := infcodec.Info{BBCName: hostFilename(obj.FQN.Dir, obj.FQN.Name), Load: obj.Load, Exec: obj.Exec, Attr: obj.Attr}
	if err := infcodec.WriteSidecar(obj.ServerPath, info, infcodec.StyleDFS); err != nil {
		return beeberror.FromOS(err)
	}
	return nil
}

func (t *Type) Create(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN, load, exec uint32) (*volume.FSObject, error) {
	if len(fqn.Dir) != maxDirLen {
		return nil, beeberror.Default(beeberror.KindBadDir)
	}
	dir := driveDir(v, fqn.Drive)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, beeberror.FromOS(err)
	}
	hostPath := filepath.Join(dir, hostFilename(fqn.Dir, fqn.Name))
	if err := infcodec.MustNotExist(hostPath); err != nil {
		return nil, beeberror.Default(beeberror.KindExists)
	}
	if err := os.WriteFile(hostPath, nil, 0644); err != nil {
		return nil, beeberror.FromOS(err)
	}
	obj := &volume.FSObject{ServerPath: hostPath, FQN: fqn, Load: load, Exec: exec, Type: volume.ObjectFile}
	if err := t.WriteMeta(ctx, v, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (t *Type) Cat(ctx context.Context, v *volume.Volume, dirPath bbcpath.FilePath) ([]*volume.FSObject, string, error) {
	found, err := t.FindObjects(ctx, v, bbcpath.FQN{FilePath: dirPath, Name: "*"})
	if err != nil {
		return nil, "", err
	}
	title := readTitle(driveDir(v, dirPath.Drive))
	// current dir first, then alphabetic, per §4.4.1.
	sortCatEntries(found, dirPath.Dir)
	return found, title, nil
}

func sortCatEntries(objs []*volume.FSObject, currentDir string) {
	for i := 1; i < len(objs); i++ {
		j := i
		for j > 0 && catLess(objs[j], objs[j-1], currentDir) {
			objs[j], objs[j-1] = objs[j-1], objs[j]
			j--
		}
	}
}

func catLess(a, b *volume.FSObject, currentDir string) bool {
	aCur := a.FQN.Dir == currentDir
	bCur := b.FQN.Dir == currentDir
	if aCur != bCur {
		return aCur
	}
	if a.FQN.Dir != b.FQN.Dir {
		return a.FQN.Dir < b.FQN.Dir
	}
	return a.FQN.Name < b.FQN.Name
}

func readTitle(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, ".title"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (t *Type) BootOption(ctx context.Context, v *volume.Volume, drive string) (byte, error) {
	data, err := os.ReadFile(filepath.Join(driveDir(v, drive), ".opt4"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, beeberror.FromOS(err)
	}
	if len(data) == 0 {
		return 0, nil
	}
	opt := data[0]
	if opt > 3 {
		return 0, fmt.Errorf("dfs: bad boot option byte %d", opt)
	}
	return opt, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var _ volume.Type = (*Type)(nil)

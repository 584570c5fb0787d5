// Package tubehost implements the TubeHost filing-system-type adapter
// (§4.4.3): a 10-drive "disk changer" over a folder/disk host hierarchy,
// modelled the way rclone's backend/combine mounts several named upstream
// remotes under one root and backend/union tracks which upstream currently
// answers for a path — here the "upstream" a drive slot answers with is
// whichever disk directory was last *DIN-serted into it, and that mapping
// is persisted to disk so it survives a server restart.
package tubehost

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/infcodec"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

const (
	maxNameLen  = 10
	numSlots    = 10 // drives "0".."9"
	librarySlot = "L"
	stateFile   = ".tubehost-state.json"
	libraryDir  = "_Library"
)

// slotState records what is inserted into one drive slot: either a disk
// living inside a folder, or (for the library slot) a folder mounted
// directly as a disk.
type slotState struct {
	Folder    string `json:"folder,omitempty"`
	Disk      string `json:"disk"`
	IsLibrary bool   `json:"isLibrary,omitempty"`
}

type diskState struct {
	CurrentFolder string               `json:"currentFolder"`
	Slots         map[string]slotState `json:"slots"`
}

// Type implements volume.Type for TubeHost volumes, plus the Changer
// capability (§4.4.3's *DIN/*DOUT/*DCAT/*HCF family) that the dispatcher
// reaches for with a type assertion, the way rclone callers assert for
// fs.Mover or fs.Copier only where a backend advertises the capability.
type Type struct {
	mu     sync.Mutex
	states map[string]*diskState // keyed by volume.Path
}

func New() *Type { return &Type{states: map[string]*diskState{}} }

func (t *Type) Name() string { return "TubeHost" }

func statePath(v *volume.Volume) string { return filepath.Join(v.Path, stateFile) }

func isSlotName(s string) bool {
	if s == librarySlot {
		return true
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0 && n < numSlots
}

func folders(v *volume.Volume) ([]string, error) {
	entries, err := os.ReadDir(v.Path)
	if err != nil {
		return nil, beeberror.FromOS(err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.EqualFold(e.Name(), libraryDir) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func findLibraryDir(v *volume.Volume) (string, bool) {
	entries, err := os.ReadDir(v.Path)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), libraryDir) {
			return e.Name(), true
		}
	}
	return "", false
}

// disksIn lists the disk subdirectories of folder. It does not interpret
// their names; diskPrefix extracts a leading integer prefix.
func disksIn(v *volume.Volume, folder string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(filepath.Join(v.Path, folder))
	if err != nil {
		return nil, beeberror.FromOS(err)
	}
	var out []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e)
		}
	}
	return out, nil
}

func diskPrefix(name string) (int, bool) {
	idx := strings.IndexByte(name, '.')
	if idx <= 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:idx])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// loadState reads persisted slot/folder state for v, initialising and
// auto-mounting on first access the way the original server auto-inserts
// prefixed disks and the library folder at startup.
func (t *Type) loadState(v *volume.Volume) (*diskState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[v.Path]; ok {
		return s, nil
	}

	s := &diskState{Slots: map[string]slotState{}}
	data, err := os.ReadFile(statePath(v))
	if err == nil {
		if jsonErr := json.Unmarshal(data, s); jsonErr != nil {
			return nil, beeberror.Wrap(beeberror.KindDiscFault, "corrupt tubehost state", jsonErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, beeberror.FromOS(err)
	} else {
		if err := t.autoMount(v, s); err != nil {
			return nil, err
		}
	}
	t.states[v.Path] = s
	return s, nil
}

func (t *Type) autoMount(v *volume.Volume, s *diskState) error {
	names, err := folders(v)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		s.CurrentFolder = names[0]
		entries, err := disksIn(v, s.CurrentFolder)
		if err != nil {
			return err
		}
		for _, e := range entries {
			n, ok := diskPrefix(e.Name())
			if !ok || n >= numSlots {
				continue
			}
			slot := strconv.Itoa(n)
			if _, taken := s.Slots[slot]; !taken {
				s.Slots[slot] = slotState{Folder: s.CurrentFolder, Disk: e.Name()}
			}
		}
	}
	if libDir, ok := findLibraryDir(v); ok {
		s.Slots[librarySlot] = slotState{Disk: libDir, IsLibrary: true}
	}
	return nil
}

func (t *Type) saveState(v *volume.Volume, s *diskState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return beeberror.Wrap(beeberror.KindDiscFault, "encode tubehost state", err)
	}
	if err := os.WriteFile(statePath(v), data, 0644); err != nil {
		return beeberror.FromOS(err)
	}
	return nil
}

func diskPath(v *volume.Volume, s slotState) string {
	if s.IsLibrary {
		return filepath.Join(v.Path, s.Disk)
	}
	return filepath.Join(v.Path, s.Folder, s.Disk)
}

func (t *Type) diskDir(v *volume.Volume, drive string) (string, error) {
	s, err := t.loadState(v)
	if err != nil {
		return "", err
	}
	slot, ok := s.Slots[drive]
	if !ok {
		return "", beeberror.Default(beeberror.KindDriveEmpty)
	}
	return diskPath(v, slot), nil
}

// --- volume.Type ---

func (t *Type) ParseFile(cur bbcpath.FilePath, s string) (bbcpath.FQN, error) {
	volName, volExplicit, rest := bbcpath.SplitVolume(s)
	drive, driveExplicit, rest := bbcpath.SplitDrive(rest)
	comps := bbcpath.SplitComponents(rest)
	if len(comps) != 1 || comps[0] == "" {
		return bbcpath.FQN{}, beeberror.Default(beeberror.KindBadName)
	}
	name := comps[0]
	if len(name) > maxNameLen {
		return bbcpath.FQN{}, beeberror.Default(beeberror.KindBadName)
	}
	d := bbcpath.FirstNonEmpty(drive, cur.Drive)
	if d != "" && !isSlotName(d) {
		return bbcpath.FQN{}, beeberror.Default(beeberror.KindBadDrive)
	}
	fp := bbcpath.FilePath{
		Volume: bbcpath.FirstNonEmpty(volName, cur.Volume), VolumeExplicit: volExplicit,
		Drive: d, DriveExplicit: driveExplicit,
		Dir: "$",
	}
	return bbcpath.FQN{FilePath: fp, Name: name}, nil
}

func (t *Type) ParseDir(cur bbcpath.FilePath, s string) (bbcpath.FilePath, error) {
	volName, volExplicit, rest := bbcpath.SplitVolume(s)
	drive, driveExplicit, _ := bbcpath.SplitDrive(rest)
	d := bbcpath.FirstNonEmpty(drive, cur.Drive)
	if d != "" && !isSlotName(d) {
		return bbcpath.FilePath{}, beeberror.Default(beeberror.KindBadDrive)
	}
	return bbcpath.FilePath{
		Volume: bbcpath.FirstNonEmpty(volName, cur.Volume), VolumeExplicit: volExplicit,
		Drive: d, DriveExplicit: driveExplicit,
		Dir: "$",
	}, nil
}

func (t *Type) FindObjects(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) ([]*volume.FSObject, error) {
	dir, err := t.diskDir(v, fqn.Drive)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, beeberror.FromOS(err)
	}
	var out []*volume.FSObject
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".inf") || e.Name() == ".opt4" || e.Name() == ".title" {
			continue
		}
		bbcName := bbcpath.Unescape(e.Name())
		if fqn.Name != "" && !bbcpath.MatchWildcard(fqn.Name, bbcName) {
			continue
		}
		hostPath := filepath.Join(dir, e.Name())
		info, err := infcodec.ReadSidecar(hostPath, e.Name())
		if err != nil {
			return nil, beeberror.FromOS(err)
		}
		out = append(out, &volume.FSObject{
			ServerPath: hostPath,
			FQN:        bbcpath.FQN{FilePath: fqn.FilePath, Name: bbcName},
			Load:       info.Load,
			Exec:       info.Exec,
			Attr:       info.Attr,
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
	if err := os.Remove(obj.ServerPath); err != nil {
		return beeberror.FromOS(err)
	}
	_ = os.Remove(obj.ServerPath + ".inf")
	return nil
}

func (t *Type) Rename(ctx context.Context, v *volume.Volume, oldFQN, newFQN bbcpath.FQN) error {
	obj, err := t.GetObject(ctx, v, oldFQN, false)
	if err != nil {
		return err
	}
	if obj == nil {
		return beeberror.Default(beeberror.KindFileNotFound)
	}
	if obj.Attr&infcodec.AttrLocked != 0 {
		return beeberror.Default(beeberror.KindLocked)
	}
	dir, err := t.diskDir(v, newFQN.Drive)
	if err != nil {
		return err
	}
	newHost := filepath.Join(dir, bbcpath.Escape(newFQN.Name))
	if err := infcodec.MustNotExist(newHost); err != nil {
		return beeberror.Default(beeberror.KindExists)
	}
	if err := os.Rename(obj.ServerPath, newHost); err != nil {
		return beeberror.FromOS(err)
	}
	_ = os.Rename(obj.ServerPath+".inf", newHost+".inf")
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
	var attr uint8
	for _, c := range strings.ToUpper(attrStr) {
		switch c {
		case 'R':
			attr |= infcodec.AttrRead
		case 'W':
			attr |= infcodec.AttrWrite
		case 'L':
			attr |= infcodec.AttrLocked
		case 'E':
			attr |= infcodec.AttrExecute
		default:
			return beeberror.Default(beeberror.KindBadAttribute)
		}
	}
	obj.Attr = attr
	return t.WriteMeta(ctx, v, obj)
}

// ReadInfo renders the same RWLE attribute line ADFS-style volumes do,
// since TubeHost disks share ADFS's .inf sidecar style (WriteMeta below
// writes infcodec.StyleADFS).
func (t *Type) ReadInfo(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) (string, error) {
	obj, err := t.GetObject(ctx, v, fqn, false)
	if err != nil {
		return "", err
	}
	if obj == nil {
		return "", beeberror.Default(beeberror.KindFileNotFound)
	}
	fi, err := os.Stat(obj.ServerPath)
	if err != nil {
		return "", beeberror.FromOS(err)
	}
	info := infcodec.Info{
		BBCName: obj.FQN.Name,
		Load:    obj.Load, Exec: obj.Exec,
		Size: uint32(fi.Size()), HasSize: true,
		Attr: obj.Attr,
	}
	return strings.TrimRight(string(infcodec.Format(info, infcodec.StyleADFS)), "\n"), nil
}

// Locate searches every drive slot 0-9 plus the library slot, skipping any
// slot with nothing inserted.
func (t *Type) Locate(ctx context.Context, v *volume.Volume, namePattern string) ([]*volume.FSObject, error) {
	slots := make([]string, 0, numSlots+1)
	for i := 0; i < numSlots; i++ {
		slots = append(slots, strconv.Itoa(i))
	}
	slots = append(slots, librarySlot)

	var out []*volume.FSObject
	for _, slot := range slots {
		found, err := t.FindObjects(ctx, v, bbcpath.FQN{FilePath: bbcpath.FilePath{Volume: v.Name, Drive: slot}, Name: namePattern})
		if err != nil {
			if beeberror.Is(err, beeberror.KindDriveEmpty) {
				continue
			}
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (t *Type) WriteMeta(ctx context.Context, v *volume.Volume, obj *volume.FSObject) error {
	info := infcodec.Info{BBCName: obj.FQN.Name, Load: obj.Load, Exec: obj.Exec, Attr: obj.Attr}
	if err := infcodec.WriteSidecar(obj.ServerPath, info, infcodec.StyleADFS); err != nil {
		return beeberror.FromOS(err)
	}
	return nil
}

func (t *Type) Create(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN, load, exec uint32) (*volume.FSObject, error) {
	dir, err := t.diskDir(v, fqn.Drive)
	if err != nil {
		return nil, err
	}
	hostPath := filepath.Join(dir, bbcpath.Escape(fqn.Name))
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

func (t *Type) Cat(ctx context.Context, v *volume.Volume, dir bbcpath.FilePath) ([]*volume.FSObject, string, error) {
	found, err := t.FindObjects(ctx, v, bbcpath.FQN{FilePath: dir, Name: "*"})
	if err != nil {
		if beeberror.Is(err, beeberror.KindDriveEmpty) {
			return nil, "", err
		}
		return nil, "", err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].FQN.Name < found[j].FQN.Name })
	return found, "", nil
}

func (t *Type) BootOption(ctx context.Context, v *volume.Volume, drive string) (byte, error) {
	dir, err := t.diskDir(v, drive)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Join(dir, ".opt4"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, beeberror.FromOS(err)
	}
	if len(data) == 0 {
		return 0, nil
	}
	return data[0] & 3, nil
}

var _ volume.Type = (*Type)(nil)

// --- Changer capability, TubeHost-specific §4.4.3 *D*/*H* commands ---

type Changer interface {
	Folders(ctx context.Context, v *volume.Volume) ([]string, error)
	CurrentFolder(ctx context.Context, v *volume.Volume) (string, error)
	SetFolder(ctx context.Context, v *volume.Volume, folder string) error
	ListDisks(ctx context.Context, v *volume.Volume) ([]string, error)
	Insert(ctx context.Context, v *volume.Volume, drive, diskName string) error
	Eject(ctx context.Context, v *volume.Volume, drive string) error
	CreateDisk(ctx context.Context, v *volume.Volume, diskName string) error
}

func (t *Type) Folders(ctx context.Context, v *volume.Volume) ([]string, error) {
	return folders(v)
}

func (t *Type) CurrentFolder(ctx context.Context, v *volume.Volume) (string, error) {
	s, err := t.loadState(v)
	if err != nil {
		return "", err
	}
	return s.CurrentFolder, nil
}

func (t *Type) SetFolder(ctx context.Context, v *volume.Volume, folder string) error {
	s, err := t.loadState(v)
	if err != nil {
		return err
	}
	if !fileExists(filepath.Join(v.Path, folder)) {
		return beeberror.Default(beeberror.KindFileNotFound)
	}
	t.mu.Lock()
	s.CurrentFolder = folder
	t.mu.Unlock()
	return t.saveState(v, s)
}

func (t *Type) ListDisks(ctx context.Context, v *volume.Volume) ([]string, error) {
	s, err := t.loadState(v)
	if err != nil {
		return nil, err
	}
	entries, err := disksIn(v, s.CurrentFolder)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (t *Type) Insert(ctx context.Context, v *volume.Volume, drive, diskName string) error {
	if !isSlotName(drive) {
		return beeberror.Default(beeberror.KindBadDrive)
	}
	s, err := t.loadState(v)
	if err != nil {
		return err
	}
	if !fileExists(filepath.Join(v.Path, s.CurrentFolder, diskName)) {
		return beeberror.Default(beeberror.KindFileNotFound)
	}
	t.mu.Lock()
	s.Slots[drive] = slotState{Folder: s.CurrentFolder, Disk: diskName}
	t.mu.Unlock()
	return t.saveState(v, s)
}

func (t *Type) Eject(ctx context.Context, v *volume.Volume, drive string) error {
	if !isSlotName(drive) {
		return beeberror.Default(beeberror.KindBadDrive)
	}
	s, err := t.loadState(v)
	if err != nil {
		return err
	}
	t.mu.Lock()
	delete(s.Slots, drive)
	t.mu.Unlock()
	return t.saveState(v, s)
}

func (t *Type) CreateDisk(ctx context.Context, v *volume.Volume, diskName string) error {
	s, err := t.loadState(v)
	if err != nil {
		return err
	}
	dir := filepath.Join(v.Path, s.CurrentFolder, diskName)
	if fileExists(dir) {
		return beeberror.Default(beeberror.KindExists)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return beeberror.FromOS(err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

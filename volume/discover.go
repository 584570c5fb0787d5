package volume

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
)

// Discoverer scans configured host roots for volumes, the way rclone's
// fstest/ helpers and backend/local walk a directory tree; unlike rclone
// there is no discovery cache (§5): every call rescans, because volumes can
// appear and disappear out of band.
type Discoverer struct {
	Roots         []string // DFS/ADFS roots: recursively scanned for "0" subdirectories
	PCRoots       []string // each entry is itself one PC volume
	TubeHostRoots []string // each entry is itself one TubeHost volume

	DFSType      Type
	ADFSType     Type
	PCType       Type
	TubeHostType Type
}

// Discover walks every configured root and returns every volume found,
// deduplicated by host path.
func (d *Discoverer) Discover(ctx context.Context) ([]*Volume, error) {
	var out []*Volume
	seen := map[string]bool{}

	add := func(v *Volume) {
		if v == nil || seen[v.Path] {
			return
		}
		seen[v.Path] = true
		out = append(out, v)
	}

	for _, root := range d.Roots {
		found, err := d.walk(root)
		if err != nil {
			return nil, err
		}
		for _, v := range found {
			add(v)
		}
	}
	for _, root := range d.PCRoots {
		if isIgnored(root) {
			continue
		}
		add(&Volume{Path: abs(root), Name: displayName(root), Type: d.PCType})
	}
	for _, root := range d.TubeHostRoots {
		if isIgnored(root) {
			continue
		}
		add(&Volume{Path: abs(root), Name: displayName(root), Type: d.TubeHostType})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// walk recursively scans root (and its subdirectories) for DFS/ADFS
// volumes: a directory containing a "0" subdirectory is a volume; a
// ".beeblink-ignore" file in any directory skips its subtree.
func (d *Discoverer) walk(root string) ([]*Volume, error) {
	var out []*Volume
	var rec func(dir string) error
	rec = func(dir string) error {
		if isIgnored(dir) {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		hasDriveZero := false
		var subdirs []string
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if e.Name() == "0" {
				hasDriveZero = true
			}
			subdirs = append(subdirs, filepath.Join(dir, e.Name()))
		}
		if hasDriveZero {
			t := d.DFSType
			if fileExists(filepath.Join(dir, ".adfs")) {
				t = d.ADFSType
			}
			out = append(out, &Volume{Path: abs(dir), Name: displayName(dir), Type: t})
			return nil // a volume's own drive subdirectories are not themselves scanned for nested volumes
		}
		for _, sub := range subdirs {
			if err := rec(sub); err != nil {
				return err
			}
		}
		return nil
	}
	if err := rec(root); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByName resolves a (possibly wildcarded) volume name against the
// discovered set. Zero matches is reported by the caller (it depends on
// context whether that's an error); more than one match is always
// AmbiguousName territory, left to the caller as well since the exact BBC
// error differs by call site.
func FindByName(volumes []*Volume, pattern string) []*Volume {
	var out []*Volume
	for _, v := range volumes {
		if bbcpath.MatchWildcard(pattern, v.Name) {
			out = append(out, v)
		}
	}
	return out
}

func isIgnored(dir string) bool {
	return fileExists(filepath.Join(dir, ".beeblink-ignore"))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func displayName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, ".volume"))
	if err == nil {
		name := strings.TrimSpace(string(data))
		if name != "" {
			return name
		}
	}
	return filepath.Base(dir)
}

func abs(dir string) string {
	a, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return a
}

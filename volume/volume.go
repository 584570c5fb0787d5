// Package volume defines the Volume model and the filing-system-type
// capability interface that every on-disk layout adapter (DFS, ADFS,
// TubeHost, PC) implements. The façade in package vfs routes every
// operation through this interface and never downcasts to a concrete
// adapter type, the way rclone's fs.Fs interface lets operations/ treat
// every backend identically and reach for optional capability interfaces
// (fs.Mover, fs.Copier, ...) only when a backend advertises them via
// Features().
package volume

import (
	"context"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
)

// ObjectType distinguishes a file from a directory, mirroring the BBC
// OSFILE/OSFIND file-type byte (0 = not found, 1 = file, 2 = dir).
type ObjectType int

const (
	ObjectNone ObjectType = iota
	ObjectFile
	ObjectDir
)

// FSObject is a discovered on-disk entity: the result of FindObjects,
// GetObject or a *CAT listing.
type FSObject struct {
	ServerPath string // absolute host path
	FQN        bbcpath.FQN
	Load       uint32
	Exec       uint32
	Attr       uint8
	Type       ObjectType
}

// Volume is a root directory on the host filesystem containing one BBC
// "disc". Two volumes are equal iff their host paths are equal, regardless
// of display name.
type Volume struct {
	Path     string // absolute host path
	Name     string // display name
	Type     Type
	ReadOnly bool
}

// Equal compares volumes by host path, per the volume-uniqueness invariant.
func (v *Volume) Equal(other *Volume) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.Path == other.Path
}

// Type is the capability interface every filing-system-type adapter
// implements. The façade passes a *Volume (which carries a Type) and never
// needs to know which concrete adapter backs it.
type Type interface {
	// Name is the adapter's identifying tag: "DFS", "ADFS", "TubeHost", "PC".
	Name() string

	// ParseFile decodes a (possibly wildcarded) file specifier relative to
	// cur, producing a fully-qualified name. It does not touch disk.
	ParseFile(cur bbcpath.FilePath, s string) (bbcpath.FQN, error)

	// ParseDir decodes a directory specifier relative to cur.
	ParseDir(cur bbcpath.FilePath, s string) (bbcpath.FilePath, error)

	// FindObjects returns every on-disk object matching fqn, expanding any
	// wildcards present in fqn.Name (and, for hierarchical layouts, in any
	// directory component).
	FindObjects(ctx context.Context, v *Volume, fqn bbcpath.FQN) ([]*FSObject, error)

	// GetObject is the exactly-one-or-none variant of FindObjects.
	// None of the adapters enforces wildcardsOK: a wildcarded fqn.Name is
	// matched whether it is true or false, and if more than one object
	// matches, the result is AmbiguousName.
	GetObject(ctx context.Context, v *Volume, fqn bbcpath.FQN, wildcardsOK bool) (*FSObject, error)

	// Delete removes an on-disk object (and its .inf sidecar, if any).
	Delete(ctx context.Context, v *Volume, fqn bbcpath.FQN) error

	// Rename moves an object within the same volume. The target must not
	// already exist.
	Rename(ctx context.Context, v *Volume, oldFQN, newFQN bbcpath.FQN) error

	// SetAttr parses and applies an FS-type-specific attribute string.
	SetAttr(ctx context.Context, v *Volume, fqn bbcpath.FQN, attrStr string) error

	// ReadInfo renders the same FS-type-specific metadata SetAttr parses
	// (load/exec address, size, attribute string) as a single display line,
	// the way *INFO/*EX print it back to the user.
	ReadInfo(ctx context.Context, v *Volume, fqn bbcpath.FQN) (string, error)

	// Locate searches the whole volume (every drive, every directory, not
	// just the caller's current one) for objects whose name matches
	// namePattern, for *LOCATE.
	Locate(ctx context.Context, v *Volume, namePattern string) ([]*FSObject, error)

	// Cat lists the contents of dir for *CAT, returning the objects and a
	// title string (the boot-option/title line layouts display above the
	// listing, or "" if the layout has none).
	Cat(ctx context.Context, v *Volume, dir bbcpath.FilePath) (objects []*FSObject, title string, err error)

	// BootOption returns the boot option (0-3) for the given drive.
	BootOption(ctx context.Context, v *Volume, drive string) (byte, error)

	// Create materialises a new, empty file on disk ready to receive
	// contents (used by OSFILE SAVE/CREATE). It must fail if the target
	// already exists.
	Create(ctx context.Context, v *Volume, fqn bbcpath.FQN, load, exec uint32) (*FSObject, error)

	// WriteMeta updates load/exec/attr for an existing on-disk object
	// without touching its content.
	WriteMeta(ctx context.Context, v *Volume, obj *FSObject) error
}

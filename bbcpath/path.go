// Package bbcpath implements the nominal path types and name grammar shared
// by every filing-system type adapter: the volume/drive/dir/name tuple the
// BBC issues on the wire, BBC name escaping onto the host filesystem, and
// ambiguous-file-specifier (AFSP) wildcard matching.
//
// FilePath and FQN are kept as distinct opaque structs with no implicit
// conversion between "this came off the wire, partially defaulted" and "this
// is a complete, resolved name" the way the design notes call for — callers
// that need one and have the other must say so explicitly by constructing
// a new value, which has caught real bugs where a partially defaulted path
// was used as if it were already fully resolved.
package bbcpath

import (
	"fmt"
	"strings"
)

// FilePath is a volume/drive/dir triple. Each component may have been
// supplied explicitly on the wire or defaulted from session state; the
// Explicit flags record which, because later logic (e.g. whether the
// library directory participates in a search) depends on it.
type FilePath struct {
	Volume         string
	VolumeExplicit bool
	Drive          string
	DriveExplicit  bool
	Dir            string
	DirExplicit    bool
}

// FQN is a FilePath plus a leaf name: a fully-qualified name that,
// module ambiguity, identifies at most one on-disk object.
type FQN struct {
	FilePath
	Name string
}

func (f FQN) String() string {
	return fmt.Sprintf("::%s:%s.%s.%s", f.Volume, f.Drive, f.Dir, f.Name)
}

// SplitVolume recognises a leading "::name" volume selector terminated by
// ':' or '/', per §4.3's volume-parsing rule. It returns the remainder of
// the string with the selector removed.
func SplitVolume(s string) (volume string, explicit bool, rest string) {
	if !strings.HasPrefix(s, "::") {
		return "", false, s
	}
	s = s[2:]
	idx := strings.IndexAny(s, ":/")
	if idx < 0 {
		return s, true, ""
	}
	return s[:idx], true, s[idx+1:]
}

// SplitDrive recognises a leading ":drive." or ":drive" selector.
func SplitDrive(s string) (drive string, explicit bool, rest string) {
	if !strings.HasPrefix(s, ":") {
		return "", false, s
	}
	s = s[1:]
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return s, true, ""
	}
	return s[:idx], true, s[idx+1:]
}

// FirstNonEmpty returns a if it is non-empty, else b. It is used to apply
// session defaults to a partially-specified FilePath component.
func FirstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// SplitComponents splits the remaining dir/name portion of an FSP on '.'.
// An empty string yields no components (a nil slice), which callers treat
// as "nothing supplied".
func SplitComponents(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// Package infcodec implements the ".inf" sidecar metadata format: the
// external representation that preserves BBC-visible load address, exec
// address and lock/attribute bits for every file stored on the host
// filesystem, the way rclone's backend/local/metadata.go preserves
// BBC-irrelevant but host-relevant metadata (mtime, xattrs) alongside a
// plain file.
package infcodec

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Attribute bits, as used by the ADFS "RWLE" attribute string. DFS only
// ever sets Locked.
const (
	AttrRead    = 1 << 0
	AttrWrite   = 1 << 1
	AttrLocked  = 1 << 2
	AttrExecute = 1 << 3
)

// Info is the decoded content of a .inf file (or the defaults that apply
// when one is absent).
type Info struct {
	BBCName string
	Load    uint32
	Exec    uint32
	Size    uint32 // 0 if not recorded in the .inf; caller falls back to stat
	HasSize bool
	Attr    uint8
	NoINF   bool // true if there was no .inf, or it was present but empty
}

// DefaultInfo returns the metadata that applies when a file has no (or an
// empty) .inf sidecar.
func DefaultInfo(hostBaseName string) Info {
	return Info{
		BBCName: hostBaseName,
		Load:    0xFFFFFFFF,
		Exec:    0xFFFFFFFF,
		NoINF:   true,
	}
}

// Style selects how a .inf file is serialised back out: DFS spells its BBC
// name as "D.N" (dir dot name) and only ever writes the literal "L"
// attribute token; ADFS spells a bare name and writes a hex RWLE bitmask.
type Style int

const (
	StyleDFS Style = iota
	StyleADFS
)

// Parse decodes the content of a .inf file. An empty (or all-whitespace)
// body yields DefaultInfo, with NoINF set.
func Parse(data []byte, hostBaseName string) (Info, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return DefaultInfo(hostBaseName), nil
	}
	line := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		line = text[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Info{}, fmt.Errorf("infcodec: malformed .inf line %q", line)
	}
	info := Info{BBCName: fields[0]}
	var err error
	info.Load, err = parseHexAddress(fields[1])
	if err != nil {
		return Info{}, fmt.Errorf("infcodec: bad load address %q: %w", fields[1], err)
	}
	info.Exec, err = parseHexAddress(fields[2])
	if err != nil {
		return Info{}, fmt.Errorf("infcodec: bad exec address %q: %w", fields[2], err)
	}
	// [<sizeHex>] [<attr>|CRC=…] follow positionally: a size field, if
	// present, always comes before the attribute field. A lone bare hex
	// token of one or two digits is the attribute bitmask (the form Format
	// writes for ADFS when there is no size), not a size.
	rest := fields[3:]
	if len(rest) > 0 && !isAttrToken(rest[0]) && (len(rest) > 1 || len(rest[0]) > 2) {
		v, err := strconv.ParseUint(rest[0], 16, 32)
		if err != nil {
			return Info{}, fmt.Errorf("infcodec: bad size %q: %w", rest[0], err)
		}
		info.Size = uint32(v)
		info.HasSize = true
		rest = rest[1:]
	}
	if len(rest) > 0 {
		if err := parseAttrToken(rest[0], &info); err != nil {
			return Info{}, err
		}
	}
	return info, nil
}

// isAttrToken reports whether tok looks like an attribute token (the
// literal "L", a CRC=... annotation, or a bare hex bitmask) rather than a
// size field. Since both a size and an attribute can be a bare hex number,
// this only needs to recognise the unambiguous non-numeric forms; a bare
// hex token is handled by position and length in Parse.
func isAttrToken(tok string) bool {
	return strings.EqualFold(tok, "L") || strings.HasPrefix(strings.ToUpper(tok), "CRC=")
}

func parseAttrToken(tok string, info *Info) error {
	switch {
	case strings.HasPrefix(strings.ToUpper(tok), "CRC="):
		return nil // ignored
	case strings.EqualFold(tok, "L"):
		info.Attr = AttrLocked
		return nil
	default:
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return fmt.Errorf("infcodec: bad attribute %q: %w", tok, err)
		}
		info.Attr = uint8(v)
		return nil
	}
}

// parseHexAddress parses a bare hex address. A 6-digit value whose top byte
// is FF sign-extends to a full 32-bit value, to accept legacy DFS *INFO
// output (which prints 32-bit addresses as FFxxxx for pseudo-negative /
// top-of-memory addresses).
func parseHexAddress(tok string) (uint32, error) {
	v, err := strconv.ParseUint(tok, 16, 64)
	if err != nil {
		return 0, err
	}
	if len(tok) == 6 && strings.HasPrefix(strings.ToUpper(tok), "FF") {
		return 0xFF000000 | uint32(v), nil
	}
	return uint32(v), nil
}

// Format serialises info for writing to a .inf file, always terminated with
// a single "\n", on every host platform.
func Format(info Info, style Style) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %06X %06X", info.BBCName, info.Load, info.Exec)
	if info.HasSize {
		fmt.Fprintf(&sb, " %06X", info.Size)
	}
	switch style {
	case StyleDFS:
		if info.Attr&AttrLocked != 0 {
			sb.WriteString(" L")
		}
	case StyleADFS:
		if info.Attr != 0 {
			fmt.Fprintf(&sb, " %02X", info.Attr)
		}
	}
	sb.WriteString("\n")
	return []byte(sb.String())
}

// sidecarPath returns the .inf path for a host file path.
func sidecarPath(hostPath string) string { return hostPath + ".inf" }

// ReadSidecar reads and parses the .inf file next to hostPath, if any.
func ReadSidecar(hostPath, hostBaseName string) (Info, error) {
	data, err := os.ReadFile(sidecarPath(hostPath))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultInfo(hostBaseName), nil
		}
		return Info{}, err
	}
	return Parse(data, hostBaseName)
}

// WriteSidecar writes info to the .inf file next to hostPath.
func WriteSidecar(hostPath string, info Info, style Style) error {
	return os.WriteFile(sidecarPath(hostPath), Format(info, style), 0644)
}

// MustNotExist enforces the invariant that creating a new file at hostPath
// requires that neither the host file nor its .inf counterpart already
// exists.
func MustNotExist(hostPath string) error {
	if _, err := os.Lstat(hostPath); err == nil {
		return fmt.Errorf("infcodec: %s already exists", hostPath)
	} else if !os.IsNotExist(err) {
		return err
	}
	if _, err := os.Lstat(sidecarPath(hostPath)); err == nil {
		return fmt.Errorf("infcodec: %s already exists", sidecarPath(hostPath))
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

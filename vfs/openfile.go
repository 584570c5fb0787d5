package vfs

import "github.com/tom-seddon/beeblink-sub000/bbcpath"

// OpenFile is a handle held by the BBC (§3's "OpenFile" data model entry).
// The server keeps its entire content in memory, the way rclone's
// backend/memory keeps a whole object's bytes in a single buffer rather
// than streaming — appropriate here since every file is capped at 16 MB.
type OpenFile struct {
	ServerPath string
	FQN        bbcpath.FQN
	Read       bool
	Write      bool
	Text       bool

	contents []byte
	ptr      uint32
	eof      bool
	dirty    bool
}

// Size returns the current content length.
func (f *OpenFile) Size() uint32 { return uint32(len(f.contents)) }

// Ptr returns the current byte cursor.
func (f *OpenFile) Ptr() uint32 { return f.ptr }

// Contents returns the in-memory buffer. Callers must not retain a
// reference across a mutating call (BPut, GBPBWrite, SetPtr extension),
// which may reallocate it.
func (f *OpenFile) Contents() []byte { return f.contents }

func normalizeLineEndings(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		switch data[i] {
		case 0x0D:
			out = append(out, 0x0D)
			if i+1 < len(data) && data[i+1] == 0x0A {
				i += 2
			} else {
				i++
			}
		case 0x0A:
			out = append(out, 0x0D)
			if i+1 < len(data) && data[i+1] == 0x0D {
				i += 2
			} else {
				i++
			}
		default:
			out = append(out, data[i])
			i++
		}
	}
	return out
}

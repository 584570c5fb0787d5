// Package vfs is the filing-system façade (§4.3): the single entry point
// the dispatcher calls into for every OSFILE/OSFIND/OSGBPB/OSBGET/OSBPUT/
// OSARGS operation. It never downcasts to a concrete FS-type adapter —
// every layout-specific decision is delegated to the volume's volume.Type,
// the way rclone's vfs package drives any fs.Fs identically through the
// Fs/Object interfaces and never imports a specific backend.
package vfs

import (
	"context"
	"os"
	"sync"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

// MaxFileSize is the 24-bit BBC size limit (§3).
const MaxFileSize = 0xFFFFFF

// DefaultAttr is the attribute block OSFILE LOAD reports for a freshly
// saved file with no explicit attribute set (invariant #3, §8).
const DefaultAttr = 0

// Facade is the shared, process-wide filing-system façade. One Facade
// serves every session; the single-writer invariant is enforced here
// because it spans sessions, not per-session state.
type Facade struct {
	mu           sync.Mutex
	openForWrite map[string]bool // server path -> true while a write handle is open
}

func NewFacade() *Facade {
	return &Facade{openForWrite: map[string]bool{}}
}

// ParseFile/ParseDir simply delegate to the volume's FS-type adapter; the
// façade adds no behaviour of its own beyond giving the dispatcher one
// place to call regardless of which adapter backs v.
func (fc *Facade) ParseFile(v *volume.Volume, cur bbcpath.FilePath, s string) (bbcpath.FQN, error) {
	return v.Type.ParseFile(cur, s)
}

func (fc *Facade) ParseDir(v *volume.Volume, cur bbcpath.FilePath, s string) (bbcpath.FilePath, error) {
	return v.Type.ParseDir(cur, s)
}

func (fc *Facade) FindObjects(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) ([]*volume.FSObject, error) {
	return v.Type.FindObjects(ctx, v, fqn)
}

func (fc *Facade) GetObject(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN, wildcardsOK bool) (*volume.FSObject, error) {
	return v.Type.GetObject(ctx, v, fqn, wildcardsOK)
}

func (fc *Facade) Delete(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) error {
	return v.Type.Delete(ctx, v, fqn)
}

func (fc *Facade) Rename(ctx context.Context, v *volume.Volume, oldFQN, newFQN bbcpath.FQN) error {
	existing, err := v.Type.GetObject(ctx, v, newFQN, false)
	if err != nil {
		return err
	}
	if existing != nil {
		return beeberror.Default(beeberror.KindExists)
	}
	return v.Type.Rename(ctx, v, oldFQN, newFQN)
}

func (fc *Facade) SetAttr(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN, attrStr string) error {
	return v.Type.SetAttr(ctx, v, fqn, attrStr)
}

func (fc *Facade) ReadInfo(ctx context.Context, v *volume.Volume, fqn bbcpath.FQN) (string, error) {
	return v.Type.ReadInfo(ctx, v, fqn)
}

// LocateResult pairs a matched object with the volume it was found in,
// since a Locate search spans every discovered volume.
type LocateResult struct {
	Volume *volume.Volume
	Object *volume.FSObject
}

// Locate implements §4.3's locate(fqn): a recursive, all-volumes search for
// namePattern, delegating the per-volume walk to each volume's own Type
// (DFS/ADFS/TubeHost each search differently; PC is a flat scan).
func (fc *Facade) Locate(ctx context.Context, disc *volume.Discoverer, namePattern string) ([]LocateResult, error) {
	volumes, err := disc.Discover(ctx)
	if err != nil {
		return nil, beeberror.Wrap(beeberror.KindDiscFault, "volume discovery failed", err)
	}
	var out []LocateResult
	for _, v := range volumes {
		found, err := v.Type.Locate(ctx, v, namePattern)
		if err != nil {
			return nil, err
		}
		for _, obj := range found {
			out = append(out, LocateResult{Volume: v, Object: obj})
		}
	}
	return out, nil
}

func (fc *Facade) Cat(ctx context.Context, v *volume.Volume, dir bbcpath.FilePath) ([]*volume.FSObject, string, error) {
	return v.Type.Cat(ctx, v, dir)
}

func (fc *Facade) BootOption(ctx context.Context, v *volume.Volume, drive string) (byte, error) {
	return v.Type.BootOption(ctx, v, drive)
}

// Open allocates an OpenFile for obj, enforcing the single-writer
// invariant and loading contents into memory. In text mode, textPrefix (if
// non-nil) is prepended, each element one CR-terminated line, and the
// file's own data is run through CR/LF normalisation, with a final CR
// added if its last line lacks one — §4.3's text-mode behaviour.
func (fc *Facade) Open(ctx context.Context, obj *volume.FSObject, read, write, text bool, textPrefix []string) (*OpenFile, error) {
	if write {
		fc.mu.Lock()
		if fc.openForWrite[obj.ServerPath] {
			fc.mu.Unlock()
			return nil, beeberror.Default(beeberror.KindOpen)
		}
		fc.openForWrite[obj.ServerPath] = true
		fc.mu.Unlock()
	}

	data, err := os.ReadFile(obj.ServerPath)
	if err != nil {
		if write {
			fc.mu.Lock()
			delete(fc.openForWrite, obj.ServerPath)
			fc.mu.Unlock()
		}
		return nil, beeberror.FromOS(err)
	}

	if text {
		var sb []byte
		for _, line := range textPrefix {
			sb = append(sb, []byte(line)...)
			sb = append(sb, 0x0D)
		}
		normalized := normalizeLineEndings(data)
		if len(normalized) > 0 && normalized[len(normalized)-1] != 0x0D {
			normalized = append(normalized, 0x0D)
		}
		sb = append(sb, normalized...)
		data = sb
	}

	return &OpenFile{
		ServerPath: obj.ServerPath,
		FQN:        obj.FQN,
		Read:       read,
		Write:      write,
		Text:       text,
		contents:   data,
	}, nil
}

// Flush writes a dirty buffer to disk without closing the handle (used by
// OSARGS's explicit flush subcommand).
func (fc *Facade) Flush(f *OpenFile) error {
	if !f.dirty {
		return nil
	}
	if err := os.WriteFile(f.ServerPath, f.contents, 0644); err != nil {
		return beeberror.FromOS(err)
	}
	f.dirty = false
	return nil
}

// Close flushes (if dirty) and releases any write-lock held by f.
func (fc *Facade) Close(f *OpenFile) error {
	err := fc.Flush(f)
	if f.Write {
		fc.mu.Lock()
		delete(fc.openForWrite, f.ServerPath)
		fc.mu.Unlock()
	}
	return err
}

// BGet reads one byte, per invariant: past EOF sets the sticky flag on the
// first call and raises EOF on the next.
func (fc *Facade) BGet(f *OpenFile) (byte, bool, error) {
	if f.ptr >= uint32(len(f.contents)) {
		if f.eof {
			return 0, false, beeberror.Default(beeberror.KindEOF)
		}
		f.eof = true
		return 0, true, nil
	}
	b := f.contents[f.ptr]
	f.ptr++
	f.eof = false
	return b, false, nil
}

// BPut writes one byte at the cursor, auto-extending the buffer.
func (fc *Facade) BPut(f *OpenFile, b byte) error {
	if !f.Write {
		return beeberror.Default(beeberror.KindNotOpenForUpdate)
	}
	if f.ptr == uint32(len(f.contents)) {
		if len(f.contents) >= MaxFileSize {
			return beeberror.Default(beeberror.KindTooBig)
		}
		f.contents = append(f.contents, b)
	} else {
		f.contents[f.ptr] = b
	}
	f.ptr++
	f.dirty = true
	f.eof = false
	return nil
}

// SetPtr repositions the cursor. A write handle may extend past the
// current size (zero-filling the gap, invariant #6); a read handle raises
// OutsideFile.
func (fc *Facade) SetPtr(f *OpenFile, p uint32) error {
	if p > uint32(len(f.contents)) {
		if !f.Write {
			return beeberror.Default(beeberror.KindOutsideFile)
		}
		if p > MaxFileSize {
			return beeberror.Default(beeberror.KindTooBig)
		}
		extension := make([]byte, p-uint32(len(f.contents)))
		f.contents = append(f.contents, extension...)
		f.dirty = true
	}
	f.ptr = p
	f.eof = false
	return nil
}

// GBPBWrite writes data at the cursor (GBPB ops 1/2), optionally leaving
// the cursor where the caller specified rather than advancing it (op 2).
func (fc *Facade) GBPBWrite(f *OpenFile, data []byte, atPtr uint32, usePtr bool) error {
	if !f.Write {
		return beeberror.Default(beeberror.KindNotOpenForUpdate)
	}
	p := f.ptr
	if usePtr {
		p = atPtr
	}
	end := p + uint32(len(data))
	if end > MaxFileSize {
		return beeberror.Default(beeberror.KindTooBig)
	}
	if end > uint32(len(f.contents)) {
		f.contents = append(f.contents, make([]byte, end-uint32(len(f.contents)))...)
	}
	copy(f.contents[p:end], data)
	f.dirty = true
	if !usePtr {
		f.ptr = end
	}
	return nil
}

// GBPBRead reads up to n bytes at the cursor (GBPB ops 3/4), returning the
// bytes actually available and whether EOF was hit.
func (fc *Facade) GBPBRead(f *OpenFile, n int, atPtr uint32, usePtr bool) ([]byte, bool, error) {
	p := f.ptr
	if usePtr {
		p = atPtr
	}
	if p >= uint32(len(f.contents)) {
		if !usePtr {
			f.ptr = p
		}
		return nil, true, nil
	}
	end := p + uint32(n)
	hitEOF := false
	if end >= uint32(len(f.contents)) {
		end = uint32(len(f.contents))
		hitEOF = true
	}
	out := append([]byte(nil), f.contents[p:end]...)
	if !usePtr {
		f.ptr = end
	}
	return out, hitEOF, nil
}

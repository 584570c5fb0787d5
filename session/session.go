// Package session holds per-link state (§3's lifecycle note, §4.2's file-
// handle table): the current volume/drive/dir, the library directory, and
// the table of open files keyed by a BBC-visible handle number. One
// Session exists per physical link and is torn down on link loss, the way
// each rclone vfs.VFS instance owns its own directory cache independent of
// any other mount.
package session

import (
	"sync"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/vfs"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

// DefaultFirstHandle and DefaultHandleCount give the 0xB0..0xBF range
// SET_FILE_HANDLE_RANGE defaults to (§3).
const (
	DefaultFirstHandle = 0xB0
	DefaultHandleCount = 0x10
)

// Session is single-threaded per link: the dispatcher must hold Mu for the
// duration of one request before touching any field below, mirroring the
// "at most one request in flight per link" rule (§4.2).
type Session struct {
	Mu sync.Mutex

	ID string

	Volume *volume.Volume
	Cur    bbcpath.FilePath // current volume/drive/dir
	Lib    bbcpath.FilePath // library volume/drive/dir

	ServerString string // set by STAR_CAT, read back by the dispatcher

	firstHandle int
	handleCount int
	handles     map[int]*vfs.OpenFile

	PrevDir bbcpath.FilePath // saved by *DIR, swapped with Cur by ADFS *BACK (§4.4.2)
}

func New(id string) *Session {
	return &Session{
		ID:          id,
		firstHandle: DefaultFirstHandle,
		handleCount: DefaultHandleCount,
		handles:     map[int]*vfs.OpenFile{},
	}
}

// SetHandleRange implements SET_FILE_HANDLE_RANGE: changing the range
// closes every currently open file first.
func (s *Session) SetHandleRange(fc *vfs.Facade, first, count int) error {
	err := s.CloseAll(fc)
	s.firstHandle = first
	s.handleCount = count
	s.handles = map[int]*vfs.OpenFile{}
	return err
}

// Allocate reserves the lowest free handle in range and associates f with
// it, returning TooManyOpen if the range is exhausted.
func (s *Session) Allocate(f *vfs.OpenFile) (int, error) {
	for h := s.firstHandle; h < s.firstHandle+s.handleCount; h++ {
		if _, used := s.handles[h]; !used {
			s.handles[h] = f
			return h, nil
		}
	}
	return 0, beeberror.Default(beeberror.KindTooManyOpen)
}

// Get resolves a handle to its OpenFile, or Channel if unknown.
func (s *Session) Get(h int) (*vfs.OpenFile, error) {
	f, ok := s.handles[h]
	if !ok {
		return nil, beeberror.Default(beeberror.KindChannel)
	}
	return f, nil
}

// Close closes a single handle (handle 0 is not accepted here; callers
// route handle 0 to CloseAll per the OSFIND "close(0) closes all" rule).
func (s *Session) Close(fc *vfs.Facade, h int) error {
	f, ok := s.handles[h]
	if !ok {
		return beeberror.Default(beeberror.KindChannel)
	}
	delete(s.handles, h)
	return fc.Close(f)
}

// CloseAll closes every open handle, aggregating any errors into a single
// DataLost the way §4.3 specifies for OSFIND close(0).
func (s *Session) CloseAll(fc *vfs.Facade) error {
	var failed bool
	for h, f := range s.handles {
		if err := fc.Close(f); err != nil {
			failed = true
		}
		delete(s.handles, h)
	}
	if failed {
		return beeberror.Default(beeberror.KindDataLost)
	}
	return nil
}

// Handles returns a snapshot of the open handle numbers, for OSARGS
// "flush all" and diagnostics.
func (s *Session) Handles() []int {
	out := make([]int, 0, len(s.handles))
	for h := range s.handles {
		out = append(out, h)
	}
	return out
}

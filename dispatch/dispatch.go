package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/session"
	"github.com/tom-seddon/beeblink-sub000/transport"
	"github.com/tom-seddon/beeblink-sub000/vfs"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

// Dispatcher owns the opcode table and the link-id-to-Session map (§4.2).
// One Dispatcher serves every link; sessions are created lazily on first
// request and never torn down here — link loss is the transport's job to
// notice and report via Forget.
type Dispatcher struct {
	FC         *vfs.Facade
	Discoverer *volume.Discoverer
	ROM        []byte
	Log        *slog.Logger

	// HandleFirst/HandleCount seed every newly created session's file
	// handle range; zero means use session's own built-in defaults. A
	// client can still move its own range with SET_FILE_HANDLE_RANGE.
	HandleFirst int
	HandleCount int

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New builds a Dispatcher. rom is served verbatim by GET_ROM.
func New(fc *vfs.Facade, disc *volume.Discoverer, rom []byte, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		FC:         fc,
		Discoverer: disc,
		ROM:        rom,
		Log:        log,
		sessions:   map[string]*session.Session{},
	}
}

// SetHandleDefaults overrides the file handle range newly created sessions
// start with, per the server's configured default (§6.1's
// SET_FILE_HANDLE_RANGE lets a client move it later).
func (d *Dispatcher) SetHandleDefaults(first, count int) error {
	if count <= 0 {
		return beeberror.Default(beeberror.KindBadCommand)
	}
	d.HandleFirst = first
	d.HandleCount = count
	return nil
}

// sessionFor resolves or creates the Session for linkID (§4.2 step 1).
func (d *Dispatcher) sessionFor(linkID string) *session.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[linkID]
	if !ok {
		s = session.New(linkID)
		if d.HandleCount > 0 {
			_ = s.SetHandleRange(d.FC, d.HandleFirst, d.HandleCount)
		}
		d.sessions[linkID] = s
	}
	return s
}

// Forget tears down the Session for linkID, best-effort flushing any open
// files, the way §5's "session teardown ... open files ... closed with a
// best-effort flush" note requires.
func (d *Dispatcher) Forget(linkID string) {
	d.mu.Lock()
	s, ok := d.sessions[linkID]
	delete(d.sessions, linkID)
	d.mu.Unlock()
	if ok {
		s.Mu.Lock()
		_ = s.CloseAll(d.FC)
		s.Mu.Unlock()
	}
}

// Dispatch decodes one request packet, invokes its handler and encodes the
// response (§4.2 steps 2-5). A non-nil returned error is always fatal to
// the link (a transport failure, not a filing-system error) — beeberror
// conditions are caught here and turned into an ERROR response packet
// instead of being returned.
func (d *Dispatcher) Dispatch(ctx context.Context, linkID string, req transport.Packet) (transport.Packet, error) {
	s := d.sessionFor(linkID)
	s.Mu.Lock()
	defer s.Mu.Unlock()

	resp, err := d.route(ctx, s, req)
	if err == nil {
		return resp, nil
	}
	if be, ok := err.(*beeberror.Error); ok {
		return transport.Packet{Type: RespError, Payload: errorPayload(be)}, nil
	}
	return transport.Packet{}, err
}

func (d *Dispatcher) route(ctx context.Context, s *session.Session, req transport.Packet) (transport.Packet, error) {
	switch req.Type {
	case ReqGetROM:
		return transport.Packet{Type: RespData, Payload: d.ROM}, nil
	case ReqReset:
		return d.handleReset(s, req.Payload)
	case ReqEchoData:
		return transport.Packet{Type: RespData, Payload: req.Payload}, nil
	case ReqReadString, ReqReadStringVerbose:
		return d.handleReadString(s, req.Payload, req.Type == ReqReadStringVerbose)
	case ReqStarCat:
		return d.handleStarCat(ctx, s, req.Payload)
	case ReqStarRun, ReqStarCommand:
		return d.handleStarCommand(ctx, s, req.Payload, req.Type == ReqStarRun)
	case ReqOSFILE:
		return d.handleOSFILE(ctx, s, req.Payload)
	case ReqOSFINDOpen:
		return d.handleOSFINDOpen(ctx, s, req.Payload)
	case ReqOSFINDClose:
		return d.handleOSFINDClose(s, req.Payload)
	case ReqOSARGS:
		return d.handleOSARGS(s, req.Payload)
	case ReqEOF:
		return d.handleEOF(s, req.Payload)
	case ReqOSBGET:
		return d.handleOSBGET(s, req.Payload)
	case ReqOSBPUT:
		return d.handleOSBPUT(s, req.Payload)
	case ReqOSGBPB:
		return d.handleOSGBPB(ctx, s, req.Payload)
	case ReqOPT:
		return transport.Packet{Type: RespYes}, nil
	case ReqBootOption:
		return d.handleBootOption(ctx, s)
	case ReqSetFileHandleRange:
		return d.handleSetFileHandleRange(s, req.Payload)
	case ReqWrapped:
		return d.handleWrapped(ctx, s, req.Payload)
	case ReqReadDiskImage, ReqWriteDiskImage:
		return transport.Packet{}, beeberror.Default(beeberror.KindNotSupported)
	case ReqVolumeBrowser, ReqSpeedTest:
		// Both sub-protocols are treated as black boxes (§4.2): real
		// servers multiplex a second opcode byte inside the payload, but
		// neither is implemented here, so every call reports Unsupported.
		return transport.Packet{}, beeberror.Default(beeberror.KindNotSupported)
	default:
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
}

func (d *Dispatcher) handleReset(s *session.Session, payload []byte) (transport.Packet, error) {
	if err := s.CloseAll(d.FC); err != nil {
		d.Log.Warn("reset: close-all failed", "link", s.ID, "err", err)
	}
	return transport.Packet{Type: RespYes}, nil
}

// handleReadString drains s.ServerString maxN bytes at a time (§6.1): each
// call consumes and returns the next chunk, the way a paged *CAT listing is
// read back a screenful at a time by the BBC-side client.
func (d *Dispatcher) handleReadString(s *session.Session, payload []byte, verbose bool) (transport.Packet, error) {
	if len(payload) < 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	maxN := int(payload[0])
	if maxN <= 0 {
		maxN = 1
	}
	if s.ServerString == "" {
		return transport.Packet{Type: RespNo}, nil
	}
	n := maxN
	if n > len(s.ServerString) {
		n = len(s.ServerString)
	}
	chunk := s.ServerString[:n]
	s.ServerString = s.ServerString[n:]
	return transport.Packet{Type: RespText, Payload: []byte(chunk)}, nil
}

// handleWrapped implements §6.1's WRAPPED opcode: decode the inner request
// embedded in the payload, dispatch it as if it had arrived directly, and
// re-wrap the inner response behind a size-prefixed DATA envelope.
func (d *Dispatcher) handleWrapped(ctx context.Context, s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 5 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	// payload: maxPayload (4 bytes LE, unused here beyond validation) then
	// the inner packet's own type+payload bytes.
	innerType := payload[4]
	innerPayload := payload[5:]
	inner, err := d.route(ctx, s, transport.Packet{Type: innerType &^ 0x80, Payload: innerPayload})
	if err != nil {
		return transport.Packet{}, err
	}
	out := append([]byte{inner.Type}, putBlock4(uint32(len(inner.Payload)))...)
	out = append(out, inner.Payload...)
	return transport.Packet{Type: RespData, Payload: out}, nil
}

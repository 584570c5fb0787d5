package dispatch

import (
	"context"

	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/session"
	"github.com/tom-seddon/beeblink-sub000/transport"
	"github.com/tom-seddon/beeblink-sub000/vfs"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

// OSFIND open-mode bits in the A register, matching the real 6502 MOS
// convention so a ROM client needs no translation layer of its own.
const (
	osfindModeOutput = 0x40 // OPENOUT: write, create/truncate
	osfindModeInput  = 0x80 // OPENIN: read, must exist
	osfindModeUpdate = 0xC0 // OPENUP: read/write, must exist
)

// handleOSFINDOpen implements OSFIND's open form (§6.1): A selects the
// open mode, the rest of the payload is the CR-terminated name. Opening a
// missing file for input or update yields a zero response handle rather
// than an ERROR packet, matching real MOS OSFIND semantics where "not
// found" is signalled in A=0; every other failure (bad name, file already
// open for writing, no free handle, ...) is returned as an ERROR packet.
func (d *Dispatcher) handleOSFINDOpen(ctx context.Context, s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	mode := payload[0]
	name, _, err := readCRString(payload[1:])
	if err != nil {
		return transport.Packet{}, err
	}
	if s.Volume == nil {
		return transport.Packet{}, beeberror.Errorf(beeberror.KindDiscFault, "No volume")
	}

	read := mode == osfindModeInput || mode == osfindModeUpdate
	write := mode == osfindModeOutput || mode == osfindModeUpdate
	wantNew := mode == osfindModeOutput

	fqn, err := s.Volume.Type.ParseFile(s.Cur, name)
	if err != nil {
		return transport.Packet{}, err
	}
	obj, err := s.Volume.Type.GetObject(ctx, s.Volume, fqn, true)
	if err != nil {
		return transport.Packet{}, err
	}
	if obj == nil {
		if !wantNew {
			return transport.Packet{Type: RespOSFIND, Payload: []byte{0}}, nil
		}
		obj, err = s.Volume.Type.Create(ctx, s.Volume, fqn, 0xFFFFFFFF, 0xFFFFFFFF)
		if err != nil {
			return transport.Packet{}, err
		}
	}
	if obj.Type == volume.ObjectDir {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadName)
	}

	f, err := d.FC.Open(ctx, obj, read, write, false, nil)
	if err != nil {
		return transport.Packet{}, err
	}
	h, err := s.Allocate(f)
	if err != nil {
		_ = d.FC.Close(f)
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespOSFIND, Payload: []byte{byte(h)}}, nil
}

// handleOSFINDClose implements OSFIND's close form: handle 0 closes every
// open file on the session.
func (d *Dispatcher) handleOSFINDClose(s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	h := int(payload[0])
	if h == 0 {
		if err := s.CloseAll(d.FC); err != nil {
			return transport.Packet{}, err
		}
		return transport.Packet{Type: RespOSFIND, Payload: []byte{0}}, nil
	}
	if err := s.Close(d.FC, h); err != nil {
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespOSFIND, Payload: []byte{0}}, nil
}

// OSARGS function codes (payload[0]), per the façade's "get/set pointer or
// size; flush one or all" contract (§4.3).
const (
	osargsGetPtr  = 0
	osargsSetPtr  = 1
	osargsGetSize = 2
	osargsFlush   = 255
)

func (d *Dispatcher) handleOSARGS(s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 6 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	a := payload[0]
	h := int(payload[1])
	arg, err := parseBlock4(payload[2:6])
	if err != nil {
		return transport.Packet{}, err
	}

	if a == osargsFlush {
		if h == 0 {
			for _, hh := range s.Handles() {
				f, getErr := s.Get(hh)
				if getErr != nil {
					continue
				}
				if flushErr := d.FC.Flush(f); flushErr != nil {
					err = flushErr
				}
			}
		} else {
			var f *vfs.OpenFile
			f, err = s.Get(h)
			if err == nil {
				err = d.FC.Flush(f)
			}
		}
		if err != nil {
			return transport.Packet{}, beeberror.Default(beeberror.KindDataLost)
		}
		return transport.Packet{Type: RespOSARGS, Payload: putBlock4(0)}, nil
	}

	f, err := s.Get(h)
	if err != nil {
		return transport.Packet{}, err
	}
	switch a {
	case osargsGetPtr:
		return transport.Packet{Type: RespOSARGS, Payload: putBlock4(f.Ptr())}, nil
	case osargsSetPtr:
		if err := d.FC.SetPtr(f, arg); err != nil {
			return transport.Packet{}, err
		}
		return transport.Packet{Type: RespOSARGS, Payload: putBlock4(f.Ptr())}, nil
	case osargsGetSize:
		return transport.Packet{Type: RespOSARGS, Payload: putBlock4(f.Size())}, nil
	default:
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
}

func (d *Dispatcher) handleEOF(s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	f, err := s.Get(int(payload[0]))
	if err != nil {
		return transport.Packet{}, err
	}
	if f.Ptr() >= f.Size() {
		return transport.Packet{Type: RespEOF, Payload: []byte{0xFF}}, nil
	}
	return transport.Packet{Type: RespEOF, Payload: []byte{0x00}}, nil
}

func (d *Dispatcher) handleOSBGET(s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	f, err := s.Get(int(payload[0]))
	if err != nil {
		return transport.Packet{}, err
	}
	b, hitEOF, err := d.FC.BGet(f)
	if err != nil {
		return transport.Packet{}, err
	}
	if hitEOF {
		return transport.Packet{Type: RespOSBGETEOF}, nil
	}
	return transport.Packet{Type: RespOSBGET, Payload: []byte{b}}, nil
}

func (d *Dispatcher) handleOSBPUT(s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 2 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	f, err := s.Get(int(payload[0]))
	if err != nil {
		return transport.Packet{}, err
	}
	if err := d.FC.BPut(f, payload[1]); err != nil {
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) handleBootOption(ctx context.Context, s *session.Session) (transport.Packet, error) {
	if s.Volume == nil {
		return transport.Packet{}, beeberror.Errorf(beeberror.KindDiscFault, "No volume")
	}
	opt, err := s.Volume.Type.BootOption(ctx, s.Volume, s.Cur.Drive)
	if err != nil {
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespBootOption, Payload: []byte{opt}}, nil
}

func (d *Dispatcher) handleSetFileHandleRange(s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 2 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	first := int(payload[0])
	count := int(payload[1])
	if err := s.SetHandleRange(d.FC, first, count); err != nil {
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespYes}, nil
}

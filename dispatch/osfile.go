package dispatch

import (
	"context"
	"os"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/session"
	"github.com/tom-seddon/beeblink-sub000/transport"
	"github.com/tom-seddon/beeblink-sub000/vfs"
	"github.com/tom-seddon/beeblink-sub000/volume"
)

// handleOSFILE is the OSFILE multiplexer (§6.2): the A register in
// payload[0] selects one of nine subcommands, each of which gets and
// returns the same 16-byte (load, exec, size, attr) block plus a file-type
// byte; SAVE additionally consumes trailing data, LOAD additionally
// returns it.
func (d *Dispatcher) handleOSFILE(ctx context.Context, s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 17 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	a := payload[0]
	block, err := parseBlock16(payload[1:17])
	if err != nil {
		return transport.Packet{}, err
	}
	name, data, err := readCRString(payload[17:])
	if err != nil {
		return transport.Packet{}, err
	}

	if s.Volume == nil {
		return transport.Packet{}, beeberror.Errorf(beeberror.KindDiscFault, "No volume")
	}
	fqn, err := s.Volume.Type.ParseFile(s.Cur, name)
	if err != nil {
		return transport.Packet{}, err
	}

	switch a {
	case OSFILESave, OSFILECreate:
		return d.osfileSave(ctx, s, fqn, block, data)
	case OSFILEWriteCat, OSFILEWriteLoad, OSFILEWriteExec, OSFILEWriteAttr:
		return d.osfileWriteMeta(ctx, s, fqn, a, block)
	case OSFILEReadCat:
		return d.osfileInfo(ctx, s, fqn)
	case OSFILEDelete:
		return d.osfileDelete(ctx, s, fqn)
	case OSFILELoad:
		return d.osfileLoad(ctx, s, fqn)
	default:
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
}

func osfileResponse(fileType byte, block block16, data []byte) transport.Packet {
	payload := append([]byte{fileType}, block.bytes()...)
	payload = append(payload, data...)
	return transport.Packet{Type: RespOSFILE, Payload: payload}
}

// osfileSave implements SAVE and CREATE (invariant #3, §8): a new object is
// materialised with the given load/exec and, for SAVE, written with data.
func (d *Dispatcher) osfileSave(ctx context.Context, s *session.Session, fqn bbcpath.FQN, block block16, data []byte) (transport.Packet, error) {
	if uint32(len(data)) > vfs.MaxFileSize {
		return transport.Packet{}, beeberror.Default(beeberror.KindTooBig)
	}
	obj, err := s.Volume.Type.Create(ctx, s.Volume, fqn, block.Load, block.Exec)
	if err != nil {
		return transport.Packet{}, err
	}
	if len(data) > 0 {
		if err := os.WriteFile(obj.ServerPath, data, 0644); err != nil {
			return transport.Packet{}, beeberror.FromOS(err)
		}
	}
	obj.Attr = 0
	if err := s.Volume.Type.WriteMeta(ctx, s.Volume, obj); err != nil {
		return transport.Packet{}, err
	}
	out := block16{Load: block.Load, Exec: block.Exec, Size: uint32(len(data)), Attr: uint32(obj.Attr)}
	return osfileResponse(byte(volume.ObjectFile), out, nil), nil
}

// osfileWriteMeta implements WRITE_CAT/WRITE_LOAD/WRITE_EXEC/WRITE_ATTR:
// each updates one field of an existing object's metadata in place.
func (d *Dispatcher) osfileWriteMeta(ctx context.Context, s *session.Session, fqn bbcpath.FQN, a byte, block block16) (transport.Packet, error) {
	obj, err := s.Volume.Type.GetObject(ctx, s.Volume, fqn, false)
	if err != nil {
		return transport.Packet{}, err
	}
	if obj == nil {
		return osfileResponse(byte(volume.ObjectNone), block16{}, nil), nil
	}
	switch a {
	case OSFILEWriteLoad:
		obj.Load = block.Load
	case OSFILEWriteExec:
		obj.Exec = block.Exec
	case OSFILEWriteAttr:
		obj.Attr = uint8(block.Attr)
	case OSFILEWriteCat:
		obj.Load, obj.Exec, obj.Attr = block.Load, block.Exec, uint8(block.Attr)
	}
	if err := s.Volume.Type.WriteMeta(ctx, s.Volume, obj); err != nil {
		return transport.Packet{}, err
	}
	size, err := fileSize(obj.ServerPath)
	if err != nil {
		return transport.Packet{}, err
	}
	out := block16{Load: obj.Load, Exec: obj.Exec, Size: size, Attr: uint32(obj.Attr)}
	return osfileResponse(byte(obj.Type), out, nil), nil
}

// osfileInfo implements READ_CAT: report metadata without reading content.
func (d *Dispatcher) osfileInfo(ctx context.Context, s *session.Session, fqn bbcpath.FQN) (transport.Packet, error) {
	obj, err := s.Volume.Type.GetObject(ctx, s.Volume, fqn, false)
	if err != nil {
		return transport.Packet{}, err
	}
	if obj == nil {
		return osfileResponse(byte(volume.ObjectNone), block16{}, nil), nil
	}
	size, err := fileSize(obj.ServerPath)
	if err != nil && obj.Type == volume.ObjectFile {
		return transport.Packet{}, err
	}
	out := block16{Load: obj.Load, Exec: obj.Exec, Size: size, Attr: uint32(obj.Attr)}
	return osfileResponse(byte(obj.Type), out, nil), nil
}

func (d *Dispatcher) osfileDelete(ctx context.Context, s *session.Session, fqn bbcpath.FQN) (transport.Packet, error) {
	obj, err := s.Volume.Type.GetObject(ctx, s.Volume, fqn, false)
	if err != nil {
		return transport.Packet{}, err
	}
	if obj == nil {
		return osfileResponse(byte(volume.ObjectNone), block16{}, nil), nil
	}
	size, _ := fileSize(obj.ServerPath)
	out := block16{Load: obj.Load, Exec: obj.Exec, Size: size, Attr: uint32(obj.Attr)}
	if err := s.Volume.Type.Delete(ctx, s.Volume, fqn); err != nil {
		return transport.Packet{}, err
	}
	return osfileResponse(byte(obj.Type), out, nil), nil
}

func (d *Dispatcher) osfileLoad(ctx context.Context, s *session.Session, fqn bbcpath.FQN) (transport.Packet, error) {
	obj, err := s.Volume.Type.GetObject(ctx, s.Volume, fqn, false)
	if err != nil {
		return transport.Packet{}, err
	}
	if obj == nil {
		return osfileResponse(byte(volume.ObjectNone), block16{}, nil), nil
	}
	if obj.Type != volume.ObjectFile {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadName)
	}
	data, err := os.ReadFile(obj.ServerPath)
	if err != nil {
		return transport.Packet{}, beeberror.FromOS(err)
	}
	out := block16{Load: obj.Load, Exec: obj.Exec, Size: uint32(len(data)), Attr: uint32(obj.Attr)}
	return osfileResponse(byte(obj.Type), out, data), nil
}

func fileSize(path string) (uint32, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, beeberror.FromOS(err)
	}
	return uint32(fi.Size()), nil
}

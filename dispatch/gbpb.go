package dispatch

import (
	"context"
	"encoding/binary"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/session"
	"github.com/tom-seddon/beeblink-sub000/transport"
)

// gbpbBlock is OSGBPB's 13-byte control block (§6.3) less its op byte: a
// byte count, a pointer (the explicit position used by the
// no-pointer-update variants, ops 2 and 4), and a third word whose meaning
// depends on the op (the file handle, in its low byte, for the read/write
// ops; a starting index for the name-enumeration op).
type gbpbBlock struct {
	Count uint32
	Ptr   uint32
	Extra uint32
}

func parseGBPBBlock(b []byte) (gbpbBlock, error) {
	if len(b) < 12 {
		return gbpbBlock{}, beeberror.Default(beeberror.KindBadCommand)
	}
	return gbpbBlock{
		Count: binary.LittleEndian.Uint32(b[0:4]),
		Ptr:   binary.LittleEndian.Uint32(b[4:8]),
		Extra: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

func (b gbpbBlock) bytes() []byte {
	out := make([]byte, 12)
	binary.LittleEndian.PutUint32(out[0:4], b.Count)
	binary.LittleEndian.PutUint32(out[4:8], b.Ptr)
	binary.LittleEndian.PutUint32(out[8:12], b.Extra)
	return out
}

// handleOSGBPB is the OSGBPB multiplexer (§6.3): payload[0] selects one of
// eight ops; payload[1:13] is the control block; write ops carry their
// data after the block.
func (d *Dispatcher) handleOSGBPB(ctx context.Context, s *session.Session, payload []byte) (transport.Packet, error) {
	if len(payload) < 13 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	op := payload[0]
	block, err := parseGBPBBlock(payload[1:13])
	if err != nil {
		return transport.Packet{}, err
	}
	rest := payload[13:]

	switch op {
	case GBPBWritePtr, GBPBWriteNoPtr:
		return d.gbpbWrite(s, op, block, rest)
	case GBPBReadPtr, GBPBReadNoPtr:
		return d.gbpbRead(s, op, block)
	case GBPBGetTitleBoot:
		return d.gbpbTitleBoot(ctx, s)
	case GBPBGetCurrentDir:
		return d.gbpbDirInfo(s.Cur)
	case GBPBGetLibDir:
		return d.gbpbDirInfo(s.Lib)
	case GBPBEnumerate:
		return d.gbpbEnumerate(ctx, s, block)
	default:
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
}

func (d *Dispatcher) gbpbWrite(s *session.Session, op byte, block gbpbBlock, data []byte) (transport.Packet, error) {
	h := int(block.Extra & 0xFF)
	f, err := s.Get(h)
	if err != nil {
		return transport.Packet{}, err
	}
	if uint32(len(data)) > block.Count {
		data = data[:block.Count]
	}
	usePtr := op == GBPBWriteNoPtr
	if err := d.FC.GBPBWrite(f, data, block.Ptr, usePtr); err != nil {
		return transport.Packet{}, err
	}
	out := gbpbBlock{Count: uint32(len(data)), Ptr: f.Ptr(), Extra: block.Extra}
	return transport.Packet{Type: RespOSGBPB, Payload: out.bytes()}, nil
}

func (d *Dispatcher) gbpbRead(s *session.Session, op byte, block gbpbBlock) (transport.Packet, error) {
	h := int(block.Extra & 0xFF)
	f, err := s.Get(h)
	if err != nil {
		return transport.Packet{}, err
	}
	usePtr := op == GBPBReadNoPtr
	data, hitEOF, err := d.FC.GBPBRead(f, int(block.Count), block.Ptr, usePtr)
	if err != nil {
		return transport.Packet{}, err
	}
	eofByte := uint32(0)
	if hitEOF {
		eofByte = 1
	}
	out := gbpbBlock{Count: uint32(len(data)), Ptr: f.Ptr(), Extra: eofByte}
	payload := append(out.bytes(), data...)
	return transport.Packet{Type: RespOSGBPB, Payload: payload}, nil
}

func (d *Dispatcher) gbpbTitleBoot(ctx context.Context, s *session.Session) (transport.Packet, error) {
	if s.Volume == nil {
		return transport.Packet{}, beeberror.Errorf(beeberror.KindDiscFault, "No volume")
	}
	_, title, err := s.Volume.Type.Cat(ctx, s.Volume, s.Cur)
	if err != nil {
		return transport.Packet{}, err
	}
	opt, err := s.Volume.Type.BootOption(ctx, s.Volume, s.Cur.Drive)
	if err != nil {
		return transport.Packet{}, err
	}
	payload := append([]byte{byte(len(title))}, []byte(title)...)
	payload = append(payload, opt)
	return transport.Packet{Type: RespOSGBPB, Payload: payload}, nil
}

func (d *Dispatcher) gbpbDirInfo(fp bbcpath.FilePath) (transport.Packet, error) {
	payload := []byte(fp.Drive)
	payload = append(payload, 0x0D)
	payload = append(payload, []byte(fp.Dir)...)
	payload = append(payload, 0x0D)
	return transport.Packet{Type: RespOSGBPB, Payload: payload}, nil
}

func (d *Dispatcher) gbpbEnumerate(ctx context.Context, s *session.Session, block gbpbBlock) (transport.Packet, error) {
	if s.Volume == nil {
		return transport.Packet{}, beeberror.Errorf(beeberror.KindDiscFault, "No volume")
	}
	objects, _, err := s.Volume.Type.Cat(ctx, s.Volume, s.Cur)
	if err != nil {
		return transport.Packet{}, err
	}
	start := int(block.Extra)
	max := int(block.Count)
	var names []byte
	n := 0
	i := start
	for ; i < len(objects) && n < max; i++ {
		names = append(names, []byte(objects[i].FQN.Name)...)
		names = append(names, 0x0D)
		n++
	}
	more := uint32(0)
	if i < len(objects) {
		more = 1
	}
	out := gbpbBlock{Count: uint32(n), Ptr: uint32(i), Extra: more}
	payload := append(out.bytes(), names...)
	return transport.Packet{Type: RespOSGBPB, Payload: payload}, nil
}

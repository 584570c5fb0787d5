package dispatch

import (
	"encoding/binary"

	"github.com/tom-seddon/beeblink-sub000/beeberror"
)

// block16 is the 16-byte (load, exec, size, attr) parameter block carried
// by OSFILE requests and responses (§6.2), each field a little-endian
// 32-bit word.
type block16 struct {
	Load uint32
	Exec uint32
	Size uint32
	Attr uint32
}

func parseBlock16(b []byte) (block16, error) {
	if len(b) < 16 {
		return block16{}, beeberror.Default(beeberror.KindBadCommand)
	}
	return block16{
		Load: binary.LittleEndian.Uint32(b[0:4]),
		Exec: binary.LittleEndian.Uint32(b[4:8]),
		Size: binary.LittleEndian.Uint32(b[8:12]),
		Attr: binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

func (b block16) bytes() []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:4], b.Load)
	binary.LittleEndian.PutUint32(out[4:8], b.Exec)
	binary.LittleEndian.PutUint32(out[8:12], b.Size)
	binary.LittleEndian.PutUint32(out[12:16], b.Attr)
	return out
}

// block4 is OSARGS' smaller parameter block: a single little-endian
// 32-bit word (the pointer or size being got/set).
func parseBlock4(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, beeberror.Default(beeberror.KindBadCommand)
	}
	return binary.LittleEndian.Uint32(b[0:4]), nil
}

func putBlock4(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out
}

// readCRString splits payload at the first CR (0x0D), returning the string
// before it and whatever bytes follow — used for the CR-terminated name
// that trails an OSFILE/OSFIND request, possibly followed by raw data.
func readCRString(payload []byte) (string, []byte, error) {
	for i, b := range payload {
		if b == 0x0D {
			return string(payload[:i]), payload[i+1:], nil
		}
	}
	return "", nil, beeberror.Default(beeberror.KindBadCommand)
}

// errorPayload encodes err in the raw BBC wire error format: BRK,
// errorCode, errorString, BRK (§6.1).
func errorPayload(err error) []byte {
	be, ok := err.(*beeberror.Error)
	if !ok {
		be = beeberror.Wrap(beeberror.KindDiscFault, err.Error(), err)
	}
	out := []byte{0x00, be.Code()}
	out = append(out, []byte(be.Msg)...)
	out = append(out, 0x00)
	return out
}

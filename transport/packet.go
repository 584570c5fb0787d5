// Package transport implements the wire framing shared by every link
// flavour (§4.1) plus the three concrete links (USB, serial, HTTP) that
// carry it. The framing itself is link-agnostic, the way rclone's
// fs/rc package separates the JSON call convention from the HTTP/CLI
// transports that carry it.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reserved type bytes that never reach the dispatcher (§4.1): a presence
// probe, link-specific subrequests, and an explicitly invalid marker.
const (
	TypeProbe      = 0x00
	TypeLinkSub    = 0x01
	TypeLinkSub7F  = 0x7F
	TypeInvalid    = 0xFF
	sizedFlag byte = 0x80
)

// Packet is one framed request or response: a type byte plus a payload.
// On the wire, a type byte with bit 7 clear is followed by exactly one
// payload byte (the short form); with bit 7 set it is followed by an
// explicit 4-byte little-endian size field and then that many payload
// bytes.
type Packet struct {
	Type    byte
	Payload []byte
}

// ReadPacket decodes one packet from r per §4.1's grammar.
func ReadPacket(r io.Reader) (Packet, error) {
	var hdr [1]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, err
	}
	t := hdr[0]
	if t&sizedFlag == 0 {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Packet{}, err
		}
		return Packet{Type: t, Payload: b[:]}, nil
	}
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return Packet{}, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, err
	}
	return Packet{Type: t &^ sizedFlag, Payload: payload}, nil
}

// WritePacket encodes p to w. Payloads other than exactly one byte always
// use the sized form; a single-byte payload also uses the sized form so
// that callers never need to reason about which form was chosen — the
// short form exists only for decoding bytes a peer may have sent.
func WritePacket(w io.Writer, p Packet) error {
	if len(p.Payload) > 0xFFFFFFFF {
		return fmt.Errorf("transport: payload too large (%d bytes)", len(p.Payload))
	}
	hdr := make([]byte, 5)
	hdr[0] = p.Type | sizedFlag
	binary.LittleEndian.PutUint32(hdr[1:], uint32(len(p.Payload)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(p.Payload)
	return err
}

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	serial "github.com/daedaluz/goserial"
)

// NumSerialSyncZeros is the number of consecutive zero bytes that signals
// a resync request (§4.1.2).
const NumSerialSyncZeros = 300

// SerialLink wraps a goserial.Port with the explicit sync protocol the FTDI
// link needs because, unlike USB or HTTP, a raw byte stream carries no
// implicit framing of its own.
type SerialLink struct {
	port   *serial.Port
	r      *bufio.Reader
	log    *slog.Logger
	synced bool
}

// OpenSerial opens device at 115200 baud with the FTDI low-latency flag
// set (approximating the original 1ms latency-timer setting), grounded on
// daedaluz/goserial's port_linux.go Termios/Serial ioctl pattern.
func OpenSerial(device string, log *slog.Logger) (*SerialLink, error) {
	port, err := serial.Open(device, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", device, err)
	}
	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: get attrs %s: %w", device, err)
	}
	attrs.MakeRaw()
	attrs.SetSpeed(serial.B115200)
	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: set attrs %s: %w", device, err)
	}
	if info, err := port.GetSerial(); err == nil {
		info.Flags |= serial.AsyncLowLatency
		_ = port.SetSerial(info)
	}
	return &SerialLink{port: port, r: bufio.NewReader(port), log: log}, nil
}

// Sync runs the resync loop (§4.1.2, step 1) until both ends agree the
// stream is request-ready.
func (s *SerialLink) Sync(ctx context.Context) error {
	for {
		if err := s.drainReads(); err != nil {
			return err
		}

		zeros := 0
		for zeros < NumSerialSyncZeros {
			b, err := s.r.ReadByte()
			if err != nil {
				return err
			}
			if b == 0 {
				zeros++
			} else {
				zeros = 0
			}
		}

		out := make([]byte, NumSerialSyncZeros+1)
		out[NumSerialSyncZeros] = 0x01
		if _, err := s.port.Write(out); err != nil {
			return err
		}

		var confirm byte
		for {
			b, err := s.r.ReadByte()
			if err != nil {
				return err
			}
			if b != 0 {
				confirm = b
				break
			}
		}
		if confirm == 0x01 {
			s.synced = true
			return nil
		}
		// else: re-enter the sync loop
	}
}

func (s *SerialLink) drainReads() error {
	for {
		if s.r.Buffered() == 0 {
			return nil
		}
		if _, err := s.r.ReadByte(); err != nil {
			return err
		}
	}
}

// confirmOffset reports whether payload index i (of a payload of length l)
// is a confirmation-byte position, per the literal formula in §9's open
// question: (-(L-1-i)) mod 256 == 0.
func confirmOffset(i, l int) bool {
	return ((-(l - 1 - i)) % 256) == 0
}

// ReadPayload reads l bytes of payload, verifying the confirmation byte
// after every byte at a confirmOffset position (§4.1.2, data phase). On a
// bad confirmation byte it returns errResync so the caller re-enters Sync.
func (s *SerialLink) ReadPayload(l int) ([]byte, error) {
	if !s.synced {
		return nil, errResync
	}
	out := make([]byte, l)
	for i := 0; i < l; i++ {
		b, err := s.r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = b
		if confirmOffset(i, l) {
			c, err := s.r.ReadByte()
			if err != nil {
				return nil, err
			}
			if c != 0x01 {
				s.synced = false
				return nil, errResync
			}
		}
	}
	return out, nil
}

// WritePayload mirrors ReadPayload for the outgoing direction.
func (s *SerialLink) WritePayload(data []byte) error {
	if !s.synced {
		return errResync
	}
	for i, b := range data {
		if _, err := s.port.Write([]byte{b}); err != nil {
			return err
		}
		if confirmOffset(i, len(data)) {
			if _, err := s.port.Write([]byte{0x01}); err != nil {
				return err
			}
		}
	}
	return nil
}

var errResync = fmt.Errorf("transport: serial link out of sync")

// ReadByte is exposed so Sync's entry condition ("on receipt of 0x00 or
// 0x7F as a command byte") can be checked by the caller before a normal
// packet read.
func (s *SerialLink) ReadByte() (byte, error) { return s.r.ReadByte() }

// WriteTypeByte writes a single type byte with no confirmation-byte
// bookkeeping, mirroring the way ReadByte reads one with none either: the
// confirm-byte scheme only governs the payload phase of a packet.
func (s *SerialLink) WriteTypeByte(b byte) error {
	_, err := s.port.Write([]byte{b})
	return err
}

// Close releases the underlying port.
func (s *SerialLink) Close() error { return s.port.Close() }

var _ io.Closer = (*SerialLink)(nil)

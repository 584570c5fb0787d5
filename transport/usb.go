package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/gousb"
)

// HotplugPollInterval is the minimum device-rescan rate required by §4.1.1.
const HotplugPollInterval = time.Second

// USBLink is one physical device connection, keyed by its USB serial
// number per §4.1.1. Grounded on gousb's context/device/endpoint pattern
// the way guiperry-HASHER's internal/driver/device/usb_device.go opens a
// fixed VID/PID device and claims its bulk endpoints.
type USBLink struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	iface  *gousb.Interface
	config *gousb.Config
	log    *slog.Logger
}

// ErrSessionLost is returned when a LIBUSB_ERROR_PIPE-equivalent condition
// is observed; the caller must tear the session down (§4.1.1).
var ErrSessionLost = errors.New("transport: usb link lost (pipe error)")

// OpenUSB opens the first device matching vid/pid and claims its bulk
// in/out endpoints.
func OpenUSB(vid, pid gousb.ID) (*USBLink, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if dev == nil {
		ctx.Close()
		return nil, errors.New("transport: no matching usb device")
	}
	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	iface, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, err
	}
	in, err := iface.InEndpoint(1)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, err
	}
	out, err := iface.OutEndpoint(1)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return &USBLink{ctx: ctx, dev: dev, config: cfg, iface: iface, in: in, out: out}, nil
}

// SerialNumber identifies the session for this device (§4.1.1).
func (u *USBLink) SerialNumber() (string, error) {
	return u.dev.SerialNumber()
}

// Read performs one bulk transfer in, translating a stall into a
// CLEAR_FEATURE recovery attempt and a pipe error into session loss.
func (u *USBLink) Read(ctx context.Context, buf []byte) (int, error) {
	n, err := u.in.ReadContext(ctx, buf)
	if err != nil {
		return n, u.translateTransferError(err)
	}
	return n, nil
}

func (u *USBLink) Write(ctx context.Context, data []byte) (int, error) {
	n, err := u.out.WriteContext(ctx, data)
	if err != nil {
		return n, u.translateTransferError(err)
	}
	return n, nil
}

// translateTransferError implements §4.1.1's stall/pipe handling: a stall
// is cleared via the endpoint's halt-clear and treated as a fresh BBC
// reset (the caller preserves volume state but discards any in-flight
// request); a pipe error is unrecoverable and ends the session.
func (u *USBLink) translateTransferError(err error) error {
	if errors.Is(err, gousb.TransferStall) {
		if clearErr := u.dev.ClearHalt(u.in); clearErr == nil {
			return nil // treated as a fresh reset, not a fatal error
		}
		return ErrSessionLost
	}
	if errors.Is(err, gousb.ErrorPipe) {
		return ErrSessionLost
	}
	return err
}

func (u *USBLink) Close() error {
	u.iface.Close()
	u.config.Close()
	if err := u.dev.Close(); err != nil {
		u.ctx.Close()
		return err
	}
	return u.ctx.Close()
}

// PollHotplug calls onChange with the current device list once every
// HotplugPollInterval, whether or not the list differs from the previous
// poll, the way the original link polls for BBC connect/
// disconnect when no kernel hotplug notification is available.
func PollHotplug(ctx context.Context, list func() ([]*gousb.Device, error), onChange func([]*gousb.Device)) {
	ticker := time.NewTicker(HotplugPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			devices, err := list()
			if err != nil {
				continue
			}
			onChange(devices)
		}
	}
}

// Command beeblinkd is the BeebLink server: it loads configuration, starts
// whichever transports the configuration names, and serves BBC client
// requests through a single dispatcher. It is deliberately a thin client of
// the core packages, not a sub-command tree — the same shape rclone's own
// `cmd/serve/*` commands take when wrapping one backend behind one
// transport.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gousb"
	"github.com/spf13/cobra"

	"github.com/tom-seddon/beeblink-sub000/blog"
	"github.com/tom-seddon/beeblink-sub000/config"
	"github.com/tom-seddon/beeblink-sub000/dispatch"
	"github.com/tom-seddon/beeblink-sub000/transport"
	"github.com/tom-seddon/beeblink-sub000/vfs"
	"github.com/tom-seddon/beeblink-sub000/volume"
	"github.com/tom-seddon/beeblink-sub000/volume/adfs"
	"github.com/tom-seddon/beeblink-sub000/volume/dfs"
	"github.com/tom-seddon/beeblink-sub000/volume/pc"
	"github.com/tom-seddon/beeblink-sub000/volume/tubehost"
)

// flagFields lists the command-line flag names RegisterFlags binds, in the
// same order, so RunE can tell which ones the user actually passed on the
// command line and which are just carrying config.Default()'s zero value.
var flagFields = []string{
	"root", "pc-root", "tubehost-root", "rom",
	"usb-vid", "usb-pid", "serial", "http-addr",
	"handle-first", "handle-count", "log-level",
}

func main() {
	var configPath string
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "beeblinkd",
		Short: "Serve BeebLink volumes to a BBC Micro over USB, serial, or HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fileCfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				mergeUnchangedFields(cmd, cfg, fileCfg)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a beeblinkd.yaml config file")
	cfg.RegisterFlags(root.Flags())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "beeblinkd:", err)
		os.Exit(1)
	}
}

// mergeUnchangedFields overlays fileCfg onto cfg, field by field, skipping
// any field the user explicitly overrode with a command-line flag: flags
// always win over the config file, the file only fills in what flags
// didn't set.
func mergeUnchangedFields(cmd *cobra.Command, cfg, fileCfg *config.Config) {
	changed := map[string]bool{}
	for _, name := range flagFields {
		changed[name] = cmd.Flags().Changed(name)
	}
	if !changed["root"] {
		cfg.Roots = fileCfg.Roots
	}
	if !changed["pc-root"] {
		cfg.PCRoots = fileCfg.PCRoots
	}
	if !changed["tubehost-root"] {
		cfg.TubeHostRoots = fileCfg.TubeHostRoots
	}
	if !changed["rom"] {
		cfg.ROMPath = fileCfg.ROMPath
	}
	if !changed["usb-vid"] {
		cfg.USBVendorID = fileCfg.USBVendorID
	}
	if !changed["usb-pid"] {
		cfg.USBProductID = fileCfg.USBProductID
	}
	if !changed["serial"] {
		cfg.SerialDevice = fileCfg.SerialDevice
	}
	if !changed["http-addr"] {
		cfg.HTTPAddr = fileCfg.HTTPAddr
	}
	if !changed["handle-first"] {
		cfg.HandleFirst = fileCfg.HandleFirst
	}
	if !changed["handle-count"] {
		cfg.HandleCount = fileCfg.HandleCount
	}
	if !changed["log-level"] {
		cfg.LogLevel = fileCfg.LogLevel
	}
}

func run(cfg *config.Config) error {
	logger := blog.New(os.Stderr, blog.ParseLevel(cfg.LogLevel))

	rom, err := loadROM(cfg.ROMPath)
	if err != nil {
		return err
	}

	disc := &volume.Discoverer{
		Roots:         cfg.Roots,
		PCRoots:       cfg.PCRoots,
		TubeHostRoots: cfg.TubeHostRoots,
		DFSType:       dfs.New(),
		ADFSType:      adfs.New(),
		PCType:        pc.New(),
		TubeHostType:  tubehost.New(),
	}
	fc := vfs.NewFacade()
	d := dispatch.New(fc, disc, rom, logger)
	if err := d.SetHandleDefaults(cfg.HandleFirst, cfg.HandleCount); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	var wg sync.WaitGroup
	started := false

	if cfg.HTTPAddr != "" {
		started = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, cfg.HTTPAddr, rom, d, logger)
		}()
	}
	if cfg.SerialDevice != "" {
		started = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveSerial(ctx, cfg.SerialDevice, d, logger)
		}()
	}
	if cfg.USBVendorID != 0 {
		started = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveUSB(ctx, gousb.ID(cfg.USBVendorID), gousb.ID(cfg.USBProductID), d, logger)
		}()
	}
	if !started {
		return fmt.Errorf("beeblinkd: no transport configured")
	}

	wg.Wait()
	return nil
}

func loadROM(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rom %s: %w", path, err)
	}
	return data, nil
}

func serveHTTP(ctx context.Context, addr string, rom []byte, d *dispatch.Dispatcher, logger *slog.Logger) {
	handler := func(sessionID string, p transport.Packet) transport.Packet {
		resp, err := d.Dispatch(ctx, sessionID, p)
		if err != nil {
			logger.Error("http dispatch failed", "session", sessionID, "err", err)
			return transport.Packet{Type: transport.TypeInvalid}
		}
		return resp
	}
	srv := &http.Server{Addr: addr, Handler: transport.NewHTTPServer(rom, handler)}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	logger.Info("http transport listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http transport stopped", "err", err)
	}
}

// serveSerial runs the serial link's request loop (§4.1.2): sync, then
// repeatedly read a type byte and (for the sized form) a 4-byte length
// followed by that many payload bytes, dispatch it, and write the response
// back the same way.
func serveSerial(ctx context.Context, device string, d *dispatch.Dispatcher, logger *slog.Logger) {
	link, err := transport.OpenSerial(device, logger)
	if err != nil {
		logger.Error("serial transport failed to open", "device", device, "err", err)
		return
	}
	defer link.Close()
	sessionID := "serial:" + device

	for ctx.Err() == nil {
		if err := link.Sync(ctx); err != nil {
			logger.Error("serial sync failed", "err", err)
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			t, err := link.ReadByte()
			if err != nil {
				logger.Error("serial read failed", "err", err)
				d.Forget(sessionID)
				break
			}
			var payload []byte
			if t&0x80 == 0 {
				one, err := link.ReadPayload(1)
				if err != nil {
					break
				}
				payload = one
			} else {
				// Size and body are read (and, below, written) as two
				// separate confirm-tracked segments rather than one
				// combined one; simpler to reason about, at the cost of
				// restarting the confirm-offset count at the start of the
				// body instead of continuing it from the size prefix.
				sizeBytes, err := link.ReadPayload(4)
				if err != nil {
					break
				}
				size := int(sizeBytes[0]) | int(sizeBytes[1])<<8 | int(sizeBytes[2])<<16 | int(sizeBytes[3])<<24
				data, err := link.ReadPayload(size)
				if err != nil {
					break
				}
				payload = data
				t &^= 0x80
			}

			resp, err := d.Dispatch(ctx, sessionID, transport.Packet{Type: t, Payload: payload})
			if err != nil {
				logger.Error("serial dispatch failed", "err", err)
				d.Forget(sessionID)
				break
			}
			if err := link.WriteTypeByte(resp.Type | 0x80); err != nil {
				break
			}
			if err := link.WritePayload(lengthBytes(len(resp.Payload))); err != nil {
				break
			}
			if err := link.WritePayload(resp.Payload); err != nil {
				break
			}
		}
	}
}

func lengthBytes(n int) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

// usbReaderWriter adapts USBLink's context-taking Read/Write to the plain
// io.Reader/io.Writer shape transport.ReadPacket/WritePacket expect.
type usbReaderWriter struct {
	ctx  context.Context
	link *transport.USBLink
}

func (u usbReaderWriter) Read(p []byte) (int, error)  { return u.link.Read(u.ctx, p) }
func (u usbReaderWriter) Write(p []byte) (int, error) { return u.link.Write(u.ctx, p) }

// serveUSB polls for a matching device, and on each connection runs the
// packet request loop until the link is lost (§4.1.1).
func serveUSB(ctx context.Context, vid, pid gousb.ID, d *dispatch.Dispatcher, logger *slog.Logger) {
	for ctx.Err() == nil {
		link, err := transport.OpenUSB(vid, pid)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(transport.HotplugPollInterval):
			}
			continue
		}
		serial, err := link.SerialNumber()
		if err != nil {
			serial = "usb"
		}
		rw := usbReaderWriter{ctx: ctx, link: link}
		logger.Info("usb transport connected", "serial", serial)
		for ctx.Err() == nil {
			req, err := transport.ReadPacket(rw)
			if err != nil {
				logger.Error("usb read failed", "err", err)
				break
			}
			resp, err := d.Dispatch(ctx, serial, req)
			if err != nil {
				logger.Error("usb dispatch failed", "err", err)
				break
			}
			if err := transport.WritePacket(rw, resp); err != nil {
				logger.Error("usb write failed", "err", err)
				break
			}
		}
		d.Forget(serial)
		_ = link.Close()
	}
}

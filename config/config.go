// Package config assembles the server's Config from a YAML file overridden
// by command-line flags, the way rclone's fs/config layer builds an
// Options struct from a config file merged with pflag overrides. Fields
// carry the same config:"name" tag convention fs/config/configstruct uses
// for its reflective Items(), kept here even though RegisterFlags binds
// them explicitly: there is only ever one Config, not one struct per
// backend, so the tags document the on-disk key without needing the
// generic reflective walk that makes sense when many option structs share
// one mechanism.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

// Config holds everything the server needs to start: where volumes live,
// which transports to listen on, and the defaults handed to new sessions.
type Config struct {
	Roots         []string `yaml:"roots" config:"roots"`
	PCRoots       []string `yaml:"pc_roots" config:"pc_roots"`
	TubeHostRoots []string `yaml:"tubehost_roots" config:"tubehost_roots"`

	ROMPath string `yaml:"rom_path" config:"rom_path"`

	USBVendorID  uint16 `yaml:"usb_vendor_id" config:"usb_vendor_id"`
	USBProductID uint16 `yaml:"usb_product_id" config:"usb_product_id"`

	SerialDevice string `yaml:"serial_device" config:"serial_device"`

	HTTPAddr string `yaml:"http_addr" config:"http_addr"`

	HandleFirst int `yaml:"handle_first" config:"handle_first"`
	HandleCount int `yaml:"handle_count" config:"handle_count"`

	LogLevel string `yaml:"log_level" config:"log_level"`
}

// Default returns the configuration a bare `beeblinkd` would run with: no
// volume roots, handle range matching the real BBC OSHWM-derived window,
// and an HTTP listener bound to localhost only.
func Default() *Config {
	return &Config{
		HandleFirst: 0xB0, // matches session.DefaultFirstHandle
		HandleCount: 16,   // matches session.DefaultHandleCount
		HTTPAddr:    "127.0.0.1:48875",
		LogLevel:    "info",
	}
}

// Load reads a YAML config file on top of Default, leaving any field the
// file omits at its default value.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// RegisterFlags binds every config:"name" field of c to a pflag, so command
// line overrides apply after the YAML file has been loaded, the same
// ordering rclone uses for its config-file-then-flags precedence.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&c.Roots, "root", c.Roots, "host directory to scan for DFS/ADFS volumes (repeatable)")
	fs.StringSliceVar(&c.PCRoots, "pc-root", c.PCRoots, "host directory to expose as a PC volume (repeatable)")
	fs.StringSliceVar(&c.TubeHostRoots, "tubehost-root", c.TubeHostRoots, "host directory to expose as a TubeHost volume (repeatable)")
	fs.StringVar(&c.ROMPath, "rom", c.ROMPath, "path to the beeblink.rom image served to clients")
	fs.Uint16Var(&c.USBVendorID, "usb-vid", c.USBVendorID, "USB vendor ID of the link device")
	fs.Uint16Var(&c.USBProductID, "usb-pid", c.USBProductID, "USB product ID of the link device")
	fs.StringVar(&c.SerialDevice, "serial", c.SerialDevice, "serial device path of the link, if not using USB")
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "address to serve the HTTP transport on")
	fs.IntVar(&c.HandleFirst, "handle-first", c.HandleFirst, "first file handle number to allocate")
	fs.IntVar(&c.HandleCount, "handle-count", c.HandleCount, "number of file handles to allocate")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: trace, debug, info, notice, warn, error")
}

// Validate checks the loaded configuration for the combinations the server
// cannot start with.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 && len(c.PCRoots) == 0 && len(c.TubeHostRoots) == 0 {
		return fmt.Errorf("config: no volume roots configured")
	}
	if c.HandleCount <= 0 {
		return fmt.Errorf("config: handle_count must be positive")
	}
	if c.USBVendorID == 0 && c.SerialDevice == "" && c.HTTPAddr == "" {
		return fmt.Errorf("config: no transport configured (need usb, serial, or http_addr)")
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSessionHandleRange(t *testing.T) {
	c := Default()
	assert.Equal(t, 0xB0, c.HandleFirst)
	assert.Equal(t, 16, c.HandleCount)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beeblinkd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roots:\n  - /srv/discs\nhttp_addr: \"0.0.0.0:9000\"\n"), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/discs"}, c.Roots)
	assert.Equal(t, "0.0.0.0:9000", c.HTTPAddr)
	assert.Equal(t, 16, c.HandleCount) // untouched field keeps its default
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegisterFlagsOverridesDefault(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--http-addr", "127.0.0.1:1234", "--handle-count", "4"}))
	assert.Equal(t, "127.0.0.1:1234", c.HTTPAddr)
	assert.Equal(t, 4, c.HandleCount)
}

func TestValidateRejectsNoRoots(t *testing.T) {
	c := Default()
	c.HTTPAddr = "127.0.0.1:1"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNoTransport(t *testing.T) {
	c := Default()
	c.Roots = []string{"/tmp"}
	c.HTTPAddr = ""
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsRootsAndTransport(t *testing.T) {
	c := Default()
	c.Roots = []string{"/tmp"}
	assert.NoError(t, c.Validate())
}

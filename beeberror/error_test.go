package beeberror

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCarriesCode(t *testing.T) {
	err := Default(KindFileNotFound)
	assert.Equal(t, "Not found", err.Error())
	assert.Equal(t, byte(0xD6), err.Code())
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindDiscFault, "Disc fault", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestIs(t *testing.T) {
	var err error = Default(KindLocked)
	assert.True(t, Is(err, KindLocked))
	assert.False(t, Is(err, KindOpen))
	assert.False(t, Is(errors.New("plain"), KindLocked))
}

func TestFromOSTranslatesNotExist(t *testing.T) {
	_, err := os.Open("/does/not/exist/at/all")
	require.Error(t, err)
	be := FromOS(err)
	assert.Equal(t, KindFileNotFound, be.Kind)
}

func TestFromOSDefaultsToDiscFault(t *testing.T) {
	be := FromOS(errors.New("something else went wrong"))
	assert.Equal(t, KindDiscFault, be.Kind)
	assert.Contains(t, be.Error(), "POSIX error:")
}

func TestFromOSPassesThroughExistingBeebError(t *testing.T) {
	original := Default(KindAmbiguousName)
	be := FromOS(original)
	assert.Same(t, original, be)
}

package tag

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogLookup(t *testing.T) {
	c, err := NewCatalog(
		Definition{Handle: 1, Name: "Boiler.Temperature", MinimumInterval: 100 * time.Millisecond},
		Definition{Handle: 7, Name: "Boiler.Pressure", MinimumInterval: time.Second},
	)
	require.NoError(t, err)

	assert.True(t, c.Exists(1))
	assert.True(t, c.Exists(7))
	assert.False(t, c.Exists(2))
	assert.Equal(t, 100*time.Millisecond, c.MinimumInterval(1))
	assert.Equal(t, time.Second, c.MinimumInterval(7))
	assert.Equal(t, time.Duration(0), c.MinimumInterval(2))
	assert.Equal(t, []Handle{1, 7}, c.Handles())
	assert.Equal(t, 2, c.Len())

	h, ok := c.ByName("Boiler.Pressure")
	require.True(t, ok)
	assert.Equal(t, Handle(7), h)

	def, ok := c.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "Boiler.Temperature", def.Name)
}

func TestCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
		want error
	}{
		{"zero handle", []Definition{{Handle: 0}}, ErrInvalidHandle},
		{"negative interval", []Definition{{Handle: 1, MinimumInterval: -time.Second}}, ErrInvalidInterval},
		{"duplicate handle", []Definition{{Handle: 1}, {Handle: 1}}, ErrDuplicateHandle},
		{"duplicate name", []Definition{{Handle: 1, Name: "a"}, {Handle: 2, Name: "a"}}, ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.defs...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseCatalogDefaults(t *testing.T) {
	data := []byte(`
defaultMinimumInterval: 100ms
tags:
  - handle: 1
    name: Boiler.Temperature
    minimumInterval: 250ms
  - handle: 2
    name: Boiler.Pressure
`)

	c, err := ParseCatalog(data)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, c.MinimumInterval(1))
	assert.Equal(t, 100*time.Millisecond, c.MinimumInterval(2))
}

func TestParseCatalogErrors(t *testing.T) {
	_, err := ParseCatalog([]byte("tags: [this is: not valid"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "failed to parse YAML", le.Message)

	_, err = ParseCatalog([]byte("tags:\n  - handle: 3\n  - handle: 3\n"))
	assert.ErrorIs(t, err, ErrDuplicateHandle)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tags:\n  - handle: 5\n    name: Pump.Speed\n"), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.True(t, c.Exists(5))

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.Error(), "missing.yaml")
}

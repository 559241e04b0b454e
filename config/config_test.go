package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultDefaultsAreUsable(t *testing.T) {
	d := DefaultDefaults()
	require.Equal(t, 10, d.MaxListeners)
	require.Equal(t, 2*time.Minute, d.InactivityTimeout)
	require.Equal(t, 64*1024, d.ReadBufferSize)
	require.Equal(t, "info", d.Logging.Level)
	require.Equal(t, "json", d.Logging.Format)
}

func TestLoadParsesYAMLAndFillsOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_listeners: 25
max_headers_count: 64
logging:
  format: text
`), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 25, d.MaxListeners)
	require.Equal(t, 64, d.MaxHeadersCount)
	require.Equal(t, "text", d.Logging.Format)
	require.Equal(t, "info", d.Logging.Level, "omitted key must fall back to validate()'s default")
	require.Equal(t, 2*time.Minute, d.InactivityTimeout)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_listeners: [this is not an int"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

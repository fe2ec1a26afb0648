package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.BufferPoolSize)
	assert.Equal(t, 2, cfg.ReplacerK)
	assert.Equal(t, filepath.Join("data", "xstorage.db"), cfg.DataFilePath())
}

func TestLoadIniFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xstorage.ini")
	content := `[storage]
data_dir = /tmp/xs
buffer_pool_size = 128
replacer_k = 3

[log]
log_level = debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xs", cfg.DataDir)
	assert.Equal(t, 128, cfg.BufferPoolSize)
	assert.Equal(t, 3, cfg.ReplacerK)
	assert.Equal(t, "debug", cfg.LogLevel)
	// unset keys keep their defaults
	assert.Equal(t, "xstorage.db", cfg.DataFile)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	assert.Error(t, err)
}

package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Cfg 存储引擎配置
type Cfg struct {
	Raw *ini.File

	DataDir  string
	DataFile string

	// buffer pool
	BufferPoolSize int // 缓冲池大小（页数）
	ReplacerK      int

	// logs
	LogPath  string `default:"logs/xstorage.log"`
	LogLevel string `default:"info"`
}

// NewDefaultCfg returns the configuration used when no ini file is supplied.
func NewDefaultCfg() *Cfg {
	return &Cfg{
		DataDir:        "data",
		DataFile:       "xstorage.db",
		BufferPoolSize: 64,
		ReplacerK:      2,
		LogPath:        "logs/xstorage.log",
		LogLevel:       "info",
	}
}

// Load reads an ini configuration file, falling back to defaults for any key
// the file does not set.
func Load(path string) (*Cfg, error) {
	cfg := NewDefaultCfg()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s not readable: %v", path, err)
	}

	raw, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}
	cfg.Raw = raw

	sec := raw.Section("storage")
	cfg.DataDir = sec.Key("data_dir").MustString(cfg.DataDir)
	cfg.DataFile = sec.Key("data_file").MustString(cfg.DataFile)
	cfg.BufferPoolSize = sec.Key("buffer_pool_size").MustInt(cfg.BufferPoolSize)
	cfg.ReplacerK = sec.Key("replacer_k").MustInt(cfg.ReplacerK)

	logSec := raw.Section("log")
	cfg.LogPath = logSec.Key("log_path").MustString(cfg.LogPath)
	cfg.LogLevel = logSec.Key("log_level").MustString(cfg.LogLevel)

	return cfg, nil
}

// DataFilePath joins the data dir and file name.
func (c *Cfg) DataFilePath() string {
	return filepath.Join(c.DataDir, c.DataFile)
}

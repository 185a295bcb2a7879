package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// SettingsFile is the daemon's own optional settings file in the plugin root.
const SettingsFile = "daemon.yaml"

// Settings tune the daemon. None of them affect which sound is played.
type Settings struct {
	LogLevel        string `yaml:"log_level"`
	LogMaxSizeMB    int    `yaml:"log_max_size_mb"`
	LogMaxBackups   int    `yaml:"log_max_backups"`
	MetricsInterval int    `yaml:"metrics_interval"` // seconds, 0 disables the periodic flush
	PlayerMemoTTL   int    `yaml:"player_memo_ttl"`  // seconds
}

func DefaultSettings() *Settings {
	return &Settings{
		LogLevel:        "info",
		LogMaxSizeMB:    5,
		LogMaxBackups:   2,
		MetricsInterval: 30,
		PlayerMemoTTL:   600,
	}
}

func (s *Settings) MetricsEvery() time.Duration {
	return time.Duration(s.MetricsInterval) * time.Second
}

func (s *Settings) PlayerMemo() time.Duration {
	return time.Duration(s.PlayerMemoTTL) * time.Second
}

// ParseSettings reads a settings file on top of the defaults. A missing file
// is not an error. On a decode error the defaults are returned with the error.
func ParseSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, err
	}
	defer file.Close()

	parsed := DefaultSettings()
	if err := yaml.NewDecoder(file).Decode(parsed); err != nil {
		if errors.Is(err, io.EOF) {
			return settings, nil
		}
		return settings, err
	}
	if parsed.LogMaxSizeMB <= 0 {
		parsed.LogMaxSizeMB = settings.LogMaxSizeMB
	}
	if parsed.MetricsInterval < 0 {
		parsed.MetricsInterval = 0
	}
	if parsed.PlayerMemoTTL <= 0 {
		parsed.PlayerMemoTTL = settings.PlayerMemoTTL
	}
	return parsed, nil
}

// SettingsPath returns the settings file location for a plugin root.
func SettingsPath(root string) string {
	return filepath.Join(root, SettingsFile)
}

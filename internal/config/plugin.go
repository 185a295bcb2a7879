package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// PluginRootEnv names the variable the automation host sets to the plugin's
// install directory.
const PluginRootEnv = "CLAUDE_PLUGIN_ROOT"

const (
	DefaultVolume = 0.5
	DefaultPack   = "new-who"
)

// PluginRoot returns the plugin directory: $CLAUDE_PLUGIN_ROOT if set,
// otherwise the parent of the directory holding the executable
// (<root>/bin/doctor-who-sounds), otherwise ".".
func PluginRoot() string {
	if root := os.Getenv(PluginRootEnv); root != "" {
		return root
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(filepath.Dir(exe))
}

// Config is the user-editable config.json. It is owned by the plugin, not by
// this program, so every field is optional and unknown fields are ignored.
type Config struct {
	Enabled    bool
	Categories map[string]bool
	Volume     float64
	ActivePack string
}

// CategoryEnabled reports whether a category is switched on. Categories
// missing from the map are on.
func (c *Config) CategoryEnabled(category string) bool {
	on, ok := c.Categories[category]
	return !ok || on
}

// Manifest lists the sound files of one pack per category.
type Manifest struct {
	Sounds map[string][]string
}

// Plugin reads configuration, manifests and sounds below a plugin root.
// Nothing is cached: edits take effect on the next event.
type Plugin struct {
	FS   afero.Fs
	Root string
}

// NewPlugin returns a Plugin on the real filesystem.
func NewPlugin(root string) *Plugin {
	return &Plugin{FS: afero.NewOsFs(), Root: root}
}

func (p *Plugin) ConfigPath() string { return filepath.Join(p.Root, "config.json") }

func (p *Plugin) ManifestPath(pack string) string {
	return filepath.Join(p.Root, "packs", pack, "manifest.json")
}

func (p *Plugin) SoundPath(file string) string {
	return filepath.Join(p.Root, "sounds", file)
}

// LoadConfig reads config.json. Fields with the wrong JSON type fall back to
// their defaults instead of failing the whole file.
func (p *Plugin) LoadConfig() (*Config, error) {
	fields, err := p.readObject(p.ConfigPath())
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Enabled:    true,
		Volume:     DefaultVolume,
		ActivePack: DefaultPack,
	}
	decodeField(fields, "enabled", &cfg.Enabled)
	decodeField(fields, "categories", &cfg.Categories)
	decodeField(fields, "volume", &cfg.Volume)
	decodeField(fields, "active_pack", &cfg.ActivePack)

	if cfg.ActivePack == "" {
		cfg.ActivePack = DefaultPack
	}
	cfg.Volume = clampVolume(cfg.Volume)
	return cfg, nil
}

// LoadManifest reads packs/<pack>/manifest.json. A category whose list is not
// an array of strings is dropped.
func (p *Plugin) LoadManifest(pack string) (*Manifest, error) {
	fields, err := p.readObject(p.ManifestPath(pack))
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if !decodeField(fields, "sounds", &raw) {
		return nil, fmt.Errorf("manifest %s: no sounds object", pack)
	}

	m := &Manifest{Sounds: make(map[string][]string, len(raw))}
	for category, list := range raw {
		var files []string
		if err := json.Unmarshal(list, &files); err == nil {
			m.Sounds[category] = files
		}
	}
	return m, nil
}

// SoundExists reports whether a sound file is present under sounds/.
func (p *Plugin) SoundExists(file string) bool {
	ok, err := afero.Exists(p.FS, p.SoundPath(file))
	return err == nil && ok
}

func (p *Plugin) readObject(path string) (map[string]json.RawMessage, error) {
	data, err := afero.ReadFile(p.FS, path)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fields, nil
}

func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

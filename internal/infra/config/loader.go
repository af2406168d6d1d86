// Package config provides settings and roster loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/runoshun/boardsync/internal/domain"
)

// Loader loads settings from TOML files.
type Loader struct {
	dataDir       string // Path to the boardsync data directory
	globalConfDir string // Path to global config directory (e.g., ~/.config/boardsync)
}

// NewLoader creates a new Loader.
func NewLoader(dataDir string) *Loader {
	return &Loader{
		dataDir:       dataDir,
		globalConfDir: domain.GlobalConfigDir(),
	}
}

// NewLoaderWithGlobalDir creates a new Loader with a custom global config directory.
// This is useful for testing.
func NewLoaderWithGlobalDir(dataDir, globalConfDir string) *Loader {
	return &Loader{
		dataDir:       dataDir,
		globalConfDir: globalConfDir,
	}
}

// Load returns the merged settings (defaults <- global <- data dir).
func (l *Loader) Load() (*domain.Settings, error) {
	base := domain.NewDefaultSettings()

	if l.globalConfDir != "" {
		global, err := l.loadFile(filepath.Join(l.globalConfDir, domain.SettingsFileName))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if global != nil {
			base = mergeSettings(base, global)
		}
	}

	local, err := l.loadFile(filepath.Join(l.dataDir, domain.SettingsFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if local != nil {
		base = mergeSettings(base, local)
	}

	return base, nil
}

// loadFile loads settings from a file. Only keys present in the file are set.
func (l *Loader) loadFile(path string) (*domain.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return convertRawToSettings(raw), nil
}

// convertRawToSettings converts the raw map to settings and collects warnings.
func convertRawToSettings(raw map[string]any) *domain.Settings {
	res := &domain.Settings{}
	var warnings []string

	section := func(name string, value any, fn func(k string, v any) bool) {
		m, ok := value.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("[%s] must be a table", name))
			return
		}
		for k, v := range m {
			if !fn(k, v) {
				warnings = append(warnings, fmt.Sprintf("unknown key in [%s]: %s", name, k))
			}
		}
	}

	for name, value := range raw {
		switch name {
		case "remote":
			section(name, value, func(k string, v any) bool {
				switch k {
				case "backend":
					res.Remote.Backend = stringValue(v)
				case "api_url":
					res.Remote.APIURL = stringValue(v)
				case "git_root":
					res.Remote.GitRoot = stringValue(v)
				case "timeout":
					d, err := time.ParseDuration(stringValue(v))
					if err != nil || d <= 0 {
						warnings = append(warnings, fmt.Sprintf("invalid [remote].timeout: %v", v))
						return true
					}
					res.Remote.Timeout = d
				default:
					return false
				}
				return true
			})
		case "local":
			section(name, value, func(k string, v any) bool {
				if k != "store" {
					return false
				}
				res.Local.Store = stringValue(v)
				return true
			})
		case "log":
			section(name, value, func(k string, v any) bool {
				if k != "level" {
					return false
				}
				res.Log.Level = stringValue(v)
				return true
			})
		case "seed":
			section(name, value, func(k string, v any) bool {
				if k != "roster" {
					return false
				}
				res.Seed.Roster = stringValue(v)
				return true
			})
		default:
			warnings = append(warnings, fmt.Sprintf("unknown section: %s", name))
		}
	}

	switch res.Remote.Backend {
	case "", domain.BackendContents, domain.BackendGit:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown [remote].backend: %s", res.Remote.Backend))
		res.Remote.Backend = ""
	}
	switch res.Local.Store {
	case "", domain.StoreJSON, domain.StoreSQLite:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown [local].store: %s", res.Local.Store))
		res.Local.Store = ""
	}

	sort.Strings(warnings)
	res.Warnings = warnings
	return res
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// mergeSettings overlays the non-zero values of override onto base.
func mergeSettings(base, override *domain.Settings) *domain.Settings {
	result := *base
	if override.Remote.Backend != "" {
		result.Remote.Backend = override.Remote.Backend
	}
	if override.Remote.APIURL != "" {
		result.Remote.APIURL = override.Remote.APIURL
	}
	if override.Remote.GitRoot != "" {
		result.Remote.GitRoot = override.Remote.GitRoot
	}
	if override.Remote.Timeout != 0 {
		result.Remote.Timeout = override.Remote.Timeout
	}
	if override.Local.Store != "" {
		result.Local.Store = override.Local.Store
	}
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Seed.Roster != "" {
		result.Seed.Roster = override.Seed.Roster
	}
	result.Warnings = append(append([]string(nil), base.Warnings...), override.Warnings...)
	return &result
}

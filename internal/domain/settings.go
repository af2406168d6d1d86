package domain

import (
	"os"
	"path/filepath"
	"time"
)

// Settings file and directory names.
const (
	SettingsFileName = "config.toml"
	AppDirName       = "boardsync"
)

// Remote backends.
const (
	BackendContents = "contents"
	BackendGit      = "git"
)

// Local store kinds.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// DefaultAPIURL is the contents API used when none is configured.
const DefaultAPIURL = "https://api.github.com"

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 15 * time.Second

// Settings holds the application settings loaded from config.toml.
type Settings struct {
	Remote   RemoteSettings
	Local    LocalSettings
	Log      LogSettings
	Seed     SeedSettings
	Warnings []string // Unknown keys and unparsable values
}

// RemoteSettings holds the [remote] section.
type RemoteSettings struct {
	Backend string        // "contents" or "git"
	APIURL  string        // Base URL of the contents API
	GitRoot string        // Directory holding <owner>/<repo> git repositories (git backend)
	Timeout time.Duration // Per-call timeout
}

// LocalSettings holds the [local] section.
type LocalSettings struct {
	Store string // "json" or "sqlite"
}

// LogSettings holds the [log] section.
type LogSettings struct {
	Level string // debug, info, warn, error
}

// SeedSettings holds the [seed] section.
type SeedSettings struct {
	Roster string // Path to a YAML roster file (relative to the data dir)
}

// NewDefaultSettings returns the settings used when no file overrides them.
func NewDefaultSettings() *Settings {
	return &Settings{
		Remote: RemoteSettings{
			Backend: BackendContents,
			APIURL:  DefaultAPIURL,
			Timeout: DefaultTimeout,
		},
		Local: LocalSettings{Store: StoreJSON},
		Log:   LogSettings{Level: "info"},
	}
}

// DefaultDataDir returns $XDG_DATA_HOME/boardsync (or ~/.local/share/boardsync).
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return AppDirName
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppDirName)
}

// GlobalConfigDir returns $XDG_CONFIG_HOME/boardsync (or ~/.config/boardsync),
// or "" if no home directory is available.
func GlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppDirName)
}

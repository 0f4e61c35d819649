package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	appDir          = "logkv"
	fallbackDataDir = "./data"

	logSubdir   = "log"
	storeSubdir = "store"
)

// Layout is the on-disk arrangement of a node's data directory. Each Pebble
// database gets its own subdirectory so the embedded log and the
// materialized store can be wiped independently.
type Layout struct {
	Root string
}

// Layout returns the layout rooted at DataDir.
func (c Config) Layout() Layout { return Layout{Root: c.DataDir} }

// LogDir holds the embedded commit log and its consumer cursors.
func (l Layout) LogDir() string { return filepath.Join(l.Root, logSubdir) }

// StoreDir holds the Pebble materialized store.
func (l Layout) StoreDir() string { return filepath.Join(l.Root, storeSubdir) }

// Dirs returns the directories the given config will open, in creation
// order. Memory stores and remote logs need none.
func (c Config) Dirs() []string {
	l := c.Layout()
	var dirs []string
	if c.Log.Backend == LogBackendEmbedded {
		dirs = append(dirs, l.LogDir())
	}
	if c.Store.Backend == StorePebble {
		dirs = append(dirs, l.StoreDir())
	}
	return dirs
}

// EnsureDirs creates every directory in c.Dirs with owner-only
// permissions.
func (c Config) EnsureDirs() error {
	for _, dir := range c.Dirs() {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultDataDir picks the data root when none is configured.
//
// XDG_DATA_HOME wins when set. A root process on Linux uses /var/lib/logkv.
// Everyone else gets the per-user application data directory of their OS,
// or ./data when no home directory is known.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	if runtime.GOOS == "linux" && os.Geteuid() == 0 && isDir("/var/lib") {
		return filepath.Join("/var/lib", appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return fallbackDataDir
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "LogKV")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "LogKV")
		}
		return filepath.Join(home, "AppData", "Local", "LogKV")
	default:
		return filepath.Join(home, ".local", "share", appDir)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Package where implements a cross-platform resolver for application-specific filesystem paths.
package where

import (
	"os"
	"path/filepath"

	"github.com/mi-skam/bramble/constant"
	"github.com/mi-skam/bramble/filesystem"
	"github.com/samber/lo"
)

// EnvConfigPath is the environment variable identifier used to override the default configuration directory.
const EnvConfigPath = "BRAMBLE_CONFIG_PATH"

// ensureDir guarantees the existence of a directory at the specified path, creating it if necessary.
func ensureDir(path string) string {
	lo.Must0(filesystem.API().MkdirAll(path, os.ModePerm))
	return path
}

// Config resolves the absolute path to the primary application configuration directory.
// It prioritizes the XDG_CONFIG_HOME specification on Linux and equivalent user profile paths on Darwin and Windows.
// Direct override: The path resolution can be explicitly specified via the BRAMBLE_CONFIG_PATH environment variable.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return ensureDir(custom)
	}

	base := lo.Must(os.UserConfigDir())
	return ensureDir(filepath.Join(base, constant.Bramble))
}

// Cache resolves the absolute path to the application's persistent cache directory.
// Compliance: Adheres to the XDG_CACHE_HOME specification or platform-specific equivalent.
func Cache() string {
	base, err := os.UserCacheDir()
	if err != nil {
		// Fallback: Revert to a localized cache directory if the system-provided path is inaccessible.
		base = filepath.Join(".", "cache")
	}
	return ensureDir(filepath.Join(base, constant.Bramble))
}

// Logs resolves the absolute path to the directory used for application diagnostic and audit logs.
func Logs() string {
	return ensureDir(filepath.Join(Config(), "logs"))
}

// Media resolves the absolute path to the default directory holding the display loop's images and videos.
// Used only when playback.media_directory is not configured.
func Media() string {
	base, err := os.UserHomeDir()
	if err != nil {
		base = "."
	}
	return ensureDir(filepath.Join(base, constant.Bramble+"-media"))
}

// Runtime resolves the directory holding per-run sockets.
// Compliance: Prefers XDG_RUNTIME_DIR and degrades to the system temporary directory.
func Runtime() string {
	if dir, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok {
		return ensureDir(filepath.Join(dir, constant.Bramble))
	}
	return ensureDir(filepath.Join(os.TempDir(), constant.Bramble))
}

// ControlSocket resolves the well-known path of the daemon's control socket.
func ControlSocket() string {
	return filepath.Join(Runtime(), "control.sock")
}

// Resume resolves the absolute path to the persisted playback position file.
func Resume() string {
	return filepath.Join(Cache(), "resume.json")
}

// Temp resolves a unique, volatile filesystem path for transient application artifacts.
func Temp() string {
	return ensureDir(filepath.Join(os.TempDir(), constant.Bramble))
}

package log

import (
	"os"
	"path/filepath"
	"runtime"
)

// defaultDir is the per-user log location: ~/Library/Logs/traductor on
// macOS, %LOCALAPPDATA%\traductor\logs on Windows and
// $XDG_STATE_HOME/traductor elsewhere.
func defaultDir() (string, error) {
	if runtime.GOOS == "windows" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(cache, "traductor", "logs"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "traductor"), nil
	}
	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, "traductor"), nil
}

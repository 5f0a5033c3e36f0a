package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the directory for rotated log files.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\record-files\logs
//   - Unix: ~/.config/record-files/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "record-files-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "record-files", "logs")
	}
	return filepath.Join(configDir(), "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

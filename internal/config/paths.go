package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the directory the diagnostic log lives in.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\adbfb\logs
//   - Unix: ~/.config/adbfb/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "adbfb-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "adbfb", "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "adbfb-logs")
		}
		return filepath.Join(homeDir, ".config", "adbfb", "logs")
	}
	return filepath.Join(configDir, "adbfb", "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
// Uses 0700 permissions to restrict log access to owner only.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

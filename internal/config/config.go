// Package config provides configuration management for adbfb.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/adbfb/adbfb/internal/constants"
)

// Config represents the adbfb.conf file.
//
// Config file location:
//   - Windows: %APPDATA%\adbfb\adbfb.conf
//   - Unix: ~/.config/adbfb/adbfb.conf
//
// INI format:
//
//	[adb]
//	path = adb
//	default_device =
//
//	[browser]
//	start_directory = /sdcard
//	auto_refresh_devices = true
//	device_refresh_seconds = 10
//
//	[transfers]
//	progress_rate = 10
//	event_buffer = 1000
//	staging_dir =
//
//	[notifications]
//	enabled = true
//	show_finished = true
//	show_failed = true
//
//	[logging]
//	log_file = ~/.config/adbfb/logs/adb_file_browser.log
//	verbose = false
type Config struct {
	ADB           ADBConfig          `json:"adb" yaml:"adb"`
	Browser       BrowserConfig      `json:"browser" yaml:"browser"`
	Transfers     TransferConfig     `json:"transfers" yaml:"transfers"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	Logging       LoggingConfig      `json:"logging" yaml:"logging"`
}

// ADBConfig locates the device-bridge tool.
type ADBConfig struct {
	// Path is the adb executable. A bare name is looked up on PATH.
	// Default: adb
	Path string `ini:"path" json:"path" yaml:"path"`

	// DefaultDevice is used when no --device flag is given.
	// Empty means "let adb pick" (only valid with a single device attached).
	DefaultDevice string `ini:"default_device" json:"default_device" yaml:"default_device"`
}

// BrowserConfig holds remote-browsing settings.
type BrowserConfig struct {
	// StartDirectory is the remote directory relative paths resolve against.
	// Default: /sdcard
	StartDirectory string `ini:"start_directory" json:"start_directory" yaml:"start_directory"`

	// AutoRefreshDevices re-lists devices periodically in watch mode.
	// Default: true
	AutoRefreshDevices bool `ini:"auto_refresh_devices" json:"auto_refresh_devices" yaml:"auto_refresh_devices"`

	// DeviceRefreshSeconds is the refresh period.
	// Minimum: 1, Maximum: 3600, Default: 10
	DeviceRefreshSeconds int `ini:"device_refresh_seconds" json:"device_refresh_seconds" yaml:"device_refresh_seconds"`
}

// TransferConfig tunes the transfer engine.
type TransferConfig struct {
	// ProgressRate is the number of progress updates per second forwarded per task.
	// Minimum: 1, Maximum: 100, Default: 10
	ProgressRate int `ini:"progress_rate" json:"progress_rate" yaml:"progress_rate"`

	// EventBuffer is the per-subscriber event channel size.
	// Default: 1000
	EventBuffer int `ini:"event_buffer" json:"event_buffer" yaml:"event_buffer"`

	// StagingDir holds temporary zip staging directories.
	// Empty means the system temp directory.
	StagingDir string `ini:"staging_dir" json:"staging_dir" yaml:"staging_dir"`
}

// NotificationConfig controls desktop notifications.
type NotificationConfig struct {
	Enabled      bool `ini:"enabled" json:"enabled" yaml:"enabled"`
	ShowFinished bool `ini:"show_finished" json:"show_finished" yaml:"show_finished"`
	ShowFailed   bool `ini:"show_failed" json:"show_failed" yaml:"show_failed"`
}

// LoggingConfig controls the diagnostic log.
type LoggingConfig struct {
	// LogFile receives every adb output line. Empty disables file logging.
	LogFile string `ini:"log_file" json:"log_file" yaml:"log_file"`

	// Verbose shows debug output on the console.
	Verbose bool `ini:"verbose" json:"verbose" yaml:"verbose"`
}

// Config validation errors
var (
	ErrMissingADBPath         = errors.New("adb path is required")
	ErrInvalidStartDirectory  = errors.New("start_directory must be an absolute device path")
	ErrInvalidRefreshInterval = errors.New("device_refresh_seconds must be between 1 and 3600")
	ErrInvalidProgressRate    = errors.New("progress_rate must be between 1 and 100")
	ErrInvalidEventBuffer     = errors.New("event_buffer must be between 1 and 5000")
)

// DefaultConfigPath returns the default path for the adbfb.conf file.
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "adbfb")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "adbfb")
	}

	return filepath.Join(configDir, "adbfb.conf"), nil
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ADB: ADBConfig{
			Path:          constants.ToolName,
			DefaultDevice: "",
		},
		Browser: BrowserConfig{
			StartDirectory:       constants.DefaultStartDirectory,
			AutoRefreshDevices:   true,
			DeviceRefreshSeconds: int(constants.DefaultDeviceRefreshInterval / time.Second),
		},
		Transfers: TransferConfig{
			ProgressRate: constants.DefaultProgressRate,
			EventBuffer:  constants.EventBusDefaultBuffer,
		},
		Notifications: NotificationConfig{
			Enabled:      true,
			ShowFinished: true,
			ShowFailed:   true,
		},
		Logging: LoggingConfig{
			LogFile: filepath.Join(LogDirectory(), constants.DiagnosticLogName),
			Verbose: false,
		},
	}
}

// LoadConfig loads configuration from the adbfb.conf file.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load adbfb.conf: %w", err)
	}

	adbSection := iniFile.Section("adb")
	cfg.ADB.Path = adbSection.Key("path").MustString(constants.ToolName)
	cfg.ADB.DefaultDevice = adbSection.Key("default_device").String()

	browserSection := iniFile.Section("browser")
	cfg.Browser.StartDirectory = browserSection.Key("start_directory").MustString(constants.DefaultStartDirectory)
	cfg.Browser.AutoRefreshDevices = browserSection.Key("auto_refresh_devices").MustBool(true)
	cfg.Browser.DeviceRefreshSeconds = browserSection.Key("device_refresh_seconds").MustInt(cfg.Browser.DeviceRefreshSeconds)

	transfersSection := iniFile.Section("transfers")
	cfg.Transfers.ProgressRate = transfersSection.Key("progress_rate").MustInt(constants.DefaultProgressRate)
	cfg.Transfers.EventBuffer = transfersSection.Key("event_buffer").MustInt(constants.EventBusDefaultBuffer)
	cfg.Transfers.StagingDir = expandHome(transfersSection.Key("staging_dir").String())

	notifySection := iniFile.Section("notifications")
	cfg.Notifications.Enabled = notifySection.Key("enabled").MustBool(true)
	cfg.Notifications.ShowFinished = notifySection.Key("show_finished").MustBool(true)
	cfg.Notifications.ShowFailed = notifySection.Key("show_failed").MustBool(true)

	loggingSection := iniFile.Section("logging")
	if loggingSection.HasKey("log_file") {
		cfg.Logging.LogFile = expandHome(loggingSection.Key("log_file").String())
	}
	cfg.Logging.Verbose = loggingSection.Key("verbose").MustBool(false)

	return cfg, nil
}

// SaveConfig saves configuration to the adbfb.conf file.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	adbSection, err := iniFile.NewSection("adb")
	if err != nil {
		return fmt.Errorf("failed to create adb section: %w", err)
	}
	adbSection.Key("path").SetValue(cfg.ADB.Path)
	adbSection.Key("default_device").SetValue(cfg.ADB.DefaultDevice)

	browserSection, err := iniFile.NewSection("browser")
	if err != nil {
		return fmt.Errorf("failed to create browser section: %w", err)
	}
	browserSection.Key("start_directory").SetValue(cfg.Browser.StartDirectory)
	browserSection.Key("auto_refresh_devices").SetValue(fmt.Sprintf("%t", cfg.Browser.AutoRefreshDevices))
	browserSection.Key("device_refresh_seconds").SetValue(fmt.Sprintf("%d", cfg.Browser.DeviceRefreshSeconds))

	transfersSection, err := iniFile.NewSection("transfers")
	if err != nil {
		return fmt.Errorf("failed to create transfers section: %w", err)
	}
	transfersSection.Key("progress_rate").SetValue(fmt.Sprintf("%d", cfg.Transfers.ProgressRate))
	transfersSection.Key("event_buffer").SetValue(fmt.Sprintf("%d", cfg.Transfers.EventBuffer))
	transfersSection.Key("staging_dir").SetValue(cfg.Transfers.StagingDir)

	notifySection, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notifySection.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.Notifications.Enabled))
	notifySection.Key("show_finished").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowFinished))
	notifySection.Key("show_failed").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowFailed))

	loggingSection, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	loggingSection.Key("log_file").SetValue(cfg.Logging.LogFile)
	loggingSection.Key("verbose").SetValue(fmt.Sprintf("%t", cfg.Logging.Verbose))

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.ADB.Path) == "" {
		return ErrMissingADBPath
	}
	if !strings.HasPrefix(cfg.Browser.StartDirectory, "/") {
		return ErrInvalidStartDirectory
	}
	if cfg.Browser.DeviceRefreshSeconds < 1 || cfg.Browser.DeviceRefreshSeconds > int(constants.MaxDeviceRefreshInterval/time.Second) {
		return ErrInvalidRefreshInterval
	}
	if cfg.Transfers.ProgressRate < 1 || cfg.Transfers.ProgressRate > constants.MaxProgressRate {
		return ErrInvalidProgressRate
	}
	if cfg.Transfers.EventBuffer < 1 || cfg.Transfers.EventBuffer > constants.EventBusMaxBuffer {
		return ErrInvalidEventBuffer
	}
	return nil
}

// DeviceRefreshInterval returns the refresh period as a duration.
func (cfg *Config) DeviceRefreshInterval() time.Duration {
	return time.Duration(cfg.Browser.DeviceRefreshSeconds) * time.Second
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

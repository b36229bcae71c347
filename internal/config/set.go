package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Keys lists every settable key as section.key.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(cfg *Config, value string) error{
	"adb.path":                       stringSetter(func(c *Config) *string { return &c.ADB.Path }),
	"adb.default_device":             stringSetter(func(c *Config) *string { return &c.ADB.DefaultDevice }),
	"browser.start_directory":        stringSetter(func(c *Config) *string { return &c.Browser.StartDirectory }),
	"browser.auto_refresh_devices":   boolSetter(func(c *Config) *bool { return &c.Browser.AutoRefreshDevices }),
	"browser.device_refresh_seconds": intSetter(func(c *Config) *int { return &c.Browser.DeviceRefreshSeconds }),
	"transfers.progress_rate":        intSetter(func(c *Config) *int { return &c.Transfers.ProgressRate }),
	"transfers.event_buffer":         intSetter(func(c *Config) *int { return &c.Transfers.EventBuffer }),
	"transfers.staging_dir":          stringSetter(func(c *Config) *string { return &c.Transfers.StagingDir }),
	"notifications.enabled":          boolSetter(func(c *Config) *bool { return &c.Notifications.Enabled }),
	"notifications.show_finished":    boolSetter(func(c *Config) *bool { return &c.Notifications.ShowFinished }),
	"notifications.show_failed":      boolSetter(func(c *Config) *bool { return &c.Notifications.ShowFailed }),
	"logging.log_file":               stringSetter(func(c *Config) *string { return &c.Logging.LogFile }),
	"logging.verbose":                boolSetter(func(c *Config) *bool { return &c.Logging.Verbose }),
}

// Set assigns one key (section.key) from its string form and revalidates.
// cfg is left unchanged on error.
func (cfg *Config) Set(key, value string) error {
	set, ok := setters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("unknown key %q (expected one of: %s)", key, strings.Join(Keys(), ", "))
	}

	updated := *cfg
	if err := set(&updated, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	*cfg = updated
	return nil
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = expandHome(strings.TrimSpace(v))
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*field(c) = b
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		*field(c) = n
		return nil
	}
}

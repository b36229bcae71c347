// Package notify sends desktop notifications when transfers finish or fail.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/adbfb/adbfb/internal/config"
	"github.com/adbfb/adbfb/internal/logging"
)

const appTitle = "ADB File Browser"

// Notifier handles desktop notifications.
type Notifier struct {
	logger *logging.Logger
	cfg    Config
	mu     sync.RWMutex

	// sendFunc delivers one notification. Replaced in tests.
	sendFunc func(title, message string) error
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent.
	Enabled bool

	// ShowFinished notifies when the last active transfer ends.
	ShowFinished bool

	// ShowFailed notifies for every failed transfer.
	ShowFailed bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		ShowFinished: true,
		ShowFailed:   true,
	}
}

// FromSettings converts the [notifications] section of adbfb.conf.
func FromSettings(s config.NotificationConfig) *Config {
	return &Config{
		Enabled:      s.Enabled,
		ShowFinished: s.ShowFinished,
		ShowFailed:   s.ShowFailed,
	}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Notifier{
		logger: logger.Named("notify"),
		cfg:    *cfg,
		sendFunc: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg.Enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cfg.Enabled
}

func (n *Notifier) config() Config {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cfg
}

// Summary counts the outcomes of a finished round of transfers.
type Summary struct {
	Succeeded int
	Failed    int
	Cancelled int
}

// TransfersFinished notifies that the active set drained.
func (n *Notifier) TransfersFinished(s Summary) {
	cfg := n.config()
	if !cfg.Enabled || !cfg.ShowFinished {
		return
	}

	title := "Transfers Finished"
	message := fmt.Sprintf("%d succeeded", s.Succeeded)
	if s.Failed > 0 {
		message += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.Cancelled > 0 {
		message += fmt.Sprintf(", %d cancelled", s.Cancelled)
	}

	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send transfers finished notification")
	}
}

// TransferFailed notifies about one failed transfer.
func (n *Notifier) TransferFailed(taskTitle, errorMsg string) {
	cfg := n.config()
	if !cfg.Enabled || !cfg.ShowFailed {
		return
	}

	title := "Transfer Failed"
	message := fmt.Sprintf("%s failed:\n%s", truncate(taskTitle, 60), truncate(errorMsg, 100))

	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Str("task", taskTitle).Msg("Failed to send transfer failed notification")
	}
}

// ArchiveReady notifies that a zip transfer wrote its archive.
func (n *Notifier) ArchiveReady(path string) {
	cfg := n.config()
	if !cfg.Enabled || !cfg.ShowFinished {
		return
	}
	if err := n.send("Archive Ready", fmt.Sprintf("Saved to:\n%s", shortenPath(path))); err != nil {
		n.logger.Warn().Err(err).Str("path", path).Msg("Failed to send archive notification")
	}
}

// DeviceConnected notifies that a WiFi connection was established.
func (n *Notifier) DeviceConnected(serial string) {
	if !n.IsEnabled() {
		return
	}
	if err := n.send(appTitle, fmt.Sprintf("Connected to %s", serial)); err != nil {
		n.logger.Warn().Err(err).Str("device", serial).Msg("Failed to send device notification")
	}
}

func (n *Notifier) send(title, message string) error {
	n.logger.Debug().Str("title", title).Str("message", message).Msg("notify")
	return n.sendFunc(title, message)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}
	return short
}

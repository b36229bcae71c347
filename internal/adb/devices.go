package adb

import (
	"context"
	"fmt"
	"strings"

	"github.com/adbfb/adbfb/internal/constants"
	"github.com/adbfb/adbfb/internal/process"
)

// Runner runs one adb invocation. *process.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, args []string, onLine func(line string)) process.Result
}

// Device is one row of "adb devices".
type Device struct {
	Serial string `json:"serial" yaml:"serial"`
	State  string `json:"state" yaml:"state"`
	WiFi   bool   `json:"wifi" yaml:"wifi"`
}

// Display returns the identifier shown to users, with " (WiFi)" appended for
// network-attached devices. Bind accepts either form.
func (d Device) Display() string {
	if d.WiFi {
		return d.Serial + constants.WiFiSuffix
	}
	return d.Serial
}

// Resolver lists devices and qualifies commands for one of them.
type Resolver struct {
	runner Runner
}

// NewResolver creates a Resolver that runs adb through runner.
func NewResolver(runner Runner) *Resolver {
	return &Resolver{runner: runner}
}

// ListDevices runs "adb devices" and returns usable and unauthorized devices.
func (r *Resolver) ListDevices(ctx context.Context) ([]Device, error) {
	res := r.runner.Run(ctx, Devices(), nil)
	if !res.Success() {
		return nil, fmt.Errorf("failed to list devices: %w", res.Err)
	}
	return ParseDevices(res.Output), nil
}

// ParseDevices parses "adb devices" output. The header line is discarded, and
// rows are kept only when their state is "device" or "unauthorized".
func ParseDevices(output string) []Device {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	var devices []Device
	for _, line := range lines {
		line = strings.TrimSpace(line)
		// The header, plus daemon start-up chatter ("* daemon started").
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		state := fields[1]
		if state != "device" && state != "unauthorized" {
			continue
		}
		devices = append(devices, Device{
			Serial: fields[0],
			State:  state,
			WiFi:   strings.Contains(fields[0], ":"),
		})
	}
	return devices
}

// Serial strips the transport annotation from a displayed identifier.
// "192.168.1.5:5555 (WiFi)" becomes "192.168.1.5:5555".
func Serial(device string) string {
	fields := strings.Fields(device)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Bind returns a copy of cmd with "-s <serial>" inserted after the tool name.
// cmd is returned unchanged when device is empty or the "No Device" sentinel,
// or when cmd does not start with the tool name.
func Bind(cmd Command, device string) Command {
	serial := Serial(device)
	if serial == "" || strings.TrimSpace(device) == constants.NoDevice {
		return cmd
	}
	if len(cmd) == 0 || cmd[0] != constants.ToolName {
		return cmd
	}

	out := make(Command, 0, len(cmd)+2)
	out = append(out, cmd[0], "-s", serial)
	return append(out, cmd[1:]...)
}

// Bind is a convenience for the package-level Bind.
func (r *Resolver) Bind(cmd Command, device string) Command {
	return Bind(cmd, device)
}

// FirstUSB returns the first attached device that is not network-attached.
func FirstUSB(devices []Device) (Device, bool) {
	for _, d := range devices {
		if !d.WiFi && d.State == "device" {
			return d, true
		}
	}
	return Device{}, false
}

package constants

import (
	"time"
)

// Device bridge
const (
	// ToolName is the base name every device-bridge command starts with.
	// The runner maps it to the configured executable path.
	ToolName = "adb"

	// NoDevice is the sentinel the device selector uses when nothing is attached.
	NoDevice = "No Device"

	// WiFiSuffix is appended to device identifiers that carry a network address.
	WiFiSuffix = " (WiFi)"

	// ProgressFlag asks push/pull to print machine-parsable progress.
	ProgressFlag = "-p"

	// DefaultTCPIPPort is the port `adb tcpip` switches a USB device to.
	DefaultTCPIPPort = 5555
)

// Remote browsing
const (
	// DefaultStartDirectory is where the remote browser opens.
	DefaultStartDirectory = "/sdcard"

	// DefaultDeviceRefreshInterval - how often the device list is refreshed (10s)
	DefaultDeviceRefreshInterval = 10 * time.Second

	// MaxDeviceRefreshInterval caps the auto-refresh period (1 hour)
	MaxDeviceRefreshInterval = time.Hour
)

// Progress labels reported by transfer tasks
const (
	LabelTransferring = "Transferring..."
	LabelRunning      = "Running..."
	LabelZipping      = "Zipping files..."
	LabelFinished     = "Finished"

	// ZippingPercent is the overall percentage reported while the archive is written.
	ZippingPercent = 99
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000

	// EventDeliveryTimeout - how long a must-deliver event waits on a full subscriber (5s)
	EventDeliveryTimeout = 5 * time.Second
)

// Engine
const (
	// DefaultProgressRate - progress updates per second forwarded per task (10)
	// Updates above this rate are coalesced; terminal events are never dropped.
	DefaultProgressRate = 10

	// MaxProgressRate caps the configurable progress rate.
	MaxProgressRate = 100

	// EngineUpdateBuffer - buffer of the worker -> coordinator update channel
	EngineUpdateBuffer = 256

	// MaxCapturedOutput - raw combined output kept per process for result text (4 MiB)
	// Anything past it is dropped and the result is marked truncated.
	MaxCapturedOutput = 4 * 1024 * 1024

	// TruncatedNote is appended to a command result cut at MaxCapturedOutput.
	TruncatedNote = "[output truncated]"
)

// Logging
const (
	// DiagnosticLogName is the append-only log every adb output line is recorded to.
	DiagnosticLogName = "adb_file_browser.log"

	// LogMaxSizeMB, LogMaxBackups, LogMaxAgeDays configure log rotation.
	LogMaxSizeMB  = 10
	LogMaxBackups = 5
	LogMaxAgeDays = 30
)

// WiFi debugging
const (
	// ScanPortFirst and ScanPortLast bound the wireless-debugging ports probed by "connect --scan".
	ScanPortFirst = 5555
	ScanPortLast  = 5585

	// ScanDialTimeout - per-port connect timeout while scanning (100ms)
	ScanDialTimeout = 100 * time.Millisecond
)

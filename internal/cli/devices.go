package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adbfb/adbfb/internal/adb"
	"github.com/adbfb/adbfb/internal/constants"
)

// newDevicesCmd creates the 'devices' command.
func newDevicesCmd() *cobra.Command {
	var output string
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached devices",
		Long: `List devices attached over USB or WiFi.

Only devices in the "device" or "unauthorized" state are shown. Network-attached
devices are marked (WiFi).

Examples:
  adbfb devices
  adbfb devices --output json
  adbfb devices --watch --interval 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output, formatTable, formatJSON, formatYAML)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := GetContext()
			if !watch {
				devices, err := a.resolver.ListDevices(ctx)
				if err != nil {
					return fmt.Errorf("failed to list devices: %w", err)
				}
				return printDevices(format, devices)
			}

			if interval <= 0 {
				interval = a.cfg.DeviceRefreshInterval()
			}
			return watchDevices(ctx, a, format, interval)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json, yaml")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep refreshing the list until Ctrl+C")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh interval for --watch (default: device_refresh_seconds)")

	return cmd
}

func printDevices(format outputFormat, devices []adb.Device) error {
	if format != formatTable {
		if devices == nil {
			devices = []adb.Device{}
		}
		return writeStructured(os.Stdout, format, devices)
	}

	if len(devices) == 0 {
		fmt.Println(constants.NoDevice)
		return nil
	}

	rows := make([][2]string, len(devices))
	for i, d := range devices {
		rows[i] = [2]string{d.Display(), d.State}
	}
	writeColumns(os.Stdout, rows)
	return nil
}

// watchDevices re-lists devices on every tick and prints the list when it changes.
func watchDevices(ctx context.Context, a *app, format outputFormat, interval time.Duration) error {
	if !a.cfg.Browser.AutoRefreshDevices {
		a.logger.Info().Msg("auto_refresh_devices is off in the configuration; refreshing because --watch was given")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []adb.Device
	first := true
	for {
		devices, err := a.resolver.ListDevices(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to list devices")
		} else if first || !reflect.DeepEqual(devices, last) {
			fmt.Printf("[%s]\n", time.Now().Format("15:04:05"))
			if err := printDevices(format, devices); err != nil {
				return err
			}
			last = devices
			first = false
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// newConnectCmd creates the 'connect' command.
func newConnectCmd() *cobra.Command {
	var pairAddr string
	var pairCode string
	var scan bool

	cmd := &cobra.Command{
		Use:   "connect <host[:port]>",
		Short: "Connect to a device over WiFi",
		Long: `Connect to a device over WiFi with "adb connect".

Android 11+ wireless debugging needs a one-time pairing first: pass the pairing
address and code shown on the device with --pair and --code.

With --scan, ports 5555-5585 on the host are probed and the first open port
is used.

Examples:
  adbfb connect 192.168.1.5
  adbfb connect 192.168.1.5:37099 --pair 192.168.1.5:42113 --code 123456
  adbfb connect 192.168.1.5 --scan`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pairAddr != "" && pairCode == "" {
				return fmt.Errorf("--code is required with --pair")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := GetContext()

			if pairAddr != "" {
				out, err := a.runQuiet(ctx, "Pairing "+pairAddr, adb.Pair(pairAddr, pairCode))
				if err != nil {
					return err
				}
				if !adb.PairSucceeded(out) {
					return fmt.Errorf("pairing failed: %s", strings.TrimSpace(out))
				}
				fmt.Printf("✓ Paired with %s\n", pairAddr)
			}

			addr := args[0]
			if scan {
				host := hostOnly(addr)
				fmt.Printf("Scanning %s ports %d-%d...\n", host, constants.ScanPortFirst, constants.ScanPortLast)
				open := adb.ScanPorts(ctx, host, constants.ScanPortFirst, constants.ScanPortLast, constants.ScanDialTimeout)
				if len(open) == 0 {
					return fmt.Errorf("no open debugging port found on %s", host)
				}
				addr = adb.Address(host, open[0])
			} else if _, _, err := net.SplitHostPort(addr); err != nil {
				addr = adb.Address(addr, constants.DefaultTCPIPPort)
			}

			out, err := a.runQuiet(ctx, "Connecting to "+addr, adb.Connect(addr))
			if err != nil {
				return err
			}
			if !adb.ConnectSucceeded(out) {
				return fmt.Errorf("connection failed: %s", strings.TrimSpace(out))
			}

			fmt.Printf("✓ %s\n", strings.TrimSpace(out))
			a.notifier.DeviceConnected(addr)
			return nil
		},
	}

	cmd.Flags().StringVar(&pairAddr, "pair", "", "Pair first with this host:port (wireless debugging)")
	cmd.Flags().StringVar(&pairCode, "code", "", "Pairing code shown on the device")
	cmd.Flags().BoolVar(&scan, "scan", false, "Probe common debugging ports and connect to the first open one")

	return cmd
}

// hostOnly strips a port from host:port.
func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}

// newTCPIPCmd creates the 'tcpip' command.
func newTCPIPCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "tcpip",
		Short: "Switch the first USB device to WiFi debugging",
		Long: `Restart adbd on the first USB-attached device in TCP/IP mode, so it can
then be reached with 'adbfb connect <device-ip>'.

Examples:
  adbfb tcpip
  adbfb tcpip --port 5556`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := GetContext()

			devices, err := a.resolver.ListDevices(ctx)
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			usb, ok := adb.FirstUSB(devices)
			if !ok {
				return fmt.Errorf("no USB device attached")
			}

			deviceFlag = usb.Serial
			out, err := a.runQuiet(ctx, "Enabling TCP/IP on "+usb.Serial, adb.TCPIP(port))
			if err != nil {
				return err
			}
			fmt.Println(strings.TrimSpace(out))
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", constants.DefaultTCPIPPort, "TCP port adbd should listen on")

	return cmd
}

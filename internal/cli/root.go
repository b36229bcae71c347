// Package cli provides the command-line interface for adbfb.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adbfb/adbfb/internal/logging"
	"github.com/adbfb/adbfb/internal/version"
)

var (
	// Global flags
	cfgFile    string
	deviceFlag string
	adbPath    string
	verbose    bool
	debug      bool
	noNotify   bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adbfb",
		Short: "ADB file browser - browse, transfer and manage files on Android devices",
		Long: `adbfb ` + version.Version + ` - Built: ` + version.BuildTime + `
Browse and manage files on Android devices through adb.

Transfers run as tracked tasks with live progress. Every adb output line is
recorded to the diagnostic log (see 'adbfb log').

Device selection:
  --device, the [adb] default_device setting, or the only attached device.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewLogger("cli", logging.Options{Verbose: verbose || debug})
			if verbose || debug {
				logging.SetGlobalLevel(-1) // Debug level (zerolog.DebugLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default: ~/.config/adbfb/adbfb.conf)")
	rootCmd.PersistentFlags().StringVarP(&deviceFlag, "device", "d", "", "Device serial to use (overrides default_device)")
	rootCmd.PersistentFlags().StringVar(&adbPath, "adb", "", "Path to the adb executable (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows every adb output line)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().BoolVar(&noNotify, "no-notify", false, "Disable desktop notifications for this run")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))

	// Disable default completion command (we're adding our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C presses don't kill the process mid-cleanup
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, cancelling transfers...\n", sig)
				fmt.Fprintf(os.Stderr, "   Please wait for cleanup to complete.\n\n")
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	// Devices and connections
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newTCPIPCmd())

	// Browsing and inspection
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newStatCmd())
	rootCmd.AddCommand(newMD5Cmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newShellCmd())

	// Remote file operations
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newCpCmd())
	rootCmd.AddCommand(newRenameBatchCmd())

	// Transfers
	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newInstallCmd())

	// Settings and diagnostics
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLogCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

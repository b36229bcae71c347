package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adbfb/adbfb/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage adbfb configuration",
		Long: `Configuration management commands for adbfb.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  set   - Change one setting
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for adbfb.

The configuration will be saved to ~/.config/adbfb/adbfb.conf

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := promptConfig(os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Println()
			fmt.Printf("✓ Configuration saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptConfig walks through the settings, keeping defaults for empty or
// invalid answers.
func promptConfig(in io.Reader, out io.Writer) (*config.Config, error) {
	cfg := config.NewConfig()
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "adbfb Configuration Setup")
	fmt.Fprintln(out, "=========================")
	fmt.Fprintln(out)

	cfg.ADB.Path = promptString(reader, out, "adb executable", cfg.ADB.Path)
	cfg.ADB.DefaultDevice = promptString(reader, out, "Default device serial (empty for auto)", cfg.ADB.DefaultDevice)
	cfg.Browser.StartDirectory = promptString(reader, out, "Start directory on device", cfg.Browser.StartDirectory)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Transfer Settings (press Enter for defaults)")
	fmt.Fprintln(out, "---------------------------------------------")

	rate := promptString(reader, out, "Progress updates per second", strconv.Itoa(cfg.Transfers.ProgressRate))
	if v, err := strconv.Atoi(rate); err == nil && v > 0 {
		cfg.Transfers.ProgressRate = v
	}

	notify := promptString(reader, out, "Desktop notifications (y/n)", "y")
	cfg.Notifications.Enabled = !strings.HasPrefix(strings.ToLower(notify), "n")

	cfg.Logging.LogFile = promptString(reader, out, "Diagnostic log file (none to disable)", cfg.Logging.LogFile)
	if strings.EqualFold(cfg.Logging.LogFile, "none") {
		cfg.Logging.LogFile = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings, merged from the
configuration file and command-line flags (--adb).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output, formatTable, formatJSON, formatYAML)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if format != formatTable {
				return writeStructured(os.Stdout, format, cfg)
			}
			printConfig(os.Stdout, cfg)

			if path, err := configPath(); err == nil {
				fmt.Printf("\nConfiguration file: %s\n", path)
				if _, err := os.Stat(path); os.IsNotExist(err) {
					fmt.Println("  (file does not exist - using defaults)")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json, yaml")

	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) {
	orNone := func(s string) string {
		if s == "" {
			return "<not set>"
		}
		return s
	}

	fmt.Fprintln(w, "ADB:")
	writeColumns(w, [][2]string{
		{"Path:", cfg.ADB.Path},
		{"Default Device:", orNone(cfg.ADB.DefaultDevice)},
	})
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Browser:")
	writeColumns(w, [][2]string{
		{"Start Directory:", cfg.Browser.StartDirectory},
		{"Auto Refresh:", strconv.FormatBool(cfg.Browser.AutoRefreshDevices)},
		{"Refresh Interval:", cfg.DeviceRefreshInterval().String()},
	})
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Transfers:")
	writeColumns(w, [][2]string{
		{"Progress Rate:", fmt.Sprintf("%d/s", cfg.Transfers.ProgressRate)},
		{"Event Buffer:", strconv.Itoa(cfg.Transfers.EventBuffer)},
		{"Staging Dir:", orNone(cfg.Transfers.StagingDir)},
	})
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Notifications:")
	writeColumns(w, [][2]string{
		{"Enabled:", strconv.FormatBool(cfg.Notifications.Enabled)},
		{"On Finish:", strconv.FormatBool(cfg.Notifications.ShowFinished)},
		{"On Failure:", strconv.FormatBool(cfg.Notifications.ShowFailed)},
	})
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Logging:")
	writeColumns(w, [][2]string{
		{"Log File:", orNone(cfg.Logging.LogFile)},
		{"Verbose:", strconv.FormatBool(cfg.Logging.Verbose)},
	})
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <section.key> <value>",
		Short: "Change one setting",
		Long: `Change one setting in the configuration file.

Keys:
  ` + strings.Join(config.Keys(), "\n  ") + `

Examples:
  adbfb config set adb.default_device emulator-5554
  adbfb config set transfers.progress_rate 20`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Printf("✓ %s updated in %s\n", args[0], path)
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Println("Default configuration path:")
			} else {
				fmt.Println("Configuration path (from --config flag):")
			}
			fmt.Printf("  %s\n", path)
			fmt.Println()

			if info, err := os.Stat(path); err == nil {
				fmt.Println("Status: ✓ File exists")
				fmt.Printf("Size:   %d bytes\n", info.Size())
				fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("Status: File does not exist")
				fmt.Println()
				fmt.Println("Create a configuration file with: adbfb config init")
			}
			return nil
		},
	}
}

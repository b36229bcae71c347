package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adbfb/adbfb/internal/adb"
)

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var output string
	var filter string
	var dirsFirst bool

	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a device directory",
		Long: `List a directory on the device. Relative paths resolve against the
configured start directory (default /sdcard).

Directories are shown with a trailing '/'. Use --output csv to export the
listing.

Examples:
  adbfb ls
  adbfb ls DCIM/Camera
  adbfb ls /sdcard/Download --filter .pdf
  adbfb ls Music --output csv > music.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output, formatTable, formatJSON, formatYAML, formatCSV)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			dir = a.remotePath(dir)

			out, err := a.runQuiet(GetContext(), "Listing "+dir, adb.List(dir))
			if err != nil {
				return err
			}

			entries := filterEntries(adb.ParseListing(out), filter)
			if dirsFirst {
				sortDirsFirst(entries)
			}
			return printEntries(format, entries)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json, yaml, csv")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show names containing this text (case-insensitive)")
	cmd.Flags().BoolVar(&dirsFirst, "dirs-first", false, "List directories before files")

	return cmd
}

// filterEntries keeps entries whose name contains text, ignoring case.
func filterEntries(entries []adb.Entry, text string) []adb.Entry {
	if text == "" {
		return entries
	}
	needle := strings.ToLower(text)
	filtered := make([]adb.Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func sortDirsFirst(entries []adb.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].IsDir && !entries[j].IsDir
	})
}

func printEntries(format outputFormat, entries []adb.Entry) error {
	switch format {
	case formatJSON, formatYAML:
		if entries == nil {
			entries = []adb.Entry{}
		}
		return writeStructured(os.Stdout, format, entries)
	case formatCSV:
		rows := make([][]string, len(entries))
		for i, e := range entries {
			kind := "file"
			if e.IsDir {
				kind = "dir"
			}
			rows[i] = []string{e.Name, kind}
		}
		return writeCSV(os.Stdout, []string{"Name", "Type"}, rows)
	}

	for _, e := range entries {
		if e.IsDir {
			fmt.Println(e.Name + "/")
		} else {
			fmt.Println(e.Name)
		}
	}
	return nil
}

// newStatCmd creates the 'stat' command (file properties).
func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show file properties (ls -l)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCommandOutput(func(a *app) (string, adb.Command) {
				p := a.remotePath(args[0])
				return "Properties of " + p, adb.Stat(p)
			})
		},
	}
}

// newMD5Cmd creates the 'md5' command.
func newMD5Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "md5 <path>",
		Short: "Compute the MD5 checksum of a device file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCommandOutput(func(a *app) (string, adb.Command) {
				p := a.remotePath(args[0])
				return "MD5 of " + p, adb.MD5(p)
			})
		},
	}
}

// newInfoCmd creates the 'info' command.
func newInfoCmd() *cobra.Command {
	var grep string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show device properties (getprop)",
		Long: `Show the device's system properties.

Examples:
  adbfb info
  adbfb info --grep ro.product`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.runQuiet(GetContext(), "Device info", adb.GetProp())
			if err != nil {
				return err
			}
			for _, line := range strings.Split(strings.TrimRight(out, "\r\n"), "\n") {
				line = strings.TrimRight(line, "\r")
				if grep == "" || strings.Contains(line, grep) {
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&grep, "grep", "g", "", "Only show properties containing this text")

	return cmd
}

// newShellCmd creates the 'shell' command.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell <command> [args...]",
		Short: "Run a shell command on the device",
		Long: `Run one shell command on the device and print its output.
Arguments are passed to the device shell unquoted.

Examples:
  adbfb shell df -h
  adbfb shell "ls /sdcard | wc -l"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCommandOutput(func(a *app) (string, adb.Command) {
				return "shell " + strings.Join(args, " "), adb.Shell(args...)
			})
		},
	}
}

// printCommandOutput runs the command built by build and prints its output.
func printCommandOutput(build func(a *app) (string, adb.Command)) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	title, command := build(a)
	out, err := a.runQuiet(GetContext(), title, command)
	if err != nil {
		return err
	}
	fmt.Print(out)
	if out != "" && !strings.HasSuffix(out, "\n") {
		fmt.Println()
	}
	return nil
}

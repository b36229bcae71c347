package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// newLogCmd creates the 'log' command for the diagnostic log.
func newLogCmd() *cobra.Command {
	var tail int
	var showPath bool
	var clearLog bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the diagnostic log",
		Long: `Show the diagnostic log that records every adb output line.

Examples:
  adbfb log --tail 50
  adbfb log --path
  adbfb log --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Logging.LogFile
			if path == "" {
				return fmt.Errorf("diagnostic log is disabled (logging.log_file is empty)")
			}

			if showPath {
				fmt.Println(path)
				return nil
			}
			if clearLog {
				if err := os.Truncate(path, 0); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to clear log: %w", err)
				}
				fmt.Println("✓ Log cleared")
				return nil
			}

			f, err := os.Open(path)
			if os.IsNotExist(err) {
				fmt.Println("(log is empty)")
				return nil
			}
			if err != nil {
				return err
			}
			defer f.Close()

			return tailLines(f, os.Stdout, tail)
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 100, "Number of trailing lines to show (0 for all)")
	cmd.Flags().BoolVar(&showPath, "path", false, "Print the log file path only")
	cmd.Flags().BoolVar(&clearLog, "clear", false, "Empty the log file")

	return cmd
}

// tailLines copies the last n lines of r to w, or all of r when n <= 0.
func tailLines(r io.Reader, w io.Writer, n int) error {
	if n <= 0 {
		_, err := io.Copy(w, r)
		return err
	}

	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	start := 0
	if count > n {
		start = count - n
	}
	for i := start; i < count; i++ {
		if _, err := fmt.Fprintln(w, ring[i%n]); err != nil {
			return err
		}
	}
	return nil
}

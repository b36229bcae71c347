package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adbfb/adbfb/internal/adb"
	"github.com/adbfb/adbfb/internal/progress"
	"github.com/adbfb/adbfb/internal/transfer"
)

// expandGlobPatterns expands local glob patterns into absolute paths,
// dropping duplicates. Plain paths must exist.
func expandGlobPatterns(patterns []string) ([]string, error) {
	var expanded []string
	seen := make(map[string]bool)

	add := func(p string) error {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for %s: %w", p, err)
		}
		if !seen[abs] {
			expanded = append(expanded, abs)
			seen[abs] = true
		}
		return nil
	}

	for _, pattern := range patterns {
		if strings.ContainsAny(pattern, "*?[") {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match pattern: %s", pattern)
			}
			for _, m := range matches {
				if err := add(m); err != nil {
					return nil, err
				}
			}
			continue
		}

		if _, err := os.Stat(pattern); err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", pattern, err)
		}
		if err := add(pattern); err != nil {
			return nil, err
		}
	}

	return expanded, nil
}

// pullRequest builds the transfer for 'pull'. remotes are device paths as
// typed, resolved against startDir.
func pullRequest(remotes []string, startDir, to, zipPath string) (transfer.TransferRequest, error) {
	req := transfer.TransferRequest{
		ID:        newTaskID("pull"),
		Direction: transfer.DirectionPull,
		RemoteDir: startDir,
		Sources:   remotes,
	}

	switch {
	case zipPath != "":
		abs, err := filepath.Abs(zipPath)
		if err != nil {
			return req, err
		}
		if !hasArchiveExt(abs) {
			abs += ".zip"
		}
		req.ID = newTaskID("zip")
		req.Kind = transfer.KindZip
		req.Destination = abs
	case len(remotes) == 1:
		req.Kind = transfer.KindSingle
		req.Destination = to
	default:
		req.Kind = transfer.KindBatch
		req.Destination = to
	}
	return req, nil
}

// hasArchiveExt reports whether p already names a zip or gzip tarball.
func hasArchiveExt(p string) bool {
	lower := strings.ToLower(p)
	for _, ext := range []string{".zip", ".tar.gz", ".tgz"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// runTransfers starts every request and reports the outcome.
func runTransfers(ctx context.Context, a *app, reqs []transfer.TransferRequest) ([]transfer.TransferTask, error) {
	tasks, err := a.run(ctx, runOptions{renderer: progress.NewRenderer(len(reqs)), notifyDone: true},
		func(ctx context.Context, engine *transfer.Engine, device string) ([]*transfer.Handle, error) {
			handles := make([]*transfer.Handle, 0, len(reqs))
			for _, req := range reqs {
				h, err := engine.StartTransfer(ctx, req, device)
				if err != nil {
					return handles, err
				}
				handles = append(handles, h)
			}
			return handles, nil
		})
	if err != nil {
		return tasks, err
	}
	if len(tasks) > 1 {
		fmt.Println()
		printHistory(os.Stdout, a.registry.History())
	}
	return tasks, summarize(tasks)
}

// printHistory lists finished tasks, most recent first.
func printHistory(w io.Writer, history []transfer.HistoryEntry) {
	fmt.Fprintln(w, "Finished transfers:")
	rows := make([][2]string, len(history))
	for i, h := range history {
		line := fmt.Sprintf("%-9s %s", h.State, h.Title)
		if h.Message != "" {
			line += " (" + h.Message + ")"
		}
		rows[i] = [2]string{h.Timestamp(), line}
	}
	writeColumns(w, rows)
}

// newPullCmd creates the 'pull' command.
func newPullCmd() *cobra.Command {
	var to string
	var zipPath string

	cmd := &cobra.Command{
		Use:     "pull <remote> [remote...]",
		Aliases: []string{"download", "get"},
		Short:   "Copy files from the device",
		Long: `Copy files or directories from the device to this computer.

One path is pulled with live progress. Several paths are pulled one after
another as a single task. With --zip, the selection is pulled into a staging
directory and written as one flat archive (zip, or a gzip tarball when the
name ends in .tar.gz or .tgz).

Examples:
  adbfb pull DCIM/Camera/IMG_001.jpg
  adbfb pull DCIM/Camera/IMG_001.jpg DCIM/Camera/IMG_002.jpg --to ./photos
  adbfb pull --zip camera.zip DCIM/Camera/IMG_001.jpg DCIM/Camera/IMG_002.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if zipPath == "" {
				if err := os.MkdirAll(to, 0755); err != nil {
					return fmt.Errorf("failed to create %s: %w", to, err)
				}
			}

			req, err := pullRequest(args, a.cfg.Browser.StartDirectory, to, zipPath)
			if err != nil {
				return err
			}

			tasks, err := runTransfers(GetContext(), a, []transfer.TransferRequest{req})
			if err == nil && req.Kind == transfer.KindZip && len(tasks) == 1 {
				fmt.Println(tasks[0].Result)
				a.notifier.ArchiveReady(req.Destination)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&to, "to", "o", ".", "Local destination directory")
	cmd.Flags().StringVarP(&zipPath, "zip", "z", "", "Write the selection into one archive (.zip, .tar.gz or .tgz)")

	return cmd
}

// newPushCmd creates the 'push' command.
func newPushCmd() *cobra.Command {
	var to string
	var sequential bool

	cmd := &cobra.Command{
		Use:     "push <local> [local...]",
		Aliases: []string{"upload", "put"},
		Short:   "Copy files to the device",
		Long: `Copy local files or directories to a device directory. Glob patterns are
expanded locally.

Each file is pushed as its own task, all at once. With --sequential the files
are pushed one after another as a single task.

Examples:
  adbfb push song.mp3 --to Music
  adbfb push "*.jpg" --to DCIM/Imported --sequential`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandGlobPatterns(args)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			remoteDir := a.remotePath(to)

			var reqs []transfer.TransferRequest
			if sequential && len(files) > 1 {
				reqs = append(reqs, transfer.TransferRequest{
					ID:        newTaskID("push"),
					Kind:      transfer.KindBatch,
					Direction: transfer.DirectionPush,
					Sources:   files,
					RemoteDir: remoteDir,
				})
			} else {
				for _, f := range files {
					reqs = append(reqs, transfer.TransferRequest{
						ID:        newTaskID("push"),
						Kind:      transfer.KindSingle,
						Direction: transfer.DirectionPush,
						Sources:   []string{f},
						RemoteDir: remoteDir,
					})
				}
			}

			_, err = runTransfers(GetContext(), a, reqs)
			return err
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", "", "Device directory (default: start directory)")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "Push files one after another as one task")

	return cmd
}

// newSyncCmd creates the 'sync' command.
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <remote-dir> [local-dir]",
		Short: "Copy a whole device directory to this computer",
		Long: `Pull a device directory recursively into a local directory (default: the
current directory).

Examples:
  adbfb sync DCIM/Camera ./backup`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := "."
			if len(args) == 2 {
				local = args[1]
			}
			if err := os.MkdirAll(local, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", local, err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			remote := a.remotePath(args[0])
			_, err = runTransfers(GetContext(), a, []transfer.TransferRequest{{
				ID:          newTaskID("sync"),
				Title:       "Syncing " + path.Base(remote),
				Kind:        transfer.KindSingle,
				Direction:   transfer.DirectionPull,
				Sources:     []string{remote},
				Destination: local,
			}})
			return err
		},
	}
}

// newInstallCmd creates the 'install' command.
func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <apk> [apk...]",
		Short: "Install APKs on the device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apks, err := expandGlobPatterns(args)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			// The package manager installs one package at a time.
			for _, apk := range apks {
				err := runCommandBatch(GetContext(), a, []commandSpec{
					{title: "Installing " + filepath.Base(apk), command: adb.Install(apk)},
				})
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/adbfb/adbfb/internal/adb"
	"github.com/adbfb/adbfb/internal/progress"
	"github.com/adbfb/adbfb/internal/transfer"
)

// commandSpec is one command task of a multi-target operation.
type commandSpec struct {
	title   string
	command adb.Command
}

// runCommandBatch starts each command as its own task and waits for all.
func runCommandBatch(ctx context.Context, a *app, specs []commandSpec) error {
	tasks, err := a.run(ctx, runOptions{renderer: progress.NewRenderer(len(specs))},
		func(ctx context.Context, engine *transfer.Engine, device string) ([]*transfer.Handle, error) {
			handles := make([]*transfer.Handle, 0, len(specs))
			for _, s := range specs {
				h, err := engine.StartCommand(ctx, transfer.CommandRequest{
					ID:      newTaskID("cmd"),
					Title:   s.title,
					Command: s.command,
				}, device)
				if err != nil {
					return handles, err
				}
				handles = append(handles, h)
			}
			return handles, nil
		})
	if err != nil {
		return err
	}
	return summarize(tasks)
}

// newRmCmd creates the 'rm' command.
func newRmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <path> [path...]",
		Short: "Delete files or directories on the device",
		Long: `Delete files or directories (recursively) on the device.

Examples:
  adbfb rm Download/old.apk
  adbfb rm -f /sdcard/tmp`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			specs := make([]commandSpec, len(args))
			for i, arg := range args {
				p := a.remotePath(arg)
				specs[i] = commandSpec{title: "Deleting " + p, command: adb.Remove(p)}
			}

			if !force {
				ok, err := promptConfirm(fmt.Sprintf("Delete %d item(s) from the device?", len(specs)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}

			return runCommandBatch(GetContext(), a, specs)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	return cmd
}

// newMvCmd creates the 'mv' command (rename).
func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <src> <dst>",
		Aliases: []string{"rename"},
		Short:   "Move or rename a file on the device",
		Long: `Move or rename a file on the device. A bare destination name renames
within the source directory.

Examples:
  adbfb mv Download/a.txt b.txt
  adbfb mv Download/a.txt /sdcard/Documents/a.txt`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			src := a.remotePath(args[0])
			dst := adb.JoinRemote(path.Dir(src), args[1])
			return runCommandBatch(GetContext(), a, []commandSpec{
				{title: fmt.Sprintf("Renaming %s to %s", path.Base(src), dst), command: adb.Move(src, dst)},
			})
		},
	}
}

// newMkdirCmd creates the 'mkdir' command.
func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <dir> [dir...]",
		Short: "Create directories on the device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			specs := make([]commandSpec, len(args))
			for i, arg := range args {
				p := a.remotePath(arg)
				specs[i] = commandSpec{title: "Creating " + p, command: adb.MakeDir(p)}
			}
			return runCommandBatch(GetContext(), a, specs)
		},
	}
}

// newCpCmd creates the 'cp' command (copy/paste on the device).
func newCpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cp <src> [src...] <dst-dir>",
		Short: "Copy files on the device into a directory",
		Long: `Copy files or directories on the device into another device directory.

Examples:
  adbfb cp DCIM/Camera/a.jpg DCIM/Camera/b.jpg Pictures`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dstDir := a.remotePath(args[len(args)-1])
			sources := args[:len(args)-1]
			specs := make([]commandSpec, len(sources))
			for i, arg := range sources {
				src := a.remotePath(arg)
				dst := adb.JoinRemote(dstDir, path.Base(src))
				specs[i] = commandSpec{title: fmt.Sprintf("Copying %s", path.Base(src)), command: adb.Copy(src, dst)}
			}
			return runCommandBatch(GetContext(), a, specs)
		},
	}
}

// rename is one planned batch-rename move.
type rename struct {
	From string
	To   string
}

// planBatchRename names files base_<n><ext> in the order given, starting at start.
func planBatchRename(names []string, base string, start int) []rename {
	plan := make([]rename, len(names))
	for i, name := range names {
		plan[i] = rename{
			From: name,
			To:   fmt.Sprintf("%s_%d%s", base, start+i, path.Ext(name)),
		}
	}
	return plan
}

// newRenameBatchCmd creates the 'rename-batch' command.
func newRenameBatchCmd() *cobra.Command {
	var dir string
	var base string
	var start int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rename-batch <name> [name...]",
		Short: "Rename several files to base_N.ext",
		Long: `Rename files in one device directory to <base>_<N><ext>, numbering them in
the order given. Extensions are kept.

Examples:
  adbfb rename-batch --dir DCIM/Camera --base holiday IMG_001.jpg IMG_002.jpg
  adbfb rename-batch --base track --start 10 --dry-run a.mp3 b.mp3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if base == "" {
				return fmt.Errorf("--base is required")
			}
			if start < 1 {
				return fmt.Errorf("--start must be at least 1, got %d", start)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			remoteDir := a.remotePath(dir)
			plan := planBatchRename(args, base, start)

			specs := make([]commandSpec, len(plan))
			for i, r := range plan {
				if dryRun {
					fmt.Printf("%s -> %s\n", r.From, r.To)
					continue
				}
				specs[i] = commandSpec{
					title:   fmt.Sprintf("%s -> %s", r.From, r.To),
					command: adb.Move(adb.JoinRemote(remoteDir, r.From), adb.JoinRemote(remoteDir, r.To)),
				}
			}
			if dryRun {
				return nil
			}
			return runCommandBatch(GetContext(), a, specs)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Device directory holding the files (default: start directory)")
	cmd.Flags().StringVarP(&base, "base", "b", "", "New base name (required)")
	cmd.Flags().IntVarP(&start, "start", "s", 1, "First index")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Print the plan without renaming")

	return cmd
}

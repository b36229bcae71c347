package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/adbfb/adbfb/internal/adb"
	"github.com/adbfb/adbfb/internal/constants"
	"github.com/adbfb/adbfb/internal/logging"
	"github.com/adbfb/adbfb/internal/process"
	"github.com/adbfb/adbfb/internal/progress"
	"github.com/adbfb/adbfb/internal/util/archive"
)

// reporter receives a worker's intermediate updates.
type reporter interface {
	progress(percent int, speed, label string)
	fileDone(name string)
}

// outcome is a worker's terminal result.
type outcome struct {
	state   TaskState
	message string
}

// job is one variant's body. It runs on the task's own goroutine.
type job func(ctx context.Context, env *jobEnv) outcome

// jobEnv is what a job may touch: adb (already bound to the device), the
// staging root, a logger and its reporter.
type jobEnv struct {
	runner     adb.Runner
	device     string
	stagingDir string
	logger     *logging.Logger
	report     reporter
}

func (env *jobEnv) run(ctx context.Context, cmd adb.Command, onLine func(string)) process.Result {
	return env.runner.Run(ctx, adb.Bind(cmd, env.device), onLine)
}

// commandJob runs one invocation and returns its output as the result.
func commandJob(cmd adb.Command) job {
	return func(ctx context.Context, env *jobEnv) outcome {
		res := env.run(ctx, cmd, func(line string) {
			if r := progress.Parse(line); r.HasPercent {
				env.report.progress(r.Percent, r.Speed, constants.LabelRunning)
			}
		})

		switch {
		case res.Cancelled:
			return outcome{state: TaskCancelled, message: "cancelled"}
		case res.Success():
			return outcome{state: TaskSucceeded, message: commandOutput(res)}
		default:
			return outcome{state: TaskFailed, message: res.Err.Error()}
		}
	}
}

// singleJob runs one push or pull with adb's progress output enabled.
func singleJob(cmd adb.Command) job {
	cmd = cmd.WithProgressFlag()
	return func(ctx context.Context, env *jobEnv) outcome {
		res := env.run(ctx, cmd, func(line string) {
			if r := progress.Parse(line); r.HasPercent {
				env.report.progress(r.Percent, r.Speed, constants.LabelTransferring)
			}
		})

		switch {
		case res.Cancelled:
			return outcome{state: TaskCancelled, message: "cancelled"}
		case res.Success():
			return outcome{state: TaskSucceeded, message: lastLine(res.Output)}
		default:
			return outcome{state: TaskFailed, message: transferFailure(res)}
		}
	}
}

// fileStep is one file of a batch: the display name and its command.
type fileStep struct {
	name string
	cmd  adb.Command
}

// runSteps runs steps strictly in order, mapping per-file progress onto the
// whole batch. It stops at the first failure or on cancellation. ceiling caps
// the reported percentage.
func runSteps(ctx context.Context, env *jobEnv, steps []fileStep, ceiling int) ([]string, *outcome) {
	n := len(steps)
	var completed []string

	for i, step := range steps {
		if ctx.Err() != nil {
			return completed, cancelledAfter(completed, n)
		}

		res := env.run(ctx, step.cmd.WithProgressFlag(), func(line string) {
			r := progress.Parse(line)
			if !r.HasPercent {
				return
			}
			overall := overallPercent(i, r.Percent, n)
			if overall > ceiling {
				overall = ceiling
			}
			env.report.progress(overall, r.Speed, step.name)
		})

		if res.Cancelled {
			return completed, cancelledAfter(completed, n)
		}
		if !res.Success() {
			err := &BatchError{
				File:      step.name,
				Total:     n,
				Completed: append([]string(nil), completed...),
				Err:       errors.New(transferFailure(res)),
			}
			return completed, &outcome{state: TaskFailed, message: err.Error()}
		}

		completed = append(completed, step.name)
		env.report.fileDone(step.name)
		env.logger.Debug().Str("file", step.name).Int("done", len(completed)).Int("total", n).Msg("file transferred")
	}
	return completed, nil
}

// batchJob transfers each file with its own invocation.
func batchJob(steps []fileStep) job {
	return func(ctx context.Context, env *jobEnv) outcome {
		if len(steps) == 0 {
			env.report.progress(100, "", constants.LabelFinished)
			return outcome{state: TaskSucceeded, message: "0 files transferred"}
		}

		completed, failed := runSteps(ctx, env, steps, 100)
		if failed != nil {
			return *failed
		}
		return outcome{state: TaskSucceeded, message: fmt.Sprintf("%d files transferred", len(completed))}
	}
}

// zipJob pulls the leaf files of names into a private staging directory and
// packs them into a flat archive at dest.
func zipJob(remoteDir string, names []string, dest string) job {
	return func(ctx context.Context, env *jobEnv) (result outcome) {
		staging, err := os.MkdirTemp(env.stagingDir, "adbfb-zip-*")
		if err != nil {
			return outcome{state: TaskFailed, message: fmt.Sprintf("failed to create staging directory: %v", err)}
		}
		defer func() {
			if err := os.RemoveAll(staging); err != nil {
				env.logger.Warn().Err(err).Str("dir", staging).Msg("failed to remove staging directory")
			}
		}()

		var steps []fileStep
		for _, name := range names {
			if adb.IsDirName(name) {
				continue
			}
			local := filepath.Join(staging, filepath.FromSlash(strings.TrimPrefix(path.Clean("/"+name), "/")))
			if err := os.MkdirAll(filepath.Dir(local), 0700); err != nil {
				return outcome{state: TaskFailed, message: fmt.Sprintf("failed to prepare staging directory: %v", err)}
			}
			steps = append(steps, fileStep{
				name: name,
				cmd:  adb.Pull(adb.JoinRemote(remoteDir, name), local),
			})
		}

		if len(steps) == 0 {
			env.report.progress(100, "", constants.LabelFinished)
		} else {
			if _, failed := runSteps(ctx, env, steps, constants.ZippingPercent); failed != nil {
				return *failed
			}
			if ctx.Err() != nil {
				return outcome{state: TaskCancelled, message: "cancelled"}
			}
			env.report.progress(constants.ZippingPercent, "", constants.LabelZipping)
		}

		res, err := archive.Flatten(staging, dest)
		if err != nil {
			return outcome{state: TaskFailed, message: err.Error()}
		}

		msg := fmt.Sprintf("Archived %d files to %s", len(res.Entries), dest)
		if len(res.Duplicates) > 0 {
			skipped := make([]string, len(res.Duplicates))
			for i, d := range res.Duplicates {
				rel, err := filepath.Rel(staging, d)
				if err != nil {
					rel = filepath.Base(d)
				}
				skipped[i] = filepath.ToSlash(rel)
			}
			env.logger.Warn().Strs("skipped", skipped).Msg("duplicate archive entry names")
			msg += fmt.Sprintf("; skipped duplicate names: %s", strings.Join(skipped, ", "))
		}
		return outcome{state: TaskSucceeded, message: msg}
	}
}

// transferFailure formats a failed push/pull, keeping adb's last line.
func transferFailure(res process.Result) string {
	var spawnErr *process.SpawnError
	if errors.As(res.Err, &spawnErr) {
		return spawnErr.Error()
	}
	var exitErr *process.ExitError
	if !errors.As(res.Err, &exitErr) {
		if res.Err != nil {
			return res.Err.Error()
		}
		return fmt.Sprintf("transfer failed with code %d", res.ExitCode)
	}

	msg := fmt.Sprintf("transfer failed with code %d", exitErr.Code)
	if last := lastLine(res.Output); last != "" {
		msg += ": " + last
	}
	return msg
}

// commandOutput is the raw output of a command, marked when it was cut short.
func commandOutput(res process.Result) string {
	if !res.Truncated {
		return res.Output
	}
	out := res.Output
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + constants.TruncatedNote
}

// lastLine returns the last non-blank line. Progress updates end in '\r', so
// both terminators count.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func cancelledAfter(completed []string, total int) *outcome {
	return &outcome{
		state:   TaskCancelled,
		message: fmt.Sprintf("cancelled after %d of %d files", len(completed), total),
	}
}

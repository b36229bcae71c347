package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/adbfb/adbfb/internal/constants"
	"github.com/adbfb/adbfb/internal/logging"
)

// Result is the terminal outcome of one Run.
type Result struct {
	// ExitCode is the child's exit code, or -1 if it never started or was killed.
	ExitCode int

	// Output is the raw combined stdout and stderr, byte for byte, up to
	// constants.MaxCapturedOutput.
	Output string

	// Truncated is set when Output was cut at constants.MaxCapturedOutput.
	Truncated bool

	// Err is a *SpawnError, an *ExitError, or the context error after cancellation.
	Err error

	Cancelled bool
}

// Success reports whether the process ran to completion with exit code 0.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Runner spawns adb invocations. A Runner holds no per-call state and is safe
// for concurrent use.
type Runner struct {
	// Path replaces the tool name in args[0]. Empty means look up "adb" on PATH.
	Path string

	// Env is appended to the parent environment.
	Env []string

	// Logger receives every logical line at debug level.
	Logger *logging.Logger
}

// NewRunner creates a Runner for the given adb executable.
func NewRunner(path string, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{Path: path, Logger: logger.Named("adb")}
}

// Run starts args as a child process with stdout and stderr joined, and calls
// onLine for each logical line in order. The untouched bytes are kept
// separately as Result.Output. It blocks until the process exits.
//
// When ctx is cancelled the whole process group is killed, no further lines are
// delivered, and the Result has Cancelled set. Run imposes no timeout of its own.
func (r *Runner) Run(ctx context.Context, args []string, onLine func(line string)) Result {
	logger := r.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	if len(args) == 0 {
		return Result{ExitCode: -1, Err: &SpawnError{Err: errors.New("empty command")}}
	}
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1, Err: err, Cancelled: true}
	}

	name := args[0]
	if name == constants.ToolName && r.Path != "" {
		name = r.Path
	}

	// One pipe for both streams keeps the interleaving the tool produced.
	pr, pw, err := os.Pipe()
	if err != nil {
		return Result{ExitCode: -1, Err: &SpawnError{Command: name, Err: err}}
	}
	defer pr.Close()

	cmd := exec.Command(name, args[1:]...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	setProcessGroup(cmd)

	logger.Debug().Strs("args", args).Msg("spawn")

	if err := cmd.Start(); err != nil {
		pw.Close()
		logger.Debug().Err(err).Msg("spawn failed")
		return Result{ExitCode: -1, Err: &SpawnError{Command: name, Err: err}}
	}
	// The child holds its own copy; ours must go so the read side sees EOF.
	pw.Close()

	stop := make(chan struct{})
	killed := make(chan struct{})
	go func() {
		defer close(killed)
		select {
		case <-ctx.Done():
			if err := killProcessGroup(cmd); err != nil {
				logger.Debug().Err(err).Msg("kill failed")
			}
		case <-stop:
		}
	}()

	var output outputBuffer
	scanner := bufio.NewScanner(io.TeeReader(pr, &output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(ScanLogicalLines)

	for ctx.Err() == nil && scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Text()
		logger.Debug().Msg(line)
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := scanner.Err()

	close(stop)
	if ctx.Err() != nil {
		// The watcher may have taken the stop branch.
		if err := killProcessGroup(cmd); err != nil {
			logger.Debug().Err(err).Msg("kill failed")
		}
	}
	// Unblocks a child still writing after we stopped reading.
	pr.Close()
	waitErr := cmd.Wait()
	<-killed

	res := Result{Output: output.String(), Truncated: output.truncated}

	if ctx.Err() != nil {
		res.ExitCode = -1
		res.Err = ctx.Err()
		res.Cancelled = true
		logger.Debug().Msg("cancelled")
		return res
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Err = &ExitError{Code: res.ExitCode, Output: strings.TrimSpace(res.Output)}
		} else {
			res.ExitCode = -1
			res.Err = waitErr
		}
		logger.Debug().Int("exit_code", res.ExitCode).Msg("exited")
		return res
	}

	if scanErr != nil {
		// Output lost mid-stream (e.g. a single line over 1 MiB).
		res.ExitCode = -1
		res.Err = scanErr
		return res
	}

	logger.Debug().Int("exit_code", 0).Msg("exited")
	return res
}

// outputBuffer keeps the raw combined output up to constants.MaxCapturedOutput.
// Writes never fail so the tee keeps feeding the line scanner.
type outputBuffer struct {
	b         bytes.Buffer
	truncated bool
}

func (o *outputBuffer) Write(p []byte) (int, error) {
	if o.truncated {
		return len(p), nil
	}
	if room := constants.MaxCapturedOutput - o.b.Len(); len(p) > room {
		o.b.Write(p[:room])
		o.truncated = true
		return len(p), nil
	}
	o.b.Write(p)
	return len(p), nil
}

func (o *outputBuffer) String() string {
	return o.b.String()
}

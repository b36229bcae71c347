package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// MultiUI manages multiple concurrent transfer progress bars using mpb
type MultiUI struct {
	progress   *mpb.Progress
	bars       sync.Map // task ID -> *TaskBar
	out        io.Writer
	isTerminal bool
	totalTasks int
	started    int32 // Atomic counter for task index (1, 2, 3, ...)
	completed  int32
}

// TaskBar is one task's bar. Label and speed are swapped atomically because
// mpb renders decorators on its own goroutine.
type TaskBar struct {
	bar       *mpb.Bar
	index     int
	title     string
	label     atomic.Value // string
	speed     atomic.Value // string
	startTime time.Time
}

// NewMultiUI creates a new multi-bar renderer for the given number of tasks.
func NewMultiUI(totalTasks int) *MultiUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSIOnWindows(os.Stderr)

		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		// Non-TTY: disable progress bars, just use text output
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &MultiUI{
		progress:   p,
		out:        os.Stdout,
		isTerminal: isTerminal,
		totalTasks: totalTasks,
	}
}

// Track adds a bar for id.
func (u *MultiUI) Track(id, title string) {
	index := int(atomic.AddInt32(&u.started, 1))

	tb := &TaskBar{
		index:     index,
		title:     title,
		startTime: time.Now(),
	}
	tb.label.Store("")
	tb.speed.Store("")

	if u.isTerminal {
		tb.bar = u.progress.New(100,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					base := fmt.Sprintf("[%d/%d] %s", tb.index, u.totalTasks, truncatePath(tb.title, 2))
					if label := tb.label.Load().(string); label != "" {
						return base + " · " + label
					}
					return base
				}, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.Any(func(s decor.Statistics) string {
					return tb.speed.Load().(string)
				}, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Started [%d/%d]: %s\n", index, u.totalTasks, title)
	}

	u.bars.Store(id, tb)
}

// Update moves id's bar. Unknown ids are ignored.
func (u *MultiUI) Update(id string, percent int, speed, label string) {
	v, ok := u.bars.Load(id)
	if !ok {
		return
	}
	tb := v.(*TaskBar)
	tb.label.Store(label)
	if speed != "" {
		tb.speed.Store(speed)
	}
	if tb.bar != nil {
		tb.bar.SetCurrent(int64(percent))
	}
}

// Finish marks id as done and prints a summary line above the bars.
func (u *MultiUI) Finish(id string, outcome Outcome, message string) {
	v, ok := u.bars.LoadAndDelete(id)
	if !ok {
		return
	}
	tb := v.(*TaskBar)

	if tb.bar != nil {
		if outcome == OutcomeSucceeded {
			tb.bar.SetCurrent(100)
			tb.bar.SetTotal(100, true) // Mark done, trigger BarRemoveOnComplete
		} else {
			tb.bar.Abort(false) // keep the bar visible to show where it stopped
		}
	}

	msg := summary(tb.title, outcome, message)
	if outcome == OutcomeSucceeded {
		msg = strings.TrimSuffix(msg, "\n") + fmt.Sprintf(" (%s)\n", time.Since(tb.startTime).Round(time.Second))
	}

	// Write through mpb's writer (not stdout) to avoid triggering redraws
	if u.isTerminal {
		u.progress.Write([]byte(msg))
	} else {
		fmt.Fprint(u.out, msg)
	}

	atomic.AddInt32(&u.completed, 1)
}

// Completed returns how many tracked tasks have finished.
func (u *MultiUI) Completed() int {
	return int(atomic.LoadInt32(&u.completed))
}

// Wait blocks until all progress bars complete
func (u *MultiUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that safely prints above the progress bars
func (u *MultiUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return os.Stderr
}

// IsTerminal returns true if output is to a terminal (progress bars are active).
func (u *MultiUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath truncates a path to show only the last N components
// Example: truncatePath("/sdcard/DCIM/Camera/a.jpg", 2) → "…/Camera/a.jpg"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return path
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}

// enableANSIOnWindows enables Virtual Terminal processing on Windows for ANSI escape sequences
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}

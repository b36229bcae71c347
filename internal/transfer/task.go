// Package transfer runs adb commands and file transfers as tracked tasks.
//
// A Registry holds the active set and the history. An Engine starts one
// worker goroutine per task and applies their updates to the Registry from a
// single coordination loop. Front-ends observe the Registry's events, either
// directly on the events.EventBus or through Dispatch and a Subscriber.
package transfer

import (
	"time"
)

// TaskKind selects how a task drives adb.
type TaskKind string

const (
	KindCommand TaskKind = "command" // One invocation, output is the result
	KindSingle  TaskKind = "single"  // One push or pull with progress
	KindBatch   TaskKind = "batch"   // Several files, one invocation each, in order
	KindZip     TaskKind = "zip"     // Batch pull into staging, then one flat archive
)

// Direction of a file transfer.
type Direction string

const (
	DirectionPull Direction = "pull" // Device to host
	DirectionPush Direction = "push" // Host to device
)

// TaskState represents the current state of a task.
type TaskState string

const (
	TaskPending   TaskState = "pending"   // Registered, process not yet spawned
	TaskRunning   TaskState = "running"   // Process spawned
	TaskSucceeded TaskState = "succeeded" // Exit code 0 (every file, for batches)
	TaskFailed    TaskState = "failed"    // Spawn error, non-zero exit, or internal error
	TaskCancelled TaskState = "cancelled" // Stop requested
)

// IsTerminal returns true for succeeded, failed and cancelled.
func (s TaskState) IsTerminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCancelled
}

// TransferTask is the tracked state of one user-initiated operation.
// Values returned by Registry and Handle are snapshots.
type TransferTask struct {
	ID    string
	Title string
	Kind  TaskKind
	Files []string // Target file names, empty for plain commands

	State   TaskState
	Percent int    // 0 to 100
	Speed   string // As printed by adb
	Label   string // Status text or current file name

	Result    string   // Output text on success
	Error     string   // Failure message
	Completed []string // Files finished so far (batch and zip)

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// clone returns a copy that shares no slices with t.
func (t *TransferTask) clone() TransferTask {
	c := *t
	c.Files = append([]string(nil), t.Files...)
	c.Completed = append([]string(nil), t.Completed...)
	return c
}

// start moves pending to running.
func (t *TransferTask) start() bool {
	if t.State != TaskPending {
		return false
	}
	t.State = TaskRunning
	t.StartedAt = time.Now()
	return true
}

// progress records a progress report. Terminal tasks absorb it.
func (t *TransferTask) progress(percent int, speed, label string) bool {
	if t.State.IsTerminal() {
		return false
	}
	t.Percent = clampPercent(percent)
	if speed != "" {
		t.Speed = speed
	}
	if label != "" {
		t.Label = label
	}
	return true
}

// fileDone records one finished file of a batch.
func (t *TransferTask) fileDone(name string) bool {
	if t.State.IsTerminal() {
		return false
	}
	t.Completed = append(t.Completed, name)
	return true
}

// resolve moves the task into a terminal state. Only the first call wins.
func (t *TransferTask) resolve(state TaskState, message string) bool {
	if t.State.IsTerminal() || !state.IsTerminal() {
		return false
	}
	t.State = state
	t.CompletedAt = time.Now()
	switch state {
	case TaskSucceeded:
		t.Percent = 100
		t.Label = ""
		t.Result = message
	default:
		t.Error = message
	}
	return true
}

// Duration returns how long the task has run, or ran.
func (t TransferTask) Duration() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	if t.CompletedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// HistoryEntry is an archived task.
type HistoryEntry struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Kind        TaskKind  `json:"kind" yaml:"kind"`
	State       TaskState `json:"state" yaml:"state"`
	Message     string    `json:"message,omitempty" yaml:"message,omitempty"`
	Completed   []string  `json:"completed,omitempty" yaml:"completed,omitempty"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// Timestamp formats the completion time the way the transfer list shows it.
func (h HistoryEntry) Timestamp() string {
	return h.CompletedAt.Format("2006-01-02 15:04:05")
}

// overallPercent maps progress p (0-100) within file i (0-based) of n files
// onto the whole batch: floor(((i + p/100) / n) * 100).
// It is non-decreasing in both i and p.
func overallPercent(i, p, n int) int {
	if n <= 0 {
		return 100
	}
	p = clampPercent(p)
	return clampPercent((i*100 + p) / n)
}

func clampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

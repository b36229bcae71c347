package transfer

import (
	"testing"
	"time"
)

func TestOverallPercent(t *testing.T) {
	tests := []struct {
		i, p, n int
		want    int
	}{
		{1, 50, 3, 50},
		{0, 0, 3, 0},
		{2, 100, 3, 100},
		{0, 100, 1, 100},
		{1, 0, 4, 25},
		{0, 33, 2, 16},
		{0, 150, 1, 100},
		{0, 0, 0, 100},
	}

	for _, tt := range tests {
		if got := overallPercent(tt.i, tt.p, tt.n); got != tt.want {
			t.Errorf("overallPercent(%d, %d, %d): expected %d, got %d", tt.i, tt.p, tt.n, tt.want, got)
		}
	}
}

func TestOverallPercent_Monotonic(t *testing.T) {
	for n := 1; n <= 7; n++ {
		last := -1
		for i := 0; i < n; i++ {
			for p := 0; p <= 100; p++ {
				got := overallPercent(i, p, n)
				if got < last {
					t.Fatalf("n=%d i=%d p=%d: %d after %d", n, i, p, got, last)
				}
				last = got
			}
		}
	}
}

func TestTransferTask_Lifecycle(t *testing.T) {
	task := &TransferTask{ID: "a", State: TaskPending}

	if !task.start() {
		t.Fatal("Expected pending task to start")
	}
	if task.start() {
		t.Error("Running task should not start again")
	}

	task.progress(130, "2 MB/s", "a.bin")
	if task.Percent != 100 {
		t.Errorf("Expected clamped 100, got %d", task.Percent)
	}
	task.progress(20, "", "")
	if task.Speed != "2 MB/s" || task.Label != "a.bin" {
		t.Errorf("Empty speed and label should keep the last values, got %q %q", task.Speed, task.Label)
	}

	if !task.resolve(TaskSucceeded, "done") {
		t.Fatal("Expected resolve to succeed")
	}
	if task.resolve(TaskFailed, "late") {
		t.Error("Second resolve should be ignored")
	}
	if task.progress(5, "", "") || task.fileDone("x") {
		t.Error("Terminal task should absorb updates")
	}
	if task.Percent != 100 || task.Result != "done" || task.Error != "" {
		t.Errorf("Unexpected final task %+v", task)
	}
}

func TestTransferTask_ResolveRejectsNonTerminal(t *testing.T) {
	task := &TransferTask{State: TaskRunning}
	if task.resolve(TaskPending, "") {
		t.Error("Resolving to a non-terminal state should be rejected")
	}
}

func TestTransferTask_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	task := TransferTask{StartedAt: start, CompletedAt: start.Add(3 * time.Second)}
	if task.Duration() != 3*time.Second {
		t.Errorf("Expected 3s, got %v", task.Duration())
	}
	if (TransferTask{}).Duration() != 0 {
		t.Error("Unstarted task should have zero duration")
	}
}

func TestHistoryEntry_Timestamp(t *testing.T) {
	h := HistoryEntry{CompletedAt: time.Date(2024, 3, 9, 7, 5, 1, 0, time.Local)}
	if got := h.Timestamp(); got != "2024-03-09 07:05:01" {
		t.Errorf("Expected 2024-03-09 07:05:01, got %s", got)
	}
}

func TestBatchError(t *testing.T) {
	inner := errTest("exit 1")
	err := &BatchError{File: "b.txt", Total: 3, Completed: []string{"a.txt"}, Err: inner}

	want := "failed to transfer b.txt after 1 of 3 files: exit 1"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if err.Unwrap() != inner {
		t.Error("Expected Unwrap to return the inner error")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

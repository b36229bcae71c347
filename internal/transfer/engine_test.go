package transfer

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adbfb/adbfb/internal/adb"
	"github.com/adbfb/adbfb/internal/constants"
	"github.com/adbfb/adbfb/internal/events"
	"github.com/adbfb/adbfb/internal/process"
)

// scriptRunner answers each adb invocation with script and records the args.
type scriptRunner struct {
	mu     sync.Mutex
	calls  [][]string
	script func(ctx context.Context, args []string, onLine func(string)) process.Result
}

func (s *scriptRunner) Run(ctx context.Context, args []string, onLine func(string)) process.Result {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), args...))
	s.mu.Unlock()
	if s.script == nil {
		return process.Result{}
	}
	return s.script(ctx, args, onLine)
}

func (s *scriptRunner) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.calls...)
}

func ok(output string) process.Result {
	return process.Result{Output: output}
}

func exitWith(code int, output string) process.Result {
	return process.Result{ExitCode: code, Output: output, Err: &process.ExitError{Code: code, Output: output}}
}

func cancelled(ctx context.Context) process.Result {
	return process.Result{ExitCode: -1, Err: ctx.Err(), Cancelled: true}
}

type engineFixture struct {
	engine   *Engine
	registry *Registry
	bus      *events.EventBus
	stop     context.CancelFunc
	runErr   chan error
}

func newEngineFixture(t *testing.T, runner adb.Runner, rate int) *engineFixture {
	t.Helper()

	bus := events.NewEventBus(1000)
	registry := NewRegistry(bus, nil)
	engine := NewEngine(EngineConfig{
		Runner:       runner,
		Registry:     registry,
		ProgressRate: rate,
		StagingDir:   t.TempDir(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	f := &engineFixture{engine: engine, registry: registry, bus: bus, stop: cancel, runErr: make(chan error, 1)}
	go func() { f.runErr <- engine.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-f.runErr:
		case <-time.After(5 * time.Second):
			t.Error("Engine did not stop")
		}
		bus.Close()
	})
	return f
}

func wait(t *testing.T, h *Handle) TransferTask {
	t.Helper()
	task, done := h.WaitTimeout(5 * time.Second)
	if !done {
		t.Fatalf("Task %s did not finish", h.ID())
	}
	return task
}

func TestEngine_CommandSuccess(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		onLine("file1")
		onLine("file2")
		return ok("file1\nfile2")
	}}
	f := newEngineFixture(t, runner, 10)

	h, err := f.engine.StartCommand(context.Background(), CommandRequest{ID: "ls", Command: adb.List("/sdcard")}, "emulator-5554")
	if err != nil {
		t.Fatalf("StartCommand failed: %v", err)
	}

	task := wait(t, h)
	if task.State != TaskSucceeded {
		t.Errorf("Expected succeeded, got %s (%s)", task.State, task.Error)
	}
	if task.Result != "file1\nfile2" {
		t.Errorf("Expected full output as result, got %q", task.Result)
	}
	if task.Percent != 100 {
		t.Errorf("Expected 100%%, got %d", task.Percent)
	}

	calls := runner.Calls()
	want := []string{"adb", "-s", "emulator-5554", "shell", "ls", "-p", "/sdcard"}
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], want) {
		t.Errorf("Expected %v, got %v", want, calls)
	}

	if f.registry.ActiveCount() != 0 {
		t.Errorf("Expected no active tasks, got %d", f.registry.ActiveCount())
	}
	if h := f.registry.History(); len(h) != 1 || h[0].ID != "ls" {
		t.Errorf("Expected ls in history, got %+v", h)
	}
}

func TestEngine_CommandOutputVerbatim(t *testing.T) {
	raw := "  total 8\n\ndrwxrwx--x 2 root sdcard_rw 4096 2024-01-01 10:00 DCIM\r\n"
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		return ok(raw)
	}}
	f := newEngineFixture(t, runner, 10)

	h, err := f.engine.StartCommand(context.Background(), CommandRequest{ID: "ls", Command: adb.Shell("ls", "-l")}, "")
	if err != nil {
		t.Fatalf("StartCommand failed: %v", err)
	}

	task := wait(t, h)
	if task.Result != raw {
		t.Errorf("Expected %q, got %q", raw, task.Result)
	}
}

func TestEngine_CommandOutputTruncatedIsMarked(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		return process.Result{Output: "first part", Truncated: true}
	}}
	f := newEngineFixture(t, runner, 10)

	h, _ := f.engine.StartCommand(context.Background(), CommandRequest{ID: "cat", Command: adb.Shell("cat", "/sdcard/big.log")}, "")
	task := wait(t, h)

	want := "first part\n" + constants.TruncatedNote
	if task.Result != want {
		t.Errorf("Expected %q, got %q", want, task.Result)
	}
}

func TestEngine_CommandFailure(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		return exitWith(1, "rm: /sdcard/x: Permission denied")
	}}
	f := newEngineFixture(t, runner, 10)

	h, err := f.engine.StartCommand(context.Background(), CommandRequest{ID: "rm", Command: adb.Remove("/sdcard/x")}, "")
	if err != nil {
		t.Fatalf("StartCommand failed: %v", err)
	}

	task := wait(t, h)
	if task.State != TaskFailed {
		t.Errorf("Expected failed, got %s", task.State)
	}
	if task.Error != "exit code 1: rm: /sdcard/x: Permission denied" {
		t.Errorf("Unexpected error text %q", task.Error)
	}
	if task.Title != "adb shell rm -rf /sdcard/x" {
		t.Errorf("Expected command as default title, got %q", task.Title)
	}
}

func TestEngine_CommandSpawnError(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		return process.Result{ExitCode: -1, Err: &process.SpawnError{Command: "adb", Err: errors.New("executable file not found")}}
	}}
	f := newEngineFixture(t, runner, 10)

	h, _ := f.engine.StartCommand(context.Background(), CommandRequest{ID: "d", Command: adb.Devices()}, "")
	task := wait(t, h)

	if task.State != TaskFailed {
		t.Errorf("Expected failed, got %s", task.State)
	}
	if !strings.Contains(task.Error, "executable file not found") {
		t.Errorf("Expected spawn error text, got %q", task.Error)
	}
}

func TestEngine_SinglePull(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		onLine("[ 10%] /sdcard/DCIM/a.jpg")
		onLine("[ 50%] /sdcard/DCIM/a.jpg")
		onLine("/sdcard/DCIM/a.jpg: 1 file pulled. 3.2 MB/s (1048576 bytes in 0.312s)")
		return ok("[ 10%] /sdcard/DCIM/a.jpg\r[ 50%] /sdcard/DCIM/a.jpg\r/sdcard/DCIM/a.jpg: 1 file pulled.\n")
	}}
	f := newEngineFixture(t, runner, 100)
	dest := t.TempDir()

	h, err := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID:          "pull",
		Kind:        KindSingle,
		Direction:   DirectionPull,
		Sources:     []string{"a.jpg"},
		RemoteDir:   "/sdcard/DCIM",
		Destination: dest,
	}, "emulator-5554")
	if err != nil {
		t.Fatalf("StartTransfer failed: %v", err)
	}

	task := wait(t, h)
	if task.State != TaskSucceeded {
		t.Errorf("Expected succeeded, got %s (%s)", task.State, task.Error)
	}
	if task.Title != "Pulling a.jpg" {
		t.Errorf("Expected default title, got %q", task.Title)
	}
	if !reflect.DeepEqual(task.Files, []string{"a.jpg"}) {
		t.Errorf("Expected files [a.jpg], got %v", task.Files)
	}

	if task.Result != "/sdcard/DCIM/a.jpg: 1 file pulled." {
		t.Errorf("Expected adb summary line as result, got %q", task.Result)
	}

	want := []string{"adb", "-s", "emulator-5554", "pull", "-p", "/sdcard/DCIM/a.jpg", dest}
	if calls := runner.Calls(); !reflect.DeepEqual(calls[0], want) {
		t.Errorf("Expected %v, got %v", want, calls[0])
	}
}

func TestEngine_SingleFailureKeepsLastLine(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		return exitWith(1, "adb: error: failed to stat remote object '/sdcard/nope': No such file or directory")
	}}
	f := newEngineFixture(t, runner, 10)

	h, _ := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID: "p", Kind: KindSingle, Direction: DirectionPull, Sources: []string{"/sdcard/nope"},
	}, "")
	task := wait(t, h)

	want := "transfer failed with code 1: adb: error: failed to stat remote object '/sdcard/nope': No such file or directory"
	if task.Error != want {
		t.Errorf("Expected %q, got %q", want, task.Error)
	}
}

func TestEngine_CancelSingleNeverSucceeds(t *testing.T) {
	started := make(chan struct{})
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		onLine("[ 5%] /sdcard/big.iso")
		close(started)
		<-ctx.Done()
		return cancelled(ctx)
	}}
	f := newEngineFixture(t, runner, 10)

	h, err := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID: "big", Kind: KindSingle, Direction: DirectionPull, Sources: []string{"/sdcard/big.iso"}, Destination: t.TempDir(),
	}, "")
	if err != nil {
		t.Fatalf("StartTransfer failed: %v", err)
	}

	<-started
	if err := f.engine.Cancel("big"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	task := wait(t, h)
	if task.State != TaskCancelled {
		t.Errorf("Expected cancelled, got %s", task.State)
	}
	if stats := f.registry.Stats(); stats.Succeeded != 0 || stats.Cancelled != 1 {
		t.Errorf("Expected one cancelled and no succeeded, got %+v", stats)
	}

	if err := f.engine.Cancel("big"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound for finished task, got %v", err)
	}
	h.Cancel()
}

func TestEngine_CancelWinsOverLateSuccess(t *testing.T) {
	started := make(chan struct{})
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		close(started)
		<-ctx.Done()
		// The tool finished anyway.
		return ok("done")
	}}
	f := newEngineFixture(t, runner, 10)

	h, _ := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID: "s", Kind: KindSingle, Direction: DirectionPush, Sources: []string{"/tmp/a"}, RemoteDir: "/sdcard",
	}, "")
	<-started
	h.Cancel()

	if task := wait(t, h); task.State != TaskCancelled {
		t.Errorf("Expected cancelled, got %s", task.State)
	}
}

func TestEngine_BatchPull(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		onLine("[ 50%] " + args[len(args)-2])
		return ok("")
	}}
	f := newEngineFixture(t, runner, 100)
	dest := t.TempDir()

	h, err := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID:          "batch",
		Kind:        KindBatch,
		Direction:   DirectionPull,
		Sources:     []string{"a.txt", "b.txt", "c.txt"},
		RemoteDir:   "/sdcard/Download",
		Destination: dest,
	}, "")
	if err != nil {
		t.Fatalf("StartTransfer failed: %v", err)
	}

	task := wait(t, h)
	if task.State != TaskSucceeded {
		t.Fatalf("Expected succeeded, got %s (%s)", task.State, task.Error)
	}
	if !reflect.DeepEqual(task.Completed, []string{"a.txt", "b.txt", "c.txt"}) {
		t.Errorf("Expected all files completed, got %v", task.Completed)
	}
	if task.Result != "3 files transferred" {
		t.Errorf("Unexpected result %q", task.Result)
	}

	calls := runner.Calls()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 invocations, got %d", len(calls))
	}
	want := []string{"adb", "pull", "-p", "/sdcard/Download/b.txt", filepath.Join(dest, "b.txt")}
	if !reflect.DeepEqual(calls[1], want) {
		t.Errorf("Expected %v, got %v", want, calls[1])
	}
}

func TestEngine_BatchAbortKeepsCompleted(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		if strings.HasSuffix(args[len(args)-2], "b.txt") {
			return exitWith(1, "adb: error: remote object does not exist")
		}
		return ok("")
	}}
	f := newEngineFixture(t, runner, 10)

	h, _ := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID:          "batch",
		Kind:        KindBatch,
		Direction:   DirectionPull,
		Sources:     []string{"a.txt", "b.txt", "c.txt"},
		RemoteDir:   "/sdcard",
		Destination: t.TempDir(),
	}, "")

	task := wait(t, h)
	if task.State != TaskFailed {
		t.Fatalf("Expected failed, got %s", task.State)
	}
	if !reflect.DeepEqual(task.Completed, []string{"a.txt"}) {
		t.Errorf("Expected [a.txt] completed, got %v", task.Completed)
	}
	if !strings.Contains(task.Error, "failed to transfer b.txt after 1 of 3 files") {
		t.Errorf("Unexpected error %q", task.Error)
	}
	if n := len(runner.Calls()); n != 2 {
		t.Errorf("Expected remaining files to be skipped, got %d invocations", n)
	}
}

func TestEngine_BatchPush(t *testing.T) {
	runner := &scriptRunner{}
	f := newEngineFixture(t, runner, 10)

	local := filepath.Join(t.TempDir(), "photo.png")
	h, _ := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID: "up", Kind: KindBatch, Direction: DirectionPush, Sources: []string{local}, RemoteDir: "/sdcard/Pictures",
	}, "")
	wait(t, h)

	want := []string{"adb", "push", "-p", local, "/sdcard/Pictures/photo.png"}
	if calls := runner.Calls(); !reflect.DeepEqual(calls[0], want) {
		t.Errorf("Expected %v, got %v", want, calls[0])
	}
}

func TestEngine_ZipEmptySelection(t *testing.T) {
	runner := &scriptRunner{}
	f := newEngineFixture(t, runner, 10)
	dest := filepath.Join(t.TempDir(), "out.zip")

	h, err := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID:          "zip",
		Kind:        KindZip,
		Direction:   DirectionPull,
		Sources:     []string{"DCIM/", "Music/"},
		RemoteDir:   "/sdcard",
		Destination: dest,
	}, "")
	if err != nil {
		t.Fatalf("StartTransfer failed: %v", err)
	}

	task := wait(t, h)
	if task.State != TaskSucceeded || task.Percent != 100 {
		t.Errorf("Expected succeeded at 100%%, got %s at %d", task.State, task.Percent)
	}
	if n := len(runner.Calls()); n != 0 {
		t.Errorf("Expected no adb invocations, got %d", n)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("Expected a valid archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 0 {
		t.Errorf("Expected empty archive, got %d entries", len(zr.File))
	}
}

func TestEngine_ZipFlattensAndFlagsDuplicates(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		remote, local := args[len(args)-2], args[len(args)-1]
		if err := os.WriteFile(local, []byte(remote), 0600); err != nil {
			return process.Result{ExitCode: 1, Err: err}
		}
		onLine("[100%] " + remote)
		return ok("")
	}}
	f := newEngineFixture(t, runner, 100)
	staging := f.engine.stagingDir
	dest := filepath.Join(t.TempDir(), "photos.zip")

	h, _ := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID:          "zip",
		Kind:        KindZip,
		Direction:   DirectionPull,
		Sources:     []string{"a/x.jpg", "b/x.jpg", "y.jpg", "empty/"},
		RemoteDir:   "/sdcard/DCIM",
		Destination: dest,
	}, "")

	task := wait(t, h)
	if task.State != TaskSucceeded {
		t.Fatalf("Expected succeeded, got %s (%s)", task.State, task.Error)
	}
	if !strings.Contains(task.Result, "Archived 2 files") || !strings.Contains(task.Result, "b/x.jpg") {
		t.Errorf("Expected archive count and skipped duplicate in result, got %q", task.Result)
	}
	if !reflect.DeepEqual(task.Files, []string{"a/x.jpg", "b/x.jpg", "y.jpg"}) {
		t.Errorf("Expected directory entries excluded from files, got %v", task.Files)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	if !reflect.DeepEqual(names, []string{"x.jpg", "y.jpg"}) {
		t.Errorf("Expected flat entries [x.jpg y.jpg], got %v", names)
	}

	assertStagingEmpty(t, staging)
}

func assertStagingEmpty(t *testing.T, staging string) {
	t.Helper()
	leftovers, err := os.ReadDir(staging)
	if err != nil {
		t.Fatalf("Failed to read staging root: %v", err)
	}
	if len(leftovers) != 0 {
		t.Errorf("Expected staging to be removed, found %d entries", len(leftovers))
	}
}

func TestEngine_ZipPullFailureRemovesStaging(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		remote, local := args[len(args)-2], args[len(args)-1]
		if strings.HasSuffix(remote, "b.jpg") {
			return exitWith(1, "adb: error: failed to copy '"+remote+"': remote Permission denied")
		}
		if err := os.WriteFile(local, []byte(remote), 0600); err != nil {
			return process.Result{ExitCode: 1, Err: err}
		}
		return ok("")
	}}
	f := newEngineFixture(t, runner, 100)
	dest := filepath.Join(t.TempDir(), "photos.zip")

	h, _ := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID:          "zip",
		Kind:        KindZip,
		Direction:   DirectionPull,
		Sources:     []string{"a.jpg", "b.jpg", "c.jpg"},
		RemoteDir:   "/sdcard/DCIM",
		Destination: dest,
	}, "")

	task := wait(t, h)
	if task.State != TaskFailed {
		t.Fatalf("Expected failed, got %s", task.State)
	}
	if n := len(runner.Calls()); n != 2 {
		t.Errorf("Expected the batch to stop after b.jpg, got %d calls", n)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("Expected no archive after a failed pull, got %v", err)
	}
	assertStagingEmpty(t, f.engine.stagingDir)
}

func TestEngine_ZipArchiveFailureRemovesStaging(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		local := args[len(args)-1]
		if err := os.WriteFile(local, []byte("data"), 0600); err != nil {
			return process.Result{ExitCode: 1, Err: err}
		}
		return ok("")
	}}
	f := newEngineFixture(t, runner, 100)

	// A regular file where the archive's parent directory should be.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatalf("Failed to create blocker: %v", err)
	}
	dest := filepath.Join(blocker, "photos.zip")

	h, _ := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID:          "zip",
		Kind:        KindZip,
		Direction:   DirectionPull,
		Sources:     []string{"a.jpg", "b.jpg"},
		RemoteDir:   "/sdcard/DCIM",
		Destination: dest,
	}, "")

	task := wait(t, h)
	if task.State != TaskFailed {
		t.Fatalf("Expected failed, got %s", task.State)
	}
	if !strings.Contains(task.Error, "failed to create output directory") {
		t.Errorf("Expected archive error, got %q", task.Error)
	}
	assertStagingEmpty(t, f.engine.stagingDir)
}

func TestEngine_DuplicateID(t *testing.T) {
	release := make(chan struct{})
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		<-release
		return ok("")
	}}
	f := newEngineFixture(t, runner, 10)

	h, err := f.engine.StartCommand(context.Background(), CommandRequest{ID: "x", Command: adb.GetProp()}, "")
	if err != nil {
		t.Fatalf("StartCommand failed: %v", err)
	}
	if _, err := f.engine.StartCommand(context.Background(), CommandRequest{ID: "x", Command: adb.GetProp()}, ""); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("Expected ErrDuplicateTask, got %v", err)
	}

	close(release)
	wait(t, h)

	// Finished ids may be reused.
	h2, err := f.engine.StartCommand(context.Background(), CommandRequest{ID: "x", Command: adb.GetProp()}, "")
	if err != nil {
		t.Fatalf("Expected reuse of finished id, got %v", err)
	}
	wait(t, h2)
}

func TestEngine_RegisteredBeforeReturn(t *testing.T) {
	release := make(chan struct{})
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		<-release
		return ok("")
	}}
	f := newEngineFixture(t, runner, 10)

	h, _ := f.engine.StartCommand(context.Background(), CommandRequest{ID: "early", Title: "Early", Command: adb.GetProp()}, "")
	task := h.Task()
	if task.ID != "early" || task.Title != "Early" || task.State.IsTerminal() {
		t.Errorf("Expected an active snapshot, got %+v", task)
	}

	close(release)
	if final := wait(t, h); final.State != TaskSucceeded {
		t.Errorf("Expected succeeded, got %s", final.State)
	}
}

func TestEngine_PanicBecomesFailure(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		panic("runner exploded")
	}}
	f := newEngineFixture(t, runner, 10)

	h, _ := f.engine.StartCommand(context.Background(), CommandRequest{ID: "p", Command: adb.Devices()}, "")
	task := wait(t, h)

	if task.State != TaskFailed {
		t.Errorf("Expected failed, got %s", task.State)
	}
	if !strings.Contains(task.Error, "runner exploded") {
		t.Errorf("Expected panic value in error, got %q", task.Error)
	}
}

func TestEngine_InvalidRequests(t *testing.T) {
	f := newEngineFixture(t, &scriptRunner{}, 10)

	tests := []struct {
		name string
		req  TransferRequest
	}{
		{"zip push", TransferRequest{ID: "a", Kind: KindZip, Direction: DirectionPush, Sources: []string{"x"}, Destination: "o.zip"}},
		{"zip without destination", TransferRequest{ID: "b", Kind: KindZip, Direction: DirectionPull, Sources: []string{"x"}}},
		{"single with two sources", TransferRequest{ID: "c", Kind: KindSingle, Direction: DirectionPull, Sources: []string{"x", "y"}}},
		{"push without remote dir", TransferRequest{ID: "d", Kind: KindSingle, Direction: DirectionPush, Sources: []string{"x"}}},
		{"batch push without remote dir", TransferRequest{ID: "g", Kind: KindBatch, Direction: DirectionPush, Sources: []string{"x", "y"}}},
		{"unknown kind", TransferRequest{ID: "e", Kind: "mirror", Direction: DirectionPull}},
		{"unknown direction", TransferRequest{ID: "f", Kind: KindBatch, Direction: "sideways"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.engine.StartTransfer(context.Background(), tt.req, ""); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Expected ErrInvalidRequest, got %v", err)
			}
		})
	}

	if _, err := f.engine.StartCommand(context.Background(), CommandRequest{ID: "g"}, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for empty command, got %v", err)
	}
	if f.registry.ActiveCount() != 0 {
		t.Errorf("Rejected requests must not register, got %d active", f.registry.ActiveCount())
	}
}

func TestEngine_ProgressIsCoalesced(t *testing.T) {
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		for i := 1; i <= 99; i++ {
			onLine(fmt.Sprintf("[%3d%%] /sdcard/file.bin", i))
		}
		return ok("")
	}}
	f := newEngineFixture(t, runner, 1)
	sub := f.bus.Subscribe()

	h, _ := f.engine.StartTransfer(context.Background(), TransferRequest{
		ID: "p", Kind: KindSingle, Direction: DirectionPull, Sources: []string{"/sdcard/file.bin"},
	}, "")
	wait(t, h)

	n := countType(drain(sub), events.EventTransferProgress)
	if n == 0 {
		t.Error("Expected at least one progress event")
	}
	if n >= 99 {
		t.Errorf("Expected progress to be coalesced, got %d events", n)
	}
}

func TestEngine_RunCancelsAndDrains(t *testing.T) {
	started := make(chan struct{})
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		close(started)
		<-ctx.Done()
		return cancelled(ctx)
	}}
	f := newEngineFixture(t, runner, 10)

	h, _ := f.engine.StartCommand(context.Background(), CommandRequest{ID: "long", Command: adb.Shell("logcat")}, "")
	<-started

	f.stop()
	select {
	case err := <-f.runErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		f.runErr <- err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	if task := wait(t, h); task.State != TaskCancelled {
		t.Errorf("Expected cancelled, got %s", task.State)
	}

	_, err := f.engine.StartCommand(context.Background(), CommandRequest{ID: "late", Command: adb.Devices()}, "")
	if !errors.Is(err, ErrEngineStopped) {
		t.Errorf("Expected ErrEngineStopped, got %v", err)
	}
}

func TestEngine_CancelAll(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	runner := &scriptRunner{script: func(ctx context.Context, args []string, onLine func(string)) process.Result {
		started.Done()
		<-ctx.Done()
		return cancelled(ctx)
	}}
	f := newEngineFixture(t, runner, 10)

	h1, _ := f.engine.StartCommand(context.Background(), CommandRequest{ID: "1", Command: adb.Shell("top")}, "")
	h2, _ := f.engine.StartCommand(context.Background(), CommandRequest{ID: "2", Command: adb.Shell("top")}, "")
	started.Wait()

	f.engine.CancelAll()

	for _, h := range []*Handle{h1, h2} {
		if task := wait(t, h); task.State != TaskCancelled {
			t.Errorf("Expected %s cancelled, got %s", h.ID(), task.State)
		}
	}
}

package transfer

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/adbfb/adbfb/internal/adb"
	"github.com/adbfb/adbfb/internal/constants"
	"github.com/adbfb/adbfb/internal/logging"
)

// CommandRequest starts a plain adb invocation.
type CommandRequest struct {
	ID      string
	Title   string
	Command adb.Command
}

// TransferRequest starts a single, batch or zip transfer.
//
// Paths by kind and direction:
//   - single pull: Sources[0] is a device path (relative to RemoteDir when set),
//     Destination a local file or directory
//   - single push: Sources[0] is a local path, RemoteDir the device target
//   - batch pull: Sources are names inside RemoteDir, Destination a local directory
//   - batch push: Sources are local files, RemoteDir the device directory
//   - zip: Sources are names inside RemoteDir, Destination the archive path
type TransferRequest struct {
	ID          string
	Title       string
	Kind        TaskKind
	Direction   Direction
	Sources     []string
	RemoteDir   string
	Destination string
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Runner   adb.Runner
	Registry *Registry
	Logger   *logging.Logger

	// ProgressRate is the number of progress updates per second applied per
	// task. Zero means constants.DefaultProgressRate.
	ProgressRate int

	// StagingDir is where zip tasks create their staging directories.
	// Empty means os.TempDir().
	StagingDir string
}

// Engine runs tasks on their own goroutines and applies their updates to the
// registry from the single loop in Run. Workers never touch the registry.
type Engine struct {
	runner     adb.Runner
	registry   *Registry
	logger     *logging.Logger
	rate       int
	stagingDir string

	updates chan update

	mu       sync.Mutex
	handles  map[string]*Handle
	stopping bool
}

type updateKind int

const (
	updateStarted updateKind = iota
	updateProgress
	updateFileDone
	updateFinished
)

// update is one worker-to-coordinator message.
type update struct {
	kind    updateKind
	id      string
	percent int
	speed   string
	label   string
	file    string
	outcome outcome
}

// NewEngine creates an Engine. Run must be running for tasks to progress.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry(nil, logger)
	}
	r := cfg.ProgressRate
	if r <= 0 {
		r = constants.DefaultProgressRate
	}
	return &Engine{
		runner:     cfg.Runner,
		registry:   registry,
		logger:     logger.Named("engine"),
		rate:       r,
		stagingDir: cfg.StagingDir,
		updates:    make(chan update, constants.EngineUpdateBuffer),
		handles:    make(map[string]*Handle),
	}
}

// Registry returns the registry the engine reports to.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// throttle tracks the applied progress of one task.
type throttle struct {
	limiter *rate.Limiter
	label   string
}

// Run applies worker updates until ctx is done. It then refuses new tasks,
// cancels every running one, and returns ctx.Err() once all of them have
// reported their terminal state.
func (e *Engine) Run(ctx context.Context) error {
	throttles := make(map[string]*throttle)

	for {
		select {
		case u := <-e.updates:
			e.apply(u, throttles)
		case <-ctx.Done():
			e.shutdown()
			for e.running() > 0 {
				e.apply(<-e.updates, throttles)
			}
			return ctx.Err()
		}
	}
}

func (e *Engine) apply(u update, throttles map[string]*throttle) {
	switch u.kind {
	case updateStarted:
		throttles[u.id] = &throttle{limiter: rate.NewLimiter(rate.Limit(e.rate), 1)}
		e.registry.MarkStarted(u.id)

	case updateProgress:
		th, ok := throttles[u.id]
		if !ok {
			return
		}
		labelChanged := u.label != "" && u.label != th.label
		if !labelChanged && u.percent < 100 && !th.limiter.Allow() {
			return
		}
		if u.label != "" {
			th.label = u.label
		}
		e.registry.ReportProgress(u.id, u.percent, u.speed, u.label)

	case updateFileDone:
		e.registry.MarkFileDone(u.id, u.file)

	case updateFinished:
		delete(throttles, u.id)
		e.registry.Resolve(u.id, u.outcome.state, u.outcome.message)
		final, _ := e.registry.Task(u.id)
		e.registry.Complete(u.id)

		e.mu.Lock()
		h := e.handles[u.id]
		delete(e.handles, u.id)
		e.mu.Unlock()

		if h != nil {
			h.finish(final)
		}
		e.logger.Debug().Str("task", u.id).Str("state", string(final.State)).Dur("took", final.Duration()).Msg("task finished")
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()
	e.CancelAll()
}

func (e *Engine) running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// StartCommand registers and starts a command task. The returned handle is
// valid as soon as StartCommand returns; the task is already in the registry.
func (e *Engine) StartCommand(ctx context.Context, req CommandRequest, device string) (*Handle, error) {
	if len(req.Command) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidRequest)
	}
	title := req.Title
	if title == "" {
		title = req.Command.String()
	}
	task := TransferTask{ID: req.ID, Title: title, Kind: KindCommand}
	return e.start(ctx, task, commandJob(req.Command.Clone()), device)
}

// StartTransfer registers and starts a single, batch or zip transfer.
func (e *Engine) StartTransfer(ctx context.Context, req TransferRequest, device string) (*Handle, error) {
	j, files, err := buildTransfer(req)
	if err != nil {
		return nil, err
	}
	title := req.Title
	if title == "" {
		title = defaultTitle(req)
	}
	task := TransferTask{ID: req.ID, Title: title, Kind: req.Kind, Files: files}
	return e.start(ctx, task, j, device)
}

func buildTransfer(req TransferRequest) (job, []string, error) {
	if req.Direction != DirectionPull && req.Direction != DirectionPush {
		return nil, nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, req.Direction)
	}

	switch req.Kind {
	case KindSingle:
		if len(req.Sources) != 1 {
			return nil, nil, fmt.Errorf("%w: single transfer needs exactly one source, got %d", ErrInvalidRequest, len(req.Sources))
		}
		src := req.Sources[0]
		if req.Direction == DirectionPush {
			if req.RemoteDir == "" {
				return nil, nil, fmt.Errorf("%w: push needs a device directory", ErrInvalidRequest)
			}
			return singleJob(adb.Push(src, req.RemoteDir)), []string{filepath.Base(src)}, nil
		}
		remote := src
		if req.RemoteDir != "" {
			remote = adb.JoinRemote(req.RemoteDir, src)
		}
		dest := req.Destination
		if dest == "" {
			dest = "."
		}
		return singleJob(adb.Pull(remote, dest)), []string{path.Base(remote)}, nil

	case KindBatch:
		if req.Direction == DirectionPush && req.RemoteDir == "" {
			return nil, nil, fmt.Errorf("%w: push needs a device directory", ErrInvalidRequest)
		}
		steps := make([]fileStep, 0, len(req.Sources))
		files := make([]string, 0, len(req.Sources))
		for _, src := range req.Sources {
			if req.Direction == DirectionPush {
				name := filepath.Base(src)
				steps = append(steps, fileStep{name: name, cmd: adb.Push(src, adb.JoinRemote(req.RemoteDir, name))})
				files = append(files, name)
				continue
			}
			name := path.Base(src)
			steps = append(steps, fileStep{
				name: name,
				cmd:  adb.Pull(adb.JoinRemote(req.RemoteDir, src), filepath.Join(req.Destination, name)),
			})
			files = append(files, name)
		}
		return batchJob(steps), files, nil

	case KindZip:
		if req.Direction != DirectionPull {
			return nil, nil, fmt.Errorf("%w: zip transfers only pull", ErrInvalidRequest)
		}
		if req.Destination == "" {
			return nil, nil, fmt.Errorf("%w: zip transfer needs an archive path", ErrInvalidRequest)
		}
		var files []string
		for _, name := range req.Sources {
			if !adb.IsDirName(name) {
				files = append(files, name)
			}
		}
		return zipJob(req.RemoteDir, append([]string(nil), req.Sources...), req.Destination), files, nil

	default:
		return nil, nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidRequest, req.Kind)
	}
}

func defaultTitle(req TransferRequest) string {
	verb := "Pulling"
	if req.Direction == DirectionPush {
		verb = "Pushing"
	}
	switch {
	case req.Kind == KindZip:
		return fmt.Sprintf("Zipping %d items to %s", len(req.Sources), filepath.Base(req.Destination))
	case len(req.Sources) == 1:
		return fmt.Sprintf("%s %s", verb, path.Base(filepath.ToSlash(req.Sources[0])))
	default:
		return fmt.Sprintf("%s %d files", verb, len(req.Sources))
	}
}

func (e *Engine) start(ctx context.Context, task TransferTask, j job, device string) (*Handle, error) {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return nil, ErrEngineStopped
	}
	if _, exists := e.handles[task.ID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}
	if err := e.registry.RegisterTask(task); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:       task.ID,
		cancel:   cancel,
		done:     make(chan struct{}),
		registry: e.registry,
	}
	e.handles[task.ID] = h
	e.mu.Unlock()

	env := &jobEnv{
		runner:     e.runner,
		device:     device,
		stagingDir: e.stagingDir,
		logger:     e.logger.Named(task.ID),
		report:     &workerReporter{id: task.ID, updates: e.updates},
	}

	e.logger.Debug().Str("task", task.ID).Str("kind", string(task.Kind)).Str("device", device).Msg("starting task")
	go e.work(taskCtx, h, j, env)
	return h, nil
}

func (e *Engine) work(ctx context.Context, h *Handle, j job, env *jobEnv) {
	e.updates <- update{kind: updateStarted, id: h.id}
	out := runJob(ctx, j, env)
	e.updates <- update{kind: updateFinished, id: h.id, outcome: out}
}

// runJob runs j and turns a panic into a failure. A requested stop wins over
// success.
func runJob(ctx context.Context, j job, env *jobEnv) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			env.logger.Error().Str("stack", string(debug.Stack())).Msgf("task panicked: %v", r)
			out = outcome{state: TaskFailed, message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	out = j(ctx, env)
	if out.state == TaskSucceeded && ctx.Err() != nil {
		out = outcome{state: TaskCancelled, message: "cancelled"}
	}
	return out
}

// Cancel requests a stop of the active task id.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	h, ok := e.handles[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	h.Cancel()
	return nil
}

// CancelAll requests a stop of every active task.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.handles {
		h.cancel()
	}
}

// workerReporter posts progress from a worker. Progress is dropped when the
// coordinator is behind; file completions are not.
type workerReporter struct {
	id      string
	updates chan<- update
}

func (w *workerReporter) progress(percent int, speed, label string) {
	select {
	case w.updates <- update{kind: updateProgress, id: w.id, percent: percent, speed: speed, label: label}:
	default:
	}
}

func (w *workerReporter) fileDone(name string) {
	w.updates <- update{kind: updateFileDone, id: w.id, file: name}
}

// Handle refers to one started task.
type Handle struct {
	id       string
	cancel   context.CancelFunc
	done     chan struct{}
	registry *Registry

	mu    sync.Mutex
	final TransferTask
}

// ID returns the task id.
func (h *Handle) ID() string {
	return h.id
}

// Cancel requests a stop. It is safe to call more than once and after the
// task has finished.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the task's terminal state has been applied.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Task returns a snapshot of the task.
func (h *Handle) Task() TransferTask {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.final.clone()
	default:
	}
	if t, ok := h.registry.Task(h.id); ok {
		return t
	}
	// Finished between the two checks.
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.final.clone()
}

// Wait blocks until the task finishes and returns its final snapshot.
func (h *Handle) Wait() TransferTask {
	<-h.done
	return h.Task()
}

// WaitTimeout is Wait with an upper bound. ok is false on timeout.
func (h *Handle) WaitTimeout(d time.Duration) (task TransferTask, ok bool) {
	select {
	case <-h.done:
		return h.Task(), true
	case <-time.After(d):
		return h.Task(), false
	}
}

func (h *Handle) finish(final TransferTask) {
	h.mu.Lock()
	h.final = final
	h.mu.Unlock()
	h.cancel()
	close(h.done)
}

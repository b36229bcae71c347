package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adbfb/adbfb/internal/adb"
	"github.com/adbfb/adbfb/internal/config"
	"github.com/adbfb/adbfb/internal/events"
	"github.com/adbfb/adbfb/internal/logging"
	"github.com/adbfb/adbfb/internal/notify"
	"github.com/adbfb/adbfb/internal/process"
	"github.com/adbfb/adbfb/internal/progress"
	"github.com/adbfb/adbfb/internal/transfer"
)

// app holds the components one command invocation needs.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	sink     *logging.FileSink
	runner   adb.Runner
	resolver *adb.Resolver
	bus      *events.EventBus
	registry *transfer.Registry
	notifier *notify.Notifier
}

// loadConfig loads adbfb.conf and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if adbPath != "" {
		cfg.ADB.Path = adbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp builds the runner, registry and engine from configuration.
// Callers must Close it.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts := logging.Options{Verbose: verbose || debug || cfg.Logging.Verbose}
	var sink *logging.FileSink
	if cfg.Logging.LogFile != "" {
		sink, err = logging.NewFileSink(cfg.Logging.LogFile)
		if err != nil {
			GetLogger().Warn().Err(err).Str("path", cfg.Logging.LogFile).Msg("Diagnostic log disabled")
		} else {
			opts.File = sink
		}
	}
	log := logging.NewLogger("cli", opts)
	logger = log

	runner := process.NewRunner(cfg.ADB.Path, log)
	bus := events.NewEventBus(cfg.Transfers.EventBuffer)
	registry := transfer.NewRegistry(bus, log)

	notifier := notify.NewNotifier(notify.FromSettings(cfg.Notifications), log)
	if noNotify {
		notifier.SetEnabled(false)
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		sink:     sink,
		runner:   runner,
		resolver: adb.NewResolver(runner),
		bus:      bus,
		registry: registry,
		notifier: notifier,
	}, nil
}

// Close releases the event bus and the diagnostic log.
func (a *app) Close() {
	a.bus.Close()
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn().Err(err).Str("path", a.sink.Path()).Msg("Failed to close diagnostic log")
		}
	}
}

// device returns the target device: --device, then default_device.
// Empty lets adb pick the only attached device.
func (a *app) device() string {
	if deviceFlag != "" {
		return deviceFlag
	}
	return a.cfg.ADB.DefaultDevice
}

// remotePath resolves p against the configured start directory.
func (a *app) remotePath(p string) string {
	if p == "" {
		return a.cfg.Browser.StartDirectory
	}
	return adb.JoinRemote(a.cfg.Browser.StartDirectory, p)
}

// starter registers tasks with the engine and returns their handles.
type starter func(ctx context.Context, engine *transfer.Engine, device string) ([]*transfer.Handle, error)

// runOptions controls one batch of tasks.
type runOptions struct {
	renderer   progress.Renderer
	notifyDone bool // send the all-finished desktop notification
}

// run drives a fresh engine and an event dispatcher until every started
// task finishes, then returns the final task snapshots. A start error stops
// further starts but tasks already started are still awaited. History and
// the dropped-event counter cover this run only.
func (a *app) run(ctx context.Context, opts runOptions, start starter) ([]transfer.TransferTask, error) {
	if opts.renderer == nil {
		opts.renderer = progress.NewNoOpProgress()
	}
	a.registry.ClearHistory()
	a.bus.ResetDroppedEventCount()

	engine := transfer.NewEngine(transfer.EngineConfig{
		Runner:       a.runner,
		Registry:     a.registry,
		Logger:       a.logger,
		ProgressRate: a.cfg.Transfers.ProgressRate,
		StagingDir:   a.cfg.Transfers.StagingDir,
	})
	// Ctrl+C cancels ctx; the engine then cancels every task of this run.
	engineCtx, stopEngine := context.WithCancel(ctx)
	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Run(engineCtx) }()

	dispatcher := transfer.Subscribe(a.bus)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	sub := newRenderSubscriber(opts.renderer, a.notifier, a.registry, opts.notifyDone, a.logger)
	go func() {
		dispatcher.Run(dispatchCtx, sub)
		close(dispatchDone)
	}()

	handles, startErr := start(ctx, engine, a.device())

	tasks := make([]transfer.TransferTask, 0, len(handles))
	for _, h := range handles {
		tasks = append(tasks, h.Wait())
	}

	stopEngine()
	<-engineDone
	stopDispatch()
	<-dispatchDone
	opts.renderer.Wait()

	if dropped := a.bus.ResetDroppedEventCount(); dropped > 0 {
		a.logger.Debug().Int64("dropped", dropped).Msg("progress events dropped")
	}
	return tasks, startErr
}

// runQuiet runs one command task without progress output and returns its
// result text.
func (a *app) runQuiet(ctx context.Context, title string, cmd adb.Command) (string, error) {
	tasks, err := a.run(ctx, runOptions{}, func(ctx context.Context, engine *transfer.Engine, device string) ([]*transfer.Handle, error) {
		h, err := engine.StartCommand(ctx, transfer.CommandRequest{ID: newTaskID("cmd"), Title: title, Command: cmd}, device)
		if err != nil {
			return nil, err
		}
		return []*transfer.Handle{h}, nil
	})
	if err != nil {
		return "", err
	}
	task := tasks[0]
	if err := taskError(task); err != nil {
		return "", err
	}
	return task.Result, nil
}

// taskError converts a non-succeeded task into an error.
func taskError(task transfer.TransferTask) error {
	switch task.State {
	case transfer.TaskSucceeded:
		return nil
	case transfer.TaskCancelled:
		return fmt.Errorf("%s: %w", task.Title, context.Canceled)
	default:
		return fmt.Errorf("%s: %s", task.Title, task.Error)
	}
}

// summarize reports whether every task succeeded.
func summarize(tasks []transfer.TransferTask) error {
	var failed, cancelled int
	for _, t := range tasks {
		switch t.State {
		case transfer.TaskFailed:
			failed++
		case transfer.TaskCancelled:
			cancelled++
		}
	}
	switch {
	case failed == 0 && cancelled == 0:
		return nil
	case failed == 0:
		return fmt.Errorf("%d of %d tasks cancelled: %w", cancelled, len(tasks), context.Canceled)
	default:
		return fmt.Errorf("%d of %d tasks failed", failed, len(tasks))
	}
}

// isCancelled reports whether err comes from Ctrl+C.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// newTaskID mints a unique task id with a readable prefix.
func newTaskID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// renderSubscriber feeds registry events to a progress renderer and the
// desktop notifier.
type renderSubscriber struct {
	renderer   progress.Renderer
	notifier   *notify.Notifier
	registry   *transfer.Registry
	notifyDone bool
	logger     *logging.Logger
	titles     map[string]string
}

func newRenderSubscriber(r progress.Renderer, n *notify.Notifier, reg *transfer.Registry, notifyDone bool, logger *logging.Logger) *renderSubscriber {
	return &renderSubscriber{
		renderer:   r,
		notifier:   n,
		registry:   reg,
		notifyDone: notifyDone,
		logger:     logger,
		titles:     make(map[string]string),
	}
}

func (s *renderSubscriber) OnRegistered(id, title string) {
	s.titles[id] = title
	s.renderer.Track(id, title)
}

func (s *renderSubscriber) OnProgress(id string, percent int, speed, label string) {
	s.renderer.Update(id, percent, speed, label)
}

func (s *renderSubscriber) OnSucceeded(id, result string) {
	s.renderer.Finish(id, progress.OutcomeSucceeded, "")
}

func (s *renderSubscriber) OnFailed(id, message string) {
	s.renderer.Finish(id, progress.OutcomeFailed, message)
	if s.notifyDone {
		s.notifier.TransferFailed(s.titles[id], message)
	}
}

func (s *renderSubscriber) OnCancelled(id, message string) {
	s.renderer.Finish(id, progress.OutcomeCancelled, message)
}

func (s *renderSubscriber) OnActiveCountChanged(count int) {}

// OnLog records failure messages in the diagnostic log.
func (s *renderSubscriber) OnLog(level events.LogLevel, taskID, message string) {
	s.logger.Debug().Str("task", taskID).Str("level", level.String()).Msg(message)
}

func (s *renderSubscriber) OnAllFinished() {
	if !s.notifyDone {
		return
	}
	stats := s.registry.Stats()
	s.notifier.TransfersFinished(notify.Summary{
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Cancelled: stats.Cancelled,
	})
}

// ExitCode maps a command error to a process exit code: 130 after Ctrl+C,
// 1 otherwise.
func ExitCode(err error) int {
	if isCancelled(err) {
		return 130
	}
	return 1
}

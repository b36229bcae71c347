package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/adbfb/adbfb/internal/events"
	"github.com/adbfb/adbfb/internal/logging"
)

// Registry tracks active tasks and the history of finished ones, and
// publishes every change to an event bus.
//
// Lifecycle of an id:
//   - Register adds it to the active set (pending)
//   - MarkStarted, ReportProgress, MarkFileDone update it while active
//   - Resolve records the terminal state; later updates are absorbed
//   - Complete moves it to history; when the active set empties,
//     all_finished is published once
//
// Every method is safe for concurrent use, and unknown ids are no-ops.
// Lifecycle events are published in mutation order: pubMu is held across the
// change and its publishes, while mu guards only the state.
type Registry struct {
	pubMu   sync.Mutex
	mu      sync.Mutex
	active  map[string]*TransferTask
	order   []string // Active ids in registration order
	history []HistoryEntry

	eventBus *events.EventBus
	logger   *logging.Logger
}

// Stats summarizes the registry.
type Stats struct {
	Active    int
	Succeeded int
	Failed    int
	Cancelled int
}

// NewRegistry creates a registry publishing to eventBus (nil = no events).
func NewRegistry(eventBus *events.EventBus, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		active:   make(map[string]*TransferTask),
		eventBus: eventBus,
		logger:   logger.Named("registry"),
	}
}

// Register creates an active command entry in the pending state.
func (r *Registry) Register(id, title string) error {
	return r.RegisterTask(TransferTask{ID: id, Title: title, Kind: KindCommand})
}

// RegisterTask adds task to the active set in the pending state.
// It returns ErrDuplicateTask if the id is already active.
func (r *Registry) RegisterTask(task TransferTask) error {
	if task.ID == "" {
		return fmt.Errorf("%w: empty task id", ErrInvalidRequest)
	}

	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	if _, exists := r.active[task.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}
	t := task.clone()
	t.State = TaskPending
	t.Percent = 0
	t.CreatedAt = time.Now()
	if t.Kind == "" {
		t.Kind = KindCommand
	}
	r.active[t.ID] = &t
	r.order = append(r.order, t.ID)
	snap := t.clone()
	count := len(r.active)
	r.mu.Unlock()

	r.logger.Debug().Str("task", snap.ID).Str("kind", string(snap.Kind)).Msg("registered")
	r.publishTransfer(events.EventTransferRegistered, &snap)
	r.publishCount(count)
	return nil
}

// MarkStarted moves a pending task to running.
func (r *Registry) MarkStarted(id string) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	t, ok := r.active[id]
	if !ok || !t.start() {
		r.mu.Unlock()
		return
	}
	snap := t.clone()
	r.mu.Unlock()

	r.publishTransfer(events.EventTransferStarted, &snap)
}

// ReportProgress updates a task's percentage, speed and label.
// It does nothing for unknown, archived or resolved ids.
func (r *Registry) ReportProgress(id string, percent int, speed, label string) {
	r.mu.Lock()
	t, ok := r.active[id]
	if !ok || !t.progress(percent, speed, label) {
		r.mu.Unlock()
		return
	}
	snap := t.clone()
	r.mu.Unlock()

	r.publishTransfer(events.EventTransferProgress, &snap)
}

// MarkFileDone records that one file of a batch finished.
func (r *Registry) MarkFileDone(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.active[id]; ok {
		t.fileDone(name)
	}
}

// Resolve records a terminal state with its result or error text and
// publishes the matching event. Only the first call per id has any effect.
func (r *Registry) Resolve(id string, state TaskState, message string) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	t, ok := r.active[id]
	if !ok || !t.resolve(state, message) {
		r.mu.Unlock()
		return
	}
	snap := t.clone()
	r.mu.Unlock()

	r.logger.Debug().Str("task", id).Str("state", string(state)).Msg("resolved")

	var eventType events.EventType
	switch state {
	case TaskSucceeded:
		eventType = events.EventTransferSucceeded
	case TaskFailed:
		eventType = events.EventTransferFailed
	default:
		eventType = events.EventTransferCancelled
	}
	r.publishTransfer(eventType, &snap)
	if state == TaskFailed && r.eventBus != nil {
		r.eventBus.PublishLog(events.ErrorLevel, snap.Title+": "+message, id, nil)
	}
}

// Complete archives an active task into history. A task that was never
// resolved is resolved as succeeded first. When this empties the active set,
// all_finished is published. Unknown ids are ignored, so duplicate
// completion signals are harmless.
func (r *Registry) Complete(id string) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	t, ok := r.active[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	resolvedNow := t.resolve(TaskSucceeded, t.Result)
	snap := t.clone()

	delete(r.active, id)
	for i, activeID := range r.order {
		if activeID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	message := snap.Error
	if snap.State == TaskSucceeded {
		message = snap.Result
	}
	r.history = append(r.history, HistoryEntry{
		ID:          snap.ID,
		Title:       snap.Title,
		Kind:        snap.Kind,
		State:       snap.State,
		Message:     message,
		Completed:   snap.Completed,
		CompletedAt: snap.CompletedAt,
	})
	count := len(r.active)
	r.mu.Unlock()

	if resolvedNow {
		r.publishTransfer(events.EventTransferSucceeded, &snap)
	}
	r.publishCount(count)
	if count == 0 {
		r.logger.Debug().Msg("all transfers finished")
		r.publish(&events.CountEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventAllFinished, Time: time.Now()},
		})
	}
}

// Task returns a snapshot of an active task.
func (r *Registry) Task(id string) (TransferTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.active[id]
	if !ok {
		return TransferTask{}, false
	}
	return t.clone(), true
}

// ActiveCount returns the number of active tasks.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Active returns snapshots of active tasks in registration order.
func (r *Registry) Active() []TransferTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]TransferTask, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.active[id].clone())
	}
	return result
}

// History returns archived tasks, most recent first.
func (r *Registry) History() []HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]HistoryEntry, len(r.history))
	for i, h := range r.history {
		result[len(r.history)-1-i] = h
	}
	return result
}

// ClearHistory forgets all archived tasks.
func (r *Registry) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

// Stats counts active tasks and archived outcomes.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Active: len(r.active)}
	for _, h := range r.history {
		switch h.State {
		case TaskSucceeded:
			s.Succeeded++
		case TaskFailed:
			s.Failed++
		case TaskCancelled:
			s.Cancelled++
		}
	}
	return s
}

func (r *Registry) publishTransfer(eventType events.EventType, t *TransferTask) {
	r.publish(&events.TransferEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventType,
			Time:      time.Now(),
		},
		TaskID:  t.ID,
		Title:   t.Title,
		Kind:    string(t.Kind),
		Percent: t.Percent,
		Speed:   t.Speed,
		Label:   t.Label,
		Result:  t.Result,
		Error:   t.Error,
	})
}

func (r *Registry) publishCount(count int) {
	r.publish(&events.CountEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventActiveCountChanged, Time: time.Now()},
		Active:    count,
	})
}

func (r *Registry) publish(event events.Event) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(event)
}

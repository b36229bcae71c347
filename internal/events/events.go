// Package events provides the buffered event bus that carries transfer
// notifications from the coordination loop to front-ends.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/adbfb/adbfb/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog EventType = "log"

	// Transfer lifecycle events
	EventTransferRegistered EventType = "transfer_registered" // Task added to the active set
	EventTransferStarted    EventType = "transfer_started"    // Process spawned
	EventTransferProgress   EventType = "transfer_progress"   // Progress update
	EventTransferSucceeded  EventType = "transfer_succeeded"  // Exit code 0
	EventTransferFailed     EventType = "transfer_failed"     // Spawn error, non-zero exit, batch abort
	EventTransferCancelled  EventType = "transfer_cancelled"  // Stop requested

	// Registry aggregate events
	EventActiveCountChanged EventType = "active_count_changed"
	EventAllFinished        EventType = "all_finished" // Active count dropped to zero
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	TaskID  string
	Error   error
}

// TransferEvent represents a change to one tracked transfer.
type TransferEvent struct {
	BaseEvent
	TaskID  string // Caller-supplied task identifier
	Title   string // Human-readable title
	Kind    string // "command", "single", "batch" or "zip"
	Percent int    // 0 to 100
	Speed   string // As printed by adb, e.g. "3.2 MB/s"
	Label   string // Current status text or file name
	Result  string // Output text on success
	Error   string // Failure message
}

// CountEvent carries the size of the active set.
type CountEvent struct {
	BaseEvent
	Active int
}

// EventBus manages event subscriptions and publishing. Every subscriber
// receives every event; front-ends switch on the payload type.
type EventBus struct {
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		all:        make([]chan Event, 0),
		bufferSize: bufferSize,
	}
}

// Subscribe creates a subscription to every event
func (eb *EventBus) Subscribe() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers.
// Progress, count and log events are dropped when a subscriber's buffer is
// full. Registered, terminal and all-finished events wait up to
// EventDeliveryTimeout for room.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	mustDeliver := IsTerminal(event.Type()) ||
		event.Type() == EventTransferRegistered ||
		event.Type() == EventAllFinished

	for _, ch := range eb.all {
		eb.send(ch, event, mustDeliver)
	}
}

func (eb *EventBus) send(ch chan Event, event Event, mustDeliver bool) {
	if mustDeliver {
		select {
		case ch <- event:
		case <-time.After(constants.EventDeliveryTimeout):
			eb.droppedEvents.Add(1)
		}
		return
	}
	select {
	case ch <- event:
	default:
		eb.droppedEvents.Add(1)
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, taskID string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{
			EventType: EventLog,
			Time:      time.Now(),
		},
		Level:   level,
		Message: message,
		TaskID:  taskID,
		Error:   err,
	})
}

// Unsubscribe removes a subscription channel
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// ResetDroppedEventCount returns the number of events dropped due to full
// buffers since the last reset, and resets the counter to zero.
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}

// IsTerminal reports whether t ends a transfer's lifecycle.
func IsTerminal(t EventType) bool {
	return t == EventTransferSucceeded || t == EventTransferFailed || t == EventTransferCancelled
}

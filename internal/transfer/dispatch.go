package transfer

import (
	"context"

	"github.com/adbfb/adbfb/internal/events"
)

// Subscriber is the callback contract front-ends implement. Dispatch calls
// it from a single goroutine, so implementations need no locking of their own.
type Subscriber interface {
	OnRegistered(id, title string)
	OnProgress(id string, percent int, speed, label string)
	OnSucceeded(id, result string)
	OnFailed(id, message string)
	OnCancelled(id, message string)
	OnActiveCountChanged(count int)
	OnAllFinished()
}

// LogSubscriber is implemented by subscribers that also want log events,
// such as the message published when a task fails.
type LogSubscriber interface {
	OnLog(level events.LogLevel, taskID, message string)
}

// SubscriberFuncs implements Subscriber with optional callbacks. Nil fields
// are skipped.
type SubscriberFuncs struct {
	Registered         func(id, title string)
	Progress           func(id string, percent int, speed, label string)
	Succeeded          func(id, result string)
	Failed             func(id, message string)
	Cancelled          func(id, message string)
	ActiveCountChanged func(count int)
	AllFinished        func()
	Log                func(level events.LogLevel, taskID, message string)
}

func (f SubscriberFuncs) OnRegistered(id, title string) {
	if f.Registered != nil {
		f.Registered(id, title)
	}
}

func (f SubscriberFuncs) OnProgress(id string, percent int, speed, label string) {
	if f.Progress != nil {
		f.Progress(id, percent, speed, label)
	}
}

func (f SubscriberFuncs) OnSucceeded(id, result string) {
	if f.Succeeded != nil {
		f.Succeeded(id, result)
	}
}

func (f SubscriberFuncs) OnFailed(id, message string) {
	if f.Failed != nil {
		f.Failed(id, message)
	}
}

func (f SubscriberFuncs) OnCancelled(id, message string) {
	if f.Cancelled != nil {
		f.Cancelled(id, message)
	}
}

func (f SubscriberFuncs) OnActiveCountChanged(count int) {
	if f.ActiveCountChanged != nil {
		f.ActiveCountChanged(count)
	}
}

func (f SubscriberFuncs) OnAllFinished() {
	if f.AllFinished != nil {
		f.AllFinished()
	}
}

func (f SubscriberFuncs) OnLog(level events.LogLevel, taskID, message string) {
	if f.Log != nil {
		f.Log(level, taskID, message)
	}
}

// Dispatcher forwards registry events from an event bus to a Subscriber.
type Dispatcher struct {
	eventBus     *events.EventBus
	subscription <-chan events.Event
}

// Subscribe attaches a Dispatcher to eventBus. Events published from now on
// are buffered until Run delivers them, so subscribe before starting tasks.
func Subscribe(eventBus *events.EventBus) *Dispatcher {
	return &Dispatcher{
		eventBus:     eventBus,
		subscription: eventBus.Subscribe(),
	}
}

// Run delivers events to sub until ctx is done or the bus is closed. Events
// already buffered when ctx is done are still delivered, then the
// subscription is released.
func (d *Dispatcher) Run(ctx context.Context, sub Subscriber) {
	defer d.eventBus.Unsubscribe(d.subscription)

	for {
		select {
		case event, ok := <-d.subscription:
			if !ok {
				return
			}
			deliver(event, sub)

		case <-ctx.Done():
			for {
				select {
				case event, ok := <-d.subscription:
					if !ok {
						return
					}
					deliver(event, sub)
				default:
					return
				}
			}
		}
	}
}

// Dispatch subscribes to eventBus and runs the dispatcher until ctx is done.
func Dispatch(ctx context.Context, eventBus *events.EventBus, sub Subscriber) {
	Subscribe(eventBus).Run(ctx, sub)
}

func deliver(event events.Event, sub Subscriber) {
	switch e := event.(type) {
	case *events.TransferEvent:
		switch e.Type() {
		case events.EventTransferRegistered:
			sub.OnRegistered(e.TaskID, e.Title)
		case events.EventTransferProgress:
			sub.OnProgress(e.TaskID, e.Percent, e.Speed, e.Label)
		case events.EventTransferSucceeded:
			sub.OnSucceeded(e.TaskID, e.Result)
		case events.EventTransferFailed:
			sub.OnFailed(e.TaskID, e.Error)
		case events.EventTransferCancelled:
			sub.OnCancelled(e.TaskID, e.Error)
		}

	case *events.LogEvent:
		if ls, ok := sub.(LogSubscriber); ok {
			ls.OnLog(e.Level, e.TaskID, e.Message)
		}

	case *events.CountEvent:
		switch e.Type() {
		case events.EventActiveCountChanged:
			sub.OnActiveCountChanged(e.Active)
		case events.EventAllFinished:
			sub.OnAllFinished()
		}
	}
}

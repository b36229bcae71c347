package transfer

import (
	"context"
	"reflect"
	"testing"

	"github.com/adbfb/adbfb/internal/events"
)

func TestDispatcher_DeliversInOrder(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()

	d := Subscribe(bus)
	r := NewRegistry(bus, nil)

	_ = r.Register("a", "Pull a")
	r.MarkStarted("a")
	r.ReportProgress("a", 42, "3.2 MB/s", "a.txt")
	r.Resolve("a", TaskSucceeded, "ok")
	r.Complete("a")

	_ = r.Register("b", "Pull b")
	r.Resolve("b", TaskFailed, "boom")
	r.Complete("b")

	_ = r.Register("c", "Pull c")
	r.Resolve("c", TaskCancelled, "cancelled")
	r.Complete("c")

	var got []string
	sub := SubscriberFuncs{
		Registered: func(id, title string) { got = append(got, "registered "+id+" "+title) },
		Progress: func(id string, percent int, speed, label string) {
			got = append(got, "progress "+id+" "+speed+" "+label)
		},
		Succeeded:          func(id, result string) { got = append(got, "succeeded "+id+" "+result) },
		Failed:             func(id, message string) { got = append(got, "failed "+id+" "+message) },
		Cancelled:          func(id, message string) { got = append(got, "cancelled "+id) },
		ActiveCountChanged: func(count int) { got = append(got, "count") },
		AllFinished:        func() { got = append(got, "all finished") },
	}

	// A cancelled context still delivers what is already buffered.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx, sub)

	want := []string{
		"registered a Pull a", "count",
		"progress a 3.2 MB/s a.txt",
		"succeeded a ok", "count", "all finished",
		"registered b Pull b", "count",
		"failed b boom", "count", "all finished",
		"registered c Pull c", "count",
		"cancelled c", "count", "all finished",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected\n%v\ngot\n%v", want, got)
	}
}

func TestDispatcher_StopsWhenBusCloses(t *testing.T) {
	bus := events.NewEventBus(10)
	d := Subscribe(bus)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), SubscriberFuncs{})
		close(done)
	}()

	bus.Close()
	<-done
}

func TestSubscriberFuncs_NilFieldsAreSkipped(t *testing.T) {
	var s Subscriber = SubscriberFuncs{}
	s.OnRegistered("a", "t")
	s.OnProgress("a", 1, "", "")
	s.OnSucceeded("a", "")
	s.OnFailed("a", "")
	s.OnCancelled("a", "")
	s.OnActiveCountChanged(0)
	s.OnAllFinished()
}

func TestDispatcher_DeliversFailureLog(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()

	d := Subscribe(bus)
	r := NewRegistry(bus, nil)

	_ = r.Register("a", "Pull a")
	r.Resolve("a", TaskFailed, "no space left")
	_ = r.Register("b", "Pull b")
	r.Resolve("b", TaskSucceeded, "ok")

	var logs []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx, SubscriberFuncs{
		Log: func(level events.LogLevel, taskID, message string) {
			logs = append(logs, level.String()+" "+taskID+" "+message)
		},
	})

	want := []string{"ERROR a Pull a: no space left"}
	if !reflect.DeepEqual(logs, want) {
		t.Errorf("Expected %v, got %v", want, logs)
	}
}

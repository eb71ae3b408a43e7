package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan WorkerStartedEvent, 1)

	unsub := bus.Subscribe(func(e WorkerStartedEvent) {
		received <- e
	})
	defer unsub()

	event := WorkerStartedEvent{
		Name:      "mix",
		PID:       4242,
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.PID != event.PID {
		t.Errorf("Expected pid %d, got %d", event.PID, got.PID)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan WorkerOutputEvent, 1)
	received2 := make(chan WorkerOutputEvent, 1)

	unsub1 := bus.Subscribe(func(e WorkerOutputEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e WorkerOutputEvent) {
		received2 <- e
	})
	defer unsub2()

	event := WorkerOutputEvent{
		Stream: "stdout",
		Line:   "listening on :8088",
	}
	bus.Publish(event)

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan WorkerCrashedEvent, 1)

	unsub := bus.Subscribe(func(e WorkerCrashedEvent) {
		received <- e
	})

	bus.Publish(WorkerCrashedEvent{Name: "mix", ExitCode: 1})
	<-received

	unsub()

	bus.Publish(WorkerCrashedEvent{Name: "mix", ExitCode: 2})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	startedReceived := make(chan bool, 1)
	outputReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ WorkerStartedEvent) {
		startedReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ WorkerOutputEvent) {
		outputReceived <- true
	})
	defer unsub2()

	// Publish WorkerStartedEvent
	bus.Publish(WorkerStartedEvent{Name: "mix"})
	<-startedReceived

	select {
	case <-outputReceived:
		t.Fatal("Output subscriber should NOT have received WorkerStartedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	// Publish WorkerOutputEvent
	bus.Publish(WorkerOutputEvent{Stream: "stderr", Line: "warning"})
	<-outputReceived

	select {
	case <-startedReceived:
		t.Fatal("Started subscriber should NOT have received WorkerOutputEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ WorkerOutputEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(WorkerOutputEvent{
					Stream:    "stdout",
					Line:      "tick",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	// Read all expected events
	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"WorkerStarted", WorkerStartedEvent{Name: "mix", PID: 1}},
		{"WorkerStopped", WorkerStoppedEvent{Name: "mix"}},
		{"WorkerCrashed", WorkerCrashedEvent{Name: "mix", ExitCode: 1}},
		{"WorkerOutput", WorkerOutputEvent{Stream: "stdout", Line: "hi"}},
		{"ConfigReloaded", ConfigReloadedEvent{Path: "/tmp/config.toml"}},
		{"LogEntry", LogEntryEvent{Seq: 1, Level: "info", Module: "api"}},
		{"UpdateState", UpdateStateEvent{State: "checking"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case WorkerStartedEvent:
				unsub = bus.Subscribe(func(e WorkerStartedEvent) { received <- e })
			case WorkerStoppedEvent:
				unsub = bus.Subscribe(func(e WorkerStoppedEvent) { received <- e })
			case WorkerCrashedEvent:
				unsub = bus.Subscribe(func(e WorkerCrashedEvent) { received <- e })
			case WorkerOutputEvent:
				unsub = bus.Subscribe(func(e WorkerOutputEvent) { received <- e })
			case ConfigReloadedEvent:
				unsub = bus.Subscribe(func(e ConfigReloadedEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			case UpdateStateEvent:
				unsub = bus.Subscribe(func(e UpdateStateEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 4)

	unsub := SubscribeToChannel[WorkerCrashedEvent](bus, ch)
	defer unsub()

	bus.Publish(WorkerCrashedEvent{Name: "mix", ExitCode: 3})

	select {
	case got := <-ch:
		ev, ok := got.(WorkerCrashedEvent)
		if !ok {
			t.Fatalf("expected WorkerCrashedEvent, got %T", got)
		}
		if ev.ExitCode != 3 {
			t.Errorf("expected exit code 3, got %d", ev.ExitCode)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bridged event")
	}
}

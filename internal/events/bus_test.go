package events_test

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/events"
)

func TestBusAssignsMonotonicSequences(t *testing.T) {
	bus := events.NewBus(16)
	bus.Publish(events.StageStarted("run-1", "quick_post", "research", 0))
	bus.Publish(events.StageCompleted("run-1", "quick_post", "research", 0, "success", 0, 120*time.Millisecond))
	bus.Publish(events.RunTerminal("run-1", "quick_post", "completed", ""))

	got, next, err := bus.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, evt := range got {
		if evt.Sequence != uint64(i+1) {
			t.Fatalf("expected sequence %d, got %d", i+1, evt.Sequence)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("expected timestamp stamped on publish")
		}
	}
	if next != 3 {
		t.Fatalf("expected next cursor 3, got %d", next)
	}
	if got[2].Type != events.TypeRunTerminal || got[2].Status != "completed" {
		t.Fatalf("unexpected terminal event %+v", got[2])
	}
}

func TestBusRingDropsOldest(t *testing.T) {
	bus := events.NewBus(2)
	for i := 0; i < 3; i++ {
		bus.Publish(events.StageStarted("run-1", "quick_post", "research", i))
	}

	got, _, err := bus.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected ring to cap at 2 events, got %d", len(got))
	}
	if got[0].Sequence != 2 || got[1].Sequence != 3 {
		t.Fatalf("expected oldest dropped, got sequences %d,%d", got[0].Sequence, got[1].Sequence)
	}
	if first := bus.FirstSequence(); first != 2 {
		t.Fatalf("expected first buffered sequence 2, got %d", first)
	}
}

func TestBusFetchSinceCursor(t *testing.T) {
	bus := events.NewBus(16)
	for i := 0; i < 5; i++ {
		bus.Publish(events.StageStarted("run-1", "quick_post", "write", i))
	}

	got, next, err := bus.Fetch(context.Background(), 3, 0, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(got) != 2 || got[0].Sequence != 4 || got[1].Sequence != 5 {
		t.Fatalf("expected events after cursor 3, got %+v", got)
	}
	if next != 5 {
		t.Fatalf("expected cursor 5, got %d", next)
	}
}

func TestBusFetchLimitCursorResumesWithoutSkipping(t *testing.T) {
	bus := events.NewBus(16)
	for i := 0; i < 5; i++ {
		bus.Publish(events.StageStarted("run-1", "quick_post", "write", i))
	}

	first, next, err := bus.Fetch(context.Background(), 0, 2, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(first) != 2 || next != 2 {
		t.Fatalf("expected truncated page ending at cursor 2, got %d events cursor %d", len(first), next)
	}

	rest, next, err := bus.Fetch(context.Background(), next, 0, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(rest) != 3 || rest[0].Sequence != 3 || next != 5 {
		t.Fatalf("expected remaining events 3..5, got %+v cursor %d", rest, next)
	}
}

func TestBusFetchWaitWakesOnPublish(t *testing.T) {
	bus := events.NewBus(16)

	go func() {
		time.Sleep(20 * time.Millisecond)
		bus.Publish(events.RunTerminal("run-1", "quick_post", "completed", ""))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, _, err := bus.Fetch(ctx, 0, 0, true)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(got) != 1 || got[0].Type != events.TypeRunTerminal {
		t.Fatalf("expected terminal event, got %+v", got)
	}
}

func TestBusFetchWaitHonorsContext(t *testing.T) {
	bus := events.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := bus.Fetch(ctx, 0, 0, true)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error from waited fetch")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not return after context cancellation")
	}
}

type recordingSink struct {
	events []events.Event
}

func (s *recordingSink) Append(evt events.Event) {
	s.events = append(s.events, evt)
}

type panickingSink struct{}

func (panickingSink) Append(events.Event) { panic("observer bug") }

func TestBusSinkPanicContained(t *testing.T) {
	bus := events.NewBus(16)
	recorder := &recordingSink{}
	bus.AddSink(panickingSink{})
	bus.AddSink(recorder)

	bus.Publish(events.StageStarted("run-1", "quick_post", "research", 0))
	bus.Publish(events.StageCompleted("run-1", "quick_post", "research", 0, "success", 0, time.Millisecond))

	if len(recorder.events) != 2 {
		t.Fatalf("expected healthy sink to receive both events, got %d", len(recorder.events))
	}
}

func TestBusTail(t *testing.T) {
	bus := events.NewBus(16)
	for i := 0; i < 4; i++ {
		bus.Publish(events.StageStarted("run-1", "quick_post", "edit", i))
	}

	tail, next := bus.Tail(2)
	if len(tail) != 2 || tail[0].Sequence != 3 || tail[1].Sequence != 4 {
		t.Fatalf("expected last two events, got %+v", tail)
	}
	if next != 4 {
		t.Fatalf("expected cursor 4, got %d", next)
	}
}

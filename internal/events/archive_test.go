package events_test

import (
	"path/filepath"
	"testing"
	"time"

	"inkwell/internal/events"
)

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "run-events.jsonl")
	archive, err := events.NewArchive(path)
	if err != nil {
		t.Fatalf("NewArchive returned error: %v", err)
	}
	defer archive.Close()

	bus := events.NewBus(4)
	bus.AddSink(archive)

	for i := 0; i < 6; i++ {
		bus.Publish(events.StageStarted("run-1", "quick_post", "write", i))
	}
	bus.Publish(events.RunTerminal("run-1", "quick_post", "failed", "quality threshold not met after 3 attempts"))

	replayed, highest, err := archive.ReadSince(4, 0)
	if err != nil {
		t.Fatalf("ReadSince returned error: %v", err)
	}
	if highest != 7 {
		t.Fatalf("expected highest sequence 7, got %d", highest)
	}
	if len(replayed) != 3 {
		t.Fatalf("expected 3 events after cursor 4, got %d", len(replayed))
	}
	last := replayed[len(replayed)-1]
	if last.Type != events.TypeRunTerminal || last.Reason != "quality threshold not met after 3 attempts" {
		t.Fatalf("unexpected terminal event %+v", last)
	}
}

func TestArchiveLimitsRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	archive, err := events.NewArchive(path)
	if err != nil {
		t.Fatalf("NewArchive returned error: %v", err)
	}
	defer archive.Close()

	for i := 0; i < 5; i++ {
		archive.Append(events.Event{Sequence: uint64(i + 1), Timestamp: time.Now().UTC(), Type: events.TypeStageStarted, RunID: "run-1"})
	}

	got, _, err := archive.ReadSince(0, 2)
	if err != nil {
		t.Fatalf("ReadSince returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit to cap result, got %d", len(got))
	}
}

func TestArchiveDisabledForEmptyPath(t *testing.T) {
	archive, err := events.NewArchive("   ")
	if err != nil {
		t.Fatalf("NewArchive returned error: %v", err)
	}
	if archive != nil {
		t.Fatal("expected nil archive for empty path")
	}

	archive.Append(events.Event{Sequence: 1})
	if _, _, err := archive.ReadSince(0, 0); err != nil {
		t.Fatalf("expected nil archive reads to be safe, got %v", err)
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("expected nil archive close to be safe, got %v", err)
	}
}

func TestArchiveTruncatesOnCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	first, err := events.NewArchive(path)
	if err != nil {
		t.Fatalf("NewArchive returned error: %v", err)
	}
	first.Append(events.Event{Sequence: 1, Type: events.TypeStageStarted, RunID: "run-1"})
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	second, err := events.NewArchive(path)
	if err != nil {
		t.Fatalf("NewArchive returned error: %v", err)
	}
	defer second.Close()

	got, _, err := second.ReadSince(0, 0)
	if err != nil {
		t.Fatalf("ReadSince returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected fresh journal after recreate, got %d events", len(got))
	}
}

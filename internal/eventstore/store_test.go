package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/cordialrun/agentrt/pkg/models"
)

func textEvent(delta string) models.StreamEvent {
	return models.StreamEvent{Type: models.EventTextDelta, Payload: []byte(`{"delta":"` + delta + `"}`)}
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	e1, err := s.Append(ctx, "s1", textEvent("a"))
	if err != nil {
		t.Fatal(err)
	}
	e2, err := s.Append(ctx, "s1", textEvent("b"))
	if err != nil {
		t.Fatal(err)
	}
	if e1.ID == 0 || e2.ID != e1.ID+1 {
		t.Fatalf("expected monotonic ids, got %d then %d", e1.ID, e2.ID)
	}
}

func TestReadAfterIDNeverReturnsOlder(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, "s1", textEvent("x")); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.Read(ctx, "s1", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		if e.ID <= 3 {
			t.Fatalf("Read(afterID=3) returned event with id %d", e.ID)
		}
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events after id 3, got %d", len(events))
	}
}

func TestAppendRejectedAfterTerminal(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	if _, err := s.Append(ctx, "s1", textEvent("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkComplete("s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, "s1", textEvent("b")); err != ErrStreamClosed {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
}

func TestStatusUnknownForUnseenStream(t *testing.T) {
	s := New(0)
	if got := s.Status("nope"); got != models.StreamUnknown {
		t.Fatalf("Status() = %v, want unknown", got)
	}
}

func TestResumeScenario(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	var lastID uint64
	for i := 0; i < 10; i++ {
		e, err := s.Append(ctx, "s1", textEvent("x"))
		if err != nil {
			t.Fatal(err)
		}
		lastID = e.ID
	}
	if err := s.MarkComplete("s1"); err != nil {
		t.Fatal(err)
	}

	resumed, err := s.Read(ctx, "s1", lastID-3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(resumed) != 3 {
		t.Fatalf("expected 3 remaining events, got %d", len(resumed))
	}
	for i, e := range resumed {
		want := lastID - 3 + uint64(i) + 1
		if e.ID != want {
			t.Fatalf("event %d has id %d, want %d", i, e.ID, want)
		}
	}
}

func TestSweeperEvictsStaleStreams(t *testing.T) {
	s := New(10 * time.Millisecond)
	ctx := context.Background()
	if _, err := s.Append(ctx, "s1", textEvent("a")); err != nil {
		t.Fatal(err)
	}

	s.StartSweeper(5 * time.Millisecond)
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)

	if got := s.Status("s1"); got != models.StreamUnknown {
		t.Fatalf("Status() after sweep = %v, want unknown", got)
	}
}

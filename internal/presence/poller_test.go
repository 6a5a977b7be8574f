package presence

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/intervue/internal/media"
)

func staticRoom(name string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return name, nil }
}

func TestPollerStopsWhenAgentArrives(t *testing.T) {
	fake := media.NewFakeRoomService()
	fake.Join("room-1", "candidate-42", "")
	r := NewReconciler(fake, NewClassifier("", ""), nil)

	var polls int32
	var confirmed int32
	p := NewPoller(r, 10*time.Millisecond, PollHooks{
		Room: staticRoom("room-1"),
		OnSnapshot: func(_ context.Context, snap Snapshot) {
			if atomic.AddInt32(&polls, 1) == 2 {
				fake.Join("room-1", "agent-interviewer-1", "")
			}
		},
		OnAgentPresent: func(context.Context, Snapshot) bool {
			atomic.AddInt32(&confirmed, 1)
			return true
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if got := p.Run(ctx); got != StopAgentPresent {
		t.Fatalf("Run() = %q, want %q", got, StopAgentPresent)
	}
	if atomic.LoadInt32(&confirmed) != 1 {
		t.Fatalf("OnAgentPresent called %d times, want 1", confirmed)
	}
}

func TestPollerKeepsPollingUntilAgentConfirmed(t *testing.T) {
	fake := media.NewFakeRoomService()
	fake.Join("room-1", "agent-interviewer-1", "")
	r := NewReconciler(fake, NewClassifier("", ""), nil)

	var attempts int32
	p := NewPoller(r, 10*time.Millisecond, PollHooks{
		Room: staticRoom("room-1"),
		OnAgentPresent: func(context.Context, Snapshot) bool {
			return atomic.AddInt32(&attempts, 1) >= 3
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if got := p.Run(ctx); got != StopAgentPresent {
		t.Fatalf("Run() = %q, want %q", got, StopAgentPresent)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("OnAgentPresent called %d times, want 3", got)
	}
}

func TestPollerStopsOnTerminalSession(t *testing.T) {
	r := NewReconciler(media.NewFakeRoomService(), NewClassifier("", ""), nil)
	var checks int32
	p := NewPoller(r, 10*time.Millisecond, PollHooks{
		Room:     staticRoom("room-1"),
		Terminal: func(context.Context) bool { return atomic.AddInt32(&checks, 1) > 2 },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if got := p.Run(ctx); got != StopTerminal {
		t.Fatalf("Run() = %q, want %q", got, StopTerminal)
	}
}

func TestPollerStopsOnDisconnect(t *testing.T) {
	fake := media.NewFakeRoomService()
	r := NewReconciler(fake, NewClassifier("", ""), nil)
	p := NewPoller(r, time.Hour, PollHooks{Room: staticRoom("room-1")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan StopReason, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case got := <-done:
		if got != StopCancelled {
			t.Fatalf("Run() = %q, want %q", got, StopCancelled)
		}
	case <-time.After(time.Second):
		t.Fatalf("poller did not stop after cancellation")
	}
}

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInMemoryStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	created, err := store.Create(ctx, InterviewSession{CandidateID: "c1", JobID: "J1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" || created.Status != StatusPending {
		t.Fatalf("unexpected created session: %+v", created)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.CandidateID != "c1" || got.JobID != "J1" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreAssignRoomOnce(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	s, _ := store.Create(ctx, InterviewSession{CandidateID: "c1"})

	first, err := store.AssignRoom(ctx, s.ID, "room-a")
	if err != nil {
		t.Fatalf("AssignRoom() error = %v", err)
	}
	second, err := store.AssignRoom(ctx, s.ID, "room-b")
	if err != nil {
		t.Fatalf("second AssignRoom() error = %v", err)
	}
	if first.RoomName != "room-a" || second.RoomName != "room-a" {
		t.Fatalf("room names = %q, %q, want room-a twice", first.RoomName, second.RoomName)
	}

	byRoom, err := store.GetByRoom(ctx, "room-a")
	if err != nil || byRoom.ID != s.ID {
		t.Fatalf("GetByRoom() = %+v, %v", byRoom, err)
	}
	if _, err := store.GetByRoom(ctx, "room-b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByRoom(room-b) error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	s, _ := store.Create(ctx, InterviewSession{CandidateID: "c1"})

	now := time.Now().UTC()
	updated, err := store.CompareAndSwapStatus(ctx, s.ID, StatusUpdate{
		Expected: StatusPending,
		Next:     StatusCancelled,
		EndedAt:  &now,
	})
	if err != nil {
		t.Fatalf("CompareAndSwapStatus() error = %v", err)
	}
	if updated.Status != StatusCancelled || updated.EndedAt == nil {
		t.Fatalf("unexpected updated session: %+v", updated)
	}

	_, err = store.CompareAndSwapStatus(ctx, s.ID, StatusUpdate{Expected: StatusPending, Next: StatusWaitingForAgent})
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("stale CompareAndSwapStatus() error = %v, want ErrStatusConflict", err)
	}
}

func TestInMemoryStoreConcurrentCompareAndSwapSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	s, _ := store.Create(ctx, InterviewSession{CandidateID: "c1", Status: StatusWaitingForAgent})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CompareAndSwapStatus(ctx, s.ID, StatusUpdate{Expected: StatusWaitingForAgent, Next: StatusActive})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
}

func TestInMemoryStoreMarkStartedKeepsFirstTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	s, _ := store.Create(ctx, InterviewSession{CandidateID: "c1"})

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if _, err := store.MarkStarted(ctx, s.ID, first); err != nil {
		t.Fatalf("MarkStarted() error = %v", err)
	}
	got, err := store.MarkStarted(ctx, s.ID, first.Add(time.Hour))
	if err != nil {
		t.Fatalf("MarkStarted() error = %v", err)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(first) {
		t.Fatalf("StartedAt = %v, want %v", got.StartedAt, first)
	}
	if got.Status != StatusPending {
		t.Fatalf("Status = %q, want pending", got.Status)
	}
}

func TestInMemoryStoreListByStatus(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	waiting, _ := store.Create(ctx, InterviewSession{CandidateID: "c1", Status: StatusWaitingForAgent})
	_, _ = store.Create(ctx, InterviewSession{CandidateID: "c2", Status: StatusActive})

	got, err := store.ListByStatus(ctx, StatusWaitingForAgent, time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != waiting.ID {
		t.Fatalf("ListByStatus() = %+v, want only %s", got, waiting.ID)
	}
}

func TestFaultyStoreFailsMarkedOperations(t *testing.T) {
	ctx := context.Background()
	store := NewFaultyStore(NewInMemoryStore())
	s, err := store.Create(ctx, InterviewSession{CandidateID: "c1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	down := errors.New("connection refused")
	store.FailOn(OpGet, down)
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, down) {
		t.Fatalf("Get() error = %v, want %v", err, down)
	}
	if _, err := store.LatestByCandidate(ctx, "c1"); err != nil {
		t.Fatalf("LatestByCandidate() error = %v, want pass-through", err)
	}

	store.FailOn(OpGet, nil)
	if got, err := store.Get(ctx, s.ID); err != nil || got.ID != s.ID {
		t.Fatalf("Get() after clear = %+v, %v", got, err)
	}
}

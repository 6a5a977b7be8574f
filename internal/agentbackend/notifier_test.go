package agentbackend

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNotifierSummonDispatched(t *testing.T) {
	backend := NewMockBackend(MockAccept)
	n := NewBestEffortNotifier(backend, nil, nil, time.Second, time.Second)

	out := n.Summon(context.Background(), JoinRequest{RoomName: "room-1", SessionID: "S1"})
	if out.Status != OutcomeDispatched || out.Degraded() {
		t.Fatalf("outcome = %+v, want dispatched", out)
	}
	if out.AgentStatus() != "connecting" {
		t.Fatalf("AgentStatus() = %q, want connecting", out.AgentStatus())
	}
	rec, ok := n.LastSummon(context.Background(), "room-1")
	if !ok || rec.Status != OutcomeDispatched || rec.SessionID != "S1" {
		t.Fatalf("ledger record = %+v, ok=%v", rec, ok)
	}
}

func TestNotifierRejectedCarriesWarning(t *testing.T) {
	n := NewBestEffortNotifier(NewMockBackend(MockReject), nil, nil, time.Second, time.Second)
	out := n.Summon(context.Background(), JoinRequest{RoomName: "room-2"})
	if out.Status != OutcomeRejected {
		t.Fatalf("Status = %q, want rejected", out.Status)
	}
	if !strings.Contains(out.Warning, "404") {
		t.Fatalf("Warning = %q, want status detail", out.Warning)
	}
}

func TestNotifierUnreachableIsBounded(t *testing.T) {
	n := NewBestEffortNotifier(NewMockBackend(MockHang), nil, nil, 50*time.Millisecond, time.Second)

	start := time.Now()
	out := n.Summon(context.Background(), JoinRequest{RoomName: "room-3"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Summon() took %v, want bounded by summon timeout", elapsed)
	}
	if out.Status != OutcomeUnreachable || out.Warning == "" {
		t.Fatalf("outcome = %+v, want unreachable with warning", out)
	}
	rec, ok := n.LastSummon(context.Background(), "room-3")
	if !ok || rec.Status != OutcomeUnreachable {
		t.Fatalf("ledger record = %+v, ok=%v", rec, ok)
	}
}

func TestNotifierDisabledBackendSkips(t *testing.T) {
	n := NewBestEffortNotifier(nil, nil, nil, time.Second, time.Second)
	out := n.CandidateJoined(context.Background(), CandidateJoinedNotice{RoomName: "room-4"})
	if out.Status != OutcomeSkipped {
		t.Fatalf("Status = %q, want skipped", out.Status)
	}
}

func TestInMemoryLedgerExpires(t *testing.T) {
	l := NewInMemoryLedger(time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	_ = l.Record(context.Background(), SummonRecord{RoomName: "r", Status: OutcomeDispatched, At: now})

	if _, ok, _ := l.Last(context.Background(), "r"); !ok {
		t.Fatalf("record missing before ttl")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := l.Last(context.Background(), "r"); ok {
		t.Fatalf("record still present after ttl")
	}
}

package transcript

import (
	"context"
	"testing"
)

func TestInMemoryStoreListReturnsRecentInOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		if _, err := s.Append(ctx, Entry{SessionID: "S1", Speaker: SpeakerAgent, Text: text}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	_, _ = s.Append(ctx, Entry{SessionID: "S2", Text: "other"})

	got, err := s.List(ctx, "S1", 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Text != "two" || got[1].Text != "three" {
		t.Fatalf("List() = %+v, want [two three]", got)
	}
}

func TestInMemoryStoreAppendFillsDefaults(t *testing.T) {
	s := NewInMemoryStore()
	e, err := s.Append(context.Background(), Entry{SessionID: "S1", Text: "Candidate joined the interview"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() || e.Speaker != SpeakerSystem {
		t.Fatalf("entry = %+v, want id, timestamp and system speaker", e)
	}
}

func TestParseSpeaker(t *testing.T) {
	if ParseSpeaker("agent") != SpeakerAgent || ParseSpeaker("candidate") != SpeakerCandidate || ParseSpeaker("narrator") != SpeakerSystem {
		t.Fatalf("ParseSpeaker mapping wrong")
	}
}

func TestInMemoryStoreEmptySession(t *testing.T) {
	got, err := NewInMemoryStore().List(context.Background(), "none", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(List()) = %d, want 0", len(got))
	}
}

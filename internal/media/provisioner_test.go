package media

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestEnsureRoomTwiceKeepsOneRoomWithLatestMetadata(t *testing.T) {
	fake := NewFakeRoomService()
	p := NewProvisioner(fake, 5*time.Minute, 10)
	ctx := context.Background()

	if _, err := p.EnsureRoom(ctx, "interview-J1-1", RoomMetadata{SessionID: "S1", JobDetails: JobDetails{JobID: "J1"}}); err != nil {
		t.Fatalf("EnsureRoom() first error = %v", err)
	}
	room, err := p.EnsureRoom(ctx, "interview-J1-1", RoomMetadata{
		SessionID:   "S1",
		AgentPrompt: json.RawMessage(`{"tone":"friendly"}`),
		JobDetails:  JobDetails{JobID: "J1", CandidateName: "Alice"},
	})
	if err != nil {
		t.Fatalf("EnsureRoom() second error = %v", err)
	}
	if got := fake.RoomCount(); got != 1 {
		t.Fatalf("RoomCount() = %d, want 1", got)
	}

	meta, err := DecodeRoomMetadata(room.Metadata)
	if err != nil {
		t.Fatalf("DecodeRoomMetadata() error = %v", err)
	}
	if meta.JobDetails.CandidateName != "Alice" || string(meta.AgentPrompt) != `{"tone":"friendly"}` {
		t.Fatalf("metadata = %+v, want second call's payload", meta)
	}
	stored, _ := fake.Room("interview-J1-1")
	if stored.Metadata != room.Metadata {
		t.Fatalf("stored metadata = %q, want %q", stored.Metadata, room.Metadata)
	}
	if stored.EmptyTimeout != 300 || stored.MaxParticipants != 10 {
		t.Fatalf("creation limits = %d/%d, want 300/10", stored.EmptyTimeout, stored.MaxParticipants)
	}
}

type existsOnCreate struct {
	*FakeRoomService
}

func (e existsOnCreate) CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error) {
	return Room{}, &ServiceError{Method: "CreateRoom", Status: 409, Code: "already_exists"}
}

func TestEnsureRoomFallsBackToUpdateOnAlreadyExists(t *testing.T) {
	fake := NewFakeRoomService()
	fake.Join("room-x", "candidate-1", "")
	p := NewProvisioner(existsOnCreate{fake}, time.Minute, 2)

	room, err := p.EnsureRoom(context.Background(), "room-x", RoomMetadata{SessionID: "S9"})
	if err != nil {
		t.Fatalf("EnsureRoom() error = %v", err)
	}
	meta, _ := DecodeRoomMetadata(room.Metadata)
	if meta.SessionID != "S9" {
		t.Fatalf("SessionID = %q, want S9", meta.SessionID)
	}
}

func TestEnsureRoomSurfacesServiceFailure(t *testing.T) {
	fake := NewFakeRoomService()
	fake.FailWith(errors.New("connection refused"))
	p := NewProvisioner(fake, 0, 0)
	if _, err := p.EnsureRoom(context.Background(), "room-y", RoomMetadata{}); err == nil {
		t.Fatalf("expected error when media service is down")
	}
}

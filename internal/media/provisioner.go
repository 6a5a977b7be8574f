package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RoomMetadata is the opaque payload attached to an interview room. The agent
// reads it on join.
type RoomMetadata struct {
	SessionID   string          `json:"sessionId"`
	AgentPrompt json.RawMessage `json:"agentPrompt,omitempty"`
	JobDetails  JobDetails      `json:"jobDetails"`
}

type JobDetails struct {
	JobID          string `json:"jobId,omitempty"`
	CandidateEmail string `json:"candidateEmail,omitempty"`
	CandidateName  string `json:"candidateName,omitempty"`
}

func (m RoomMetadata) Encode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode room metadata: %w", err)
	}
	return string(raw), nil
}

func DecodeRoomMetadata(s string) (RoomMetadata, error) {
	var m RoomMetadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return RoomMetadata{}, fmt.Errorf("decode room metadata: %w", err)
	}
	return m, nil
}

// Provisioner creates rooms or refreshes their metadata. The empty timeout
// and capacity only apply when the room is first created; later calls leave
// them as they are.
type Provisioner struct {
	rooms           RoomService
	emptyTimeout    time.Duration
	maxParticipants int
}

func NewProvisioner(rooms RoomService, emptyTimeout time.Duration, maxParticipants int) *Provisioner {
	if emptyTimeout <= 0 {
		emptyTimeout = 5 * time.Minute
	}
	if maxParticipants <= 0 {
		maxParticipants = 10
	}
	return &Provisioner{
		rooms:           rooms,
		emptyTimeout:    emptyTimeout,
		maxParticipants: maxParticipants,
	}
}

func (p *Provisioner) Rooms() RoomService { return p.rooms }

// EnsureRoom is an upsert keyed on name.
func (p *Provisioner) EnsureRoom(ctx context.Context, name string, meta RoomMetadata) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Room{}, fmt.Errorf("ensure room: name is required")
	}
	encoded, err := meta.Encode()
	if err != nil {
		return Room{}, err
	}

	room, err := p.rooms.CreateRoom(ctx, CreateRoomRequest{
		Name:            name,
		Metadata:        encoded,
		EmptyTimeout:    p.emptyTimeout,
		MaxParticipants: p.maxParticipants,
	})
	switch {
	case err == nil && room.Metadata == encoded:
		return room, nil
	case err == nil, errors.Is(err, ErrRoomExists):
		// An existing room is returned unchanged by create.
	default:
		return Room{}, fmt.Errorf("create room %s: %w", name, err)
	}

	updated, err := p.rooms.UpdateRoomMetadata(ctx, name, encoded)
	if err != nil {
		return Room{}, fmt.Errorf("update room %s metadata: %w", name, err)
	}
	return updated, nil
}

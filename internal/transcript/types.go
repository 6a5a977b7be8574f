// Package transcript keeps the running log of what was said in an interview.
// Writes are best-effort from the interview flow's point of view.
package transcript

import (
	"context"
	"time"
)

type Speaker string

const (
	SpeakerCandidate Speaker = "candidate"
	SpeakerAgent     Speaker = "agent"
	SpeakerSystem    Speaker = "system"
)

func ParseSpeaker(s string) Speaker {
	switch Speaker(s) {
	case SpeakerCandidate, SpeakerAgent:
		return Speaker(s)
	default:
		return SpeakerSystem
	}
}

// Entry is a single transcript line.
type Entry struct {
	ID        string    `json:"id" bson:"_id"`
	SessionID string    `json:"sessionId" bson:"session_id"`
	RoomName  string    `json:"roomName,omitempty" bson:"room_name,omitempty"`
	Speaker   Speaker   `json:"speaker" bson:"speaker"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Store persists transcript entries. List returns the most recent limit
// entries in chronological order.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	List(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Close() error
}

const defaultListLimit = 200

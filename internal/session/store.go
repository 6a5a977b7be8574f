package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrStatusConflict = errors.New("session status changed concurrently")
	ErrRoomAssigned   = errors.New("session room already assigned")
)

// Store is the durable home of interview sessions. Records are never deleted.
type Store interface {
	Create(ctx context.Context, s InterviewSession) (InterviewSession, error)
	Get(ctx context.Context, id string) (InterviewSession, error)
	GetByRoom(ctx context.Context, roomName string) (InterviewSession, error)
	LatestByCandidate(ctx context.Context, candidateID string) (InterviewSession, error)
	ListByStatus(ctx context.Context, status Status, updatedBefore time.Time, limit int) ([]InterviewSession, error)

	// AssignRoom sets the room name only if none is assigned yet and returns the
	// stored record, so concurrent callers converge on the first assignment.
	AssignRoom(ctx context.Context, id, roomName string) (InterviewSession, error)

	// MarkStarted sets StartedAt if it is unset; status is untouched.
	MarkStarted(ctx context.Context, id string, at time.Time) (InterviewSession, error)

	// CompareAndSwapStatus applies u only while the stored status equals
	// u.Expected, otherwise it returns ErrStatusConflict.
	CompareAndSwapStatus(ctx context.Context, id string, u StatusUpdate) (InterviewSession, error)

	Close() error
}

// Package presence derives who is in an interview room from the media
// service's participant list.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/intervue/internal/media"
	"github.com/ent0n29/intervue/internal/observability"
)

var ErrUnavailable = errors.New("media service unavailable")

type Role string

const (
	RoleAgent     Role = "agent"
	RoleCandidate Role = "candidate"
	RoleUnknown   Role = "unknown"
)

// Classifier assigns roles by case-insensitive substring match on identities.
// Identities are minted by this service, so string matching is enough.
type Classifier struct {
	agentMarker     string
	candidateMarker string
}

func NewClassifier(agentMarker, candidateMarker string) Classifier {
	agentMarker = strings.ToLower(strings.TrimSpace(agentMarker))
	candidateMarker = strings.ToLower(strings.TrimSpace(candidateMarker))
	if agentMarker == "" {
		agentMarker = "agent"
	}
	if candidateMarker == "" {
		candidateMarker = "candidate"
	}
	return Classifier{agentMarker: agentMarker, candidateMarker: candidateMarker}
}

// Classify checks the agent marker first, so "agent-for-candidate-7" is an agent.
func (c Classifier) Classify(identity string) Role {
	id := strings.ToLower(identity)
	switch {
	case strings.Contains(id, c.agentMarker):
		return RoleAgent
	case strings.Contains(id, c.candidateMarker):
		return RoleCandidate
	default:
		return RoleUnknown
	}
}

type ParticipantView struct {
	Identity    string     `json:"identity"`
	Name        string     `json:"name"`
	Role        Role       `json:"role"`
	IsAgent     bool       `json:"isAgent"`
	IsCandidate bool       `json:"isCandidate"`
	JoinedAt    *time.Time `json:"joinedAt"`
}

// Snapshot is recomputed on every reconcile and never stored.
type Snapshot struct {
	RoomName         string            `json:"roomName"`
	RoomExists       bool              `json:"roomExists"`
	Participants     []ParticipantView `json:"participants"`
	AgentPresent     bool              `json:"agentConnected"`
	CandidatePresent bool              `json:"candidateConnected"`
	AgentCount       int               `json:"agentCount"`
	CandidateCount   int               `json:"candidateCount"`
	ParticipantCount int               `json:"participantCount"`
}

type Reconciler struct {
	rooms      media.RoomService
	classifier Classifier
	metrics    *observability.Metrics
}

func NewReconciler(rooms media.RoomService, classifier Classifier, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{rooms: rooms, classifier: classifier, metrics: metrics}
}

func (r *Reconciler) Classifier() Classifier { return r.classifier }

// Reconcile lists the room's participants. A room that does not exist yet is
// reported as empty, since provisioning and first connection race.
func (r *Reconciler) Reconcile(ctx context.Context, room string) (Snapshot, error) {
	snap := Snapshot{RoomName: room, Participants: []ParticipantView{}}
	if strings.TrimSpace(room) == "" {
		return snap, nil
	}

	participants, err := r.rooms.ListParticipants(ctx, room)
	if errors.Is(err, media.ErrRoomNotFound) {
		r.metrics.ObservePresencePoll("room_missing")
		return snap, nil
	}
	if err != nil {
		r.metrics.ObservePresencePoll("error")
		r.metrics.ObserveDownstreamError("media", "list_participants")
		return snap, fmt.Errorf("%w: list participants in %s: %v", ErrUnavailable, room, err)
	}

	snap.RoomExists = true
	for _, p := range participants {
		view := ParticipantView{
			Identity: p.Identity,
			Name:     p.Name,
			Role:     r.classifier.Classify(p.Identity),
		}
		if view.Name == "" {
			view.Name = "Unknown"
		}
		if !p.JoinedAt.IsZero() {
			joined := p.JoinedAt
			view.JoinedAt = &joined
		}
		switch view.Role {
		case RoleAgent:
			view.IsAgent = true
			snap.AgentCount++
		case RoleCandidate:
			view.IsCandidate = true
			snap.CandidateCount++
		}
		snap.Participants = append(snap.Participants, view)
	}
	snap.ParticipantCount = len(snap.Participants)
	snap.AgentPresent = snap.AgentCount > 0
	snap.CandidatePresent = snap.CandidateCount > 0

	if snap.AgentPresent {
		r.metrics.ObservePresencePoll("agent_present")
	} else {
		r.metrics.ObservePresencePoll("waiting")
	}
	return snap, nil
}

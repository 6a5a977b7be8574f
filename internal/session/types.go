package session

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of an interview session.
type Status string

const (
	StatusPending         Status = "pending"
	StatusWaitingForAgent Status = "waiting_for_agent"
	StatusActive          Status = "active"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// transitions lists the only edges the lifecycle allows.
var transitions = map[Status][]Status{
	StatusPending:         {StatusWaitingForAgent, StatusCancelled},
	StatusWaitingForAgent: {StatusActive, StatusCancelled},
	StatusActive:          {StatusCompleted},
}

// ParseStatus validates a wire status value.
func ParseStatus(v string) (Status, bool) {
	switch s := Status(v); s {
	case StatusPending, StatusWaitingForAgent, StatusActive, StatusCompleted, StatusCancelled:
		return s, true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EndStatus picks the terminal state for an explicit end: sessions that never
// became active are cancelled, everything else completes.
func EndStatus(current Status) Status {
	if current == StatusActive {
		return StatusCompleted
	}
	return StatusCancelled
}

// InterviewSession is the durable record of one interview.
type InterviewSession struct {
	ID             string          `json:"id"`
	RoomName       string          `json:"roomName,omitempty"`
	CandidateID    string          `json:"candidateId"`
	CandidateName  string          `json:"candidateName"`
	CandidateEmail string          `json:"candidateEmail,omitempty"`
	JobID          string          `json:"jobId"`
	InvitationID   string          `json:"invitationId,omitempty"`
	AgentID        string          `json:"agentId,omitempty"`
	AgentPrompt    json.RawMessage `json:"agentPrompt,omitempty"`
	Status         Status          `json:"status"`
	EndReason      string          `json:"endReason,omitempty"`
	AudioEnabled   bool            `json:"audioEnabled"`
	VideoEnabled   bool            `json:"videoEnabled"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	EndedAt        *time.Time      `json:"endedAt,omitempty"`
}

func (s InterviewSession) Clone() InterviewSession {
	out := s
	if s.AgentPrompt != nil {
		out.AgentPrompt = append(json.RawMessage(nil), s.AgentPrompt...)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}

// StatusUpdate is applied atomically by Store.CompareAndSwapStatus.
type StatusUpdate struct {
	Expected  Status
	Next      Status
	StartedAt *time.Time
	EndedAt   *time.Time
	EndReason string
}

// stamp applies the update's timestamp rules to s. StartedAt and EndedAt are
// only ever written once.
func (u StatusUpdate) stamp(s *InterviewSession, now time.Time) {
	s.Status = u.Next
	s.UpdatedAt = now
	if u.StartedAt != nil && s.StartedAt == nil {
		t := *u.StartedAt
		s.StartedAt = &t
	}
	if u.EndedAt != nil && s.EndedAt == nil {
		t := *u.EndedAt
		s.EndedAt = &t
	}
	if u.EndReason != "" {
		s.EndReason = u.EndReason
	}
}

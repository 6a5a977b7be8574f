package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies signaling payload variants.
type MessageType string

const (
	TypeJoin           MessageType = "join"
	TypeCandidateReady MessageType = "candidate_ready"
	TypeEndInterview   MessageType = "end_interview"

	TypeAgentJoined       MessageType = "agent_joined"
	TypeAgentQuestion     MessageType = "agent_question"
	TypeAgentListening    MessageType = "agent_listening"
	TypeTranscript        MessageType = "transcript"
	TypeInterviewComplete MessageType = "interview_complete"
	TypeSessionStatus     MessageType = "session_status"
	TypeErrorEvent        MessageType = "error_event"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrInvalidMessage  = errors.New("invalid message")
)

type Envelope struct {
	Type MessageType `json:"type"`
}

// Join binds a connection to a session. Role is "candidate" unless the
// client says otherwise.
type Join struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Role      string      `json:"role"`
}

type CandidateReady struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
}

type EndInterview struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Reason    string      `json:"reason,omitempty"`
}

// ServerMessage is anything the server sends down a signaling connection.
type ServerMessage interface {
	MessageType() MessageType
}

type AgentJoined struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Identity  string      `json:"identity,omitempty"`
}

type AgentQuestion struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Question  string      `json:"question"`
	Progress  int         `json:"progress"`
}

type AgentListening struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
}

type Transcript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Speaker   string      `json:"speaker"`
	Text      string      `json:"text"`
}

type InterviewComplete struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"sessionId"`
	Responses json.RawMessage `json:"responses"`
}

type SessionStatus struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Status    string      `json:"status"`
	Reason    string      `json:"reason,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func (AgentJoined) MessageType() MessageType       { return TypeAgentJoined }
func (AgentQuestion) MessageType() MessageType     { return TypeAgentQuestion }
func (AgentListening) MessageType() MessageType    { return TypeAgentListening }
func (Transcript) MessageType() MessageType        { return TypeTranscript }
func (InterviewComplete) MessageType() MessageType { return TypeInterviewComplete }
func (SessionStatus) MessageType() MessageType     { return TypeSessionStatus }
func (ErrorEvent) MessageType() MessageType        { return TypeErrorEvent }

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeJoin:
		var msg Join
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.SessionID = strings.TrimSpace(msg.SessionID)
		if msg.SessionID == "" {
			return nil, fmt.Errorf("%w: join requires sessionId", ErrInvalidMessage)
		}
		msg.Role = strings.ToLower(strings.TrimSpace(msg.Role))
		if msg.Role == "" {
			msg.Role = "candidate"
		}
		return msg, nil
	case TypeCandidateReady:
		var msg CandidateReady
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, fmt.Errorf("%w: candidate_ready requires sessionId", ErrInvalidMessage)
		}
		return msg, nil
	case TypeEndInterview:
		var msg EndInterview
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, fmt.Errorf("%w: end_interview requires sessionId", ErrInvalidMessage)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// Stamp fills in the type tag and session id of an outbound message.
func Stamp(msg ServerMessage, sessionID string) ServerMessage {
	switch m := msg.(type) {
	case AgentJoined:
		m.Type, m.SessionID = TypeAgentJoined, sessionID
		return m
	case AgentQuestion:
		m.Type, m.SessionID = TypeAgentQuestion, sessionID
		return m
	case AgentListening:
		m.Type, m.SessionID = TypeAgentListening, sessionID
		return m
	case Transcript:
		m.Type, m.SessionID = TypeTranscript, sessionID
		return m
	case InterviewComplete:
		m.Type, m.SessionID = TypeInterviewComplete, sessionID
		if len(m.Responses) == 0 {
			m.Responses = json.RawMessage(`[]`)
		}
		return m
	case SessionStatus:
		m.Type, m.SessionID = TypeSessionStatus, sessionID
		return m
	case ErrorEvent:
		m.Type = TypeErrorEvent
		if m.SessionID == "" {
			m.SessionID = sessionID
		}
		return m
	default:
		return msg
	}
}

package interview

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/ent0n29/intervue/internal/protocol"
	"github.com/ent0n29/intervue/internal/session"
	"github.com/ent0n29/intervue/internal/transcript"
)

// AgentEvent is what the agent backend pushes while it runs an interview.
type AgentEvent struct {
	Type      string          `json:"type"`
	Identity  string          `json:"identity"`
	Question  string          `json:"question"`
	Progress  int             `json:"progress"`
	Speaker   string          `json:"speaker"`
	Text      string          `json:"text"`
	Responses json.RawMessage `json:"responses"`
}

// HandleAgentEvent applies an agent event to the session and relays it to the
// session's signaling connections.
func (c *Controller) HandleAgentEvent(ctx context.Context, sessionID string, ev AgentEvent) (TransitionResult, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return TransitionResult{}, err
	}

	var (
		msg protocol.ServerMessage
		res = TransitionResult{Session: s}
	)
	switch protocol.MessageType(strings.TrimSpace(ev.Type)) {
	case protocol.TypeAgentJoined:
		res, err = c.ConfirmAgent(ctx, s.ID, "agent_event")
		if err != nil {
			return TransitionResult{}, err
		}
		if res.Applied {
			// ConfirmAgent already announced it.
			return res, nil
		}
		if res.Session.Status != session.StatusActive {
			log.Printf("agent event ignored session=%s type=%s status=%s", s.ID, ev.Type, res.Session.Status)
			return res, nil
		}
		msg = protocol.AgentJoined{Identity: ev.Identity}
	case protocol.TypeAgentQuestion:
		c.appendTranscript(ctx, s, transcript.SpeakerAgent, ev.Question)
		msg = protocol.AgentQuestion{Question: ev.Question, Progress: ev.Progress}
	case protocol.TypeAgentListening:
		msg = protocol.AgentListening{}
	case protocol.TypeTranscript:
		speaker := transcript.ParseSpeaker(ev.Speaker)
		c.appendTranscript(ctx, s, speaker, ev.Text)
		msg = protocol.Transcript{Speaker: string(speaker), Text: ev.Text}
	case protocol.TypeInterviewComplete:
		res, err = c.End(ctx, s.ID, agentCompleteReason)
		if err != nil {
			return TransitionResult{}, err
		}
		msg = protocol.InterviewComplete{Responses: ev.Responses}
	default:
		return TransitionResult{}, validationErrorf("unsupported agent event %q", ev.Type)
	}

	log.Printf("agent event session=%s type=%s", s.ID, ev.Type)
	c.publish(s.ID, msg)
	return res, nil
}

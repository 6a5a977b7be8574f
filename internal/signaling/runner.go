package signaling

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/intervue/internal/interview"
	"github.com/ent0n29/intervue/internal/observability"
	"github.com/ent0n29/intervue/internal/presence"
	"github.com/ent0n29/intervue/internal/protocol"
	"github.com/ent0n29/intervue/internal/session"
)

// Lifecycle is the slice of the interview controller a connection drives.
type Lifecycle interface {
	Get(ctx context.Context, id string) (session.InterviewSession, error)
	ConfirmAgent(ctx context.Context, id, source string) (interview.TransitionResult, error)
	CandidateJoined(ctx context.Context, sessionID, roomID string) (interview.CandidateJoinedResult, error)
	EndSession(ctx context.Context, in interview.EndInput) (interview.EndResult, error)
}

type Runner struct {
	lifecycle    Lifecycle
	hub          *Hub
	reconciler   *presence.Reconciler
	pollInterval time.Duration
	metrics      *observability.Metrics
}

func NewRunner(lifecycle Lifecycle, hub *Hub, reconciler *presence.Reconciler, pollInterval time.Duration, metrics *observability.Metrics) *Runner {
	return &Runner{
		lifecycle:    lifecycle,
		hub:          hub,
		reconciler:   reconciler,
		pollInterval: pollInterval,
		metrics:      metrics,
	}
}

// connection is the per-connection state. It is only touched by the
// RunConnection goroutine.
type connection struct {
	r        *Runner
	outbound chan<- protocol.ServerMessage

	sessionID string
	role      string
	sub       *Subscription
	announced bool

	agentSeen  chan struct{}
	pollCancel context.CancelFunc
	pollWG     sync.WaitGroup
}

// RunConnection consumes parsed client messages until inbound is closed or
// ctx ends. Everything it starts (subscription, presence poller) is released
// before it returns. outbound is never closed here.
func (r *Runner) RunConnection(ctx context.Context, inbound <-chan any, outbound chan<- protocol.ServerMessage) error {
	r.metrics.ConnectionOpened()
	defer r.metrics.ConnectionClosed()

	c := &connection{
		r:         r,
		outbound:  outbound,
		agentSeen: make(chan struct{}, 1),
	}
	defer c.release()

	for {
		var events <-chan protocol.ServerMessage
		if c.sub != nil {
			events = c.sub.C
		}
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			if err := c.handle(ctx, msg); err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				c.sub = nil
				continue
			}
			c.forward(ctx, ev)
		case <-c.agentSeen:
			c.announceAgent(ctx)
		}
	}
}

func (c *connection) handle(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case protocol.Join:
		return c.join(ctx, m)
	case protocol.CandidateReady:
		if !c.joinedAs(ctx, m.SessionID) {
			return nil
		}
		res, err := c.r.lifecycle.CandidateJoined(ctx, c.sessionID, "")
		if err != nil {
			c.sendError(ctx, "candidate_ready_failed", err)
			return nil
		}
		for _, w := range res.Warnings {
			log.Printf("candidate ready session=%s: %s", c.sessionID, w)
		}
	case protocol.EndInterview:
		if !c.joinedAs(ctx, m.SessionID) {
			return nil
		}
		res, err := c.r.lifecycle.EndSession(ctx, interview.EndInput{SessionID: c.sessionID, Reason: m.Reason})
		if err != nil {
			c.sendError(ctx, "end_failed", err)
			return nil
		}
		if !res.Applied {
			// No transition, so nothing went through the hub.
			c.send(ctx, protocol.SessionStatus{Status: string(res.Session.Status), Reason: res.Session.EndReason})
		}
	default:
		c.send(ctx, protocol.ErrorEvent{Code: "unsupported_message", Source: "signaling", Detail: "message type not handled"})
	}
	return nil
}

func (c *connection) join(ctx context.Context, m protocol.Join) error {
	if c.sessionID != "" {
		if m.SessionID != c.sessionID {
			c.send(ctx, protocol.ErrorEvent{Code: "session_mismatch", Source: "signaling", Detail: "connection already joined another session"})
		}
		return nil
	}
	s, err := c.r.lifecycle.Get(ctx, m.SessionID)
	if err != nil {
		code := "session_unavailable"
		if errors.Is(err, interview.ErrNotFound) {
			code = "session_not_found"
		}
		c.send(ctx, protocol.ErrorEvent{SessionID: m.SessionID, Code: code, Source: "signaling", Retryable: code != "session_not_found", Detail: err.Error()})
		return nil
	}

	c.sessionID = s.ID
	c.role = m.Role
	c.sub = c.r.hub.Subscribe(s.ID)
	log.Printf("signaling joined session=%s role=%s", s.ID, c.role)

	c.send(ctx, protocol.SessionStatus{Status: string(s.Status), Reason: s.EndReason})
	switch {
	case s.Status == session.StatusActive:
		c.announceAgent(ctx)
	case !s.Status.Terminal():
		c.startPoller(ctx)
	}
	return nil
}

// startPoller watches the room until the agent shows up. The hub usually
// delivers agent_joined first; the poller covers a missed event.
func (c *connection) startPoller(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	id := c.sessionID
	lc := c.r.lifecycle

	poller := presence.NewPoller(c.r.reconciler, c.r.pollInterval, presence.PollHooks{
		Room: func(ctx context.Context) (string, error) {
			s, err := lc.Get(ctx, id)
			if err != nil {
				return "", err
			}
			return s.RoomName, nil
		},
		Terminal: func(ctx context.Context) bool {
			s, err := lc.Get(ctx, id)
			return err == nil && s.Status.Terminal()
		},
		OnAgentPresent: func(ctx context.Context, _ presence.Snapshot) bool {
			res, err := lc.ConfirmAgent(ctx, id, "signaling_poll")
			if err != nil {
				log.Printf("confirm agent from poll failed session=%s: %v", id, err)
				return false
			}
			// A pending session can not activate yet; keep watching.
			if res.Session.Status != session.StatusActive {
				return false
			}
			select {
			case c.agentSeen <- struct{}{}:
			default:
			}
			return true
		},
	})

	c.pollWG.Add(1)
	go func() {
		defer c.pollWG.Done()
		reason := poller.Run(pollCtx)
		log.Printf("presence poller stopped session=%s reason=%s", id, reason)
	}()
}

func (c *connection) forward(ctx context.Context, ev protocol.ServerMessage) {
	if _, ok := ev.(protocol.AgentJoined); ok {
		if c.announced {
			return
		}
		c.announced = true
		c.stopPoller()
	}
	c.send(ctx, ev)
}

func (c *connection) announceAgent(ctx context.Context) {
	c.forward(ctx, protocol.Stamp(protocol.AgentJoined{}, c.sessionID))
}

func (c *connection) joinedAs(ctx context.Context, sessionID string) bool {
	switch {
	case c.sessionID == "":
		c.send(ctx, protocol.ErrorEvent{SessionID: sessionID, Code: "not_joined", Source: "signaling", Detail: "send join first"})
		return false
	case strings.TrimSpace(sessionID) != c.sessionID:
		c.send(ctx, protocol.ErrorEvent{SessionID: sessionID, Code: "session_mismatch", Source: "signaling", Detail: "message is for another session"})
		return false
	}
	return true
}

func (c *connection) sendError(ctx context.Context, code string, err error) {
	retryable := !errors.Is(err, interview.ErrValidation) && !errors.Is(err, interview.ErrNotFound)
	c.send(ctx, protocol.ErrorEvent{Code: code, Source: "signaling", Retryable: retryable, Detail: err.Error()})
}

func (c *connection) send(ctx context.Context, msg protocol.ServerMessage) {
	msg = protocol.Stamp(msg, c.sessionID)
	select {
	case <-ctx.Done():
	case c.outbound <- msg:
	}
}

func (c *connection) stopPoller() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

func (c *connection) release() {
	c.stopPoller()
	c.pollWG.Wait()
	if c.sub != nil {
		c.sub.Close()
	}
}

// Package interview owns the session lifecycle: it provisions rooms, mints
// credentials, summons the agent and applies every status change through
// guarded compare-and-set writes.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/intervue/internal/agentbackend"
	"github.com/ent0n29/intervue/internal/catalog"
	"github.com/ent0n29/intervue/internal/media"
	"github.com/ent0n29/intervue/internal/observability"
	"github.com/ent0n29/intervue/internal/policy"
	"github.com/ent0n29/intervue/internal/presence"
	"github.com/ent0n29/intervue/internal/protocol"
	"github.com/ent0n29/intervue/internal/session"
	"github.com/ent0n29/intervue/internal/transcript"
)

const maxTransitionAttempts = 5

// Publisher fans session events out to signaling connections.
type Publisher interface {
	Publish(sessionID string, msg protocol.ServerMessage)
}

type Deps struct {
	Sessions    session.Store
	Catalog     catalog.Catalog
	Provisioner *media.Provisioner
	Tokens      *media.TokenIssuer
	Presence    *presence.Reconciler
	Notifier    *agentbackend.BestEffortNotifier
	Transcripts transcript.Store
	Publisher   Publisher
	Metrics     *observability.Metrics
}

type Options struct {
	MediaURL         string
	AgentMarker      string
	CandidateMarker  string
	SummonReplyWait  time.Duration
	AgentWaitTimeout time.Duration
	DefaultTemplate  catalog.PromptTemplate
}

type Controller struct {
	sessions    session.Store
	catalog     catalog.Catalog
	provisioner *media.Provisioner
	tokens      *media.TokenIssuer
	presence    *presence.Reconciler
	notifier    *agentbackend.BestEffortNotifier
	transcripts transcript.Store
	publisher   Publisher
	metrics     *observability.Metrics
	opts        Options
	agentMarker *regexp.Regexp
	now         func() time.Time

	inflight sync.WaitGroup
}

func NewController(deps Deps, opts Options) *Controller {
	opts.CandidateMarker = strings.ToLower(strings.TrimSpace(opts.CandidateMarker))
	if opts.CandidateMarker == "" {
		opts.CandidateMarker = "candidate"
	}
	opts.AgentMarker = strings.ToLower(strings.TrimSpace(opts.AgentMarker))
	if opts.AgentMarker == "" {
		opts.AgentMarker = "agent"
	}
	if opts.DefaultTemplate.ID == "" {
		opts.DefaultTemplate = catalog.DefaultTemplate()
	}
	c := &Controller{
		sessions:    deps.Sessions,
		catalog:     deps.Catalog,
		provisioner: deps.Provisioner,
		tokens:      deps.Tokens,
		presence:    deps.Presence,
		notifier:    deps.Notifier,
		transcripts: deps.Transcripts,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		opts:        opts,
		agentMarker: regexp.MustCompile("(?i)" + regexp.QuoteMeta(opts.AgentMarker)),
		now:         time.Now,
	}
	if c.catalog == nil {
		c.catalog = catalog.NewInMemoryCatalog()
	}
	if c.transcripts == nil {
		c.transcripts = transcript.NewInMemoryStore()
	}
	if c.notifier == nil {
		c.notifier = agentbackend.NewBestEffortNotifier(nil, nil, deps.Metrics, 0, 0)
	}
	return c
}

// Drain waits for background agent summons started by StartSession.
func (c *Controller) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateInput references the records a session is created from. At least one
// of SessionID, InvitationID or JobID is required.
type CreateInput struct {
	SessionID      string          `json:"sessionId"`
	InvitationID   string          `json:"invitationId"`
	JobID          string          `json:"jobId"`
	CandidateID    string          `json:"candidateId"`
	CandidateName  string          `json:"candidateName"`
	CandidateEmail string          `json:"candidateEmail"`
	RoomName       string          `json:"roomName"`
	AgentID        string          `json:"agentId"`
	AgentPrompt    json.RawMessage `json:"agentPrompt"`
	AudioEnabled   *bool           `json:"audioEnabled"`
	VideoEnabled   *bool           `json:"videoEnabled"`
}

// Create records a pending session. An existing session id is returned as is.
func (c *Controller) Create(ctx context.Context, in CreateInput) (session.InterviewSession, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.InvitationID = strings.TrimSpace(in.InvitationID)
	in.JobID = strings.TrimSpace(in.JobID)
	if in.SessionID == "" && in.InvitationID == "" && in.JobID == "" {
		return session.InterviewSession{}, validationErrorf("sessionId, invitationId or jobId is required")
	}

	if in.SessionID != "" {
		existing, err := c.sessions.Get(ctx, in.SessionID)
		switch {
		case err == nil:
			return existing, nil
		case !errors.Is(err, session.ErrNotFound):
			return session.InterviewSession{}, persistenceError("get session", err)
		case in.InvitationID == "" && in.JobID == "":
			return session.InterviewSession{}, notFoundErrorf("session %s", in.SessionID)
		}
	}

	var (
		inv *catalog.Invitation
		job *catalog.Job
	)
	if in.InvitationID != "" {
		found, err := c.catalog.GetInvitation(ctx, in.InvitationID)
		if err != nil {
			return session.InterviewSession{}, c.catalogError("invitation", in.InvitationID, err)
		}
		inv = &found
		if in.JobID == "" {
			in.JobID = found.JobID
		}
	}
	if in.JobID != "" {
		found, err := c.catalog.GetJob(ctx, in.JobID)
		switch {
		case err == nil:
			job = &found
		case inv == nil:
			return session.InterviewSession{}, c.catalogError("job", in.JobID, err)
		default:
			log.Printf("job %s for invitation %s unavailable: %v", in.JobID, in.InvitationID, err)
		}
	}

	rec := session.InterviewSession{
		ID:             in.SessionID,
		RoomName:       strings.TrimSpace(in.RoomName),
		CandidateID:    strings.TrimSpace(in.CandidateID),
		CandidateName:  strings.TrimSpace(in.CandidateName),
		CandidateEmail: strings.TrimSpace(in.CandidateEmail),
		JobID:          in.JobID,
		InvitationID:   in.InvitationID,
		AgentID:        strings.TrimSpace(in.AgentID),
		AgentPrompt:    in.AgentPrompt,
		Status:         session.StatusPending,
		AudioEnabled:   boolOr(in.AudioEnabled, true),
		VideoEnabled:   boolOr(in.VideoEnabled, true),
	}
	if inv != nil {
		rec.CandidateName = firstNonEmpty(rec.CandidateName, inv.CandidateName)
		rec.CandidateEmail = firstNonEmpty(rec.CandidateEmail, inv.CandidateEmail)
		rec.AgentID = firstNonEmpty(rec.AgentID, inv.TemplateID)
	}
	if job != nil {
		rec.AgentID = firstNonEmpty(rec.AgentID, job.TemplateID)
	}
	rec.CandidateID = firstNonEmpty(rec.CandidateID, rec.CandidateEmail)
	return c.insert(ctx, rec)
}

func (c *Controller) insert(ctx context.Context, rec session.InterviewSession) (session.InterviewSession, error) {
	created, err := c.sessions.Create(ctx, rec)
	if errors.Is(err, session.ErrRoomAssigned) {
		return session.InterviewSession{}, validationErrorf("room %s belongs to another session", rec.RoomName)
	}
	if err != nil {
		return session.InterviewSession{}, persistenceError("create session", err)
	}
	log.Printf("session created id=%s candidate=%s job=%s", created.ID, policy.ForLog(created.CandidateID), created.JobID)
	return created, nil
}

// Provisioned is the result of ProvisionRoom. Credential is nil when the
// session had already ended.
type Provisioned struct {
	Session    session.InterviewSession
	Room       media.Room
	Credential *media.AccessCredential
}

// ProvisionRoom makes sure the session's room exists with current metadata,
// mints a fresh candidate credential and moves pending sessions to
// waiting_for_agent. Repeated calls converge on the same room.
func (c *Controller) ProvisionRoom(ctx context.Context, id string) (Provisioned, error) {
	s, err := c.load(ctx, id)
	if err != nil {
		return Provisioned{}, err
	}
	if s.Status.Terminal() {
		return Provisioned{Session: s}, nil
	}

	if s.RoomName == "" {
		sid, name := s.ID, roomNameFor(s)
		s, err = c.sessions.AssignRoom(ctx, sid, name)
		if errors.Is(err, session.ErrRoomAssigned) {
			// Same job, same millisecond.
			s, err = c.sessions.AssignRoom(ctx, sid, name+"-"+shortID(sid))
		}
		if err != nil {
			return Provisioned{}, persistenceError("assign room", err)
		}
	}

	room, err := c.provisioner.EnsureRoom(ctx, s.RoomName, media.RoomMetadata{
		SessionID:   s.ID,
		AgentPrompt: s.AgentPrompt,
		JobDetails: media.JobDetails{
			JobID:          s.JobID,
			CandidateEmail: s.CandidateEmail,
			CandidateName:  s.CandidateName,
		},
	})
	if err != nil {
		c.metrics.ObserveDownstreamError("media", "ensure_room")
		return Provisioned{}, downstreamError("media", err)
	}

	cred, err := c.tokens.Issue(s.RoomName, c.CandidateIdentity(s), s.CandidateName, media.ParticipantGrants())
	if err != nil {
		return Provisioned{}, fmt.Errorf("issue candidate token: %w", err)
	}

	res, err := c.transition(ctx, s.ID, func(cur session.InterviewSession, _ time.Time) (session.StatusUpdate, bool) {
		if cur.Status != session.StatusPending {
			return session.StatusUpdate{}, false
		}
		return session.StatusUpdate{Expected: session.StatusPending, Next: session.StatusWaitingForAgent}, true
	})
	if err != nil {
		return Provisioned{}, err
	}
	return Provisioned{Session: res.Session, Room: room, Credential: &cred}, nil
}

// TransitionResult reports whether a lifecycle operation changed the session.
type TransitionResult struct {
	Session session.InterviewSession `json:"session"`
	Applied bool                     `json:"applied"`
	From    session.Status           `json:"from,omitempty"`
}

// ConfirmAgent activates a session waiting for its agent. The first signal
// wins; duplicates and signals for sessions in any other state are no-ops.
func (c *Controller) ConfirmAgent(ctx context.Context, id, source string) (TransitionResult, error) {
	res, err := c.transition(ctx, id, func(cur session.InterviewSession, now time.Time) (session.StatusUpdate, bool) {
		if cur.Status != session.StatusWaitingForAgent {
			return session.StatusUpdate{}, false
		}
		return session.StatusUpdate{
			Expected:  session.StatusWaitingForAgent,
			Next:      session.StatusActive,
			StartedAt: &now,
		}, true
	})
	if err != nil {
		return TransitionResult{}, err
	}
	if res.Applied {
		log.Printf("agent confirmed session=%s source=%s", id, source)
		c.publish(id, protocol.AgentJoined{})
	}
	return res, nil
}

// CandidateJoin stamps the start time. It never activates a session; only
// agent presence does.
func (c *Controller) CandidateJoin(ctx context.Context, id string) (session.InterviewSession, error) {
	s, err := c.load(ctx, id)
	if err != nil {
		return session.InterviewSession{}, err
	}
	if s.Status != session.StatusPending && s.Status != session.StatusWaitingForAgent {
		return s, nil
	}
	updated, err := c.sessions.MarkStarted(ctx, id, c.now().UTC())
	if errors.Is(err, session.ErrNotFound) {
		return session.InterviewSession{}, notFoundErrorf("session %s", id)
	}
	if err != nil {
		return session.InterviewSession{}, persistenceError("mark started", err)
	}
	return updated, nil
}

// End finishes a session: active sessions complete, anything earlier is
// cancelled, and terminal sessions are returned untouched.
func (c *Controller) End(ctx context.Context, id, reason string) (TransitionResult, error) {
	reason = firstNonEmpty(reason, "ended")
	return c.transition(ctx, id, func(cur session.InterviewSession, now time.Time) (session.StatusUpdate, bool) {
		return session.StatusUpdate{
			Expected:  cur.Status,
			Next:      session.EndStatus(cur.Status),
			EndedAt:   &now,
			EndReason: reason,
		}, true
	})
}

// SetStatus applies an explicit status change if the lifecycle allows it.
// Disallowed edges are reported with Applied=false rather than as errors.
func (c *Controller) SetStatus(ctx context.Context, id, status string) (TransitionResult, error) {
	target, ok := session.ParseStatus(strings.TrimSpace(status))
	if !ok {
		return TransitionResult{}, validationErrorf("unknown status %q", status)
	}
	res, err := c.transition(ctx, id, func(cur session.InterviewSession, now time.Time) (session.StatusUpdate, bool) {
		if cur.Status == target {
			return session.StatusUpdate{}, false
		}
		u := session.StatusUpdate{Expected: cur.Status, Next: target}
		switch {
		case target == session.StatusActive:
			u.StartedAt = &now
		case target.Terminal():
			u.EndedAt = &now
			u.EndReason = "status_update"
		}
		return u, true
	})
	if errors.Is(err, ErrConflict) {
		log.Printf("status update ignored session=%s: %v", id, err)
		s, loadErr := c.load(ctx, id)
		if loadErr != nil {
			return TransitionResult{}, loadErr
		}
		return TransitionResult{Session: s}, nil
	}
	return res, err
}

type decideFunc func(cur session.InterviewSession, now time.Time) (session.StatusUpdate, bool)

// transition is read, guard, compare-and-set, retried while other writers
// race it. Terminal sessions are never touched.
func (c *Controller) transition(ctx context.Context, id string, decide decideFunc) (TransitionResult, error) {
	var cur session.InterviewSession
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		var err error
		cur, err = c.load(ctx, id)
		if err != nil {
			return TransitionResult{}, err
		}
		if cur.Status.Terminal() {
			return TransitionResult{Session: cur}, nil
		}
		u, ok := decide(cur, c.now().UTC())
		if !ok {
			return TransitionResult{Session: cur}, nil
		}
		if !session.CanTransition(u.Expected, u.Next) {
			return TransitionResult{Session: cur}, fmt.Errorf("%w: %s -> %s", ErrConflict, u.Expected, u.Next)
		}

		next, err := c.sessions.CompareAndSwapStatus(ctx, id, u)
		switch {
		case errors.Is(err, session.ErrStatusConflict):
			continue
		case errors.Is(err, session.ErrNotFound):
			return TransitionResult{}, notFoundErrorf("session %s", id)
		case err != nil:
			return TransitionResult{}, persistenceError("update status", err)
		}

		log.Printf("session transition id=%s %s -> %s", id, u.Expected, u.Next)
		c.metrics.ObserveTransition(string(u.Expected), string(u.Next))
		c.publish(id, protocol.SessionStatus{Status: string(next.Status), Reason: next.EndReason})
		return TransitionResult{Session: next, Applied: true, From: u.Expected}, nil
	}
	log.Printf("session %s: giving up after %d conflicting writes", id, maxTransitionAttempts)
	return TransitionResult{Session: cur}, nil
}

func (c *Controller) load(ctx context.Context, id string) (session.InterviewSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return session.InterviewSession{}, validationErrorf("sessionId is required")
	}
	s, err := c.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return session.InterviewSession{}, notFoundErrorf("session %s", id)
	}
	if err != nil {
		return session.InterviewSession{}, persistenceError("get session", err)
	}
	return s, nil
}

func (c *Controller) catalogError(kind, id string, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return notFoundErrorf("%s %s", kind, id)
	}
	return persistenceError("read "+kind, err)
}

func (c *Controller) publish(sessionID string, msg protocol.ServerMessage) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(sessionID, protocol.Stamp(msg, sessionID))
}

// CandidateIdentity is the participant identity candidates join rooms with.
// It never contains the agent marker, so presence can not mistake a
// candidate for the agent.
func (c *Controller) CandidateIdentity(s session.InterviewSession) string {
	id := firstNonEmpty(c.withoutAgentMarker(s.CandidateID), c.withoutAgentMarker(s.ID))
	if id == "" {
		return c.opts.CandidateMarker
	}
	if strings.Contains(strings.ToLower(id), c.opts.CandidateMarker) {
		return id
	}
	return c.opts.CandidateMarker + "-" + id
}

// withoutAgentMarker removes the marker until none is left; removal can join
// two halves into a new match ("agagentent").
func (c *Controller) withoutAgentMarker(id string) string {
	for c.agentMarker.MatchString(id) {
		id = c.agentMarker.ReplaceAllString(id, "")
	}
	return strings.Trim(id, "-_. ")
}

// roomNameFor derives the room name from fields that never change, so every
// caller computes the same name for a session.
func roomNameFor(s session.InterviewSession) string {
	key := firstNonEmpty(s.JobID, s.CandidateID, s.ID)
	return fmt.Sprintf("interview-%s-%d", key, s.CreatedAt.UnixMilli())
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

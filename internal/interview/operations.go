package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ent0n29/intervue/internal/agentbackend"
	"github.com/ent0n29/intervue/internal/catalog"
	"github.com/ent0n29/intervue/internal/media"
	"github.com/ent0n29/intervue/internal/policy"
	"github.com/ent0n29/intervue/internal/presence"
	"github.com/ent0n29/intervue/internal/session"
	"github.com/ent0n29/intervue/internal/transcript"
)

const (
	noteAlreadyEnded    = "interview already ended"
	noteSummonPending   = "agent summon in progress"
	noteAgentAutoJoin   = "Room is ready, the interviewer will join automatically"
	noteBackendPending  = "Backend connection pending"
	defaultEndReason    = "ended_by_client"
	agentCompleteReason = "agent_completed"
)

type StartInput struct {
	RoomName       string `json:"roomName"`
	CandidateID    string `json:"candidateId"`
	JobID          string `json:"jobId"`
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail"`
	SessionID      string `json:"sessionId"`
	InvitationID   string `json:"invitationId"`
}

type StartResult struct {
	Success     bool      `json:"success"`
	SessionID   string    `json:"sessionId"`
	RoomName    string    `json:"roomName"`
	Token       string    `json:"token,omitempty"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	Identity    string    `json:"identity,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
	Status      string    `json:"status"`
	AgentStatus string    `json:"agentStatus"`
	Message     string    `json:"message,omitempty"`
	Note        string    `json:"note,omitempty"`
	Warning     string    `json:"warning,omitempty"`
}

// StartSession is the candidate's entry point: it finds or creates the
// session, provisions the room, mints the candidate credential and summons
// the agent in the background. Agent backend trouble never fails it.
func (c *Controller) StartSession(ctx context.Context, in StartInput) (StartResult, error) {
	in = trimStart(in)
	if in.CandidateID == "" && in.SessionID == "" && in.InvitationID == "" {
		return StartResult{}, validationErrorf("candidateId is required")
	}

	s, err := c.resolveForStart(ctx, in)
	if err != nil {
		return StartResult{}, err
	}
	if s.Status.Terminal() {
		return StartResult{
			Success:     true,
			SessionID:   s.ID,
			RoomName:    s.RoomName,
			Status:      string(s.Status),
			AgentStatus: "not_requested",
			Note:        noteAlreadyEnded,
		}, nil
	}

	prov, err := c.ProvisionRoom(ctx, s.ID)
	if err != nil {
		return StartResult{}, err
	}
	s = prov.Session
	res := StartResult{
		Success:   true,
		SessionID: s.ID,
		RoomName:  s.RoomName,
		MediaURL:  c.opts.MediaURL,
		Status:    string(s.Status),
	}
	if prov.Credential == nil {
		res.AgentStatus = "not_requested"
		res.Note = noteAlreadyEnded
		return res, nil
	}
	res.Token = prov.Credential.Token
	res.Identity = prov.Credential.Identity
	res.ExpiresAt = prov.Credential.ExpiresAt

	if s.Status == session.StatusActive {
		res.AgentStatus = "connected"
		res.Message = "Interview in progress"
		return res, nil
	}

	done := c.summonAsync(ctx, s)
	select {
	case outcome := <-done:
		res.AgentStatus = outcome.AgentStatus()
		if outcome.Degraded() {
			res.Warning = outcome.Warning
			res.Note = noteAgentAutoJoin
		}
	case <-time.After(c.opts.SummonReplyWait):
		res.AgentStatus = "pending"
		res.Note = noteSummonPending
	case <-ctx.Done():
		res.AgentStatus = "pending"
		res.Note = noteSummonPending
	}
	res.Message = "Interview room ready"
	log.Printf("interview started session=%s room=%s agent=%s", s.ID, s.RoomName, res.AgentStatus)
	return res, nil
}

// summonAsync detaches the summon from the request so it finishes even when
// the client stops waiting. done is buffered and receives exactly once.
func (c *Controller) summonAsync(ctx context.Context, s session.InterviewSession) <-chan agentbackend.Outcome {
	summonCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.notifier.SummonTimeout()+time.Second)
	done := make(chan agentbackend.Outcome, 1)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer cancel()
		in := c.lookupContext(summonCtx, s)
		in.RoomName = s.RoomName
		done <- c.notifier.Summon(summonCtx, agentbackend.BuildJoinRequest(in))
	}()
	return done
}

func (c *Controller) resolveForStart(ctx context.Context, in StartInput) (session.InterviewSession, error) {
	if in.SessionID != "" {
		s, err := c.sessions.Get(ctx, in.SessionID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return session.InterviewSession{}, persistenceError("get session", err)
		}
	}
	if in.RoomName != "" {
		s, err := c.sessions.GetByRoom(ctx, in.RoomName)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return session.InterviewSession{}, persistenceError("get session by room", err)
		}
	}
	if in.CandidateID != "" {
		s, err := c.sessions.LatestByCandidate(ctx, in.CandidateID)
		switch {
		case err == nil && !s.Status.Terminal() && s.JobID == in.JobID:
			return s, nil
		case err != nil && !errors.Is(err, session.ErrNotFound):
			return session.InterviewSession{}, persistenceError("latest session", err)
		}
	}

	if in.SessionID != "" || in.InvitationID != "" || in.JobID != "" {
		s, err := c.Create(ctx, CreateInput{
			SessionID:      in.SessionID,
			InvitationID:   in.InvitationID,
			JobID:          in.JobID,
			CandidateID:    in.CandidateID,
			CandidateName:  in.CandidateName,
			CandidateEmail: in.CandidateEmail,
			RoomName:       in.RoomName,
		})
		if err == nil || in.CandidateID == "" || !errors.Is(err, ErrNotFound) {
			return s, err
		}
		log.Printf("catalog lookup failed for candidate %s, starting direct session: %v", policy.ForLog(in.CandidateID), err)
	}

	// No catalog records: run a direct interview for the candidate.
	return c.insert(ctx, session.InterviewSession{
		ID:             in.SessionID,
		RoomName:       in.RoomName,
		CandidateID:    in.CandidateID,
		CandidateName:  in.CandidateName,
		CandidateEmail: in.CandidateEmail,
		JobID:          in.JobID,
		Status:         session.StatusPending,
		AudioEnabled:   true,
		VideoEnabled:   true,
	})
}

// lookupContext gathers the catalog records a join request is built from.
// Missing records are fine; the request falls back to defaults.
func (c *Controller) lookupContext(ctx context.Context, s session.InterviewSession) agentbackend.JoinInput {
	in := agentbackend.JoinInput{Session: &s}
	if s.InvitationID != "" {
		if inv, err := c.catalog.GetInvitation(ctx, s.InvitationID); err == nil {
			in.Invitation = &inv
		}
	}
	if s.JobID != "" {
		if job, err := c.catalog.GetJob(ctx, s.JobID); err == nil {
			in.Job = &job
			if in.Invitation == nil {
				if inv, err := c.catalog.LatestInvitationForJob(ctx, s.JobID); err == nil {
					in.Invitation = &inv
				}
			}
		}
	}
	tmpl := c.opts.DefaultTemplate
	templateID := s.AgentID
	if templateID == "" && in.Job != nil {
		templateID = in.Job.TemplateID
	}
	if templateID != "" {
		if found, err := c.catalog.GetTemplate(ctx, templateID); err == nil {
			tmpl = found
		} else if !errors.Is(err, catalog.ErrNotFound) {
			log.Printf("prompt template %s unavailable: %v", templateID, err)
		}
	}
	in.Template = &tmpl
	return in
}

type TokenInput struct {
	SessionID string `json:"sessionId"`
	RoomName  string `json:"roomName"`
	Identity  string `json:"identity"`
	Name      string `json:"name"`
}

type TokenResult struct {
	Token     string    `json:"token"`
	RoomName  string    `json:"roomName"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueToken mints a credential either for a session's candidate or for an
// explicit room and identity.
func (c *Controller) IssueToken(ctx context.Context, in TokenInput) (TokenResult, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.RoomName = strings.TrimSpace(in.RoomName)
	in.Identity = strings.TrimSpace(in.Identity)

	if in.SessionID != "" {
		prov, err := c.ProvisionRoom(ctx, in.SessionID)
		if err != nil {
			return TokenResult{}, err
		}
		if prov.Credential == nil {
			return TokenResult{}, validationErrorf("session %s has ended", in.SessionID)
		}
		return tokenResult(prov.Credential.Token, prov.Credential.Room, prov.Credential.Identity, prov.Credential.ExpiresAt), nil
	}
	if in.RoomName == "" || in.Identity == "" {
		return TokenResult{}, validationErrorf("sessionId, or roomName and identity, are required")
	}
	cred, err := c.tokens.Issue(in.RoomName, in.Identity, firstNonEmpty(in.Name, in.Identity), media.ParticipantGrants())
	if err != nil {
		return TokenResult{}, fmt.Errorf("issue token: %w", err)
	}
	return tokenResult(cred.Token, in.RoomName, cred.Identity, cred.ExpiresAt), nil
}

func tokenResult(token, room, identity string, expiresAt time.Time) TokenResult {
	return TokenResult{Token: token, RoomName: room, Identity: identity, ExpiresAt: expiresAt}
}

type AgentJoinInput struct {
	RoomID        string          `json:"roomId"`
	SessionID     string          `json:"sessionId"`
	JobID         string          `json:"jobId"`
	CandidateName string          `json:"candidateName"`
	AgentID       string          `json:"agentId"`
	AgentPrompt   json.RawMessage `json:"agentPrompt"`
}

type AgentJoinResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	AgentStatus string `json:"agentStatus"`
	Warning     string `json:"warning,omitempty"`
	Note        string `json:"note,omitempty"`
}

// AgentJoin summons the agent synchronously within the summon bound. It only
// fails on a missing room id.
func (c *Controller) AgentJoin(ctx context.Context, in AgentJoinInput) (AgentJoinResult, error) {
	in.RoomID = strings.TrimSpace(in.RoomID)
	if in.RoomID == "" {
		return AgentJoinResult{}, validationErrorf("roomId is required")
	}

	s, ok, err := c.findSession(ctx, in.SessionID, in.RoomID)
	if err != nil {
		return AgentJoinResult{}, err
	}
	join := agentbackend.JoinInput{}
	if ok {
		join = c.lookupContext(ctx, s)
	} else if in.JobID != "" {
		if job, err := c.catalog.GetJob(ctx, in.JobID); err == nil {
			join.Job = &job
		}
	}
	join.RoomName = in.RoomID
	join.JobID = in.JobID
	join.CandidateName = in.CandidateName
	join.AgentID = in.AgentID
	join.AgentPrompt = in.AgentPrompt

	out := c.notifier.Summon(ctx, agentbackend.BuildJoinRequest(join))
	res := AgentJoinResult{Success: true, AgentStatus: out.AgentStatus()}
	switch out.Status {
	case agentbackend.OutcomeDispatched:
		res.Message = "Agent join request sent"
	case agentbackend.OutcomeRejected:
		res.Message = "Agent join request sent (response pending)"
		res.Warning = out.Warning
	case agentbackend.OutcomeSkipped:
		res.Message = "Agent backend disabled"
	default:
		res.Message = "Agent will connect automatically"
		res.Warning = out.Warning
		res.Note = noteBackendPending
	}
	return res, nil
}

type BestEffortResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Warning string `json:"warning,omitempty"`
}

// SendCandidateDetails pushes the candidate profile to the agent backend.
func (c *Controller) SendCandidateDetails(ctx context.Context, in agentbackend.DetailsInput) (BestEffortResult, error) {
	if missing := in.Missing(); len(missing) > 0 {
		return BestEffortResult{}, validationErrorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	out := c.notifier.SendCandidateDetails(ctx, agentbackend.BuildCandidateDetails(in, c.now()))
	return BestEffortResult{Success: true, Status: string(out.Status), Warning: out.Warning}, nil
}

type CandidateJoinedResult struct {
	Success  bool                     `json:"success"`
	Session  session.InterviewSession `json:"session"`
	Warnings []string                 `json:"warnings"`
}

// CandidateJoined records that the candidate connected. The session keeps
// waiting for the agent; only presence activates it. Ended sessions are
// reported as they are, without notices.
func (c *Controller) CandidateJoined(ctx context.Context, sessionID, roomID string) (CandidateJoinedResult, error) {
	s, ok, err := c.findSession(ctx, sessionID, roomID)
	if err != nil {
		return CandidateJoinedResult{}, err
	}
	if !ok {
		if strings.TrimSpace(sessionID) == "" && strings.TrimSpace(roomID) == "" {
			return CandidateJoinedResult{}, validationErrorf("sessionId or roomId is required")
		}
		return CandidateJoinedResult{}, notFoundErrorf("session %s", firstNonEmpty(sessionID, roomID))
	}
	s, err = c.CandidateJoin(ctx, s.ID)
	if err != nil {
		return CandidateJoinedResult{}, err
	}

	res := CandidateJoinedResult{Success: true, Session: s, Warnings: []string{}}
	if s.Status.Terminal() {
		return res, nil
	}
	out := c.notifier.CandidateJoined(ctx, agentbackend.CandidateJoinedNotice{
		RoomName:      firstNonEmpty(roomID, s.RoomName),
		SessionID:     s.ID,
		CandidateID:   s.CandidateID,
		CandidateName: s.CandidateName,
		JoinedAt:      c.now().UTC(),
	})
	if out.Warning != "" {
		res.Warnings = append(res.Warnings, out.Warning)
	}
	if w := c.appendTranscript(ctx, s, transcript.SpeakerSystem, "Candidate joined the interview"); w != "" {
		res.Warnings = append(res.Warnings, w)
	}
	return res, nil
}

type StatusQuery struct {
	RoomName    string `json:"roomName"`
	CandidateID string `json:"candidateId"`
}

type AgentStatusResult struct {
	presence.Snapshot
	SessionID     string `json:"sessionId,omitempty"`
	SessionStatus string `json:"sessionStatus,omitempty"`
	AgentStatus   string `json:"agentStatus"`
	Warning       string `json:"warning,omitempty"`
}

// AgentStatus reports live room presence. Observing the agent in the room
// confirms it, so polling this endpoint alone is enough to activate a
// session.
func (c *Controller) AgentStatus(ctx context.Context, q StatusQuery) (AgentStatusResult, error) {
	q.RoomName = strings.TrimSpace(q.RoomName)
	q.CandidateID = strings.TrimSpace(q.CandidateID)
	if q.RoomName == "" && q.CandidateID == "" {
		return AgentStatusResult{}, validationErrorf("roomName or candidateId is required")
	}

	var res AgentStatusResult
	room := q.RoomName
	s, found, err := c.findSession(ctx, "", q.RoomName)
	if err == nil && !found && q.CandidateID != "" {
		s, found, err = c.latestForCandidate(ctx, q.CandidateID)
	}
	if err != nil {
		return AgentStatusResult{}, err
	}
	if found {
		res.SessionID = s.ID
		res.SessionStatus = string(s.Status)
		room = firstNonEmpty(room, s.RoomName)
	}
	if room == "" {
		room = "interview-" + q.CandidateID
	}

	snap, err := c.presence.Reconcile(ctx, room)
	if err != nil {
		log.Printf("presence check failed room=%s: %v", room, err)
		res.Warning = "media service unavailable, presence unknown"
	}
	res.Snapshot = snap

	if found && snap.AgentPresent && s.Status == session.StatusWaitingForAgent {
		confirmed, err := c.ConfirmAgent(ctx, s.ID, "agent_status")
		if err != nil {
			log.Printf("confirm agent failed session=%s: %v", s.ID, err)
		} else {
			res.SessionStatus = string(confirmed.Session.Status)
		}
	}

	switch {
	case snap.AgentPresent:
		res.AgentStatus = "connected"
	default:
		res.AgentStatus = agentbackend.AgentStatusFor(c.notifier.LastSummon(ctx, room))
	}
	return res, nil
}

type EndInput struct {
	SessionID   string `json:"sessionId"`
	RoomName    string `json:"roomName"`
	CandidateID string `json:"candidateId"`
	Reason      string `json:"reason"`
}

type EndResult struct {
	Success bool                     `json:"success"`
	Applied bool                     `json:"applied"`
	Session session.InterviewSession `json:"session"`
	Warning string                   `json:"warning,omitempty"`
}

// EndSession ends the session identified by id, room or candidate. Ending
// an ended session is a successful no-op.
func (c *Controller) EndSession(ctx context.Context, in EndInput) (EndResult, error) {
	in.CandidateID = strings.TrimSpace(in.CandidateID)
	s, ok, err := c.findSession(ctx, in.SessionID, in.RoomName)
	if err == nil && !ok && in.CandidateID != "" {
		s, ok, err = c.latestForCandidate(ctx, in.CandidateID)
	}
	if err != nil {
		return EndResult{}, err
	}
	if !ok {
		if firstNonEmpty(in.SessionID, in.RoomName, in.CandidateID) == "" {
			return EndResult{}, validationErrorf("sessionId, roomName or candidateId is required")
		}
		return EndResult{}, notFoundErrorf("session for %s", firstNonEmpty(in.SessionID, in.RoomName, in.CandidateID))
	}

	reason := firstNonEmpty(in.Reason, defaultEndReason)
	tr, err := c.End(ctx, s.ID, reason)
	if err != nil {
		return EndResult{}, err
	}
	res := EndResult{Success: true, Applied: tr.Applied, Session: tr.Session}
	if !tr.Applied {
		return res, nil
	}

	out := c.notifier.Ended(ctx, agentbackend.EndNotice{
		RoomName:    tr.Session.RoomName,
		SessionID:   tr.Session.ID,
		CandidateID: tr.Session.CandidateID,
		Status:      string(tr.Session.Status),
		Reason:      reason,
		EndedAt:     c.now().UTC(),
	})
	res.Warning = out.Warning
	if w := c.appendTranscript(ctx, tr.Session, transcript.SpeakerSystem, "Interview ended"); w != "" && res.Warning == "" {
		res.Warning = w
	}
	return res, nil
}

func (c *Controller) Get(ctx context.Context, id string) (session.InterviewSession, error) {
	return c.load(ctx, id)
}

func (c *Controller) GetByRoom(ctx context.Context, room string) (session.InterviewSession, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return session.InterviewSession{}, validationErrorf("roomName is required")
	}
	s, err := c.sessions.GetByRoom(ctx, room)
	if errors.Is(err, session.ErrNotFound) {
		return session.InterviewSession{}, notFoundErrorf("session for room %s", room)
	}
	if err != nil {
		return session.InterviewSession{}, persistenceError("get session by room", err)
	}
	return s, nil
}

// Transcript returns the latest limit entries of a session's transcript.
func (c *Controller) Transcript(ctx context.Context, id string, limit int) ([]transcript.Entry, error) {
	if _, err := c.load(ctx, id); err != nil {
		return nil, err
	}
	entries, err := c.transcripts.List(ctx, id, limit)
	if err != nil {
		return nil, persistenceError("list transcript", err)
	}
	return entries, nil
}

// findSession resolves by id first, then by room. Only a missing record
// reports false; any other store failure is a persistence error.
func (c *Controller) findSession(ctx context.Context, id, room string) (session.InterviewSession, bool, error) {
	if id = strings.TrimSpace(id); id != "" {
		s, err := c.sessions.Get(ctx, id)
		switch {
		case err == nil:
			return s, true, nil
		case !errors.Is(err, session.ErrNotFound):
			return session.InterviewSession{}, false, persistenceError("get session", err)
		}
	}
	if room = strings.TrimSpace(room); room != "" {
		s, err := c.sessions.GetByRoom(ctx, room)
		switch {
		case err == nil:
			return s, true, nil
		case !errors.Is(err, session.ErrNotFound):
			return session.InterviewSession{}, false, persistenceError("get session by room", err)
		}
	}
	return session.InterviewSession{}, false, nil
}

func (c *Controller) latestForCandidate(ctx context.Context, candidateID string) (session.InterviewSession, bool, error) {
	s, err := c.sessions.LatestByCandidate(ctx, candidateID)
	switch {
	case err == nil:
		return s, true, nil
	case errors.Is(err, session.ErrNotFound):
		return session.InterviewSession{}, false, nil
	default:
		return session.InterviewSession{}, false, persistenceError("latest session", err)
	}
}

func (c *Controller) appendTranscript(ctx context.Context, s session.InterviewSession, speaker transcript.Speaker, text string) string {
	_, err := c.transcripts.Append(ctx, transcript.Entry{
		SessionID: s.ID,
		RoomName:  s.RoomName,
		Speaker:   speaker,
		Text:      text,
	})
	if err != nil {
		log.Printf("transcript append failed session=%s: %v", s.ID, err)
		return "transcript unavailable"
	}
	return ""
}

func trimStart(in StartInput) StartInput {
	in.RoomName = strings.TrimSpace(in.RoomName)
	in.CandidateID = strings.TrimSpace(in.CandidateID)
	in.JobID = strings.TrimSpace(in.JobID)
	in.CandidateName = strings.TrimSpace(in.CandidateName)
	in.CandidateEmail = strings.TrimSpace(in.CandidateEmail)
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.InvitationID = strings.TrimSpace(in.InvitationID)
	return in
}

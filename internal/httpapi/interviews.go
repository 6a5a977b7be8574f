package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/intervue/internal/agentbackend"
	"github.com/ent0n29/intervue/internal/interview"
)

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req interview.StartInput
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.ctrl.StartSession(r.Context(), req)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.ctrl.IssueToken(r.Context(), interview.TokenInput{
		SessionID: q.Get("sessionId"),
		RoomName:  q.Get("roomName"),
		Identity:  q.Get("identity"),
		Name:      q.Get("name"),
	})
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleCandidateJoined(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		RoomID    string `json:"roomId"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.ctrl.CandidateJoined(r.Context(), req.SessionID, req.RoomID)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req interview.EndInput
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.ctrl.EndSession(r.Context(), req)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAgentJoin(w http.ResponseWriter, r *http.Request) {
	var req interview.AgentJoinInput
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.ctrl.AgentJoin(r.Context(), req)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleCandidateDetails(w http.ResponseWriter, r *http.Request) {
	var req agentbackend.DetailsInput
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.ctrl.SendCandidateDetails(r.Context(), req)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.ctrl.AgentStatus(r.Context(), interview.StatusQuery{
		RoomName:    q.Get("roomName"),
		CandidateID: q.Get("candidateId"),
	})
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req interview.CreateInput
	if !s.decodeBody(w, r, &req) {
		return
	}
	created, err := s.ctrl.Create(r.Context(), req)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ctrl.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetSessionByRoom(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ctrl.GetByRoom(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.ctrl.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"applied": res.Applied,
		"session": res.Session,
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.ctrl.Transcript(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleAgentEvent(w http.ResponseWriter, r *http.Request) {
	var req interview.AgentEvent
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.ctrl.HandleAgentEvent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"applied": res.Applied,
		"session": res.Session,
	})
}

// decodeBody treats an empty body as an empty request; the controller
// reports which fields are missing.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

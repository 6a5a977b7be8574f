package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/intervue/internal/config"
	"github.com/ent0n29/intervue/internal/interview"
	"github.com/ent0n29/intervue/internal/observability"
	"github.com/ent0n29/intervue/internal/policy"
	"github.com/ent0n29/intervue/internal/protocol"
)

const (
	wsReadLimit    = 64 << 10
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// ConnectionRunner drives one signaling connection.
type ConnectionRunner interface {
	RunConnection(ctx context.Context, inbound <-chan any, outbound chan<- protocol.ServerMessage) error
}

type Server struct {
	cfg      config.Config
	ctrl     *interview.Controller
	runner   ConnectionRunner
	metrics  *observability.Metrics
	origins  policy.OriginPolicy
	upgrader websocket.Upgrader
}

func New(cfg config.Config, ctrl *interview.Controller, runner ConnectionRunner, metrics *observability.Metrics) *Server {
	origins := policy.NewOriginPolicy(cfg.AllowedOrigins)
	return &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		runner:  runner,
		metrics: metrics,
		origins: origins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return origins.Allow(r.Header.Get("Origin"), r.Host)
			},
		},
	}
}

// Handler is the router wrapped in panic recovery and, when origins are
// configured, CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	if s.origins.Enabled() {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.origins.Origins()),
			handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
			handlers.MaxAge(600),
		)(h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.New(os.Stderr, "", log.LstdFlags)),
		handlers.PrintRecoveryStack(true),
	)(h)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})

	r.Post("/v1/interviews/start", s.handleStartSession)
	r.Get("/v1/interviews/token", s.handleIssueToken)
	r.Post("/v1/interviews/candidate-joined", s.handleCandidateJoined)
	r.Post("/v1/interviews/end", s.handleEndSession)
	r.Get("/v1/interviews/ws", s.handleSignalingWS)

	r.Post("/v1/agent/join", s.handleAgentJoin)
	r.Post("/v1/agent/candidate-details", s.handleCandidateDetails)
	r.Get("/v1/agent/status", s.handleAgentStatus)

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Get("/v1/sessions/by-room/{room}", s.handleGetSessionByRoom)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Patch("/v1/sessions/{id}/status", s.handleSetStatus)
	r.Get("/v1/sessions/{id}/transcript", s.handleTranscript)
	r.Post("/v1/sessions/{id}/agent-events", s.handleAgentEvent)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"media_mode":         s.cfg.MediaMode,
		"agent_backend_mode": s.cfg.AgentBackendMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ready",
		"session_store_mode":  storeMode(s.cfg.DatabaseURL != "", "postgres"),
		"summon_ledger_mode":  storeMode(s.cfg.RedisAddr != "", "redis"),
		"transcript_mode":     s.transcriptMode(),
		"agent_wait_watchdog": s.cfg.AgentWaitTimeout > 0,
	})
}

func (s *Server) transcriptMode() string {
	switch {
	case s.cfg.MongoURI != "":
		return "mongo"
	case s.cfg.DatabaseURL != "":
		return "postgres"
	default:
		return "in-memory"
	}
}

func storeMode(external bool, name string) string {
	if external {
		return name
	}
	return "in-memory"
}

// handleSignalingWS upgrades to a websocket and hands parsed client messages
// to the runner. A sessionId query parameter acts as an implicit join.
func (s *Server) handleSignalingWS(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "signaling not configured")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 64)
	outbound := make(chan protocol.ServerMessage, 64)
	if sessionID != "" {
		inbound <- protocol.Join{Type: protocol.TypeJoin, SessionID: sessionID, Role: "candidate"}
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := s.runner.RunConnection(ctx, inbound, outbound); err != nil {
			log.Printf("signaling connection ended with error: %v", err)
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					cancel()
					return
				}
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.ObserveWSMessage("outbound_error", string(msg.MessageType()))
					cancel()
					return
				}
				s.metrics.ObserveWSMessage("outbound", string(msg.MessageType()))
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Writes stay on the writer goroutine; drop when it is backed up.
				s.metrics.ObserveWSMessage("dropped", string(protocol.TypeErrorEvent))
			}
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondControllerError maps the interview error taxonomy onto HTTP.
func respondControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interview.ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, interview.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, interview.ErrDownstreamUnavailable):
		respondError(w, http.StatusServiceUnavailable, "downstream_unavailable", err.Error())
	case errors.Is(err, interview.ErrConflict):
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "applied": false, "warning": err.Error()})
	default:
		log.Printf("request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch v.(type) {
	case protocol.Join:
		return protocol.TypeJoin, true
	case protocol.CandidateReady:
		return protocol.TypeCandidateReady, true
	case protocol.EndInterview:
		return protocol.TypeEndInterview, true
	default:
		return "", false
	}
}

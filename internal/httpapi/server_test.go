package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/intervue/internal/agentbackend"
	"github.com/ent0n29/intervue/internal/config"
	"github.com/ent0n29/intervue/internal/interview"
	"github.com/ent0n29/intervue/internal/media"
	"github.com/ent0n29/intervue/internal/observability"
	"github.com/ent0n29/intervue/internal/presence"
	"github.com/ent0n29/intervue/internal/session"
	"github.com/ent0n29/intervue/internal/signaling"
)

type testEnv struct {
	ts      *httptest.Server
	rooms   *media.FakeRoomService
	backend *agentbackend.MockBackend
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, cfg, session.NewInMemoryStore())
}

func newTestEnvWithStore(t *testing.T, cfg config.Config, store session.Store) *testEnv {
	t.Helper()
	tokens, err := media.NewTokenIssuer("devkey", "devsecret-devsecret-devsecret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	env := &testEnv{
		rooms:   media.NewFakeRoomService(),
		backend: agentbackend.NewMockBackend(agentbackend.MockAccept),
	}
	metrics := observability.NewMetrics("test_httpapi")
	hub := signaling.NewHub(16, metrics)
	reconciler := presence.NewReconciler(env.rooms, presence.NewClassifier("", ""), metrics)
	ctrl := interview.NewController(interview.Deps{
		Sessions:    store,
		Provisioner: media.NewProvisioner(env.rooms, 0, 0),
		Tokens:      tokens,
		Presence:    reconciler,
		Notifier:    agentbackend.NewBestEffortNotifier(env.backend, nil, metrics, 50*time.Millisecond, 50*time.Millisecond),
		Publisher:   hub,
		Metrics:     metrics,
	}, interview.Options{MediaURL: "ws://localhost:7880", SummonReplyWait: time.Second})
	runner := signaling.NewRunner(ctrl, hub, reconciler, 20*time.Millisecond, metrics)

	env.ts = httptest.NewServer(New(cfg, ctrl, runner, metrics).Handler())
	t.Cleanup(func() {
		env.ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = ctrl.Drain(ctx)
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return res.StatusCode
}

func TestInterviewLifecycle(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	var started interview.StartResult
	status := env.do(t, http.MethodPost, "/v1/interviews/start", map[string]string{
		"candidateId":   "cand-1",
		"candidateName": "Alice",
	}, &started)
	if status != http.StatusOK {
		t.Fatalf("start status = %d, want %d", status, http.StatusOK)
	}
	if !started.Success || started.Token == "" || started.MediaURL != "ws://localhost:7880" {
		t.Fatalf("start response = %+v", started)
	}

	var agent map[string]any
	env.do(t, http.MethodGet, "/v1/agent/status?roomName="+started.RoomName, nil, &agent)
	if agent["agentConnected"] != false || agent["sessionStatus"] != "waiting_for_agent" {
		t.Fatalf("agent status before join = %+v", agent)
	}

	env.rooms.Join(started.RoomName, "agent-interviewer", "Interviewer")
	env.do(t, http.MethodGet, "/v1/agent/status?roomName="+started.RoomName, nil, &agent)
	if agent["agentConnected"] != true || agent["sessionStatus"] != "active" || agent["agentStatus"] != "connected" {
		t.Fatalf("agent status after join = %+v", agent)
	}

	var ended interview.EndResult
	status = env.do(t, http.MethodPost, "/v1/interviews/end", map[string]string{"roomName": started.RoomName}, &ended)
	if status != http.StatusOK || !ended.Applied || ended.Session.Status != session.StatusCompleted {
		t.Fatalf("end = %d %+v, want applied completed", status, ended)
	}
	status = env.do(t, http.MethodPost, "/v1/interviews/end", map[string]string{"sessionId": started.SessionID}, &ended)
	if status != http.StatusOK || ended.Applied || ended.Session.Status != session.StatusCompleted {
		t.Fatalf("repeat end = %d %+v, want no-op", status, ended)
	}
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	var errBody errorResponse
	if status := env.do(t, http.MethodGet, "/v1/interviews/token", nil, &errBody); status != http.StatusBadRequest {
		t.Fatalf("token without params status = %d, want 400", status)
	}
	if errBody.Code != "invalid_request" || errBody.Error == "" {
		t.Fatalf("error body = %+v", errBody)
	}

	if status := env.do(t, http.MethodGet, "/v1/sessions/missing", nil, &errBody); status != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", status)
	}
	if status := env.do(t, http.MethodPost, "/v1/agent/join", map[string]string{}, &errBody); status != http.StatusBadRequest {
		t.Fatalf("agent join without roomId status = %d, want 400", status)
	}
	if status := env.do(t, http.MethodPost, "/v1/interviews/start", map[string]string{}, &errBody); status != http.StatusBadRequest {
		t.Fatalf("start without candidate status = %d, want 400", status)
	}

	env.rooms.FailWith(errors.New("media down"))
	status := env.do(t, http.MethodPost, "/v1/interviews/start", map[string]string{"candidateId": "cand-2"}, &errBody)
	if status != http.StatusServiceUnavailable || errBody.Code != "downstream_unavailable" {
		t.Fatalf("start with media down = %d %+v, want 503", status, errBody)
	}
}

func TestStoreFailuresMapToInternalError(t *testing.T) {
	store := session.NewFaultyStore(session.NewInMemoryStore())
	env := newTestEnvWithStore(t, config.Config{}, store)

	var started interview.StartResult
	if status := env.do(t, http.MethodPost, "/v1/interviews/start", map[string]string{"candidateId": "cand-1"}, &started); status != http.StatusOK {
		t.Fatalf("start status = %d, want %d", status, http.StatusOK)
	}

	down := errors.New("dial tcp 127.0.0.1:5432: connection refused")
	store.FailOn(session.OpGet, down)
	store.FailOn(session.OpGetByRoom, down)
	var errBody errorResponse
	status := env.do(t, http.MethodPost, "/v1/interviews/end", map[string]string{"sessionId": started.SessionID}, &errBody)
	if status != http.StatusInternalServerError || errBody.Code != "internal_error" {
		t.Fatalf("end with store down = %d %+v, want 500", status, errBody)
	}
	if strings.Contains(errBody.Error, "5432") {
		t.Fatalf("error body leaks store detail: %+v", errBody)
	}

	store.Heal()
	store.FailOn(session.OpCompareAndSwap, errors.New("write: broken pipe"))
	status = env.do(t, http.MethodPost, "/v1/interviews/end", map[string]string{"sessionId": started.SessionID}, &errBody)
	if status != http.StatusInternalServerError {
		t.Fatalf("end with failed write = %d %+v, want 500", status, errBody)
	}

	store.Heal()
	var s session.InterviewSession
	if status := env.do(t, http.MethodGet, "/v1/sessions/"+started.SessionID, nil, &s); status != http.StatusOK {
		t.Fatalf("get session status = %d, want %d", status, http.StatusOK)
	}
	if s.Status != session.StatusWaitingForAgent || s.EndedAt != nil {
		t.Fatalf("session after failed end = %+v, want unchanged", s)
	}
}

func TestTruncatedBodyIsRejected(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	res, err := http.Post(env.ts.URL+"/v1/interviews/start", "application/json", strings.NewReader(`{"candidateId":"c`))
	if err != nil {
		t.Fatalf("POST start error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("truncated body status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	var errBody errorResponse
	if err := json.NewDecoder(res.Body).Decode(&errBody); err != nil || errBody.Code != "invalid_request" {
		t.Fatalf("error body = %+v, %v; want invalid_request", errBody, err)
	}
}

func TestAgentJoinNeverFailsOnBackendErrors(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.backend.SetMode(agentbackend.MockReject)

	var res interview.AgentJoinResult
	status := env.do(t, http.MethodPost, "/v1/agent/join", map[string]string{"roomId": "interview-x"}, &res)
	if status != http.StatusOK || !res.Success || res.Warning == "" {
		t.Fatalf("agent join = %d %+v, want success with warning", status, res)
	}
}

func TestSetStatusDisallowedEdge(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	var started interview.StartResult
	env.do(t, http.MethodPost, "/v1/interviews/start", map[string]string{"candidateId": "cand-1"}, &started)

	var res struct {
		Success bool                     `json:"success"`
		Applied bool                     `json:"applied"`
		Session session.InterviewSession `json:"session"`
	}
	status := env.do(t, http.MethodPatch, "/v1/sessions/"+started.SessionID+"/status", map[string]string{"status": "completed"}, &res)
	if status != http.StatusOK || res.Applied || res.Session.Status != session.StatusWaitingForAgent {
		t.Fatalf("patch = %d %+v, want unapplied", status, res)
	}

	var errBody errorResponse
	status = env.do(t, http.MethodPatch, "/v1/sessions/"+started.SessionID+"/status", map[string]string{"status": "paused"}, &errBody)
	if status != http.StatusBadRequest {
		t.Fatalf("patch unknown status = %d, want 400", status)
	}
}

func TestSessionReadsAndTranscript(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	var started interview.StartResult
	env.do(t, http.MethodPost, "/v1/interviews/start", map[string]string{"candidateId": "cand-1"}, &started)

	var byRoom session.InterviewSession
	if status := env.do(t, http.MethodGet, "/v1/sessions/by-room/"+started.RoomName, nil, &byRoom); status != http.StatusOK {
		t.Fatalf("by-room status = %d, want 200", status)
	}
	if byRoom.ID != started.SessionID {
		t.Fatalf("by-room id = %q, want %q", byRoom.ID, started.SessionID)
	}

	event := map[string]any{"type": "transcript", "speaker": "candidate", "text": "hello"}
	if status := env.do(t, http.MethodPost, "/v1/sessions/"+started.SessionID+"/agent-events", event, nil); status != http.StatusOK {
		t.Fatalf("agent event status = %d, want 200", status)
	}

	var tr struct {
		Entries []map[string]any `json:"entries"`
	}
	if status := env.do(t, http.MethodGet, "/v1/sessions/"+started.SessionID+"/transcript?limit=10", nil, &tr); status != http.StatusOK {
		t.Fatalf("transcript status = %d, want 200", status)
	}
	if len(tr.Entries) != 1 || tr.Entries[0]["text"] != "hello" {
		t.Fatalf("transcript = %+v", tr.Entries)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	env := newTestEnv(t, config.Config{AllowedOrigins: []string{"https://app.example.com"}})

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer res.Body.Close()
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want configured origin", got)
	}
}

func TestSignalingWebsocket(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	var started interview.StartResult
	env.do(t, http.MethodPost, "/v1/interviews/start", map[string]string{"candidateId": "cand-1"}, &started)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/interviews/ws?sessionId=" + started.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first["type"] != "session_status" || first["status"] != "waiting_for_agent" {
		t.Fatalf("first message = %+v", first)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var errEvent map[string]any
	if err := conn.ReadJSON(&errEvent); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if errEvent["type"] != "error_event" || errEvent["code"] != "invalid_client_message" {
		t.Fatalf("error message = %+v", errEvent)
	}

	env.rooms.Join(started.RoomName, "agent-interviewer", "Interviewer")
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for agent_joined: %v", err)
		}
		if msg["type"] == "agent_joined" {
			break
		}
	}
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/interviews/ws"

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, res, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatalf("Dial() from foreign origin succeeded")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("handshake response = %+v, want 403", res)
	}
}

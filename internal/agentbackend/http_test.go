package agentbackend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPBackendJoinPostsPayload(t *testing.T) {
	var got JoinRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent/join" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL + "/")
	if err := b.Join(context.Background(), JoinRequest{RoomName: "interview-J1-1", CandidateName: "Alice"}); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if got.RoomName != "interview-J1-1" || got.CandidateName != "Alice" {
		t.Fatalf("backend received %+v", got)
	}
}

func TestHTTPBackendStatusErrorIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"agent pool exhausted"}`))
	}))
	defer srv.Close()

	err := NewHTTPBackend(srv.URL).NotifyEnded(context.Background(), EndNotice{RoomName: "r"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("NotifyEnded() error = %v, want ErrRejected", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Detail != "agent pool exhausted" || statusErr.Route != "/end-interview" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestHTTPBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTPBackend(url).NotifyCandidateJoined(context.Background(), CandidateJoinedNotice{RoomName: "r"})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("NotifyCandidateJoined() error = %v, want ErrUnreachable", err)
	}
}

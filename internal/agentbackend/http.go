package agentbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrRejected    = errors.New("agent backend rejected request")
	ErrUnreachable = errors.New("agent backend unreachable")
)

// StatusError is a non-2xx reply, including a missing route.
type StatusError struct {
	Route  string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("agent backend %s status %d", e.Route, e.Status)
	}
	return fmt.Sprintf("agent backend %s status %d: %s", e.Route, e.Status, e.Detail)
}

func (e *StatusError) Unwrap() error { return ErrRejected }

const (
	routeJoin             = "/agent/join"
	routeCandidateDetails = "/agent/candidate-details"
	routeCandidateJoined  = "/agent/candidate-joined"
	routeEnd              = "/end-interview"
)

// HTTPBackend posts JSON to the agent backend. Callers bound each call with
// their context; the client timeout is only a backstop.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBackend(baseURL string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (b *HTTPBackend) Join(ctx context.Context, req JoinRequest) error {
	return b.post(ctx, routeJoin, req)
}

func (b *HTTPBackend) SendCandidateDetails(ctx context.Context, details CandidateDetails) error {
	return b.post(ctx, routeCandidateDetails, details)
}

func (b *HTTPBackend) NotifyCandidateJoined(ctx context.Context, notice CandidateJoinedNotice) error {
	return b.post(ctx, routeCandidateJoined, notice)
}

func (b *HTTPBackend) NotifyEnded(ctx context.Context, notice EndNotice) error {
	return b.post(ctx, routeEnd, notice)
}

func (b *HTTPBackend) post(ctx context.Context, route string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", route, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+route, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", route, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{Route: route, Status: res.StatusCode, Detail: errorDetail(raw)}
	}
	return nil
}

func errorDetail(raw []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, k := range []string{"error", "detail", "message"} {
			if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

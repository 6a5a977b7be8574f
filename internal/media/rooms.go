package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/intervue/internal/reliability"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

type Room struct {
	Name            string    `json:"name"`
	SID             string    `json:"sid,omitempty"`
	Metadata        string    `json:"metadata,omitempty"`
	EmptyTimeout    int       `json:"emptyTimeout"`
	MaxParticipants int       `json:"maxParticipants"`
	NumParticipants int       `json:"numParticipants"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Participant struct {
	SID      string    `json:"sid,omitempty"`
	Identity string    `json:"identity"`
	Name     string    `json:"name,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

type CreateRoomRequest struct {
	Name            string
	Metadata        string
	EmptyTimeout    time.Duration
	MaxParticipants int
}

// RoomService is the subset of the media service's room API used here.
type RoomService interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error)
	UpdateRoomMetadata(ctx context.Context, room, metadata string) (Room, error)
	ListParticipants(ctx context.Context, room string) ([]Participant, error)
}

// ServiceError is a non-2xx reply from the media service.
type ServiceError struct {
	Method string
	Status int
	Code   string
	Msg    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("media %s status %d (%s): %s", e.Method, e.Status, e.Code, e.Msg)
}

func (e *ServiceError) Unwrap() error {
	switch e.Code {
	case "not_found":
		return ErrRoomNotFound
	case "already_exists":
		return ErrRoomExists
	}
	return nil
}

func (e *ServiceError) Retryable() bool {
	return reliability.IsRetryableHTTPStatus(e.Status) || reliability.IsRetryableTwirpCode(e.Code)
}

const (
	twirpPrefix      = "/twirp/livekit.RoomService/"
	maxServiceTries  = 3
	serviceRetryBase = 150 * time.Millisecond
)

// TwirpRoomService calls the room API over Twirp JSON.
type TwirpRoomService struct {
	baseURL string
	issuer  *TokenIssuer
	client  *http.Client
}

func NewTwirpRoomService(serverURL string, issuer *TokenIssuer, timeout time.Duration) (*TwirpRoomService, error) {
	base, err := HTTPBaseURL(serverURL)
	if err != nil {
		return nil, err
	}
	if issuer == nil {
		return nil, ErrMissingCredentials
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwirpRoomService{
		baseURL: base,
		issuer:  issuer,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// HTTPBaseURL turns the client-facing ws(s) URL into the API base URL.
func HTTPBaseURL(serverURL string) (string, error) {
	u := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	switch {
	case u == "":
		return "", fmt.Errorf("media server url is required")
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://"), nil
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://"), nil
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u, nil
	default:
		return "", fmt.Errorf("unsupported media server url %q", serverURL)
	}
}

type wireRoom struct {
	Name            string    `json:"name"`
	SID             string    `json:"sid"`
	Metadata        string    `json:"metadata"`
	EmptyTimeout    flexInt64 `json:"emptyTimeout"`
	MaxParticipants flexInt64 `json:"maxParticipants"`
	NumParticipants flexInt64 `json:"numParticipants"`
	CreationTime    flexInt64 `json:"creationTime"`
}

func (w wireRoom) room() Room {
	r := Room{
		Name:            w.Name,
		SID:             w.SID,
		Metadata:        w.Metadata,
		EmptyTimeout:    int(w.EmptyTimeout),
		MaxParticipants: int(w.MaxParticipants),
		NumParticipants: int(w.NumParticipants),
	}
	if w.CreationTime > 0 {
		r.CreatedAt = time.Unix(int64(w.CreationTime), 0).UTC()
	}
	return r
}

type wireParticipant struct {
	SID      string    `json:"sid"`
	Identity string    `json:"identity"`
	Name     string    `json:"name"`
	JoinedAt flexInt64 `json:"joinedAt"`
}

func (s *TwirpRoomService) CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error) {
	body := map[string]any{
		"name":             req.Name,
		"metadata":         req.Metadata,
		"empty_timeout":    int(req.EmptyTimeout / time.Second),
		"max_participants": req.MaxParticipants,
	}
	var out wireRoom
	if err := s.call(ctx, "CreateRoom", req.Name, body, &out); err != nil {
		return Room{}, err
	}
	return out.room(), nil
}

func (s *TwirpRoomService) UpdateRoomMetadata(ctx context.Context, room, metadata string) (Room, error) {
	body := map[string]any{
		"room":     room,
		"metadata": metadata,
	}
	var out wireRoom
	if err := s.call(ctx, "UpdateRoomMetadata", room, body, &out); err != nil {
		return Room{}, err
	}
	return out.room(), nil
}

func (s *TwirpRoomService) ListParticipants(ctx context.Context, room string) ([]Participant, error) {
	var out struct {
		Participants []wireParticipant `json:"participants"`
	}
	if err := s.call(ctx, "ListParticipants", room, map[string]any{"room": room}, &out); err != nil {
		return nil, err
	}
	participants := make([]Participant, 0, len(out.Participants))
	for _, p := range out.Participants {
		item := Participant{SID: p.SID, Identity: p.Identity, Name: p.Name}
		if p.JoinedAt > 0 {
			item.JoinedAt = time.Unix(int64(p.JoinedAt), 0).UTC()
		}
		participants = append(participants, item)
	}
	return participants, nil
}

func (s *TwirpRoomService) call(ctx context.Context, method, room string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt < maxServiceTries; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, serviceRetryBase, time.Second)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		lastErr = s.do(ctx, method, room, payload, out)
		if lastErr == nil {
			return nil
		}
		var svcErr *ServiceError
		if errors.As(lastErr, &svcErr) {
			if !svcErr.Retryable() {
				return lastErr
			}
			continue
		}
		if !reliability.IsTransientNetError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (s *TwirpRoomService) do(ctx context.Context, method, room string, payload []byte, out any) error {
	token, err := s.issuer.AdminToken(room)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+twirpPrefix+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", method, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		svcErr := &ServiceError{Method: method, Status: res.StatusCode}
		var twirpErr struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &twirpErr) == nil {
			svcErr.Code = twirpErr.Code
			svcErr.Msg = twirpErr.Msg
		}
		if svcErr.Msg == "" {
			svcErr.Msg = strings.TrimSpace(string(body))
		}
		return svcErr
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// flexInt64 accepts both JSON numbers and the quoted form protojson uses for
// 64-bit integers.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse int64 %q: %w", s, err)
	}
	*f = flexInt64(v)
	return nil
}

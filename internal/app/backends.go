package app

import (
	"fmt"
	"log"

	"github.com/ent0n29/intervue/internal/agentbackend"
	"github.com/ent0n29/intervue/internal/config"
	"github.com/ent0n29/intervue/internal/media"
)

const (
	devAPIKey    = "devkey"
	devAPISecret = "devsecret-not-for-production"
	devMediaURL  = "ws://localhost:7880"
)

type mediaSetup struct {
	tokens   *media.TokenIssuer
	rooms    media.RoomService
	fake     *media.FakeRoomService
	mediaURL string
	detail   string
}

func resolveMedia(cfg config.Config) (mediaSetup, error) {
	switch cfg.MediaMode {
	case config.MediaModeMock:
		key, secret := cfg.LiveKitAPIKey, cfg.LiveKitAPISecret
		if key == "" || secret == "" {
			key, secret = devAPIKey, devAPISecret
		}
		tokens, err := media.NewTokenIssuer(key, secret, cfg.TokenTTL)
		if err != nil {
			return mediaSetup{}, err
		}
		fake := media.NewFakeRoomService()
		mediaURL := cfg.LiveKitURL
		if mediaURL == "" {
			mediaURL = devMediaURL
		}
		return mediaSetup{tokens: tokens, rooms: fake, fake: fake, mediaURL: mediaURL, detail: "in-process fake"}, nil
	case config.MediaModeLiveKit:
		tokens, err := media.NewTokenIssuer(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.TokenTTL)
		if err != nil {
			return mediaSetup{}, fmt.Errorf("livekit credentials: %w", err)
		}
		rooms, err := media.NewTwirpRoomService(cfg.LiveKitURL, tokens, 0)
		if err != nil {
			return mediaSetup{}, fmt.Errorf("livekit room service: %w", err)
		}
		return mediaSetup{tokens: tokens, rooms: rooms, mediaURL: cfg.LiveKitURL, detail: "livekit " + cfg.LiveKitURL}, nil
	default:
		return mediaSetup{}, fmt.Errorf("invalid MEDIA_MODE: %q (expected livekit|mock)", cfg.MediaMode)
	}
}

// resolveAgentBackend returns a nil Backend when the agent backend is
// disabled. With both media and backend mocked, an accepted summon puts a
// fake agent in the room so the whole flow runs locally.
func resolveAgentBackend(cfg config.Config, fake *media.FakeRoomService) (agentbackend.Backend, string, error) {
	switch cfg.AgentBackendMode {
	case config.AgentBackendHTTP:
		return agentbackend.NewHTTPBackend(cfg.AgentBackendURL), "http " + cfg.AgentBackendURL, nil
	case config.AgentBackendMock:
		mock := agentbackend.NewMockBackend(agentbackend.MockAccept)
		if fake != nil {
			marker := cfg.AgentIdentityMarker
			mock.OnJoin(func(req agentbackend.JoinRequest) {
				identity := marker + "-" + req.AgentID
				fake.Join(req.RoomName, identity, "AI Interviewer")
				log.Printf("mock agent %s joined room %s", identity, req.RoomName)
			})
		}
		return mock, "mock", nil
	case config.AgentBackendDisabled:
		return nil, "disabled", nil
	default:
		return nil, "", fmt.Errorf("invalid AGENT_BACKEND_MODE: %q (expected http|mock|disabled)", cfg.AgentBackendMode)
	}
}

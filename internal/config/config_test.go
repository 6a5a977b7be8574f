package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsInMockMode(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("MEDIA_MODE", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.AgentSummonTimeout != 5*time.Second {
		t.Fatalf("AgentSummonTimeout = %v, want 5s", cfg.AgentSummonTimeout)
	}
	if cfg.AgentWaitTimeout != 0 {
		t.Fatalf("AgentWaitTimeout = %v, want disabled", cfg.AgentWaitTimeout)
	}
	if cfg.RoomEmptyTimeout != 5*time.Minute || cfg.RoomMaxParticipants != 10 {
		t.Fatalf("room limits = %v/%d, want 5m/10", cfg.RoomEmptyTimeout, cfg.RoomMaxParticipants)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("AllowedOrigins = %v, want none", cfg.AllowedOrigins)
	}
	if cfg.Production() {
		t.Fatalf("Production() = true for default APP_ENV")
	}
}

func TestLoadRequiresLiveKitCredentials(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LIVEKIT_URL", "ws://localhost:7880")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "LIVEKIT_API_KEY") {
		t.Fatalf("Load() error = %v, want missing credentials", err)
	}

	t.Setenv("LIVEKIT_API_KEY", "devkey")
	t.Setenv("LIVEKIT_API_SECRET", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MediaMode != MediaModeLiveKit {
		t.Fatalf("MediaMode = %q, want %q", cfg.MediaMode, MediaModeLiveKit)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("MEDIA_MODE", "mock")
	t.Setenv("APP_ALLOWED_ORIGINS", "https://app.example.com, http://localhost:3000 ,")
	t.Setenv("AGENT_SUMMON_TIMEOUT", "3s")
	t.Setenv("AGENT_WAIT_TIMEOUT", "10m")
	t.Setenv("AGENT_BACKEND_MODE", "Disabled")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:3000" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.AgentSummonTimeout != 3*time.Second || cfg.AgentWaitTimeout != 10*time.Minute {
		t.Fatalf("timeouts = %v/%v", cfg.AgentSummonTimeout, cfg.AgentWaitTimeout)
	}
	if cfg.AgentBackendMode != AgentBackendDisabled {
		t.Fatalf("AgentBackendMode = %q, want disabled", cfg.AgentBackendMode)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"APP_ENV":               "production",
		"MEDIA_MODE":            "webrtc",
		"AGENT_BACKEND_MODE":    "grpc",
		"AGENT_SUMMON_TIMEOUT":  "30s",
		"TOKEN_TTL":             "soon",
		"ROOM_MAX_PARTICIPANTS": "1",

		"CANDIDATE_IDENTITY_MARKER": "agent-candidate",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv("MEDIA_MODE", "mock")
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q succeeded, want error", key, value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_ENV",
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOWED_ORIGINS",
		"MEDIA_MODE",
		"LIVEKIT_URL",
		"LIVEKIT_API_KEY",
		"LIVEKIT_API_SECRET",
		"ROOM_EMPTY_TIMEOUT",
		"ROOM_MAX_PARTICIPANTS",
		"TOKEN_TTL",
		"AGENT_BACKEND_MODE",
		"AGENT_BACKEND_URL",
		"AGENT_SUMMON_TIMEOUT",
		"AGENT_DETAILS_TIMEOUT",
		"AGENT_SUMMON_REPLY_WAIT",
		"AGENT_WAIT_TIMEOUT",
		"SUMMON_LEDGER_TTL",
		"AGENT_IDENTITY_MARKER",
		"CANDIDATE_IDENTITY_MARKER",
		"PRESENCE_POLL_INTERVAL",
		"AGENT_PROMPT_TEMPLATE_PATH",
		"DATABASE_URL",
		"REDIS_ADDR",
		"MONGO_URI",
		"MONGO_DATABASE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

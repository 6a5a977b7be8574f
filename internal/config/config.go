package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	MediaModeLiveKit = "livekit"
	MediaModeMock    = "mock"

	AgentBackendHTTP     = "http"
	AgentBackendMock     = "mock"
	AgentBackendDisabled = "disabled"
)

// Config contains all runtime settings for the interview orchestrator.
type Config struct {
	AppEnv           string
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowedOrigins   []string

	MediaMode           string
	LiveKitURL          string
	LiveKitAPIKey       string
	LiveKitAPISecret    string
	RoomEmptyTimeout    time.Duration
	RoomMaxParticipants int
	TokenTTL            time.Duration

	AgentBackendMode     string
	AgentBackendURL      string
	AgentSummonTimeout   time.Duration
	AgentDetailsTimeout  time.Duration
	AgentSummonReplyWait time.Duration
	AgentWaitTimeout     time.Duration
	SummonLedgerTTL      time.Duration

	AgentIdentityMarker     string
	CandidateIdentityMarker string
	PresencePollInterval    time.Duration

	PromptTemplatePath string

	DatabaseURL   string
	RedisAddr     string
	MongoURI      string
	MongoDatabase string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:                  strings.ToLower(envOrDefault("APP_ENV", "development")),
		BindAddr:                envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:        envOrDefault("APP_METRICS_NAMESPACE", "intervue"),
		AllowedOrigins:          listFromEnv("APP_ALLOWED_ORIGINS"),
		MediaMode:               strings.ToLower(envOrDefault("MEDIA_MODE", MediaModeLiveKit)),
		LiveKitURL:              envString("LIVEKIT_URL"),
		LiveKitAPIKey:           envString("LIVEKIT_API_KEY"),
		LiveKitAPISecret:        envString("LIVEKIT_API_SECRET"),
		AgentBackendMode:        strings.ToLower(envOrDefault("AGENT_BACKEND_MODE", AgentBackendHTTP)),
		AgentBackendURL:         envOrDefault("AGENT_BACKEND_URL", "http://localhost:8001"),
		AgentIdentityMarker:     envOrDefault("AGENT_IDENTITY_MARKER", "agent"),
		CandidateIdentityMarker: envOrDefault("CANDIDATE_IDENTITY_MARKER", "candidate"),
		PromptTemplatePath:      envString("AGENT_PROMPT_TEMPLATE_PATH"),
		DatabaseURL:             envString("DATABASE_URL"),
		RedisAddr:               envString("REDIS_ADDR"),
		MongoURI:                envString("MONGO_URI"),
		MongoDatabase:           envOrDefault("MONGO_DATABASE", "intervue"),
		ShutdownTimeout:         15 * time.Second,
		RoomEmptyTimeout:        5 * time.Minute,
		RoomMaxParticipants:     10,
		TokenTTL:                2 * time.Hour,
		AgentSummonTimeout:      5 * time.Second,
		AgentDetailsTimeout:     15 * time.Second,
		AgentSummonReplyWait:    1500 * time.Millisecond,
		SummonLedgerTTL:         time.Hour,
		PresencePollInterval:    3 * time.Second,
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"ROOM_EMPTY_TIMEOUT", &cfg.RoomEmptyTimeout},
		{"TOKEN_TTL", &cfg.TokenTTL},
		{"AGENT_SUMMON_TIMEOUT", &cfg.AgentSummonTimeout},
		{"AGENT_DETAILS_TIMEOUT", &cfg.AgentDetailsTimeout},
		{"AGENT_SUMMON_REPLY_WAIT", &cfg.AgentSummonReplyWait},
		{"AGENT_WAIT_TIMEOUT", &cfg.AgentWaitTimeout},
		{"SUMMON_LEDGER_TTL", &cfg.SummonLedgerTTL},
		{"PRESENCE_POLL_INTERVAL", &cfg.PresencePollInterval},
	}
	var err error
	for _, d := range durations {
		*d.dst, err = durationFromEnv(d.key, *d.dst)
		if err != nil {
			return Config{}, err
		}
	}
	cfg.RoomMaxParticipants, err = intFromEnv("ROOM_MAX_PARTICIPANTS", cfg.RoomMaxParticipants)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.MediaMode {
	case MediaModeMock:
		if c.Production() {
			return fmt.Errorf("MEDIA_MODE=mock signs tokens with development credentials and is not allowed when APP_ENV=production")
		}
	case MediaModeLiveKit:
		if c.LiveKitURL == "" || c.LiveKitAPIKey == "" || c.LiveKitAPISecret == "" {
			return fmt.Errorf("LIVEKIT_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required when MEDIA_MODE=livekit")
		}
	default:
		return fmt.Errorf("MEDIA_MODE must be livekit or mock, got %q", c.MediaMode)
	}
	switch c.AgentBackendMode {
	case AgentBackendHTTP:
		if strings.TrimSpace(c.AgentBackendURL) == "" {
			return fmt.Errorf("AGENT_BACKEND_URL is required when AGENT_BACKEND_MODE=http")
		}
	case AgentBackendMock, AgentBackendDisabled:
	default:
		return fmt.Errorf("AGENT_BACKEND_MODE must be http, mock or disabled, got %q", c.AgentBackendMode)
	}
	if c.AgentSummonTimeout <= 0 || c.AgentSummonTimeout >= 10*time.Second {
		return fmt.Errorf("AGENT_SUMMON_TIMEOUT must be between 0 and 10s")
	}
	if c.AgentDetailsTimeout <= 0 {
		return fmt.Errorf("AGENT_DETAILS_TIMEOUT must be positive")
	}
	if c.AgentSummonReplyWait < 0 || c.AgentWaitTimeout < 0 {
		return fmt.Errorf("AGENT_SUMMON_REPLY_WAIT and AGENT_WAIT_TIMEOUT must not be negative")
	}
	if c.TokenTTL < time.Minute {
		return fmt.Errorf("TOKEN_TTL must be at least 1m")
	}
	if c.RoomMaxParticipants < 2 {
		return fmt.Errorf("ROOM_MAX_PARTICIPANTS must be at least 2")
	}
	if c.PresencePollInterval < 100*time.Millisecond {
		return fmt.Errorf("PRESENCE_POLL_INTERVAL must be at least 100ms")
	}
	if strings.TrimSpace(c.AgentIdentityMarker) == "" || strings.TrimSpace(c.CandidateIdentityMarker) == "" {
		return fmt.Errorf("identity markers must not be empty")
	}
	agentMarker := strings.ToLower(strings.TrimSpace(c.AgentIdentityMarker))
	candidateMarker := strings.ToLower(strings.TrimSpace(c.CandidateIdentityMarker))
	if strings.Contains(candidateMarker, agentMarker) || strings.Contains(agentMarker, candidateMarker) {
		return fmt.Errorf("AGENT_IDENTITY_MARKER and CANDIDATE_IDENTITY_MARKER must not contain one another")
	}
	return nil
}

// Production reports whether APP_ENV is production.
func (c Config) Production() bool {
	return c.AppEnv == "production"
}

func envOrDefault(key, fallback string) string {
	v := envString(key)
	if v == "" {
		return fallback
	}
	return v
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func listFromEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(envString(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envString(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envString(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

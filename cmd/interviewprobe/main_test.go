package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/intervue/internal/app"
	"github.com/ent0n29/intervue/internal/config"
)

func TestWSURLForSession(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/v1/interviews/ws?sessionId=s-1"},
		{"https://api.example.com/prefix/", "wss://api.example.com/prefix/v1/interviews/ws?sessionId=s-1"},
	}
	for _, tt := range tests {
		got, err := wsURLForSession(tt.base, "s-1")
		if err != nil {
			t.Fatalf("wsURLForSession(%q) error = %v", tt.base, err)
		}
		if got != tt.want {
			t.Fatalf("wsURLForSession(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
	if _, err := wsURLForSession("ftp://host", "s-1"); err == nil {
		t.Fatalf("wsURLForSession(ftp) error = nil, want unsupported scheme")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	values := []time.Duration{50, 10, 40, 20, 30}
	if got := percentile(values, 50); got != 30 {
		t.Fatalf("p50 = %v, want 30", got)
	}
	if got := percentile(values, 95); got != 50 {
		t.Fatalf("p95 = %v, want 50", got)
	}
	if got := percentile(nil, 95); got != 0 {
		t.Fatalf("percentile(nil) = %v, want 0", got)
	}
	if values[0] != 50 {
		t.Fatalf("percentile() reordered its input")
	}
}

func TestParseFlagsValidation(t *testing.T) {
	if _, err := parseFlags([]string{"-rounds", "0"}); err == nil {
		t.Fatalf("parseFlags(rounds=0) error = nil")
	}
	cfg, err := parseFlags([]string{"-base-url", "http://host:9000/", "-agent-timeout-ms", "5"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.baseURL != "http://host:9000" || cfg.agentTimeout != 100*time.Millisecond {
		t.Fatalf("parseFlags() = %+v", cfg)
	}
}

func TestRunAgainstMockStack(t *testing.T) {
	built, err := app.Build(context.Background(), config.Config{
		MetricsNamespace:        "test_probe",
		MediaMode:               config.MediaModeMock,
		TokenTTL:                time.Hour,
		RoomEmptyTimeout:        time.Minute,
		RoomMaxParticipants:     4,
		AgentBackendMode:        config.AgentBackendMock,
		AgentSummonTimeout:      time.Second,
		AgentDetailsTimeout:     time.Second,
		AgentSummonReplyWait:    time.Second,
		AgentIdentityMarker:     "agent",
		CandidateIdentityMarker: "candidate",
		PresencePollInterval:    20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer built.Cleanup()

	srv := httptest.NewServer(built.API.Handler())
	defer srv.Close()

	var out bytes.Buffer
	err = run(context.Background(), options{
		baseURL:      srv.URL,
		candidateID:  "probe",
		rounds:       2,
		agentTimeout: 3 * time.Second,
		endTimeout:   3 * time.Second,
		verbose:      true,
	}, &out)
	if err != nil {
		t.Fatalf("run() error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "final=completed") || !strings.Contains(out.String(), "rounds=2") {
		t.Fatalf("run() output = %q", out.String())
	}
}

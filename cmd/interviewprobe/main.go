package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/intervue/internal/protocol"
)

type options struct {
	baseURL      string
	candidateID  string
	jobID        string
	rounds       int
	agentTimeout time.Duration
	endTimeout   time.Duration
	interRound   time.Duration
	skipEnd      bool
	verbose      bool
}

type startRequest struct {
	CandidateID   string `json:"candidateId"`
	CandidateName string `json:"candidateName,omitempty"`
	JobID         string `json:"jobId,omitempty"`
}

type startResponse struct {
	SessionID   string `json:"sessionId"`
	RoomName    string `json:"roomName"`
	Status      string `json:"status"`
	AgentStatus string `json:"agentStatus"`
	Warning     string `json:"warning,omitempty"`
}

type wsEnvelope struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// roundResult is what one start, wait for agent, end cycle measured.
type roundResult struct {
	SessionID   string
	StartRTT    time.Duration
	AgentJoin   time.Duration
	FinalStatus string
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "interviewprobe: %v\n", err)
		os.Exit(2)
	}
	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "interviewprobe: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	var agentTimeoutMS int
	var endTimeoutMS int
	var interRoundMS int

	fs := flag.NewFlagSet("interviewprobe", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "intervue base URL")
	fs.StringVar(&cfg.candidateID, "candidate-id", "probe", "candidate id prefix; the round number is appended")
	fs.StringVar(&cfg.jobID, "job-id", "", "optional job id for the synthetic interviews")
	fs.IntVar(&cfg.rounds, "rounds", 5, "number of interviews to start")
	fs.IntVar(&agentTimeoutMS, "agent-timeout-ms", 15000, "timeout waiting for agent_joined per round in milliseconds")
	fs.IntVar(&endTimeoutMS, "end-timeout-ms", 5000, "timeout waiting for the terminal session_status in milliseconds")
	fs.IntVar(&interRoundMS, "inter-round-ms", 200, "delay between rounds in milliseconds")
	fs.BoolVar(&cfg.skipEnd, "skip-end", false, "leave sessions open instead of sending end_interview")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print per-round progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	cfg.candidateID = strings.TrimSpace(cfg.candidateID)
	if cfg.candidateID == "" {
		return options{}, fmt.Errorf("candidate-id is required")
	}
	if cfg.rounds <= 0 {
		return options{}, fmt.Errorf("rounds must be > 0")
	}
	if agentTimeoutMS < 100 {
		agentTimeoutMS = 100
	}
	if endTimeoutMS < 100 {
		endTimeoutMS = 100
	}
	if interRoundMS < 0 {
		interRoundMS = 0
	}
	cfg.jobID = strings.TrimSpace(cfg.jobID)
	cfg.agentTimeout = time.Duration(agentTimeoutMS) * time.Millisecond
	cfg.endTimeout = time.Duration(endTimeoutMS) * time.Millisecond
	cfg.interRound = time.Duration(interRoundMS) * time.Millisecond
	return cfg, nil
}

func run(ctx context.Context, cfg options, out io.Writer) error {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	results := make([]roundResult, 0, cfg.rounds)
	for i := 0; i < cfg.rounds; i++ {
		res, err := runRound(ctx, httpClient, cfg, fmt.Sprintf("%s-%d", cfg.candidateID, i+1))
		if err != nil {
			return fmt.Errorf("round %d: %w", i+1, err)
		}
		results = append(results, res)
		if cfg.verbose {
			fmt.Fprintf(out, "interviewprobe: round %d/%d session=%s start=%s agent_join=%s final=%s\n",
				i+1, cfg.rounds, res.SessionID, res.StartRTT.Round(time.Millisecond), res.AgentJoin.Round(time.Millisecond), res.FinalStatus)
		}
		if cfg.interRound > 0 && i < cfg.rounds-1 {
			time.Sleep(cfg.interRound)
		}
	}

	joins := make([]time.Duration, 0, len(results))
	for _, r := range results {
		joins = append(joins, r.AgentJoin)
	}
	fmt.Fprintf(out, "interviewprobe: rounds=%d agent_join_p50=%s agent_join_p95=%s\n",
		len(results), percentile(joins, 50).Round(time.Millisecond), percentile(joins, 95).Round(time.Millisecond))
	return nil
}

func runRound(ctx context.Context, client *http.Client, cfg options, candidateID string) (roundResult, error) {
	began := time.Now()
	started, err := startInterview(ctx, client, cfg.baseURL, startRequest{
		CandidateID:   candidateID,
		CandidateName: "Probe " + candidateID,
		JobID:         cfg.jobID,
	})
	if err != nil {
		return roundResult{}, fmt.Errorf("start interview: %w", err)
	}
	res := roundResult{SessionID: started.SessionID, StartRTT: time.Since(began)}

	wsURL, err := wsURLForSession(cfg.baseURL, started.SessionID)
	if err != nil {
		return res, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return res, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	events := make(chan wsEnvelope, 32)
	readErrCh := make(chan error, 1)
	go readLoop(conn, events, readErrCh)

	if err := awaitMessage(events, readErrCh, cfg.agentTimeout, func(env wsEnvelope) bool {
		return env.Type == string(protocol.TypeAgentJoined)
	}); err != nil {
		return res, fmt.Errorf("await agent_joined: %w", err)
	}
	res.AgentJoin = time.Since(began)

	if err := conn.WriteJSON(protocol.CandidateReady{Type: protocol.TypeCandidateReady, SessionID: started.SessionID}); err != nil {
		return res, fmt.Errorf("send candidate_ready: %w", err)
	}
	if cfg.skipEnd {
		res.FinalStatus = "open"
		return res, nil
	}

	if err := conn.WriteJSON(protocol.EndInterview{Type: protocol.TypeEndInterview, SessionID: started.SessionID, Reason: "probe_round_end"}); err != nil {
		return res, fmt.Errorf("send end_interview: %w", err)
	}
	if err := awaitMessage(events, readErrCh, cfg.endTimeout, func(env wsEnvelope) bool {
		if env.Type != string(protocol.TypeSessionStatus) || !terminalStatus(env.Status) {
			return false
		}
		res.FinalStatus = env.Status
		return true
	}); err != nil {
		return res, fmt.Errorf("await terminal status: %w", err)
	}
	return res, nil
}

func startInterview(ctx context.Context, client *http.Client, baseURL string, body startRequest) (startResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return startResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/interviews/start", bytes.NewReader(payload))
	if err != nil {
		return startResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return startResponse{}, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return startResponse{}, err
	}
	if res.StatusCode != http.StatusOK {
		return startResponse{}, fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out startResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return startResponse{}, err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return startResponse{}, fmt.Errorf("missing sessionId in response")
	}
	if terminalStatus(out.Status) {
		return startResponse{}, fmt.Errorf("session %s already %s", out.SessionID, out.Status)
	}
	return out, nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/interviews/ws"
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func readLoop(conn *websocket.Conn, events chan<- wsEnvelope, readErrCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErrCh <- err:
			default:
			}
			return
		}
		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type == string(protocol.TypeErrorEvent) {
			fmt.Fprintf(os.Stderr, "interviewprobe: error_event code=%s detail=%s\n", env.Code, env.Detail)
		}
		select {
		case events <- env:
		default:
		}
	}
}

func awaitMessage(events <-chan wsEnvelope, readErrCh <-chan error, timeout time.Duration, match func(wsEnvelope) bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case env := <-events:
			if match(env) {
				return nil
			}
		case err := <-readErrCh:
			return err
		case <-timer.C:
			return fmt.Errorf("timeout after %s", timeout)
		}
	}
}

func terminalStatus(status string) bool {
	return status == "completed" || status == "cancelled"
}

// percentile uses nearest rank on a sorted copy.
func percentile(values []time.Duration, p int) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

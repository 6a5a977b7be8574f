package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageJoin(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"join","sessionId":"s1"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	join, ok := msg.(Join)
	if !ok {
		t.Fatalf("message type = %T, want Join", msg)
	}
	if join.SessionID != "s1" || join.Role != "candidate" {
		t.Fatalf("unexpected join: %+v", join)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageEndInterview(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"end_interview","sessionId":"s1","reason":"candidate_left"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	end, ok := msg.(EndInterview)
	if !ok {
		t.Fatalf("message type = %T, want EndInterview", msg)
	}
	if end.Reason != "candidate_left" {
		t.Fatalf("Reason = %q, want %q", end.Reason, "candidate_left")
	}
}

func TestParseClientMessageRequiresSessionID(t *testing.T) {
	for _, raw := range []string{
		`{"type":"join","role":"candidate"}`,
		`{"type":"candidate_ready","sessionId":"  "}`,
		`{"type":"end_interview"}`,
	} {
		if _, err := ParseClientMessage([]byte(raw)); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("ParseClientMessage(%s) error = %v, want ErrInvalidMessage", raw, err)
		}
	}
}

func TestStampFillsTypeAndSession(t *testing.T) {
	msg := Stamp(AgentQuestion{Question: "Tell me about Go.", Progress: 40}, "s1")
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"type":"agent_question","sessionId":"s1","question":"Tell me about Go.","progress":40}`
	if string(raw) != want {
		t.Fatalf("json = %s, want %s", raw, want)
	}

	complete := Stamp(InterviewComplete{}, "s1").(InterviewComplete)
	if string(complete.Responses) != "[]" {
		t.Fatalf("Responses = %s, want []", complete.Responses)
	}
}

func BenchmarkParseClientMessageJoin(b *testing.B) {
	raw := []byte(`{"type":"join","sessionId":"4b6f0c1e-9d3a-4c55-8f0e-2a7c1d9e5b10","role":"candidate"}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(Join); !ok {
			b.Fatalf("message type = %T, want Join", msg)
		}
	}
}

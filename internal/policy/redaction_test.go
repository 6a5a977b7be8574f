package policy

import (
	"errors"
	"strings"
	"testing"
)

func TestForLogMasksContactDetails(t *testing.T) {
	got := ForLog("reach sam@example.com or +1 (555) 123-9876, card 4242 4242 4242 4242")
	for _, marker := range []string{"s***@example.com", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(got, marker) {
			t.Fatalf("ForLog() = %q, missing %q", got, marker)
		}
	}
	if strings.Contains(got, "sam@") || strings.Contains(got, "4242") {
		t.Fatalf("ForLog() leaked input: %q", got)
	}
}

func TestForLogMasksEmailLocalPart(t *testing.T) {
	got := ForLog("candidate alice@example.com joined")
	if got != "candidate a***@example.com joined" {
		t.Fatalf("ForLog() = %q", got)
	}
}

func TestForLogLeavesIdentifiersAlone(t *testing.T) {
	in := "session=3f2c room=interview-cand-7 status=waiting_for_agent"
	if got := ForLog(in); got != in {
		t.Fatalf("ForLog() = %q, want unchanged", got)
	}
}

func TestErrForLog(t *testing.T) {
	if got := ErrForLog(nil); got != "<nil>" {
		t.Fatalf("ErrForLog(nil) = %q", got)
	}
	got := ErrForLog(errors.New("agent backend /join status 400: bad email bob@corp.io"))
	if !strings.HasSuffix(got, "b***@corp.io") {
		t.Fatalf("ErrForLog() = %q", got)
	}
}

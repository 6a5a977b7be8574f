package policy

import "testing"

func TestOriginPolicyAllow(t *testing.T) {
	p := NewOriginPolicy([]string{"https://app.example.com/", " "})
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{origin: "", host: "api.example.com", want: true},
		{origin: "https://app.example.com", host: "api.example.com", want: true},
		{origin: "https://API.example.com", host: "api.example.com", want: true},
		{origin: "https://evil.example.net", host: "api.example.com", want: false},
		{origin: "::not a url", host: "api.example.com", want: false},
	}
	for _, tc := range tests {
		if got := p.Allow(tc.origin, tc.host); got != tc.want {
			t.Fatalf("Allow(%q, %q) = %v, want %v", tc.origin, tc.host, got, tc.want)
		}
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	p := NewOriginPolicy([]string{"*"})
	if !p.Allow("https://anywhere.test", "api.example.com") {
		t.Fatalf("wildcard policy rejected origin")
	}
	if got := p.Origins(); len(got) != 1 || got[0] != "*" {
		t.Fatalf("Origins() = %v, want [*]", got)
	}
}

func TestOriginPolicyEmptyIsSameHostOnly(t *testing.T) {
	p := NewOriginPolicy(nil)
	if p.Enabled() {
		t.Fatalf("Enabled() = true, want false")
	}
	if !p.Allow("http://localhost:8080", "localhost:8080") {
		t.Fatalf("same-host origin rejected")
	}
	if p.Allow("http://localhost:3000", "localhost:8080") {
		t.Fatalf("cross-origin request allowed without configuration")
	}
}

package policy

import (
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may open the signaling channel.
// With no configured origins only same-host requests are accepted.
type OriginPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allowed: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		switch o {
		case "":
			continue
		case "*":
			p.allowAll = true
		default:
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

// Origins lists the explicit origins, for CORS configuration.
func (p OriginPolicy) Origins() []string {
	if p.allowAll {
		return []string{"*"}
	}
	out := make([]string, 0, len(p.allowed))
	for o := range p.allowed {
		out = append(out, o)
	}
	return out
}

func (p OriginPolicy) Enabled() bool {
	return p.allowAll || len(p.allowed) > 0
}

// Allow reports whether a request from origin to host is permitted. Requests
// without an Origin header come from non-browser clients and are allowed.
func (p OriginPolicy) Allow(origin, host string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" || p.allowAll {
		return true
	}
	if _, ok := p.allowed[strings.ToLower(strings.TrimRight(origin, "/"))]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

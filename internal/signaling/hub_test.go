package signaling

import (
	"testing"

	"github.com/ent0n29/intervue/internal/protocol"
)

func TestHubFansOutPerSession(t *testing.T) {
	hub := NewHub(4, nil)
	a := hub.Subscribe("s1")
	b := hub.Subscribe("s1")
	other := hub.Subscribe("s2")
	defer other.Close()

	hub.Publish("s1", protocol.SessionStatus{Status: "active"})

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		select {
		case msg := <-sub.C:
			if msg.MessageType() != protocol.TypeSessionStatus {
				t.Fatalf("%s got %s, want session_status", name, msg.MessageType())
			}
		default:
			t.Fatalf("%s received nothing", name)
		}
	}
	select {
	case msg := <-other.C:
		t.Fatalf("other session received %v", msg)
	default:
	}

	a.Close()
	a.Close()
	if got := hub.Subscribers("s1"); got != 1 {
		t.Fatalf("Subscribers() = %d, want 1", got)
	}
	if _, ok := <-a.C; ok {
		t.Fatalf("closed subscription channel still open")
	}
	b.Close()
	if got := hub.Subscribers("s1"); got != 0 {
		t.Fatalf("Subscribers() = %d, want 0", got)
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe("s1")
	defer sub.Close()

	hub.Publish("s1", protocol.AgentListening{})
	hub.Publish("s1", protocol.AgentListening{})

	if got := len(sub.C); got != 1 {
		t.Fatalf("buffered = %d, want 1", got)
	}
}

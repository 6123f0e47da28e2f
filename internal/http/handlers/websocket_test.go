package handlers

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func waitForClients(t *testing.T, h *WebSocketHandler, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.GetConnectedClients() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d connected clients, got %d", want, h.GetConnectedClients())
}

func TestPublishDropsStalledClients(t *testing.T) {
	h := NewWebSocketHandler(nil)
	tenantID := uuid.New()

	// A client whose send buffer only fits the welcome message and is never
	// drained, as if its connection went silent.
	client := &WebSocketClient{
		tenantID: tenantID.String(),
		send:     make(chan WebSocketMessage, 1),
		hub:      h.hub,
	}
	h.hub.register <- client
	waitForClients(t, h, 1)

	h.Publish(tenantID, "sync-progress", map[string]int{"processed": 1})
	waitForClients(t, h, 0)

	// The send channel was closed exactly once on removal
	if _, ok := <-client.send; ok {
		// the buffered welcome message comes out first
		if _, ok := <-client.send; ok {
			t.Error("send channel should be closed after the client is dropped")
		}
	}
}

func TestPublishSkipsOtherTenants(t *testing.T) {
	h := NewWebSocketHandler(nil)
	tenantID := uuid.New()

	client := &WebSocketClient{
		tenantID: tenantID.String(),
		send:     make(chan WebSocketMessage, 4),
		hub:      h.hub,
	}
	h.hub.register <- client
	waitForClients(t, h, 1)

	h.Publish(uuid.New(), "sync-progress", nil)
	h.Publish(tenantID, "sync-complete", nil)

	deadline := time.Now().Add(2 * time.Second)
	var received []WebSocketMessage
	for time.Now().Before(deadline) && len(received) < 2 {
		select {
		case msg := <-client.send:
			received = append(received, msg)
		case <-time.After(10 * time.Millisecond):
		}
	}

	// welcome + the one event addressed to this tenant
	if len(received) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(received))
	}
	if received[0].Type != "connection" {
		t.Errorf("expected welcome message first, got %q", received[0].Type)
	}
	if received[1].Type != "sync-complete" {
		t.Errorf("expected only this tenant's event, got %q", received[1].Type)
	}
}

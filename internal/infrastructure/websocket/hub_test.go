package websocket

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())

	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.byRunID)
	assert.Equal(t, 0, hub.ClientCount())
}

func newMockClient(id string, hub *Hub) *Client {
	return &Client{
		hub:  hub,
		id:   id,
		subs: NewSubscriptions(),
		send: make(chan *WSEvent, sendBufferSize),
	}
}

func TestHub_RegisterAndUnregisterClient(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	client := newMockClient("client-1", hub)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	client := newMockClient("client-1", hub)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Subscribe(client, "run-1")

	hub.Broadcast("run-1", &WSEvent{Type: EventNodeSuccess, RunID: "run-1", NodeID: "ST1"})

	select {
	case event := <-client.send:
		assert.Equal(t, EventNodeSuccess, event.Type)
		assert.Equal(t, "ST1", event.NodeID)
	case <-time.After(time.Second):
		t.Fatal("expected event was not broadcast")
	}
}

func TestHub_BroadcastIgnoresUnsubscribedRun(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	client := newMockClient("client-1", hub)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Subscribe(client, "run-1")
	hub.Broadcast("run-2", &WSEvent{Type: EventNodeSuccess, RunID: "run-2"})

	select {
	case <-client.send:
		t.Fatal("should not have received event for unsubscribed run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	client := newMockClient("client-1", hub)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Subscribe(client, "run-1")
	hub.Unsubscribe(client, "run-1")

	hub.Broadcast("run-1", &WSEvent{Type: EventNodeSuccess, RunID: "run-1"})

	select {
	case <-client.send:
		t.Fatal("should not have received event after unsubscribing")
	case <-time.After(50 * time.Millisecond):
	}
}

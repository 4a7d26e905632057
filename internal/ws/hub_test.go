package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/academvault/discussions/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T, onStatus func(uuid.UUID, bool)) *Hub {
	t.Helper()
	h := NewHub(nil, zap.NewNop(), onStatus)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func testClient(h *Hub, userID uuid.UUID) *Client {
	return &Client{hub: h, send: make(chan []byte, 8), log: h.log, UserID: userID}
}

// receive returns the next event queued for c
func receive(t *testing.T, c *Client) model.WSEvent {
	t.Helper()
	select {
	case data := <-c.send:
		var ev model.WSEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return model.WSEvent{}
	}
}

func TestHub_PublishToUsersTargetsConnections(t *testing.T) {
	h := startHub(t, nil)
	alice, bob := uuid.New(), uuid.New()

	a1, a2, b := testClient(h, alice), testClient(h, alice), testClient(h, bob)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)
	require.Eventually(t, func() bool { return h.IsUserOnline(alice) && h.IsUserOnline(bob) }, time.Second, 5*time.Millisecond)
	h.PublishToUsers([]uuid.UUID{alice}, model.WSEvent{
		Type:    model.WSEventMessageDeleted,
		Payload: model.MessageDeletedEvent{DiscussionID: 1, MessageID: 42},
	})

	h.PublishToUsers([]uuid.UUID{bob}, model.WSEvent{Type: model.WSEventTyping})

	assert.Equal(t, model.WSEventMessageDeleted, receive(t, a1).Type)
	assert.Equal(t, model.WSEventMessageDeleted, receive(t, a2).Type)
	assert.Equal(t, model.WSEventTyping, receive(t, b).Type, "bob receives only the typing event")
}

func TestHub_PresenceOnFirstAndLastConnection(t *testing.T) {
	var mu sync.Mutex
	changes := []bool{}
	h := startHub(t, func(_ uuid.UUID, online bool) {
		mu.Lock()
		changes = append(changes, online)
		mu.Unlock()
	})
	alice := uuid.New()

	c1, c2 := testClient(h, alice), testClient(h, alice)
	h.Register(c1)
	h.Register(c2)
	h.Unregister(c1)
	h.Unregister(c1) // second removal is a no-op
	require.True(t, h.IsUserOnline(alice))
	h.Unregister(c2)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []bool{true, false}, changes)
	assert.False(t, h.IsUserOnline(alice))
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := startHub(t, nil)
	alice := uuid.New()
	c := &Client{hub: h, send: make(chan []byte, 1), log: h.log, UserID: alice}
	h.Register(c)
	require.Eventually(t, func() bool { return h.IsUserOnline(alice) }, time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		h.PublishToUsers([]uuid.UUID{alice}, model.WSEvent{Type: model.WSEventTyping})
	}
	require.Eventually(t, func() bool { return !h.IsUserOnline(alice) }, time.Second, 5*time.Millisecond)
}

func TestHub_PresenceIsNotBroadcast(t *testing.T) {
	h := startHub(t, func(uuid.UUID, bool) {})
	alice, bob := uuid.New(), uuid.New()

	b := testClient(h, bob)
	h.Register(b)
	h.Register(testClient(h, alice))
	require.Eventually(t, func() bool { return h.IsUserOnline(alice) }, time.Second, 5*time.Millisecond)

	h.PublishToUsers([]uuid.UUID{bob}, model.WSEvent{Type: model.WSEventTyping})
	assert.Equal(t, model.WSEventTyping, receive(t, b).Type, "bob sees nothing about alice's connection")
}

func TestClient_ReplyAfterUnregisterIsDropped(t *testing.T) {
	h := startHub(t, nil)
	alice := uuid.New()
	c := testClient(h, alice)
	h.Register(c)
	h.Unregister(c)
	require.Eventually(t, func() bool { return !h.IsUserOnline(alice) }, time.Second, 5*time.Millisecond)

	assert.NotPanics(t, func() { c.Reply([]byte(`{"type":"error"}`)) })
	_, open := <-c.send
	assert.False(t, open)
}

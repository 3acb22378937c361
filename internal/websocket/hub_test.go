package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFrame(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return Message{}
	}
}

func requireNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func roomSize(h *Hub, room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func TestRegisterJoinsPersonalRoom(t *testing.T) {
	hub := NewHub()
	phone := NewClient(hub, nil, "u1", nil)
	laptop := NewClient(hub, nil, "u1", nil)
	other := NewClient(hub, nil, "u2", nil)
	hub.Register(phone)
	hub.Register(laptop)
	hub.Register(other)

	assert.True(t, phone.IsInRoom(PersonalRoom("u1")))
	assert.True(t, hub.IsOnline("u1"))
	assert.True(t, hub.IsOnline("u2"))

	hub.NotifyUser("u1", "incoming-chat-request", map[string]string{"sender_id": "u2"})

	for _, c := range []*Client{phone, laptop} {
		msg := readFrame(t, c)
		assert.Equal(t, "incoming-chat-request", msg.Event)
		assert.JSONEq(t, `{"sender_id":"u2"}`, string(msg.Data))
	}
	requireNoFrame(t, other)
}

func TestUnregister(t *testing.T) {
	hub := NewHub()
	c := NewClient(hub, nil, "u1", nil)
	hub.Register(c)
	hub.Join(c, ChatRoom("c1"))
	require.Equal(t, 1, roomSize(hub, ChatRoom("c1")))

	hub.Unregister(c)
	hub.Unregister(c)

	assert.False(t, hub.IsOnline("u1"))
	assert.Zero(t, roomSize(hub, ChatRoom("c1")))
	assert.Zero(t, roomSize(hub, PersonalRoom("u1")))
	_, ok := <-c.Send
	assert.False(t, ok, "send channel is closed")
	assert.ErrorIs(t, c.Emit("x", nil), ErrClientClosed)

	hub.NotifyUser("u1", "x", nil)
}

func TestConversationRooms(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	a := NewClient(hub, nil, "u1", nil)
	b := NewClient(hub, nil, "u2", nil)
	hub.Register(a)
	hub.Register(b)

	hub.Join(a, ChatRoom("c1"))
	hub.Join(b, ChatRoom("c1"))
	require.NoError(t, hub.Emit(ctx, ChatRoom("c1"), EventNewMessage, map[string]string{"content": "hi"}))
	assert.Equal(t, EventNewMessage, readFrame(t, a).Event)
	assert.Equal(t, EventNewMessage, readFrame(t, b).Event)

	hub.Leave(b, ChatRoom("c1"))
	assert.False(t, b.IsInRoom(ChatRoom("c1")))
	require.NoError(t, hub.Emit(ctx, ChatRoom("c1"), EventNewMessage, nil))
	readFrame(t, a)
	requireNoFrame(t, b)
}

func TestFullQueueDropsFrame(t *testing.T) {
	hub := NewHub()
	c := NewClient(hub, nil, "u1", nil)
	hub.Register(c)

	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, c.Emit("fill", nil))
	}
	assert.ErrorIs(t, c.Emit("overflow", nil), ErrClientQueueFull)
	hub.NotifyUser("u1", "dropped", nil)
	assert.Len(t, c.Send, sendBuffer)
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(hub, nil, string(rune('a'+i%5)), nil)
			hub.Register(c)
			hub.Join(c, ChatRoom("shared"))
			hub.NotifyUser(c.UserID, "ping", nil)
			hub.Unregister(c)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.False(t, hub.IsOnline(string(rune('a'+i))))
	}
	assert.Zero(t, roomSize(hub, ChatRoom("shared")))
}

type memoryBroker struct {
	mu        sync.Mutex
	published []string
	frames    chan [2]string
}

func (b *memoryBroker) Publish(_ context.Context, room string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, room)
	return nil
}

func (b *memoryBroker) Subscribe(ctx context.Context, deliver func(room string, payload []byte)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-b.frames:
			deliver(f[0], []byte(f[1]))
		}
	}
}

func TestHubWithBroker(t *testing.T) {
	broker := &memoryBroker{frames: make(chan [2]string)}
	hub := NewHub()
	hub.SetBroker(broker)

	c := NewClient(hub, nil, "u1", nil)
	hub.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	hub.NotifyUser("u1", "local", nil)
	assert.Equal(t, "local", readFrame(t, c).Event)
	broker.mu.Lock()
	assert.Equal(t, []string{PersonalRoom("u1")}, broker.published)
	broker.mu.Unlock()

	remote, err := Encode("remote", nil)
	require.NoError(t, err)
	broker.frames <- [2]string{PersonalRoom("u1"), string(remote)}
	assert.Equal(t, "remote", readFrame(t, c).Event)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.False(t, hub.IsOnline("u1"))
}

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "user:u1", PersonalRoom("u1"))
	assert.Equal(t, "chat_c1", ChatRoom("c1"))
}

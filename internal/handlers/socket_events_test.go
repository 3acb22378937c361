package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/whisper/internal/database"
	"github.com/thereayou/whisper/internal/models"
	"github.com/thereayou/whisper/internal/services"
	"github.com/thereayou/whisper/internal/testutil"
	ws "github.com/thereayou/whisper/internal/websocket"
)

type socketFixture struct {
	db      *database.Database
	hub     *ws.Hub
	handler *SocketEventHandler
}

func newSocketFixture(t *testing.T) *socketFixture {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "u1", "alice")
	testutil.CreateUser(t, db, "u2", "bob")
	testutil.CreateUser(t, db, "u3", "mallory")
	testutil.CreateChat(t, db, "c1", models.ChatTypeOneOnOne, time.Now().UTC(), "u1", "u2")

	hub := ws.NewHub()
	return &socketFixture{
		db:      db,
		hub:     hub,
		handler: NewSocketEventHandler(services.NewChatService(db, hub), hub),
	}
}

func (f *socketFixture) connect(userID string) *ws.Client {
	c := ws.NewClient(f.hub, nil, userID, nil)
	f.hub.Register(c)
	return c
}

func (f *socketFixture) send(t *testing.T, c *ws.Client, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.handler.HandleEvent(context.Background(), c, &ws.Message{Event: event, Data: raw})
}

func nextFrame(t *testing.T, c *ws.Client) ws.Message {
	t.Helper()
	select {
	case raw := <-c.Send:
		var msg ws.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return ws.Message{}
	}
}

func assertNoFrame(t *testing.T, c *ws.Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestJoinChat(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.connect("u1")
	mallory := f.connect("u3")

	f.send(t, alice, ws.EventJoinChat, map[string]string{"chat_id": "c1"})
	msg := nextFrame(t, alice)
	assert.Equal(t, ws.EventJoinedChat, msg.Event)
	assert.JSONEq(t, `{"chat_id":"c1"}`, string(msg.Data))
	assert.True(t, alice.IsInRoom(ws.ChatRoom("c1")))

	f.send(t, mallory, ws.EventJoinChat, map[string]string{"chat_id": "c1"})
	msg = nextFrame(t, mallory)
	assert.Equal(t, ws.EventError, msg.Event)
	assert.False(t, mallory.IsInRoom(ws.ChatRoom("c1")))
	assert.True(t, f.hub.IsOnline("u3"), "membership failures never disconnect")

	f.send(t, alice, ws.EventJoinChat, map[string]string{})
	assert.Equal(t, ws.EventError, nextFrame(t, alice).Event)
}

func TestLeaveChat(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.connect("u1")
	f.hub.Join(alice, ws.ChatRoom("c1"))

	f.send(t, alice, ws.EventLeaveChat, map[string]string{"chat_id": "c1"})
	assert.Equal(t, ws.EventLeftChat, nextFrame(t, alice).Event)
	assert.False(t, alice.IsInRoom(ws.ChatRoom("c1")))

	// Leaving a room never joined still confirms.
	f.send(t, alice, ws.EventLeaveChat, map[string]string{"chat_id": "other"})
	assert.Equal(t, ws.EventLeftChat, nextFrame(t, alice).Event)
}

func TestSendMessageBroadcastsAfterPersisting(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.connect("u1")
	bob := f.connect("u2")
	f.hub.Join(alice, ws.ChatRoom("c1"))
	f.hub.Join(bob, ws.ChatRoom("c1"))

	f.send(t, alice, ws.EventSendMessage, map[string]string{"chat_id": "c1", "content": "hello"})

	for _, c := range []*ws.Client{alice, bob} {
		msg := nextFrame(t, c)
		require.Equal(t, ws.EventNewMessage, msg.Event)
		var posted services.ChatMessage
		require.NoError(t, json.Unmarshal(msg.Data, &posted))
		assert.Equal(t, "hello", *posted.Content)
		assert.Equal(t, "u1", posted.Sender.ID)
		assert.Equal(t, "c1", posted.ChatID)
	}

	n, err := f.db.CountChatMessages(context.Background(), "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSendMessageFromNonMember(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.connect("u1")
	mallory := f.connect("u3")
	f.hub.Join(alice, ws.ChatRoom("c1"))

	f.send(t, mallory, ws.EventSendMessage, map[string]string{"chat_id": "c1", "content": "spam"})

	msg := nextFrame(t, mallory)
	assert.Equal(t, ws.EventSendMessageError, msg.Event)
	var payload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "c1", payload.ChatID)
	assert.Equal(t, services.ErrForbidden.Error(), payload.Error)

	assertNoFrame(t, alice)
	n, err := f.db.CountChatMessages(context.Background(), "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, f.hub.IsOnline("u3"))
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.connect("u1")
	bob := f.connect("u2")
	f.hub.Join(bob, ws.ChatRoom("c1"))

	f.send(t, alice, ws.EventSendMessage, map[string]string{"chat_id": "c1", "content": ""})
	assert.Equal(t, ws.EventSendMessageError, nextFrame(t, alice).Event)

	f.send(t, alice, ws.EventSendMessage, map[string]string{"chat_id": "c1", "content": "   "})
	assert.Equal(t, ws.EventSendMessageError, nextFrame(t, alice).Event)

	assertNoFrame(t, bob)
}

func TestUnknownEvent(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.connect("u1")

	f.handler.HandleEvent(context.Background(), alice, &ws.Message{Event: "dance"})
	assert.Equal(t, ws.EventError, nextFrame(t, alice).Event)
}

// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/whisper/internal/database"
	"github.com/thereayou/whisper/internal/models"
)

// NewDB opens a migrated in-memory sqlite database private to the test.
func NewDB(t testing.TB) *database.Database {
	t.Helper()

	db, err := database.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, db *database.Database, id, username string) *models.User {
	t.Helper()

	user := &models.User{
		ID:           id,
		FullName:     "User " + username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "not-a-hash",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.SaveUser(context.Background(), user))
	return user
}

// CreateChat inserts a chat of chatType with the given members.
func CreateChat(t testing.TB, db *database.Database, id, chatType string, createdAt time.Time, members ...string) *models.Chat {
	t.Helper()

	ctx := context.Background()
	chat := &models.Chat{ID: id, ChatType: chatType, CreatedAt: createdAt, UpdatedAt: createdAt}
	require.NoError(t, db.CreateChat(ctx, chat))

	rows := make([]models.ChatMember, 0, len(members))
	for _, m := range members {
		rows = append(rows, models.ChatMember{ChatID: id, MemberID: m, Role: models.RoleMember, JoinedAt: createdAt})
	}
	require.NoError(t, db.AddMembers(ctx, rows))
	return chat
}

// CreateMessage inserts a text message.
func CreateMessage(t testing.TB, db *database.Database, chatID, senderID, content string, sentAt time.Time) *models.Message {
	t.Helper()

	msg := &models.Message{Content: &content, ChatID: chatID, SenderID: senderID, SentAt: sentAt}
	require.NoError(t, db.SaveMessage(context.Background(), msg))
	return msg
}

type Notification struct {
	UserID  string
	Event   string
	Payload any
}

// Notifier records every notification it is asked to deliver.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *Notifier) NotifyUser(userID, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{UserID: userID, Event: event, Payload: payload})
}

func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

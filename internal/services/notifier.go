package services

import (
	"time"

	"github.com/thereayou/whisper/internal/models"
)

// Events pushed to a user's personal room.
const (
	EventIncomingChatRequest = "incoming-chat-request"
	EventChatRequestAccepted = "chat-request:accepted"
	EventChatRequestRejected = "chat-request:rejected"
)

// Notifier delivers an event to every connection of a user.
type Notifier interface {
	NotifyUser(userID, event string, payload any)
}

type IncomingChatRequest struct {
	ID             string               `json:"id"`
	SenderID       string               `json:"sender_id"`
	SenderUsername string               `json:"sender_username"`
	Sender         models.PublicProfile `json:"sender"`
	CreatedAt      time.Time            `json:"created_at"`
}

type ChatRequestAccepted struct {
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	ChatID    string    `json:"chat_id"`
	ChatType  string    `json:"chat_type"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatRequestRejected struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type nopNotifier struct{}

func (nopNotifier) NotifyUser(string, string, any) {}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRequestStatus string

const (
	RequestPending  ChatRequestStatus = "pending"
	RequestAccepted ChatRequestStatus = "accepted"
	RequestRejected ChatRequestStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s ChatRequestStatus) IsTerminal() bool {
	return s == RequestAccepted || s == RequestRejected
}

type ChatRequest struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	SenderID   string            `gorm:"not null;size:36;uniqueIndex:idx_chat_requests_pair" json:"sender_id"`
	ReceiverID string            `gorm:"not null;size:36;uniqueIndex:idx_chat_requests_pair;index" json:"receiver_id"`
	Status     ChatRequestStatus `gorm:"not null;default:'pending';size:20" json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (r *ChatRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrEmptyMessage is returned when a message has neither text nor media.
var ErrEmptyMessage = errors.New("message must have content or media")

type Message struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	Content  *string   `gorm:"type:text" json:"content"`
	MediaID  *string   `gorm:"size:36" json:"media_id,omitempty"`
	SentAt   time.Time `gorm:"index;not null" json:"sent_at"`
	ChatID   string    `gorm:"index;not null;size:36" json:"chat_id"`
	SenderID string    `gorm:"index;not null;size:36" json:"sender_id"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	hasContent := m.Content != nil && strings.TrimSpace(*m.Content) != ""
	hasMedia := m.MediaID != nil && *m.MediaID != ""
	if !hasContent && !hasMedia {
		return ErrEmptyMessage
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	return nil
}

const (
	MediaTypeImage = "image"
	MediaTypeFile  = "file"
)

type Media struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	URL        string    `gorm:"not null" json:"url"`
	MediaType  string    `gorm:"not null;check:media_type IN ('image','file')" json:"media_type"`
	UploadedBy string    `gorm:"index;not null;size:36" json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (m *Media) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

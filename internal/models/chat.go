package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ChatTypeOneOnOne = "one-on-one"
	ChatTypeGroup    = "group"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Chat struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      *string   `json:"name"`
	ChatType  string    `gorm:"not null;check:chat_type IN ('one-on-one','group')" json:"chat_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ChatMember links a user to a chat. Both ids are plain foreign keys;
// related rows are fetched through the database layer.
type ChatMember struct {
	ChatID   string    `gorm:"primaryKey;size:36" json:"chat_id"`
	MemberID string    `gorm:"primaryKey;size:36;index" json:"member_id"`
	Role     string    `gorm:"not null;default:'member'" json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

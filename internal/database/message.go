package database

import (
	"context"

	"github.com/thereayou/whisper/internal/models"
)

// MessageRow is a message joined with its sender's public fields.
type MessageRow struct {
	models.Message
	SenderFullName       string
	SenderUsername       string
	SenderProfilePicture string
}

const messageRowSelect = "messages.*, users.full_name AS sender_full_name, " +
	"users.username AS sender_username, users.profile_picture AS sender_profile_picture"

func (d *Database) SaveMessage(ctx context.Context, message *models.Message) error {
	return d.db.WithContext(ctx).Create(message).Error
}

func (d *Database) CountChatMessages(ctx context.Context, chatID string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Message{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count, err
}

// GetChatMessages returns one page of a chat's history, oldest first.
func (d *Database) GetChatMessages(ctx context.Context, chatID string, offset, limit int) ([]MessageRow, error) {
	var rows []MessageRow
	err := d.db.WithContext(ctx).
		Table("messages").
		Select(messageRowSelect).
		Joins("LEFT JOIN users ON users.id = messages.sender_id").
		Where("messages.chat_id = ?", chatID).
		Order("messages.sent_at ASC, messages.id ASC").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LastMessages returns the most recent message of every given chat that has one.
func (d *Database) LastMessages(ctx context.Context, chatIDs []string) (map[string]MessageRow, error) {
	result := make(map[string]MessageRow, len(chatIDs))
	if len(chatIDs) == 0 {
		return result, nil
	}

	var rows []MessageRow
	err := d.db.WithContext(ctx).
		Table("messages").
		Select(messageRowSelect).
		Joins("LEFT JOIN users ON users.id = messages.sender_id").
		Where("messages.chat_id IN ?", chatIDs).
		Where("messages.id = (SELECT m2.id FROM messages m2 WHERE m2.chat_id = messages.chat_id ORDER BY m2.sent_at DESC, m2.id DESC LIMIT 1)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.ChatID] = r
	}
	return result, nil
}

package database

import (
	"context"
	"time"

	"github.com/thereayou/whisper/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateChat(ctx context.Context, chat *models.Chat) error {
	return translate(d.db.WithContext(ctx).Create(chat).Error)
}

func (d *Database) AddMembers(ctx context.Context, members []models.ChatMember) error {
	if len(members) == 0 {
		return nil
	}
	return translate(d.db.WithContext(ctx).Create(&members).Error)
}

func (d *Database) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	var chat models.Chat
	if err := d.db.WithContext(ctx).First(&chat, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &chat, nil
}

func (d *Database) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND member_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserChats returns every chat the user holds a membership in.
func (d *Database) GetUserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := d.db.WithContext(ctx).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.member_id = ?", userID).
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// GetChatMembers returns the memberships of all given chats, ordered by join
// time so member lists are stable.
func (d *Database) GetChatMembers(ctx context.Context, chatIDs []string) ([]models.ChatMember, error) {
	var members []models.ChatMember
	if len(chatIDs) == 0 {
		return members, nil
	}
	err := d.db.WithContext(ctx).
		Where("chat_id IN ?", chatIDs).
		Order("joined_at ASC, member_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// FindOneOnOneChat returns the one-on-one chat linking the two users, or
// ErrNotFound.
func (d *Database) FindOneOnOneChat(ctx context.Context, userA, userB string) (*models.Chat, error) {
	var chat models.Chat
	err := d.db.WithContext(ctx).
		Joins("JOIN chat_members m1 ON m1.chat_id = chats.id AND m1.member_id = ?", userA).
		Joins("JOIN chat_members m2 ON m2.chat_id = chats.id AND m2.member_id = ?", userB).
		Where("chats.chat_type = ?", models.ChatTypeOneOnOne).
		First(&chat).Error
	if err != nil {
		return nil, translate(err)
	}
	return &chat, nil
}

// OneOnOnePartners maps every candidate that shares a one-on-one chat with
// userID to that chat's id.
func (d *Database) OneOnOnePartners(ctx context.Context, userID string, candidates []string) (map[string]string, error) {
	result := make(map[string]string)
	if len(candidates) == 0 {
		return result, nil
	}

	var rows []struct {
		ChatID   string
		MemberID string
	}
	err := d.db.WithContext(ctx).
		Table("chat_members AS m2").
		Select("m2.chat_id AS chat_id, m2.member_id AS member_id").
		Joins("JOIN chat_members m1 ON m1.chat_id = m2.chat_id AND m1.member_id = ?", userID).
		Joins("JOIN chats ON chats.id = m2.chat_id").
		Where("chats.chat_type = ? AND m2.member_id <> ? AND m2.member_id IN ?", models.ChatTypeOneOnOne, userID, candidates).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.MemberID] = r.ChatID
	}
	return result, nil
}

func (d *Database) TouchChat(ctx context.Context, chatID string, at time.Time) error {
	return d.db.WithContext(ctx).Model(&models.Chat{}).Where("id = ?", chatID).Update("updated_at", at).Error
}

// DeleteChat removes the chat together with the memberships and messages it owns.
func (d *Database) DeleteChat(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.First(&chat, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Delete(&models.Message{}, "chat_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.ChatMember{}, "chat_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&chat).Error
	})
}

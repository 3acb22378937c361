package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/thereayou/whisper/internal/database"
	"github.com/thereayou/whisper/internal/metrics"
	"github.com/thereayou/whisper/internal/models"
)

// Presence reports whether a user currently has an open socket.
type Presence interface {
	IsOnline(userID string) bool
}

type MemberProfile struct {
	models.PublicProfile
	Online bool `json:"online"`
}

type LastMessage struct {
	ID         string    `json:"id"`
	Content    *string   `json:"content"`
	MediaID    *string   `json:"media_id,omitempty"`
	SentAt     time.Time `json:"sent_at"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
}

type Conversation struct {
	ID          string          `json:"id"`
	Name        *string         `json:"name"`
	ChatType    string          `json:"chat_type"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Friend      *MemberProfile  `json:"friend"`
	Members     []MemberProfile `json:"members"`
	LastMessage *LastMessage    `json:"last_message"`
}

type MessageSender struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

type ChatMessage struct {
	ID      string        `json:"id"`
	ChatID  string        `json:"chat_id"`
	Content *string       `json:"content"`
	MediaID *string       `json:"media_id,omitempty"`
	SentAt  time.Time     `json:"sent_at"`
	Sender  MessageSender `json:"sender"`
}

type MessagePage struct {
	Friend     *models.PublicProfile `json:"friend"`
	Items      []ChatMessage         `json:"items"`
	Pagination Pagination            `json:"pagination"`
}

type ChatService struct {
	db       *database.Database
	presence Presence
	now      func() time.Time
}

func NewChatService(db *database.Database, presence Presence) *ChatService {
	return &ChatService{
		db:       db,
		presence: presence,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChatService) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	return s.db.IsMember(ctx, chatID, userID)
}

// ListConversations returns every chat of userID with its other members and
// last message. Chats with messages come first, newest message first; the
// rest follow by creation time, newest first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	chats, err := s.db.GetUserChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if len(chats) == 0 {
		return []Conversation{}, nil
	}

	chatIDs := make([]string, len(chats))
	for i, c := range chats {
		chatIDs[i] = c.ID
	}

	members, err := s.db.GetChatMembers(ctx, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("list chat members: %w", err)
	}

	memberIDs := make([]string, 0, len(members))
	byChat := make(map[string][]string, len(chats))
	for _, m := range members {
		if m.MemberID == userID {
			continue
		}
		byChat[m.ChatID] = append(byChat[m.ChatID], m.MemberID)
		memberIDs = append(memberIDs, m.MemberID)
	}

	users, err := s.db.GetUsersIncludingDeleted(ctx, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("load chat members: %w", err)
	}

	lastMessages, err := s.db.LastMessages(ctx, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("load last messages: %w", err)
	}

	result := make([]Conversation, 0, len(chats))
	for _, c := range chats {
		conv := Conversation{
			ID:        c.ID,
			Name:      c.Name,
			ChatType:  c.ChatType,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
			Members:   []MemberProfile{},
		}
		for _, id := range byChat[c.ID] {
			u, ok := users[id]
			if !ok {
				continue
			}
			conv.Members = append(conv.Members, s.memberProfile(&u))
		}
		if c.ChatType == models.ChatTypeOneOnOne && len(conv.Members) > 0 {
			friend := conv.Members[0]
			conv.Friend = &friend
		}
		if last, ok := lastMessages[c.ID]; ok {
			conv.LastMessage = &LastMessage{
				ID:         last.ID,
				Content:    last.Content,
				MediaID:    last.MediaID,
				SentAt:     last.SentAt,
				SenderID:   last.SenderID,
				SenderName: last.SenderFullName,
			}
		}
		result = append(result, conv)
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].LastMessage, result[j].LastMessage
		switch {
		case a != nil && b != nil:
			return a.SentAt.After(b.SentAt)
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
	})
	return result, nil
}

// GetChatMessages returns one page of the chat history, oldest first.
// Pages past the end yield no items.
func (s *ChatService) GetChatMessages(ctx context.Context, userID, chatID string, page, perPage int) (*MessagePage, error) {
	chat, err := s.db.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("load chat: %w", err)
	}

	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	page, perPage = NormalizePage(page, perPage, DefaultMessagesPerPage)

	total, err := s.db.CountChatMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	result := &MessagePage{
		Items:      []ChatMessage{},
		Pagination: NewPagination(page, perPage, total),
	}
	if offset, ok := database.PageOffset(page, perPage); ok && page <= result.Pagination.TotalPages {
		rows, err := s.db.GetChatMessages(ctx, chatID, offset, perPage)
		if err != nil {
			return nil, fmt.Errorf("load messages: %w", err)
		}
		for _, r := range rows {
			result.Items = append(result.Items, chatMessageFromRow(r))
		}
	}

	if chat.ChatType == models.ChatTypeOneOnOne {
		friend, err := s.otherMember(ctx, chatID, userID)
		if err != nil {
			return nil, err
		}
		result.Friend = friend
	}
	return result, nil
}

// PostMessage persists a text message from userID in chatID. Fan-out is the
// caller's job and must only happen after this returns successfully.
func (s *ChatService) PostMessage(ctx context.Context, userID, chatID, content string) (*ChatMessage, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidMessage
	}

	message := &models.Message{
		Content:  &content,
		SentAt:   s.now(),
		ChatID:   chatID,
		SenderID: userID,
	}
	err := s.db.Transaction(ctx, func(tx *database.Database) error {
		if err := tx.SaveMessage(ctx, message); err != nil {
			return err
		}
		return tx.TouchChat(ctx, chatID, message.SentAt)
	})
	if err != nil {
		if errors.Is(err, models.ErrEmptyMessage) {
			return nil, ErrInvalidMessage
		}
		slog.Error("save message failed", "chat", chatID, "sender", userID, "error", err)
		return nil, fmt.Errorf("save message: %w", err)
	}
	metrics.MessagesPosted.Inc()

	users, err := s.db.GetUsersIncludingDeleted(ctx, []string{userID})
	if err != nil {
		return nil, fmt.Errorf("load sender: %w", err)
	}
	sender := users[userID]

	return &ChatMessage{
		ID:      message.ID,
		ChatID:  message.ChatID,
		Content: message.Content,
		MediaID: message.MediaID,
		SentAt:  message.SentAt,
		Sender: MessageSender{
			ID:             userID,
			FullName:       sender.FullName,
			Username:       sender.Username,
			ProfilePicture: sender.ProfilePicture,
		},
	}, nil
}

// DeleteChat removes a chat the user belongs to, with its memberships and messages.
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.db.GetChat(ctx, chatID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrChatNotFound
		}
		return fmt.Errorf("load chat: %w", err)
	}
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.db.DeleteChat(ctx, chatID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrChatNotFound
		}
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (s *ChatService) requireMember(ctx context.Context, chatID, userID string) error {
	ok, err := s.db.IsMember(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *ChatService) otherMember(ctx context.Context, chatID, userID string) (*models.PublicProfile, error) {
	members, err := s.db.GetChatMembers(ctx, []string{chatID})
	if err != nil {
		return nil, fmt.Errorf("list chat members: %w", err)
	}
	for _, m := range members {
		if m.MemberID == userID {
			continue
		}
		users, err := s.db.GetUsersIncludingDeleted(ctx, []string{m.MemberID})
		if err != nil {
			return nil, fmt.Errorf("load chat member: %w", err)
		}
		if u, ok := users[m.MemberID]; ok {
			profile := u.Profile()
			return &profile, nil
		}
	}
	return nil, nil
}

func (s *ChatService) memberProfile(u *models.User) MemberProfile {
	online := false
	if s.presence != nil {
		online = s.presence.IsOnline(u.ID)
	}
	return MemberProfile{PublicProfile: u.Profile(), Online: online}
}

func chatMessageFromRow(r database.MessageRow) ChatMessage {
	return ChatMessage{
		ID:      r.ID,
		ChatID:  r.ChatID,
		Content: r.Content,
		MediaID: r.MediaID,
		SentAt:  r.SentAt,
		Sender: MessageSender{
			ID:             r.SenderID,
			FullName:       r.SenderFullName,
			Username:       r.SenderUsername,
			ProfilePicture: r.SenderProfilePicture,
		},
	}
}

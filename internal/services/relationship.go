package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thereayou/whisper/internal/database"
	"github.com/thereayou/whisper/internal/metrics"
	"github.com/thereayou/whisper/internal/models"
)

type RelationshipStatus string

const (
	StatusFriends         RelationshipStatus = "friends"
	StatusRequestSent     RelationshipStatus = "request_sent"
	StatusRequestReceived RelationshipStatus = "request_received"
	StatusUnknown         RelationshipStatus = "unknown"
)

// Relationship is the derived status between the caller and another user.
// RequestID is set for request_sent and request_received, ChatID for friends.
type Relationship struct {
	Status    RelationshipStatus `json:"relationship_status"`
	RequestID string             `json:"request_id,omitempty"`
	ChatID    string             `json:"chat_id,omitempty"`
}

// SendResult is the outcome of SendChatRequest. Chat is set when the request
// met a pending request in the opposite direction and both were turned into
// a chat.
type SendResult struct {
	Request *models.ChatRequest
	Chat    *models.Chat
}

type RespondResult struct {
	Request *models.ChatRequest
	Chat    *models.Chat
}

type PendingRequest struct {
	ID        string               `json:"id"`
	SenderID  string               `json:"sender_id"`
	Sender    models.PublicProfile `json:"sender"`
	Status    string               `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

type RelationshipService struct {
	db       *database.Database
	notifier Notifier
	now      func() time.Time
}

func NewRelationshipService(db *database.Database, notifier Notifier) *RelationshipService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &RelationshipService{
		db:       db,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Status computes the relationship of userA towards userB.
func (s *RelationshipService) Status(ctx context.Context, userA, userB string) (Relationship, error) {
	if userA == userB {
		return Relationship{Status: StatusUnknown}, nil
	}
	rels, err := s.Relationships(ctx, userA, []string{userB})
	if err != nil {
		return Relationship{}, err
	}
	return rels[userB], nil
}

// Relationships computes the relationship of userID towards each of others
// with three batched queries. Precedence is friends, request_sent,
// request_received, unknown.
func (s *RelationshipService) Relationships(ctx context.Context, userID string, others []string) (map[string]Relationship, error) {
	friends, err := s.db.OneOnOnePartners(ctx, userID, others)
	if err != nil {
		return nil, fmt.Errorf("load chat partners: %w", err)
	}
	sent, err := s.db.PendingSentTo(ctx, userID, others)
	if err != nil {
		return nil, fmt.Errorf("load sent requests: %w", err)
	}
	received, err := s.db.PendingReceivedFrom(ctx, userID, others)
	if err != nil {
		return nil, fmt.Errorf("load received requests: %w", err)
	}

	result := make(map[string]Relationship, len(others))
	for _, other := range others {
		switch {
		case other == userID:
			result[other] = Relationship{Status: StatusUnknown}
		case friends[other] != "":
			result[other] = Relationship{Status: StatusFriends, ChatID: friends[other]}
		case sent[other] != "":
			result[other] = Relationship{Status: StatusRequestSent, RequestID: sent[other]}
		case received[other] != "":
			result[other] = Relationship{Status: StatusRequestReceived, RequestID: received[other]}
		default:
			result[other] = Relationship{Status: StatusUnknown}
		}
	}
	return result, nil
}

// SendChatRequest creates a pending request from sender to receiverID and
// notifies the receiver. If the receiver already has a pending request to
// the sender, that request is accepted instead and a chat is created.
func (s *RelationshipService) SendChatRequest(ctx context.Context, sender *models.User, receiverID string) (*SendResult, error) {
	if receiverID == sender.ID {
		metrics.ChatRequests.WithLabelValues("failed").Inc()
		return nil, ErrInvalidTarget
	}

	result := &SendResult{}
	err := s.db.Transaction(ctx, func(tx *database.Database) error {
		// Requests in both directions of a pair must not interleave, or each
		// would miss the other and both stay pending.
		if err := tx.LockUsers(ctx, sender.ID, receiverID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock pair: %w", err)
		}
		if _, err := tx.GetUser(ctx, receiverID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load receiver: %w", err)
		}

		if _, err := tx.FindOneOnOneChat(ctx, sender.ID, receiverID); err == nil {
			return ErrAlreadyFriends
		} else if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("check existing chat: %w", err)
		}

		reverse, err := tx.FindChatRequest(ctx, receiverID, sender.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		if reverse != nil && reverse.Status == models.RequestPending {
			ok, err := tx.ResolveChatRequest(ctx, reverse.ID, sender.ID, models.RequestAccepted)
			if err != nil {
				return err
			}
			if ok {
				chat, err := s.createOneOnOne(ctx, tx, reverse.SenderID, sender.ID)
				if err != nil {
					return err
				}
				reverse.Status = models.RequestAccepted
				result.Request = reverse
				result.Chat = chat
				return nil
			}
		}

		existing, err := tx.FindChatRequest(ctx, sender.ID, receiverID)
		if err == nil {
			return fmt.Errorf("%w (status %s)", ErrDuplicateRequest, existing.Status)
		}
		if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		now := s.now()
		req := &models.ChatRequest{
			SenderID:   sender.ID,
			ReceiverID: receiverID,
			Status:     models.RequestPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateChatRequest(ctx, req); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return ErrDuplicateRequest
			}
			return err
		}
		result.Request = req
		return nil
	})
	if err != nil {
		metrics.ChatRequests.WithLabelValues("failed").Inc()
		if errors.Is(err, ErrDuplicateRequest) || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrAlreadyFriends) {
			return nil, err
		}
		slog.Error("send chat request failed", "sender", sender.ID, "receiver", receiverID, "error", err)
		return nil, fmt.Errorf("send chat request: %w", err)
	}

	if result.Chat != nil {
		metrics.ChatRequests.WithLabelValues("mutual").Inc()
		s.notifier.NotifyUser(result.Request.SenderID, EventChatRequestAccepted, ChatRequestAccepted{
			RequestID: result.Request.ID,
			Status:    string(models.RequestAccepted),
			ChatID:    result.Chat.ID,
			ChatType:  result.Chat.ChatType,
			CreatedAt: result.Chat.CreatedAt,
		})
		return result, nil
	}

	metrics.ChatRequests.WithLabelValues("sent").Inc()
	s.notifier.NotifyUser(receiverID, EventIncomingChatRequest, IncomingChatRequest{
		ID:             result.Request.ID,
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Sender:         sender.Profile(),
		CreatedAt:      result.Request.CreatedAt,
	})
	return result, nil
}

// RespondToChatRequest moves a pending request addressed to responder into
// the decided state. On acceptance the status update, the chat and both
// memberships are written in one transaction.
func (s *RelationshipService) RespondToChatRequest(ctx context.Context, responder *models.User, requestID string, decision models.ChatRequestStatus) (*RespondResult, error) {
	if decision != models.RequestAccepted && decision != models.RequestRejected {
		return nil, ErrInvalidDecision
	}

	result := &RespondResult{}
	err := s.db.Transaction(ctx, func(tx *database.Database) error {
		req, err := tx.GetChatRequest(ctx, requestID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if req.ReceiverID != responder.ID {
			return ErrRequestNotFound
		}
		if err := tx.LockUsers(ctx, req.SenderID, req.ReceiverID); err != nil {
			return fmt.Errorf("lock pair: %w", err)
		}

		ok, err := tx.ResolveChatRequest(ctx, req.ID, responder.ID, decision)
		if err != nil {
			return err
		}
		if !ok {
			if req.Status.IsTerminal() {
				return fmt.Errorf("%w: request is already %s", ErrAlreadyResolved, req.Status)
			}
			return ErrAlreadyResolved
		}
		req.Status = decision
		result.Request = req

		if decision == models.RequestAccepted {
			chat, err := s.createOneOnOne(ctx, tx, req.SenderID, responder.ID)
			if err != nil {
				return err
			}
			result.Chat = chat
		}
		return nil
	})
	if err != nil {
		metrics.ChatRequests.WithLabelValues("failed").Inc()
		if errors.Is(err, ErrRequestNotFound) || errors.Is(err, ErrAlreadyResolved) {
			return nil, err
		}
		slog.Error("respond to chat request failed", "request", requestID, "responder", responder.ID, "error", err)
		return nil, fmt.Errorf("respond to chat request: %w", err)
	}

	if result.Chat != nil {
		metrics.ChatRequests.WithLabelValues("accepted").Inc()
		s.notifier.NotifyUser(result.Request.SenderID, EventChatRequestAccepted, ChatRequestAccepted{
			RequestID: result.Request.ID,
			Status:    string(models.RequestAccepted),
			ChatID:    result.Chat.ID,
			ChatType:  result.Chat.ChatType,
			CreatedAt: result.Chat.CreatedAt,
		})
		return result, nil
	}

	metrics.ChatRequests.WithLabelValues("rejected").Inc()
	s.notifier.NotifyUser(result.Request.SenderID, EventChatRequestRejected, ChatRequestRejected{
		RequestID: result.Request.ID,
		Status:    string(models.RequestRejected),
	})
	return result, nil
}

// ListPendingRequests returns the pending requests addressed to userID,
// oldest first.
func (s *RelationshipService) ListPendingRequests(ctx context.Context, userID string) ([]PendingRequest, error) {
	rows, err := s.db.ListPendingRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	result := make([]PendingRequest, 0, len(rows))
	for _, r := range rows {
		result = append(result, PendingRequest{
			ID:       r.ID,
			SenderID: r.SenderID,
			Sender: models.PublicProfile{
				ID:             r.SenderID,
				FullName:       r.SenderFullName,
				Username:       r.SenderUsername,
				ProfilePicture: r.SenderProfilePicture,
			},
			Status:    string(r.Status),
			CreatedAt: r.CreatedAt,
		})
	}
	return result, nil
}

// createOneOnOne must run inside a transaction: a one-on-one chat is only
// valid with exactly its two memberships.
func (s *RelationshipService) createOneOnOne(ctx context.Context, tx *database.Database, userA, userB string) (*models.Chat, error) {
	now := s.now()
	chat := &models.Chat{
		ChatType:  models.ChatTypeOneOnOne,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	members := []models.ChatMember{
		{ChatID: chat.ID, MemberID: userA, Role: models.RoleMember, JoinedAt: now},
		{ChatID: chat.ID, MemberID: userB, Role: models.RoleMember, JoinedAt: now},
	}
	if err := tx.AddMembers(ctx, members); err != nil {
		return nil, fmt.Errorf("add chat members: %w", err)
	}
	return chat, nil
}

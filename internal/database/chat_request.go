package database

import (
	"context"
	"time"

	"github.com/thereayou/whisper/internal/models"
)

// PendingRequestRow is a pending chat request joined with its sender's public fields.
type PendingRequestRow struct {
	models.ChatRequest
	SenderFullName       string
	SenderUsername       string
	SenderProfilePicture string
}

func (d *Database) CreateChatRequest(ctx context.Context, req *models.ChatRequest) error {
	return translate(d.db.WithContext(ctx).Create(req).Error)
}

func (d *Database) GetChatRequest(ctx context.Context, id string) (*models.ChatRequest, error) {
	var req models.ChatRequest
	if err := d.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// FindChatRequest returns the request sender->receiver in any status.
func (d *Database) FindChatRequest(ctx context.Context, senderID, receiverID string) (*models.ChatRequest, error) {
	var req models.ChatRequest
	err := d.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// ResolveChatRequest moves a pending request addressed to receiverID into
// status. It reports false when no pending row matched, which is how
// concurrent responders lose the race.
func (d *Database) ResolveChatRequest(ctx context.Context, id, receiverID string, status models.ChatRequestStatus) (bool, error) {
	res := d.db.WithContext(ctx).Model(&models.ChatRequest{}).
		Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, models.RequestPending).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPendingRequests returns pending requests received by receiverID, oldest first.
func (d *Database) ListPendingRequests(ctx context.Context, receiverID string) ([]PendingRequestRow, error) {
	var rows []PendingRequestRow
	err := d.db.WithContext(ctx).
		Table("chat_requests").
		Select("chat_requests.*, users.full_name AS sender_full_name, users.username AS sender_username, users.profile_picture AS sender_profile_picture").
		Joins("JOIN users ON users.id = chat_requests.sender_id AND users.deleted_at IS NULL").
		Where("chat_requests.receiver_id = ? AND chat_requests.status = ?", receiverID, models.RequestPending).
		Order("chat_requests.created_at ASC, chat_requests.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PendingSentTo maps each receiver in receiverIDs with a pending request
// from senderID to that request's id.
func (d *Database) PendingSentTo(ctx context.Context, senderID string, receiverIDs []string) (map[string]string, error) {
	result := make(map[string]string)
	if len(receiverIDs) == 0 {
		return result, nil
	}

	var reqs []models.ChatRequest
	err := d.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id IN ? AND status = ?", senderID, receiverIDs, models.RequestPending).
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		result[r.ReceiverID] = r.ID
	}
	return result, nil
}

// PendingReceivedFrom maps each sender in senderIDs with a pending request
// to receiverID to that request's id.
func (d *Database) PendingReceivedFrom(ctx context.Context, receiverID string, senderIDs []string) (map[string]string, error) {
	result := make(map[string]string)
	if len(senderIDs) == 0 {
		return result, nil
	}

	var reqs []models.ChatRequest
	err := d.db.WithContext(ctx).
		Where("receiver_id = ? AND sender_id IN ? AND status = ?", receiverID, senderIDs, models.RequestPending).
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		result[r.SenderID] = r.ID
	}
	return result, nil
}

package dto

type SendChatRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
}

type RespondChatRequest struct {
	Status string `json:"status" binding:"required"`
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

type PageQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1"`
}

type UserSearchQuery struct {
	Query string `form:"query"`
	PageQuery
}

// ChatEventPayload is the data of join-chat and leave-chat.
type ChatEventPayload struct {
	ChatID string `json:"chat_id" validate:"required"`
}

// SendMessagePayload is the data of send-message.
type SendMessagePayload struct {
	ChatID  string `json:"chat_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

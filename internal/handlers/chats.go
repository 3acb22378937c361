package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/whisper/internal/handlers/dto"
	"github.com/thereayou/whisper/internal/middleware"
	"github.com/thereayou/whisper/internal/models"
	"github.com/thereayou/whisper/internal/response"
	"github.com/thereayou/whisper/internal/services"
	ws "github.com/thereayou/whisper/internal/websocket"
)

type ChatHandler struct {
	chats         *services.ChatService
	relationships *services.RelationshipService
	hub           *ws.Hub
}

func NewChatHandler(chats *services.ChatService, relationships *services.RelationshipService, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{chats: chats, relationships: relationships, hub: hub}
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	convs, err := h.chats.ListConversations(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, "Failed to fetch chats", err)
		return
	}
	response.OK(c, http.StatusOK, "Chats fetched successfully", convs)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, "Failed to fetch messages", err)
		return
	}

	page, err := h.chats.GetChatMessages(c.Request.Context(), middleware.CurrentUser(c).ID, c.Param("id"), q.Page, q.PerPage)
	if err != nil {
		writeError(c, "Failed to fetch messages", err)
		return
	}
	response.OK(c, http.StatusOK, "Messages fetched successfully", page)
}

// PostMessage persists a message and fans it out to the conversation room,
// same as the send-message socket event.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Failed to send message", err)
		return
	}

	msg, err := h.chats.PostMessage(c.Request.Context(), middleware.CurrentUser(c).ID, c.Param("id"), req.Content)
	if err != nil {
		writeError(c, "Failed to send message", err)
		return
	}
	broadcastMessage(c.Request.Context(), h.hub, msg)

	response.OK(c, http.StatusCreated, "Message sent successfully", msg)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID := c.Param("id")
	if err := h.chats.DeleteChat(c.Request.Context(), middleware.CurrentUser(c).ID, chatID); err != nil {
		writeError(c, "Failed to delete chat", err)
		return
	}
	response.OK(c, http.StatusOK, "Chat deleted successfully", gin.H{"chat_id": chatID})
}

func (h *ChatHandler) SendRequest(c *gin.Context) {
	var req dto.SendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Failed to send chat request", err)
		return
	}

	res, err := h.relationships.SendChatRequest(c.Request.Context(), middleware.CurrentUser(c), req.ReceiverID)
	if err != nil {
		writeError(c, "Failed to send chat request", err)
		return
	}

	if res.Chat != nil {
		response.OK(c, http.StatusCreated, "Chat request accepted, chat created", gin.H{
			"request_id": res.Request.ID,
			"status":     res.Request.Status,
			"chat_id":    res.Chat.ID,
			"chat_type":  res.Chat.ChatType,
		})
		return
	}
	response.OK(c, http.StatusCreated, "Chat request sent successfully", gin.H{
		"request_id": res.Request.ID,
		"status":     res.Request.Status,
		"created_at": res.Request.CreatedAt,
	})
}

func (h *ChatHandler) RespondToRequest(c *gin.Context) {
	var req dto.RespondChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Invalid status", err)
		return
	}

	res, err := h.relationships.RespondToChatRequest(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), models.ChatRequestStatus(req.Status))
	if err != nil {
		writeError(c, "Failed to respond to chat request", err)
		return
	}

	data := gin.H{
		"request_id": res.Request.ID,
		"status":     res.Request.Status,
	}
	if res.Chat != nil {
		data["chat_id"] = res.Chat.ID
		data["chat_type"] = res.Chat.ChatType
		data["created_at"] = res.Chat.CreatedAt
	}
	response.OK(c, http.StatusOK, "Chat request responded successfully", data)
}

func (h *ChatHandler) ListRequests(c *gin.Context) {
	reqs, err := h.relationships.ListPendingRequests(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, "Failed to fetch chat requests", err)
		return
	}
	response.OK(c, http.StatusOK, "Chat requests fetched successfully", reqs)
}

// broadcastMessage must only be called once the message is persisted.
func broadcastMessage(ctx context.Context, hub *ws.Hub, msg *services.ChatMessage) {
	if err := hub.Emit(ctx, ws.ChatRoom(msg.ChatID), ws.EventNewMessage, msg); err != nil {
		slog.Error("broadcast message failed", "chat", msg.ChatID, "message", msg.ID, "error", err)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/thereayou/whisper/internal/handlers/dto"
	"github.com/thereayou/whisper/internal/metrics"
	"github.com/thereayou/whisper/internal/services"
	ws "github.com/thereayou/whisper/internal/websocket"
)

// SocketEventHandler serves the inbound realtime events. Failures are
// reported to the calling connection only.
type SocketEventHandler struct {
	chats    *services.ChatService
	hub      *ws.Hub
	validate *validator.Validate
}

func NewSocketEventHandler(chats *services.ChatService, hub *ws.Hub) *SocketEventHandler {
	return &SocketEventHandler{
		chats:    chats,
		hub:      hub,
		validate: validator.New(),
	}
}

func (h *SocketEventHandler) HandleEvent(ctx context.Context, client *ws.Client, msg *ws.Message) {
	var err error
	switch msg.Event {
	case ws.EventJoinChat:
		err = h.joinChat(ctx, client, msg)
	case ws.EventLeaveChat:
		err = h.leaveChat(client, msg)
	case ws.EventSendMessage:
		err = h.sendMessage(ctx, client, msg)
	default:
		client.EmitError(ws.EventError, "", ws.ErrUnknownEvent.Error()+": "+msg.Event)
		metrics.SocketEvents.WithLabelValues("unknown", "error").Inc()
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
		slog.Debug("socket event failed", "event", msg.Event, "user", client.UserID, "error", err)
	}
	metrics.SocketEvents.WithLabelValues(msg.Event, result).Inc()
}

func (h *SocketEventHandler) joinChat(ctx context.Context, client *ws.Client, msg *ws.Message) error {
	var payload dto.ChatEventPayload
	if err := h.decode(msg, &payload); err != nil {
		client.EmitError(ws.EventError, "", err.Error())
		return err
	}

	ok, err := h.chats.IsMember(ctx, payload.ChatID, client.UserID)
	if err != nil {
		slog.Error("check membership failed", "chat", payload.ChatID, "user", client.UserID, "error", err)
		client.EmitError(ws.EventError, payload.ChatID, "could not join chat")
		return err
	}
	if !ok {
		client.EmitError(ws.EventError, payload.ChatID, services.ErrForbidden.Error())
		return services.ErrForbidden
	}

	h.hub.Join(client, ws.ChatRoom(payload.ChatID))
	return client.Emit(ws.EventJoinedChat, payload)
}

func (h *SocketEventHandler) leaveChat(client *ws.Client, msg *ws.Message) error {
	var payload dto.ChatEventPayload
	if err := h.decode(msg, &payload); err != nil {
		client.EmitError(ws.EventError, "", err.Error())
		return err
	}

	h.hub.Leave(client, ws.ChatRoom(payload.ChatID))
	return client.Emit(ws.EventLeftChat, payload)
}

func (h *SocketEventHandler) sendMessage(ctx context.Context, client *ws.Client, msg *ws.Message) error {
	var payload dto.SendMessagePayload
	if err := h.decode(msg, &payload); err != nil {
		client.EmitError(ws.EventSendMessageError, payload.ChatID, err.Error())
		return err
	}

	posted, err := h.chats.PostMessage(ctx, client.UserID, payload.ChatID, payload.Content)
	if err != nil {
		text := err.Error()
		if !errors.Is(err, services.ErrForbidden) && !errors.Is(err, services.ErrInvalidMessage) {
			text = "could not send message"
		}
		client.EmitError(ws.EventSendMessageError, payload.ChatID, text)
		return err
	}

	broadcastMessage(ctx, h.hub, posted)
	return nil
}

func (h *SocketEventHandler) decode(msg *ws.Message, dst any) error {
	if len(msg.Data) == 0 {
		return ws.ErrInvalidMessage
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		return ws.ErrInvalidMessage
	}
	return h.validate.Struct(dst)
}

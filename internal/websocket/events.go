package websocket

import (
	"encoding/json"
	"time"
)

// Inbound events.
const (
	EventJoinChat    = "join-chat"
	EventLeaveChat   = "leave-chat"
	EventSendMessage = "send-message"
)

// Outbound events.
const (
	EventJoinedChat       = "joined-chat"
	EventLeftChat         = "left-chat"
	EventNewMessage       = "new-message"
	EventSendMessageError = "send-message:error"
	EventError            = "error"
)

// Message is the frame exchanged in both directions.
type Message struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorPayload struct {
	ChatID string `json:"chat_id,omitempty"`
	Error  string `json:"error"`
}

// Encode builds a frame for event carrying data.
func Encode(event string, data any) ([]byte, error) {
	msg := Message{
		Event:     event,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// PersonalRoom names the room every connection of userID joins on connect.
func PersonalRoom(userID string) string {
	return "user:" + userID
}

// ChatRoom names the conversation room of chatID.
func ChatRoom(chatID string) string {
	return "chat_" + chatID
}

package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

const DefaultBrokerChannel = "whisper:rooms"

type brokerFrame struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBroker fans room frames out to every instance subscribed to the same
// redis channel. Frames published by this instance are skipped on receipt.
type RedisBroker struct {
	rdb     *redis.Client
	channel string
	origin  string
}

func NewRedisBroker(rdb *redis.Client, channel, origin string) *RedisBroker {
	if channel == "" {
		channel = DefaultBrokerChannel
	}
	return &RedisBroker{rdb: rdb, channel: channel, origin: origin}
}

func (b *RedisBroker) Publish(ctx context.Context, room string, payload []byte) error {
	frame, err := json.Marshal(brokerFrame{Origin: b.origin, Room: room, Payload: payload})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, frame).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(room string, payload []byte)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	slog.Info("broker subscribed", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var frame brokerFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				slog.Warn("broker frame malformed", "error", err)
				continue
			}
			if frame.Origin == b.origin {
				continue
			}
			deliver(frame.Room, frame.Payload)
		}
	}
}

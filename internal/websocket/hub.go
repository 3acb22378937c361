package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/thereayou/whisper/internal/metrics"
)

// Broker relays room frames between server instances.
type Broker interface {
	Publish(ctx context.Context, room string, payload []byte) error
	// Subscribe blocks until ctx is done, calling deliver for every frame
	// published by other instances.
	Subscribe(ctx context.Context, deliver func(room string, payload []byte)) error
}

type Hub struct {
	// ID identifies this instance on the broker.
	ID string

	clients map[string]*Client

	// A user may hold several connections.
	userClients map[string]map[string]*Client

	rooms map[string]map[string]*Client

	broker Broker
	mu     sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		ID:          uuid.NewString(),
		clients:     make(map[string]*Client),
		userClients: make(map[string]map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
	}
}

// SetBroker enables cross-instance fan-out. Call before Run.
func (h *Hub) SetBroker(b Broker) {
	h.broker = b
}

// Run serves the broker subscription until ctx is done, then closes every
// client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.Stop()

	if h.broker == nil {
		<-ctx.Done()
		return nil
	}
	err := h.broker.Subscribe(ctx, h.deliverLocal)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.close()
		if client.Conn != nil {
			client.Conn.Close()
		}
		delete(h.clients, id)
		metrics.OpenSockets.Dec()
	}
	h.userClients = make(map[string]map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
}

// Register records the connection and joins it to its personal room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[string]*Client)
	}
	h.userClients[client.UserID][client.ID] = client
	h.joinUnsafe(client, PersonalRoom(client.UserID))

	metrics.OpenSockets.Inc()
	slog.Debug("client registered", "client", client.ID, "user", client.UserID)
}

// Unregister drops the connection from every room it was in.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, room := range client.Rooms() {
		h.leaveUnsafe(client, room)
	}
	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	delete(h.clients, client.ID)
	client.close()

	metrics.OpenSockets.Dec()
	slog.Debug("client unregistered", "client", client.ID, "user", client.UserID)
}

func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinUnsafe(client, room)
}

func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveUnsafe(client, room)
}

func (h *Hub) joinUnsafe(client *Client, room string) {
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][client.ID] = client
	client.addRoom(room)
}

func (h *Hub) leaveUnsafe(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.removeRoom(room)
}

// SendToRoom delivers payload to every local connection in room and, with a
// broker, to the other instances.
func (h *Hub) SendToRoom(ctx context.Context, room string, payload []byte) {
	h.deliverLocal(room, payload)

	if h.broker != nil {
		if err := h.broker.Publish(ctx, room, payload); err != nil {
			slog.Error("broker publish failed", "room", room, "error", err)
		}
	}
}

// Emit encodes event and sends it to room.
func (h *Hub) Emit(ctx context.Context, room, event string, data any) error {
	payload, err := Encode(event, data)
	if err != nil {
		return err
	}
	h.SendToRoom(ctx, room, payload)
	return nil
}

// NotifyUser emits event to the personal room of userID.
func (h *Hub) NotifyUser(userID, event string, data any) {
	if err := h.Emit(context.Background(), PersonalRoom(userID), event, data); err != nil {
		slog.Error("notify user failed", "user", userID, "event", event, "error", err)
	}
}

func (h *Hub) deliverLocal(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[room] {
		if err := client.enqueue(payload); err != nil {
			slog.Warn("drop frame", "client", client.ID, "room", room, "error", err)
		}
	}
}

// IsOnline reports whether userID has at least one connection on this instance.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID]) > 0
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/thereayou/whisper/internal/middleware"
	ws "github.com/thereayou/whisper/internal/websocket"
)

// WebSocketHandler upgrades authenticated requests and starts the client pumps.
type WebSocketHandler struct {
	hub      *ws.Hub
	events   ws.EventHandler
	upgrader websocket.Upgrader
	ctx      context.Context

	eventsPerSecond rate.Limit
	eventBurst      int
}

// NewWebSocketHandler serves connections until ctx is done. Origins lists the
// allowed browser origins; "*" allows any.
func NewWebSocketHandler(ctx context.Context, hub *ws.Hub, events ws.EventHandler, eventsPerSecond float64, eventBurst int, origins ...string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		events: events,
		ctx:    ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range origins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
		eventsPerSecond: rate.Limit(eventsPerSecond),
		eventBurst:      eventBurst,
	}
}

// HandleWebSocket must run behind middleware.WSAuthMiddleware.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	user := middleware.CurrentUser(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	var limiter *rate.Limiter
	if h.eventsPerSecond > 0 {
		limiter = rate.NewLimiter(h.eventsPerSecond, h.eventBurst)
	}
	client := ws.NewClient(h.hub, conn, user.ID, limiter)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.ctx, h.events)
}

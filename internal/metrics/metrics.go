// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatRequests counts chat request operations by outcome
	// (sent, mutual, accepted, rejected, failed).
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisper_chat_requests_total",
		Help: "Chat request operations by outcome",
	}, []string{"outcome"})

	// MessagesPosted counts persisted messages.
	MessagesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_messages_posted_total",
		Help: "Messages persisted",
	})

	// SocketEvents counts inbound socket events by name and result.
	SocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisper_socket_events_total",
		Help: "Inbound socket events by event name and result",
	}, []string{"event", "result"})

	// OpenSockets tracks currently registered socket connections.
	OpenSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "whisper_open_sockets",
		Help: "Currently open socket connections",
	})
)

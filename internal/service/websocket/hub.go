package websocket

import (
	"context"
	"encoding/json"
	"time"

	"visionbridge/internal/dto"
	"visionbridge/internal/logger"
	"visionbridge/internal/model"
	"visionbridge/internal/service/metrics"
)

// MessageTypeSnapshot tags snapshot envelopes sent to viewers.
const MessageTypeSnapshot = "snapshot"

// HubService fans snapshots out to connected viewers. New viewers get
// the latest snapshot immediately.
type HubService struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	stopped    chan struct{}
	latest     []byte

	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewHubService(logger *logger.Logger, m *metrics.Metrics) *HubService {
	return &HubService{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		stopped:    make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
}

// Run owns the client set. It forwards every snapshot received on
// updates until ctx is done, then disconnects all viewers.
func (h *HubService) Run(ctx context.Context, updates <-chan model.Snapshot) error {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.metrics.SetViewers(0)
			return nil

		case client := <-h.register:
			h.clients[client] = true
			if h.latest != nil {
				client.offer(h.latest)
			}
			h.metrics.SetViewers(len(h.clients))
			h.logger.Info("Viewer connected. Total: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.metrics.SetViewers(len(h.clients))
			h.logger.Info("Viewer disconnected. Total: %d", len(h.clients))

		case reply := <-h.count:
			reply <- len(h.clients)

		case snap, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			data, err := EncodeSnapshot(snap)
			if err != nil {
				h.logger.Error("Error encoding snapshot: %v", err)
				continue
			}
			h.latest = data
			for client := range h.clients {
				client.offer(data)
			}
		}
	}
}

// Register adds a viewer. It is a no-op once the hub stopped.
func (h *HubService) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		client.close()
	}
}

// Unregister removes a viewer and closes its write pump.
func (h *HubService) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
		client.close()
	}
}

// GetClientCount returns the number of registered viewers.
func (h *HubService) GetClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.stopped:
		return 0
	}
}

// EncodeSnapshot renders the envelope viewers receive.
func EncodeSnapshot(s model.Snapshot) ([]byte, error) {
	return json.Marshal(dto.SnapshotMessage{
		Type:     MessageTypeSnapshot,
		SentAt:   time.Now(),
		Snapshot: dto.NewSnapshotView(s),
	})
}

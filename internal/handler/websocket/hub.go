package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/usecase/ledger"
)

// Hub maps ledger ids to the set of connections currently watching them.
// Publish is invoked synchronously from the serialized append path, so for
// one ledger every subscriber's send queue sees updates in commit order.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Subscribe(ledgerID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[ledgerID] == nil {
		h.rooms[ledgerID] = make(map[*Client]bool)
	}
	h.rooms[ledgerID][c] = true
}

func (h *Hub) Unsubscribe(ledgerID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[ledgerID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, ledgerID)
		}
	}
}

// DropClient removes the connection from every room and closes its send
// queue. Holding the write lock here excludes Publish, so the queue is
// never written after it is closed.
func (h *Hub) DropClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ledgerID, room := range h.rooms {
		if room[c] {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, ledgerID)
			}
		}
	}
	c.closeSend()
}

// Publish delivers the view to every subscriber of the ledger,
// best-effort: a subscriber with a full queue misses this update and can
// refetch the authoritative state on demand.
func (h *Hub) Publish(ledgerID string, view *domain.LedgerView) {
	payload, err := json.Marshal(&WSResponse{
		Type:    msgLedgerUpdated,
		Success: true,
		Data:    view,
	})
	if err != nil {
		h.logger.Error("failed to encode ledger update",
			zap.String("ledger_id", ledgerID),
			zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[ledgerID] {
		c.send(payload)
	}
}

// Subscribers reports how many connections watch a ledger.
func (h *Hub) Subscribers(ledgerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[ledgerID])
}

var _ ledger.Broadcaster = (*Hub)(nil)

package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin allow-list handled by the CORS layer
	},
}

// LedgerViewer is the slice of the ledger service the websocket layer
// needs: building the authorized snapshot pushed on join.
type LedgerViewer interface {
	GetLedgerView(ctx context.Context, ledgerID, requesterID string) (*domain.LedgerView, error)
}

// Handler upgrades authenticated connections and routes their messages.
// Room membership requires the same party authorization as the REST
// surface: joining a ledger you are not a party of is rejected.
type Handler struct {
	hub    *Hub
	viewer LedgerViewer
	logger *zap.Logger
}

func NewHandler(hub *Hub, viewer LedgerViewer, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		viewer: viewer,
		logger: logger,
	}
}

// HandleConnection handles new websocket connections.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		h.logger.Warn("unauthorized websocket connection attempt")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	client := &Client{
		ID:      fmt.Sprintf("%s_%d", userID, time.Now().UnixNano()),
		UserID:  userID,
		conn:    conn,
		handler: h,
		logger:  h.logger,
		sendCh:  make(chan []byte, sendQueueSize),
	}

	client.SendJSON(&WSResponse{
		Type:    msgConnected,
		Success: true,
		Data:    map[string]interface{}{"user_id": userID},
	})

	go client.writePump()
	go client.readPump()

	h.logger.Info("websocket connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", userID))
}

func (h *Handler) dropClient(c *Client) {
	h.hub.DropClient(c)
	h.logger.Info("websocket disconnected",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.UserID))
}

func (h *Handler) handleMessage(c *Client, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Error("failed to parse websocket message",
			zap.String("client_id", c.ID),
			zap.Error(err))
		c.SendError("error", "invalid message format")
		return
	}

	ctx := context.Background()

	switch msg.Type {
	case msgLedgerJoin:
		h.handleJoin(ctx, c, msg.Data)
	case msgLedgerLeave:
		h.handleLeave(c, msg.Data)
	default:
		c.SendError("error", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleJoin(ctx context.Context, c *Client, data json.RawMessage) {
	var ref ledgerRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.LedgerID == "" {
		c.SendError(msgLedgerJoin, "ledger_id is required")
		return
	}

	view, err := h.viewer.GetLedgerView(ctx, ref.LedgerID, c.UserID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLedgerNotFound):
			c.SendError(msgLedgerJoin, "ledger not found")
		case errors.Is(err, domain.ErrAccessDenied):
			c.SendError(msgLedgerJoin, "access denied")
		default:
			h.logger.Error("ledger join failed",
				zap.String("ledger_id", ref.LedgerID),
				zap.String("user_id", c.UserID),
				zap.Error(err))
			c.SendError(msgLedgerJoin, "internal error")
		}
		return
	}

	h.hub.Subscribe(ref.LedgerID, c)
	c.SendJSON(&WSResponse{
		Type:    msgLedgerSnapshot,
		Success: true,
		Data:    view,
	})
}

func (h *Handler) handleLeave(c *Client, data json.RawMessage) {
	var ref ledgerRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.LedgerID == "" {
		c.SendError(msgLedgerLeave, "ledger_id is required")
		return
	}
	h.hub.Unsubscribe(ref.LedgerID, c)
	c.SendJSON(&WSResponse{
		Type:    msgLedgerLeave,
		Success: true,
	})
}

package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second

	sendQueueSize = 256
)

// Client is one observer connection. Outbound messages go through a
// bounded queue drained by writePump; a full queue drops the message
// rather than stall the publisher.
type Client struct {
	ID      string
	UserID  string
	conn    *websocket.Conn
	handler *Handler
	logger  *zap.Logger

	mu     sync.Mutex
	sendCh chan []byte
	closed bool
}

func (c *Client) send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("client send buffer full, dropping message",
			zap.String("client_id", c.ID))
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.sendCh)
	}
}

// SendJSON queues a JSON message for delivery.
func (c *Client) SendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal message",
			zap.String("client_id", c.ID),
			zap.Error(err))
		return
	}
	c.send(data)
}

func (c *Client) SendError(msgType, message string) {
	c.SendJSON(&WSResponse{
		Type:    msgType,
		Success: false,
		Error:   message,
	})
}

// readPump pumps messages from the connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.handler.dropClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}
		c.handler.handleMessage(c, message)
	}
}

// writePump pumps queued messages to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush anything already queued into the same frame batch.
			n := len(c.sendCh)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.sendCh)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

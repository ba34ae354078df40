package websocket

import "encoding/json"

// Client -> server message types.
const (
	msgLedgerJoin  = "ledger.join"
	msgLedgerLeave = "ledger.leave"
)

// Server -> client message types.
const (
	msgConnected      = "connected"
	msgLedgerSnapshot = "ledger.snapshot"
	msgLedgerUpdated  = "ledger.updated"
)

type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type WSResponse struct {
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type ledgerRef struct {
	LedgerID string `json:"ledger_id"`
}

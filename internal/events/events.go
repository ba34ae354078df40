package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const TopicTransactionRecorded = "ledger_transaction_recorded"

// TransactionRecorded is emitted after an append commits, for downstream
// consumers (notifications, analytics). Delivery is best-effort; the log
// itself is the source of truth.
type TransactionRecorded struct {
	LedgerID      string          `json:"ledger_id"`
	TransactionID string          `json:"transaction_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	SentBy        string          `json:"sent_by"`
	ReceivedBy    string          `json:"received_by"`
	RecordedBy    string          `json:"recorded_by"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Publisher pushes domain events to a broker.
type Publisher interface {
	Publish(topic string, event any) error
}

package ledger

import "ledger-service/internal/domain"

// Broadcaster fans a fresh ledger view out to every observer currently
// subscribed to that ledger. Delivery is best-effort: a dead subscriber is
// dropped silently and never fails the append that triggered the publish.
type Broadcaster interface {
	Publish(ledgerID string, view *domain.LedgerView)
}

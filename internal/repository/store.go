package repository

import (
	"context"

	"ledger-service/internal/domain"
)

// LedgerStore is durable keyed storage of ledger aggregates. Mutate is the
// only write path: calls for the same ledger id are serialized so no append
// can overwrite another's effect, while unrelated ledgers proceed fully
// concurrently. Implementations bound every storage call with a timeout and
// surface unreachable backends as domain.ErrStorageUnavailable.
type LedgerStore interface {
	Get(ctx context.Context, ledgerID string) (*domain.Ledger, error)

	// GetOrCreate resolves the aggregate for the unordered pair {a, b},
	// creating it on first contact. Idempotent: the same pair always maps
	// to the same aggregate.
	GetOrCreate(ctx context.Context, a, b domain.Party) (*domain.Ledger, error)

	ListByParty(ctx context.Context, partyID string) ([]*domain.Ledger, error)

	// Mutate loads the aggregate, applies fn and persists the result
	// atomically, returning the updated aggregate. fn may run more than
	// once when a conditional write loses a race, so it must not carry
	// side effects beyond the aggregate it is given.
	Mutate(ctx context.Context, ledgerID string, fn func(*domain.Ledger) error) (*domain.Ledger, error)
}

// PartyDirectory resolves a party identity to its display profile. Identity
// management itself lives outside this service; this is the read-side
// collaborator consumed when rendering views.
type PartyDirectory interface {
	Resolve(ctx context.Context, partyID string) (domain.PartyProfile, error)
}

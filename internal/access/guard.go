package access

import (
	"context"

	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

// Guard resolves a ledger id to its aggregate and confirms the requester is
// one of the two parties. Every service operation goes through it before
// touching the log.
type Guard struct {
	store  repository.LedgerStore
	logger *zap.Logger
}

func NewGuard(store repository.LedgerStore, logger *zap.Logger) *Guard {
	return &Guard{store: store, logger: logger}
}

// Authorize returns the aggregate when the requester is a ledger party,
// domain.ErrLedgerNotFound for an unknown ledger and domain.ErrAccessDenied
// otherwise.
func (g *Guard) Authorize(ctx context.Context, ledgerID, requesterID string) (*domain.Ledger, error) {
	l, err := g.store.Get(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	if !l.IsParty(requesterID) {
		g.logger.Warn("ledger access denied",
			zap.String("ledger_id", ledgerID),
			zap.String("requester", requesterID))
		return nil, domain.ErrAccessDenied
	}
	return l, nil
}

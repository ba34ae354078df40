package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ledger-service/internal/domain"
)

// MutateWithRetry is the conditional-write loop shared by backends that
// detect lost updates with a revision compare-and-swap. load fetches the
// latest aggregate, fn applies the mutation to a copy with its revision
// already advanced, and swap persists the copy only if the stored revision
// still matches the one it was loaded at. A false swap means a concurrent
// writer won; the mutation is then re-applied against the fresh aggregate.
// After attempts lost races the conflict surfaces as ErrStorageUnavailable.
func MutateWithRetry(
	ctx context.Context,
	ledgerID string,
	attempts int,
	logger *zap.Logger,
	load func(ctx context.Context) (*domain.Ledger, error),
	fn func(*domain.Ledger) error,
	swap func(ctx context.Context, next *domain.Ledger) (bool, error),
) (*domain.Ledger, error) {
	for attempt := 1; attempt <= attempts; attempt++ {
		cur, err := load(ctx)
		if err != nil {
			return nil, err
		}

		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.Revision = cur.Revision + 1

		ok, err := swap(ctx, next)
		if err != nil {
			return nil, err
		}
		if ok {
			return next, nil
		}

		logger.Warn("ledger update lost a write race, retrying",
			zap.String("ledger_id", ledgerID),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, domain.ErrConflict)
}

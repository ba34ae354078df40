package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger-service/internal/access"
	"ledger-service/internal/domain"
	"ledger-service/internal/events"
	"ledger-service/internal/repository"
)

// Service is the operation surface over the two-party ledgers: view, append
// ("I paid" / "I received"), list. It orchestrates the access guard, the
// store's serialized append path, balance derivation and the post-commit
// fan-out.
type Service struct {
	store       repository.LedgerStore
	guard       *access.Guard
	directory   repository.PartyDirectory
	broadcaster Broadcaster
	events      events.Publisher
	logger      *zap.Logger
}

// NewService wires the service. events may be nil when no broker is
// configured.
func NewService(
	store repository.LedgerStore,
	guard *access.Guard,
	directory repository.PartyDirectory,
	broadcaster Broadcaster,
	events events.Publisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:       store,
		guard:       guard,
		directory:   directory,
		broadcaster: broadcaster,
		events:      events,
		logger:      logger,
	}
}

// OpenLedger resolves the shared ledger between the requester and a friend,
// creating it on first contact. Idempotent: the same pair always lands on
// the same ledger. Unlike views, opening requires both parties to resolve
// in the directory, since the aggregate stores their handles forever.
func (s *Service) OpenLedger(ctx context.Context, requesterID, friendID string) (*domain.LedgerView, error) {
	if requesterID == friendID {
		return nil, domain.ErrInvalidParty
	}

	requester, err := s.registeredParty(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	friend, err := s.registeredParty(ctx, friendID)
	if err != nil {
		return nil, err
	}

	l, err := s.store.GetOrCreate(ctx, requester, friend)
	if err != nil {
		s.logger.Error("open ledger failed",
			zap.String("requester", requesterID),
			zap.String("friend", friendID),
			zap.Error(err))
		return nil, err
	}
	return s.viewFor(ctx, l, requesterID)
}

func (s *Service) registeredParty(ctx context.Context, partyID string) (domain.Party, error) {
	p, err := s.directory.Resolve(ctx, partyID)
	if err != nil {
		s.logger.Warn("party not registered",
			zap.String("party", partyID),
			zap.Error(err))
		return domain.Party{}, domain.ErrInvalidParty
	}
	if !domain.ValidHandle(p.Handle) {
		return domain.Party{}, domain.ErrInvalidParty
	}
	return domain.Party{ID: p.ID, Handle: p.Handle}, nil
}

// GetLedgerView returns the ledger as seen by the requester: their balance,
// the counterparty summary and the log newest-first with is_own annotations.
func (s *Service) GetLedgerView(ctx context.Context, ledgerID, requesterID string) (*domain.LedgerView, error) {
	l, err := s.guard.Authorize(ctx, ledgerID, requesterID)
	if err != nil {
		return nil, err
	}
	return s.viewFor(ctx, l, requesterID)
}

// RecordPaid appends a shared-expense contribution: the requester is the
// sender, the counterparty the receiver.
func (s *Service) RecordPaid(ctx context.Context, ledgerID, requesterID string, amount decimal.Decimal, memo string) (*domain.RecordResult, error) {
	return s.record(ctx, ledgerID, requesterID, domain.KindPaid, amount, memo)
}

// RecordReceived appends a settlement acknowledgement: the counterparty is
// the sender, the requester the receiver. It never moves the balance.
func (s *Service) RecordReceived(ctx context.Context, ledgerID, requesterID string, amount decimal.Decimal, memo string) (*domain.RecordResult, error) {
	return s.record(ctx, ledgerID, requesterID, domain.KindReceived, amount, memo)
}

func (s *Service) record(ctx context.Context, ledgerID, requesterID string, kind domain.TransactionKind, amount decimal.Decimal, memo string) (*domain.RecordResult, error) {
	l, err := s.guard.Authorize(ctx, ledgerID, requesterID)
	if err != nil {
		return nil, err
	}
	requester, _ := l.PartyByID(requesterID)
	friend, _ := l.Counterparty(requesterID)

	sentBy, receivedBy := requester.Handle, friend.Handle
	if kind == domain.KindReceived {
		sentBy, receivedBy = friend.Handle, requester.Handle
	}
	memo = strings.TrimSpace(memo)

	// Once the append starts it must commit even if the caller goes away;
	// only the response delivery may be skipped.
	var recorded domain.Transaction
	updated, err := s.store.Mutate(context.WithoutCancel(ctx), ledgerID, func(l *domain.Ledger) error {
		tx, err := l.Append(kind, amount, sentBy, receivedBy, requesterID, memo)
		if err != nil {
			return err
		}
		recorded = tx
		return nil
	})
	if err != nil {
		s.logger.Error("transaction append failed",
			zap.String("ledger_id", ledgerID),
			zap.String("requester", requesterID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, err
	}

	profiles := s.resolveProfiles(ctx, updated)
	view, err := updated.ViewFor(requester.Handle, profiles[friend.ID], profiles)
	if err != nil {
		return nil, err
	}

	// Publish synchronously inside the serialized append path so every
	// subscriber sees updates for this ledger in commit order.
	s.broadcaster.Publish(ledgerID, view)
	s.publishEvent(ledgerID, recorded)

	s.logger.Info("transaction recorded",
		zap.String("ledger_id", ledgerID),
		zap.String("transaction_id", recorded.ID),
		zap.String("kind", string(kind)),
		zap.String("requester", requesterID))

	return &domain.RecordResult{
		Balance:     view.Balance,
		Transaction: domain.NewTransactionView(recorded, requester.Handle, profiles),
	}, nil
}

// ListLedgers summarizes every ledger the party belongs to, most recently
// updated first, with the balance derived from that party's perspective.
func (s *Service) ListLedgers(ctx context.Context, partyID string) ([]domain.LedgerSummary, error) {
	ledgers, err := s.store.ListByParty(ctx, partyID)
	if err != nil {
		s.logger.Error("list ledgers failed",
			zap.String("requester", partyID),
			zap.Error(err))
		return nil, err
	}

	profileCache := make(map[string]domain.PartyProfile)
	summaries := make([]domain.LedgerSummary, 0, len(ledgers))
	for _, l := range ledgers {
		self, ok := l.PartyByID(partyID)
		if !ok {
			continue
		}
		friend, _ := l.Counterparty(partyID)
		balance, err := l.BalanceFor(self.Handle)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.LedgerSummary{
			LedgerID:         l.ID,
			Friend:           s.profileFor(ctx, friend, profileCache),
			Balance:          balance,
			LastUpdated:      l.LastUpdated,
			TransactionCount: len(l.Transactions),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastUpdated.After(summaries[j].LastUpdated)
	})
	return summaries, nil
}

func (s *Service) viewFor(ctx context.Context, l *domain.Ledger, requesterID string) (*domain.LedgerView, error) {
	requester, _ := l.PartyByID(requesterID)
	friend, _ := l.Counterparty(requesterID)
	profiles := s.resolveProfiles(ctx, l)
	return l.ViewFor(requester.Handle, profiles[friend.ID], profiles)
}

// resolveProfiles looks up both parties in the directory, falling back to
// the handles stored on the aggregate when a lookup fails. A view must not
// fail just because the display collaborator is down.
func (s *Service) resolveProfiles(ctx context.Context, l *domain.Ledger) map[string]domain.PartyProfile {
	cache := make(map[string]domain.PartyProfile, 2)
	s.profileFor(ctx, l.PartyA, cache)
	s.profileFor(ctx, l.PartyB, cache)
	return cache
}

func (s *Service) profileFor(ctx context.Context, party domain.Party, cache map[string]domain.PartyProfile) domain.PartyProfile {
	if p, ok := cache[party.ID]; ok {
		return p
	}
	p, err := s.directory.Resolve(ctx, party.ID)
	if err != nil {
		s.logger.Debug("party profile resolution failed",
			zap.String("party", party.ID),
			zap.Error(err))
		p = domain.PartyProfile{ID: party.ID, Handle: party.Handle}
	}
	cache[party.ID] = p
	return p
}

func (s *Service) publishEvent(ledgerID string, tx domain.Transaction) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(events.TopicTransactionRecorded, events.TransactionRecorded{
		LedgerID:      ledgerID,
		TransactionID: tx.ID,
		Kind:          string(tx.Kind),
		Amount:        tx.Amount,
		SentBy:        tx.SentBy,
		ReceivedBy:    tx.ReceivedBy,
		RecordedBy:    tx.RecordedBy,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("event publish failed",
			zap.String("ledger_id", ledgerID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
	}
}

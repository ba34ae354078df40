package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

// Store is the in-memory LedgerStore used for development and tests.
// Appends to one ledger are serialized through a per-ledger mutex; the
// aggregate map itself has its own guard.
type Store struct {
	mu      sync.RWMutex
	ledgers map[string]*domain.Ledger
	pairs   map[string]string // unordered pair key -> ledger id

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		ledgers: make(map[string]*domain.Ledger),
		pairs:   make(map[string]string),
		locks:   make(map[string]*sync.Mutex),
	}
}

func pairKey(a, b domain.Party) string {
	if b.ID < a.ID {
		a, b = b, a
	}
	return a.ID + ":" + b.ID
}

func (s *Store) ledgerLock(ledgerID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if _, ok := s.locks[ledgerID]; !ok {
		s.locks[ledgerID] = &sync.Mutex{}
	}
	return s.locks[ledgerID]
}

func (s *Store) Get(ctx context.Context, ledgerID string) (*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[ledgerID]
	if !ok {
		return nil, domain.ErrLedgerNotFound
	}
	return l.Clone(), nil
}

func (s *Store) GetOrCreate(ctx context.Context, a, b domain.Party) (*domain.Ledger, error) {
	if a.ID == b.ID {
		return nil, domain.ErrInvalidParty
	}
	key := pairKey(a, b)

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.pairs[key]; ok {
		return s.ledgers[id].Clone(), nil
	}
	l := domain.NewLedger(uuid.New().String(), a, b)
	s.ledgers[l.ID] = l
	s.pairs[key] = l.ID
	return l.Clone(), nil
}

func (s *Store) ListByParty(ctx context.Context, partyID string) ([]*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Ledger
	for _, l := range s.ledgers {
		if l.IsParty(partyID) {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (s *Store) Mutate(ctx context.Context, ledgerID string, fn func(*domain.Ledger) error) (*domain.Ledger, error) {
	lock := s.ledgerLock(ledgerID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	cur, ok := s.ledgers[ledgerID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrLedgerNotFound
	}

	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Revision = cur.Revision + 1

	s.mu.Lock()
	s.ledgers[ledgerID] = next
	s.mu.Unlock()
	return next.Clone(), nil
}

var _ repository.LedgerStore = (*Store)(nil)

// Directory is the in-memory PartyDirectory paired with the memory store.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]domain.PartyProfile
}

func NewDirectory() *Directory {
	return &Directory{profiles: make(map[string]domain.PartyProfile)}
}

func (d *Directory) Add(p domain.PartyProfile) {
	if p.Avatar == "" {
		p.Avatar = domain.Initials(p.Name)
	}
	d.mu.Lock()
	d.profiles[p.ID] = p
	d.mu.Unlock()
}

func (d *Directory) Resolve(ctx context.Context, partyID string) (domain.PartyProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[partyID]
	if !ok {
		return domain.PartyProfile{}, fmt.Errorf("party %s not registered", partyID)
	}
	return p, nil
}

var _ repository.PartyDirectory = (*Directory)(nil)

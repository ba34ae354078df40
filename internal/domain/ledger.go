package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	// KindPaid is a shared-expense contribution: it moves the balance.
	KindPaid TransactionKind = "paid"
	// KindReceived acknowledges a settlement made outside the shared
	// ledger. It is display-only and never moves the balance.
	KindReceived TransactionKind = "received"
)

const (
	// MemoMaxLen caps the free-text memo on a transaction.
	MemoMaxLen = 280

	// SchemaVersionCurrent tags aggregates whose transactions all carry
	// sender/receiver handles. Version 1 aggregates predate the handle
	// fields and are repaired by a one-time migration, not at runtime.
	SchemaVersionCurrent = 2
)

// minAmount is the smallest recordable amount (0.01).
var minAmount = decimal.New(1, -2)

// Transaction is one immutable money movement between the two ledger
// parties. Records are only ever created through Ledger.Append and are
// never mutated or removed afterwards.
type Transaction struct {
	ID         string          `json:"id"`
	Kind       TransactionKind `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Memo       string          `json:"memo"`
	SentBy     string          `json:"sent_by"`
	ReceivedBy string          `json:"received_by"`
	RecordedBy string          `json:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Ledger is the aggregate for exactly one unordered pair of parties: an
// append-ordered transaction log plus derived state. Balance is a
// materialized view of the log, recomputed on every append; per-viewer
// balances are always derived fresh via BalanceFor.
type Ledger struct {
	ID            string          `json:"id"`
	PartyA        Party           `json:"party_a"`
	PartyB        Party           `json:"party_b"`
	Transactions  []Transaction   `json:"transactions"`
	Balance       decimal.Decimal `json:"balance"`
	SchemaVersion int             `json:"schema_version"`
	LastUpdated   time.Time       `json:"last_updated"`

	// Revision is the optimistic-concurrency counter managed by the
	// store; it is not part of the logical aggregate state.
	Revision int64 `json:"-"`
}

// NewLedger builds an empty aggregate for the pair {a, b}. The pair is
// unordered: parties are stored sorted by identity so the same two parties
// always map to the same aggregate shape, and the cached balance reference
// party (PartyB) is deterministic.
func NewLedger(id string, a, b Party) *Ledger {
	if b.ID < a.ID {
		a, b = b, a
	}
	return &Ledger{
		ID:            id,
		PartyA:        a,
		PartyB:        b,
		Balance:       decimal.Zero,
		SchemaVersion: SchemaVersionCurrent,
		LastUpdated:   time.Now().UTC(),
	}
}

func (l *Ledger) IsParty(partyID string) bool {
	return l.PartyA.ID == partyID || l.PartyB.ID == partyID
}

func (l *Ledger) PartyByID(partyID string) (Party, bool) {
	switch partyID {
	case l.PartyA.ID:
		return l.PartyA, true
	case l.PartyB.ID:
		return l.PartyB, true
	}
	return Party{}, false
}

// Counterparty returns the other side of the ledger relative to partyID.
func (l *Ledger) Counterparty(partyID string) (Party, bool) {
	switch partyID {
	case l.PartyA.ID:
		return l.PartyB, true
	case l.PartyB.ID:
		return l.PartyA, true
	}
	return Party{}, false
}

func (l *Ledger) hasHandle(handle string) bool {
	return l.PartyA.Handle == handle || l.PartyB.Handle == handle
}

// BalanceFor derives the signed balance from the queried handle's
// perspective: positive means that party is net owed money, negative means
// it net owes. Only paid records contribute; settlement acknowledgements
// are skipped. The derivation is a pure function of the log, so it is
// recomputed from scratch rather than patched incrementally.
func (l *Ledger) BalanceFor(handle string) (decimal.Decimal, error) {
	if !l.hasHandle(handle) {
		return decimal.Zero, ErrInvalidParty
	}
	balance := decimal.Zero
	for _, tx := range l.Transactions {
		if tx.Kind != KindPaid {
			continue
		}
		switch handle {
		case tx.SentBy:
			balance = balance.Add(tx.Amount)
		case tx.ReceivedBy:
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance, nil
}

// Append validates and appends one transaction, then recomputes the cached
// balance (reference party: PartyB) and LastUpdated. On any validation
// error the aggregate is left untouched.
func (l *Ledger) Append(kind TransactionKind, amount decimal.Decimal, sentBy, receivedBy, recordedBy, memo string) (Transaction, error) {
	if amount.Cmp(minAmount) < 0 || !amount.Equal(amount.Round(2)) {
		return Transaction{}, ErrInvalidAmount
	}
	if sentBy == receivedBy {
		return Transaction{}, ErrInvalidParty
	}
	if !l.hasHandle(sentBy) || !l.hasHandle(receivedBy) {
		return Transaction{}, ErrInvalidParty
	}
	if !l.IsParty(recordedBy) {
		return Transaction{}, ErrInvalidParty
	}
	if len(memo) > MemoMaxLen {
		return Transaction{}, ErrInvalidMemo
	}

	tx := Transaction{
		ID:         uuid.New().String(),
		Kind:       kind,
		Amount:     amount,
		Memo:       memo,
		SentBy:     sentBy,
		ReceivedBy: receivedBy,
		RecordedBy: recordedBy,
		CreatedAt:  time.Now().UTC(),
	}
	l.Transactions = append(l.Transactions, tx)
	l.Balance, _ = l.BalanceFor(l.PartyB.Handle)
	l.LastUpdated = tx.CreatedAt
	return tx, nil
}

// Clone deep-copies the aggregate so readers never observe a log that a
// concurrent append is still building.
func (l *Ledger) Clone() *Ledger {
	cp := *l
	cp.Transactions = make([]Transaction, len(l.Transactions))
	copy(cp.Transactions, l.Transactions)
	return &cp
}

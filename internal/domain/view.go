package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionView is one log entry as rendered for a specific viewer.
// IsOwn reports whether the viewer's handle appears on the record as
// sender or receiver, so a client can label "you paid" / "you received"
// without re-deriving identity.
type TransactionView struct {
	ID         string          `json:"id"`
	Kind       TransactionKind `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Memo       string          `json:"memo"`
	SentBy     string          `json:"sent_by"`
	ReceivedBy string          `json:"received_by"`
	RecordedBy PartyProfile    `json:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at"`
	IsOwn      bool            `json:"is_own"`
}

// LedgerView is the full ledger as seen by one party: their balance, the
// counterparty summary and the log newest-first.
type LedgerView struct {
	LedgerID     string            `json:"ledger_id"`
	Balance      decimal.Decimal   `json:"balance"`
	Friend       PartyProfile      `json:"friend"`
	Transactions []TransactionView `json:"transactions"`
	LastUpdated  time.Time         `json:"last_updated"`
}

// LedgerSummary is the list-screen shape for one ledger a party belongs to.
type LedgerSummary struct {
	LedgerID         string          `json:"ledger_id"`
	Friend           PartyProfile    `json:"friend"`
	Balance          decimal.Decimal `json:"balance"`
	LastUpdated      time.Time       `json:"last_updated"`
	TransactionCount int             `json:"transaction_count"`
}

// RecordResult is what an append returns to the caller: the fresh balance
// from the recorder's perspective plus the transaction just written.
type RecordResult struct {
	Balance     decimal.Decimal `json:"balance"`
	Transaction TransactionView `json:"transaction"`
}

// ViewFor renders the aggregate for the given viewer handle. Profiles maps
// party identity to display profile; unresolved parties fall back to their
// handle. The transaction slice is sorted newest-first.
func (l *Ledger) ViewFor(viewerHandle string, friend PartyProfile, profiles map[string]PartyProfile) (*LedgerView, error) {
	balance, err := l.BalanceFor(viewerHandle)
	if err != nil {
		return nil, err
	}

	txs := make([]TransactionView, 0, len(l.Transactions))
	for _, tx := range l.Transactions {
		txs = append(txs, NewTransactionView(tx, viewerHandle, profiles))
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})

	return &LedgerView{
		LedgerID:     l.ID,
		Balance:      balance,
		Friend:       friend,
		Transactions: txs,
		LastUpdated:  l.LastUpdated,
	}, nil
}

// NewTransactionView renders one record from the given viewer's
// perspective.
func NewTransactionView(tx Transaction, viewerHandle string, profiles map[string]PartyProfile) TransactionView {
	recorder, ok := profiles[tx.RecordedBy]
	if !ok {
		recorder = PartyProfile{ID: tx.RecordedBy}
	}
	return TransactionView{
		ID:         tx.ID,
		Kind:       tx.Kind,
		Amount:     tx.Amount,
		Memo:       tx.Memo,
		SentBy:     tx.SentBy,
		ReceivedBy: tx.ReceivedBy,
		RecordedBy: recorder,
		CreatedAt:  tx.CreatedAt,
		IsOwn:      tx.SentBy == viewerHandle || tx.ReceivedBy == viewerHandle,
	}
}

package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger-service/internal/access"
	"ledger-service/internal/domain"
	"ledger-service/internal/repository/memory"
)

var (
	partyA = domain.Party{ID: "user-a", Handle: "9000000001"}
	partyB = domain.Party{ID: "user-b", Handle: "9000000002"}
)

type capturedPublish struct {
	ledgerID string
	view     *domain.LedgerView
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	published []capturedPublish
}

func (f *fakeBroadcaster) Publish(ledgerID string, view *domain.LedgerView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, capturedPublish{ledgerID: ledgerID, view: view})
}

func (f *fakeBroadcaster) all() []capturedPublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedPublish(nil), f.published...)
}

type fakeEvents struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (f *fakeEvents) Publish(topic string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.events = append(f.events, event)
	return nil
}

type fixture struct {
	svc         *Service
	store       *memory.Store
	broadcaster *fakeBroadcaster
	events      *fakeEvents
	ledgerID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	directory := memory.NewDirectory()
	directory.Add(domain.PartyProfile{ID: partyA.ID, Name: "Asha Verma", Handle: partyA.Handle})
	directory.Add(domain.PartyProfile{ID: partyB.ID, Name: "Ravi Kumar", Handle: partyB.Handle})

	logger := zap.NewNop()
	broadcaster := &fakeBroadcaster{}
	evts := &fakeEvents{}
	svc := NewService(store, access.NewGuard(store, logger), directory, broadcaster, evts, logger)

	l, err := store.GetOrCreate(context.Background(), partyA, partyB)
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, broadcaster: broadcaster, events: evts, ledgerID: l.ID}
}

func TestOpenLedger_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.OpenLedger(ctx, partyA.ID, partyB.ID)
	require.NoError(t, err)
	second, err := f.svc.OpenLedger(ctx, partyB.ID, partyA.ID)
	require.NoError(t, err)

	assert.Equal(t, first.LedgerID, second.LedgerID)
	assert.Equal(t, f.ledgerID, first.LedgerID, "the pair resolves to its existing ledger")
	assert.Equal(t, "Ravi Kumar", first.Friend.Name)
	assert.Equal(t, "Asha Verma", second.Friend.Name)
}

func TestOpenLedger_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.OpenLedger(ctx, partyA.ID, partyA.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidParty, "no ledger with yourself")

	_, err = f.svc.OpenLedger(ctx, partyA.ID, "unregistered")
	assert.ErrorIs(t, err, domain.ErrInvalidParty, "friend must resolve in the directory")
}

func TestRecordPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RecordPaid(ctx, f.ledgerID, partyA.ID, decimal.NewFromInt(100), "dinner")
	require.NoError(t, err)

	assert.True(t, res.Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.KindPaid, res.Transaction.Kind)
	assert.Equal(t, partyA.Handle, res.Transaction.SentBy)
	assert.Equal(t, partyB.Handle, res.Transaction.ReceivedBy)
	assert.Equal(t, "Asha Verma", res.Transaction.RecordedBy.Name)
	assert.True(t, res.Transaction.IsOwn)

	published := f.broadcaster.all()
	require.Len(t, published, 1, "exactly one publish per committed append")
	assert.Equal(t, f.ledgerID, published[0].ledgerID)
	require.Len(t, published[0].view.Transactions, 1)

	require.Len(t, f.events.topics, 1)
	assert.Equal(t, "ledger_transaction_recorded", f.events.topics[0])
}

func TestRecordReceived_CounterpartyIsSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RecordReceived(ctx, f.ledgerID, partyB.ID, decimal.NewFromInt(40), "gpay")
	require.NoError(t, err)

	assert.Equal(t, domain.KindReceived, res.Transaction.Kind)
	assert.Equal(t, partyA.Handle, res.Transaction.SentBy)
	assert.Equal(t, partyB.Handle, res.Transaction.ReceivedBy)
	assert.True(t, res.Balance.IsZero(), "settlements never move the balance")
}

// The running example: A pays 100, B acknowledges receiving 40, A pays 20.
func TestRecord_BalanceSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RecordPaid(ctx, f.ledgerID, partyA.ID, decimal.NewFromInt(100), "")
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(100)))

	res, err = f.svc.RecordReceived(ctx, f.ledgerID, partyB.ID, decimal.NewFromInt(40), "")
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(-100)), "B still owes 100 after the settlement note")

	res, err = f.svc.RecordPaid(ctx, f.ledgerID, partyA.ID, decimal.NewFromInt(20), "")
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(120)))

	viewB, err := f.svc.GetLedgerView(ctx, f.ledgerID, partyB.ID)
	require.NoError(t, err)
	assert.True(t, viewB.Balance.Equal(decimal.NewFromInt(-120)))
	assert.Len(t, viewB.Transactions, 3)
}

func TestRecord_PublishesInCommitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := f.svc.RecordPaid(ctx, f.ledgerID, partyA.ID, decimal.NewFromInt(int64(i)), "")
		require.NoError(t, err)
	}

	published := f.broadcaster.all()
	require.Len(t, published, 3)
	for i, p := range published {
		assert.Len(t, p.view.Transactions, i+1, "each update must carry the log as of its commit")
	}
}

func TestRecord_ValidationFailurePublishesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordPaid(ctx, f.ledgerID, partyA.ID, decimal.Zero, "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.RecordPaid(ctx, f.ledgerID, partyA.ID, decimal.RequireFromString("10.005"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	longMemo := strings.Repeat("x", domain.MemoMaxLen+1)
	_, err = f.svc.RecordPaid(ctx, f.ledgerID, partyA.ID, decimal.NewFromInt(10), longMemo)
	assert.ErrorIs(t, err, domain.ErrInvalidMemo)

	assert.Empty(t, f.broadcaster.all())
	assert.Empty(t, f.events.topics)

	view, err := f.svc.GetLedgerView(ctx, f.ledgerID, partyA.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Transactions, "failed appends must leave the log untouched")
}

func TestRecord_AccessDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordPaid(context.Background(), f.ledgerID, "stranger", decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Empty(t, f.broadcaster.all())
}

func TestRecord_LedgerNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordPaid(context.Background(), "missing", partyA.ID, decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)
}

func TestRecord_TrimsMemo(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RecordPaid(context.Background(), f.ledgerID, partyA.ID, decimal.NewFromInt(10), "  chai  ")
	require.NoError(t, err)
	assert.Equal(t, "chai", res.Transaction.Memo)
}

func TestGetLedgerView_AccessDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetLedgerView(context.Background(), f.ledgerID, "stranger")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestGetLedgerView_DirectoryDownStillRenders(t *testing.T) {
	store := memory.NewStore()
	logger := zap.NewNop()
	svc := NewService(store, access.NewGuard(store, logger), memory.NewDirectory(), &fakeBroadcaster{}, nil, logger)

	l, err := store.GetOrCreate(context.Background(), partyA, partyB)
	require.NoError(t, err)

	view, err := svc.GetLedgerView(context.Background(), l.ID, partyA.ID)
	require.NoError(t, err)
	assert.Equal(t, partyB.Handle, view.Friend.Handle, "unresolved friend falls back to the stored handle")
}

func TestListLedgers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partyC := domain.Party{ID: "user-c", Handle: "9000000003"}

	other, err := f.store.GetOrCreate(ctx, partyA, partyC)
	require.NoError(t, err)

	_, err = f.svc.RecordPaid(ctx, f.ledgerID, partyA.ID, decimal.NewFromInt(100), "")
	require.NoError(t, err)
	_, err = f.svc.RecordPaid(ctx, other.ID, partyA.ID, decimal.NewFromInt(25), "")
	require.NoError(t, err)

	summaries, err := f.svc.ListLedgers(ctx, partyA.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, other.ID, summaries[0].LedgerID, "most recently updated first")
	assert.True(t, summaries[0].Balance.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 1, summaries[0].TransactionCount)

	forB, err := f.svc.ListLedgers(ctx, partyB.ID)
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.True(t, forB[0].Balance.Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, "Asha Verma", forB[0].Friend.Name)
}

func TestRecord_NoEventsPublisherConfigured(t *testing.T) {
	store := memory.NewStore()
	logger := zap.NewNop()
	svc := NewService(store, access.NewGuard(store, logger), memory.NewDirectory(), &fakeBroadcaster{}, nil, logger)

	l, err := store.GetOrCreate(context.Background(), partyA, partyB)
	require.NoError(t, err)

	_, err = svc.RecordPaid(context.Background(), l.ID, partyA.ID, decimal.NewFromInt(10), "")
	require.NoError(t, err)
}

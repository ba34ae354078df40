package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

const (
	colLedgers = "ledgers"
	colUsers   = "users"

	opTimeout      = 5 * time.Second
	mutateAttempts = 3
)

// Store persists ledger aggregates in MongoDB, one document per ledger.
// Atomicity relies on a conditional replace keyed on the revision field,
// retried with the mutation re-applied when a concurrent writer wins.
type Store struct {
	ledgers *mongo.Collection
	logger  *zap.Logger
}

func NewStore(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{ledgers: db.Collection(colLedgers), logger: logger}
}

// Migrate creates the unique pair index that backs idempotent GetOrCreate.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.ledgers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "party_a.id", Value: 1}, {Key: "party_b.id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create ledger pair index: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ledgerID string) (*domain.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc ledgerDoc
	err := s.ledgers.FindOne(ctx, bson.M{"_id": ledgerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrLedgerNotFound
		}
		return nil, storageErr("get ledger", err)
	}
	return fromLedgerDoc(&doc)
}

func (s *Store) GetOrCreate(ctx context.Context, a, b domain.Party) (*domain.Ledger, error) {
	if a.ID == b.ID {
		return nil, domain.ErrInvalidParty
	}
	if b.ID < a.ID {
		a, b = b, a
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fresh := toLedgerDoc(domain.NewLedger(uuid.New().String(), a, b))
	filter := bson.M{"party_a.id": a.ID, "party_b.id": b.ID}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc ledgerDoc
	err := s.ledgers.FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": fresh}, opts).Decode(&doc)
	if err != nil {
		return nil, storageErr("get or create ledger", err)
	}
	return fromLedgerDoc(&doc)
}

func (s *Store) ListByParty(ctx context.Context, partyID string) ([]*domain.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"party_a.id": partyID},
		bson.M{"party_b.id": partyID},
	}}
	cursor, err := s.ledgers.Find(ctx, filter)
	if err != nil {
		return nil, storageErr("list ledgers", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.Ledger
	for cursor.Next(ctx) {
		var doc ledgerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, storageErr("decode ledger", err)
		}
		l, err := fromLedgerDoc(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := cursor.Err(); err != nil {
		return nil, storageErr("list ledgers", err)
	}
	return out, nil
}

func (s *Store) Mutate(ctx context.Context, ledgerID string, fn func(*domain.Ledger) error) (*domain.Ledger, error) {
	return repository.MutateWithRetry(ctx, ledgerID, mutateAttempts, s.logger,
		func(ctx context.Context) (*domain.Ledger, error) {
			return s.Get(ctx, ledgerID)
		},
		fn,
		func(ctx context.Context, next *domain.Ledger) (bool, error) {
			opCtx, cancel := context.WithTimeout(ctx, opTimeout)
			defer cancel()
			res, err := s.ledgers.ReplaceOne(opCtx,
				bson.M{"_id": ledgerID, "revision": next.Revision - 1}, toLedgerDoc(next))
			if err != nil {
				return false, storageErr("update ledger", err)
			}
			return res.ModifiedCount == 1, nil
		})
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}

var _ repository.LedgerStore = (*Store)(nil)

// Directory resolves party identities against the users collection.
type Directory struct {
	users *mongo.Collection
}

func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{users: db.Collection(colUsers)}
}

type userDoc struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	Mobile string `bson:"mobile"`
	Avatar string `bson:"avatar,omitempty"`
}

func (d *Directory) Resolve(ctx context.Context, partyID string) (domain.PartyProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc userDoc
	err := d.users.FindOne(ctx, bson.M{"_id": partyID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.PartyProfile{}, fmt.Errorf("party %s not registered", partyID)
		}
		return domain.PartyProfile{}, storageErr("resolve party", err)
	}
	avatar := doc.Avatar
	if avatar == "" {
		avatar = domain.Initials(doc.Name)
	}
	return domain.PartyProfile{ID: doc.ID, Name: doc.Name, Handle: doc.Mobile, Avatar: avatar}, nil
}

var _ repository.PartyDirectory = (*Directory)(nil)

// Document shapes. Amounts are stored as strings so decimals round-trip
// without float drift.

type partyDoc struct {
	ID     string `bson:"id"`
	Handle string `bson:"handle"`
}

type transactionDoc struct {
	ID         string    `bson:"id"`
	Kind       string    `bson:"kind"`
	Amount     string    `bson:"amount"`
	Memo       string    `bson:"memo,omitempty"`
	SentBy     string    `bson:"sent_by"`
	ReceivedBy string    `bson:"received_by"`
	RecordedBy string    `bson:"recorded_by"`
	CreatedAt  time.Time `bson:"created_at"`
}

type ledgerDoc struct {
	ID            string           `bson:"_id"`
	PartyA        partyDoc         `bson:"party_a"`
	PartyB        partyDoc         `bson:"party_b"`
	Transactions  []transactionDoc `bson:"transactions"`
	Balance       string           `bson:"balance"`
	SchemaVersion int              `bson:"schema_version"`
	Revision      int64            `bson:"revision"`
	LastUpdated   time.Time        `bson:"last_updated"`
}

func toLedgerDoc(l *domain.Ledger) *ledgerDoc {
	doc := &ledgerDoc{
		ID:            l.ID,
		PartyA:        partyDoc{ID: l.PartyA.ID, Handle: l.PartyA.Handle},
		PartyB:        partyDoc{ID: l.PartyB.ID, Handle: l.PartyB.Handle},
		Transactions:  make([]transactionDoc, 0, len(l.Transactions)),
		Balance:       l.Balance.String(),
		SchemaVersion: l.SchemaVersion,
		Revision:      l.Revision,
		LastUpdated:   l.LastUpdated,
	}
	for _, tx := range l.Transactions {
		doc.Transactions = append(doc.Transactions, transactionDoc{
			ID:         tx.ID,
			Kind:       string(tx.Kind),
			Amount:     tx.Amount.String(),
			Memo:       tx.Memo,
			SentBy:     tx.SentBy,
			ReceivedBy: tx.ReceivedBy,
			RecordedBy: tx.RecordedBy,
			CreatedAt:  tx.CreatedAt,
		})
	}
	return doc
}

func fromLedgerDoc(doc *ledgerDoc) (*domain.Ledger, error) {
	l := &domain.Ledger{
		ID:            doc.ID,
		PartyA:        domain.Party{ID: doc.PartyA.ID, Handle: doc.PartyA.Handle},
		PartyB:        domain.Party{ID: doc.PartyB.ID, Handle: doc.PartyB.Handle},
		SchemaVersion: doc.SchemaVersion,
		Revision:      doc.Revision,
		LastUpdated:   doc.LastUpdated,
	}
	for _, tx := range doc.Transactions {
		amount, err := decimal.NewFromString(tx.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", tx.Amount, err)
		}
		l.Transactions = append(l.Transactions, domain.Transaction{
			ID:         tx.ID,
			Kind:       domain.TransactionKind(tx.Kind),
			Amount:     amount,
			Memo:       tx.Memo,
			SentBy:     tx.SentBy,
			ReceivedBy: tx.ReceivedBy,
			RecordedBy: tx.RecordedBy,
			CreatedAt:  tx.CreatedAt,
		})
	}
	l.Balance, _ = l.BalanceFor(l.PartyB.Handle)
	return l, nil
}

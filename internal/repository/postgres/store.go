package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

const (
	// opTimeout bounds every storage call so a slow backend fails with
	// StorageUnavailable instead of holding the append path open.
	opTimeout = 5 * time.Second

	// mutateAttempts bounds conditional-write retries before the conflict
	// is surfaced as StorageUnavailable.
	mutateAttempts = 3

	pgUniqueViolation = "23505"
)

// Store persists ledger aggregates in Postgres, one row per ledger with the
// transaction log as jsonb. Lost updates are prevented by a conditional
// write on the revision column, retried with the mutation re-applied
// against the latest row.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

const selectLedger = `
	SELECT id, party_a_id, party_a_handle, party_b_id, party_b_handle,
	       transactions, schema_version, revision, last_updated
	FROM ledgers
`

func (s *Store) Get(ctx context.Context, ledgerID string) (*domain.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, selectLedger+` WHERE id = $1`, ledgerID)
	l, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLedgerNotFound
		}
		return nil, storageErr("get ledger", err)
	}
	return l, nil
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

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledgers (id, party_a_id, party_a_handle, party_b_id, party_b_handle)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (party_a_id, party_b_id) DO NOTHING`,
		uuid.New().String(), a.ID, a.Handle, b.ID, b.Handle)
	if err != nil {
		// A concurrent create can still race the insert; the pair is
		// unique either way, so fall through to the select.
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
			return nil, storageErr("create ledger", err)
		}
	}

	row := s.pool.QueryRow(ctx, selectLedger+` WHERE party_a_id = $1 AND party_b_id = $2`, a.ID, b.ID)
	l, err := scanLedger(row)
	if err != nil {
		return nil, storageErr("get ledger by pair", err)
	}
	return l, nil
}

func (s *Store) ListByParty(ctx context.Context, partyID string) ([]*domain.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, selectLedger+
		` WHERE party_a_id = $1 OR party_b_id = $1 ORDER BY last_updated DESC`, partyID)
	if err != nil {
		return nil, storageErr("list ledgers", err)
	}
	defer rows.Close()

	var out []*domain.Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, storageErr("scan ledger", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
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
			txs, err := json.Marshal(next.Transactions)
			if err != nil {
				return false, fmt.Errorf("encode transactions: %w", err)
			}

			opCtx, cancel := context.WithTimeout(ctx, opTimeout)
			defer cancel()
			tag, err := s.pool.Exec(opCtx, `
				UPDATE ledgers
				SET transactions = $1, balance = $2::numeric, schema_version = $3,
				    revision = revision + 1, last_updated = $4
				WHERE id = $5 AND revision = $6`,
				txs, next.Balance.String(), next.SchemaVersion, next.LastUpdated,
				ledgerID, next.Revision-1)
			if err != nil {
				return false, storageErr("update ledger", err)
			}
			return tag.RowsAffected() == 1, nil
		})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (*domain.Ledger, error) {
	var (
		l   domain.Ledger
		txs []byte
	)
	err := row.Scan(&l.ID, &l.PartyA.ID, &l.PartyA.Handle, &l.PartyB.ID, &l.PartyB.Handle,
		&txs, &l.SchemaVersion, &l.Revision, &l.LastUpdated)
	if err != nil {
		return nil, err
	}
	if len(txs) > 0 {
		if err := json.Unmarshal(txs, &l.Transactions); err != nil {
			return nil, fmt.Errorf("decode transactions: %w", err)
		}
	}
	// The balance column exists for ad-hoc queries only; the authoritative
	// value is always re-derived from the log.
	l.Balance, _ = l.BalanceFor(l.PartyB.Handle)
	return &l, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}

var _ repository.LedgerStore = (*Store)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
)

// Directory resolves party identities against the users table maintained by
// the identity collaborator.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) Resolve(ctx context.Context, partyID string) (domain.PartyProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var p domain.PartyProfile
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, mobile, COALESCE(avatar, '') FROM users WHERE id = $1`, partyID).
		Scan(&p.ID, &p.Name, &p.Handle, &p.Avatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PartyProfile{}, fmt.Errorf("party %s not registered", partyID)
		}
		return domain.PartyProfile{}, storageErr("resolve party", err)
	}
	if p.Avatar == "" {
		p.Avatar = domain.Initials(p.Name)
	}
	return p, nil
}

var _ repository.PartyDirectory = (*Directory)(nil)

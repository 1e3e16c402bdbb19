package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/partner"
)

type PartnerRepository struct {
	pool *pgxpool.Pool
}

func NewPartnerRepository(pool *pgxpool.Pool) *PartnerRepository {
	return &PartnerRepository{pool: pool}
}

func (r *PartnerRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*partner.Entity, error) {
	q := `SELECT id, code, name, signing_secret, is_active, created_at FROM partners WHERE api_key_hash = $1`
	out := &partner.Entity{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, hash).
		Scan(&out.ID, &out.Code, &out.Name, &out.SigningSecret, &out.IsActive, &out.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, partner.ErrPartnerNotFound
		}
		return nil, err
	}
	return out, nil
}

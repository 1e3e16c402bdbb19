package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/lender"
)

type LenderRepository struct {
	pool *pgxpool.Pool
}

func NewLenderRepository(pool *pgxpool.Pool) *LenderRepository {
	return &LenderRepository{pool: pool}
}

const lenderColumns = `id, code, name, status, priority, is_channeling, disbursement_balance, product_codes, created_at, updated_at`

func scanLender(row pgx.Row) (*lender.Entity, error) {
	out := &lender.Entity{}
	err := row.Scan(&out.ID, &out.Code, &out.Name, &out.Status, &out.Priority, &out.IsChanneling,
		&out.DisbursementBalance, &out.ProductCodes, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, lender.ErrLenderNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *LenderRepository) Create(ctx context.Context, in lender.CreateInput) (*lender.Entity, error) {
	q := `
INSERT INTO lenders (code, name, status, priority, is_channeling, disbursement_balance, product_codes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + lenderColumns
	productCodes := in.ProductCodes
	if productCodes == nil {
		productCodes = []string{}
	}
	return scanLender(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		in.Code, in.Name, in.Status, in.Priority, in.IsChanneling, in.DisbursementBalance, productCodes))
}

func (r *LenderRepository) GetByID(ctx context.Context, id string) (*lender.Entity, error) {
	return scanLender(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+lenderColumns+` FROM lenders WHERE id = $1`, id))
}

func (r *LenderRepository) GetByCode(ctx context.Context, code string) (*lender.Entity, error) {
	return scanLender(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+lenderColumns+` FROM lenders WHERE code = $1`, code))
}

func (r *LenderRepository) GetForUpdate(ctx context.Context, id string) (*lender.Entity, error) {
	return scanLender(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+lenderColumns+` FROM lenders WHERE id = $1 FOR UPDATE`, id))
}

func (r *LenderRepository) ListActive(ctx context.Context) ([]lender.Entity, error) {
	q := `SELECT ` + lenderColumns + ` FROM lenders WHERE status = $1 ORDER BY priority ASC, created_at ASC`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, lender.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]lender.Entity, 0)
	for rows.Next() {
		e, err := scanLender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LenderRepository) UpdateStatus(ctx context.Context, lenderID, status string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE lenders SET status = $2, updated_at = NOW() WHERE id = $1`, lenderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lender.ErrLenderNotFound
	}
	return nil
}

// AdjustBalance relies on the disbursement_balance check constraint to
// refuse overdrafts.
func (r *LenderRepository) AdjustBalance(ctx context.Context, lenderID string, delta int64) error {
	q := `UPDATE lenders SET disbursement_balance = disbursement_balance + $2, updated_at = NOW() WHERE id = $1`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, lenderID, delta)
	if err != nil {
		if db.IsCheckViolation(err) {
			return lender.ErrInsufficientLenderBalance
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return lender.ErrLenderNotFound
	}
	return nil
}

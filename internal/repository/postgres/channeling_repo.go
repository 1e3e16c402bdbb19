package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/channeling"
)

type ChannelingRepository struct {
	pool *pgxpool.Pool
}

func NewChannelingRepository(pool *pgxpool.Pool) *ChannelingRepository {
	return &ChannelingRepository{pool: pool}
}

const channelingColumns = `id, loan_id, channeling_type, status, reason, COALESCE(application_id, ''), created_at, updated_at`

func scanChanneling(row pgx.Row) (*channeling.Status, error) {
	out := &channeling.Status{}
	err := row.Scan(&out.ID, &out.LoanID, &out.ChannelingType, &out.Status, &out.Reason, &out.ApplicationID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, channeling.ErrStatusNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *ChannelingRepository) Create(ctx context.Context, s channeling.Status) (*channeling.Status, error) {
	q := `
INSERT INTO channeling_loan_statuses (loan_id, channeling_type, status, reason)
VALUES ($1, $2, $3, $4)
RETURNING ` + channelingColumns
	out, err := scanChanneling(db.Conn(ctx, r.pool).QueryRow(ctx, q, s.LoanID, s.ChannelingType, s.Status, s.Reason))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, channeling.ErrAlreadyStarted
		}
		return nil, err
	}
	return out, nil
}

func (r *ChannelingRepository) GetByLoan(ctx context.Context, loanID string) (*channeling.Status, error) {
	return scanChanneling(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+channelingColumns+` FROM channeling_loan_statuses WHERE loan_id = $1`, loanID))
}

func (r *ChannelingRepository) GetByApplicationIDForUpdate(ctx context.Context, applicationID string) (*channeling.Status, error) {
	return scanChanneling(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+channelingColumns+` FROM channeling_loan_statuses WHERE application_id = $1 FOR UPDATE`, applicationID))
}

func (r *ChannelingRepository) Update(ctx context.Context, s channeling.Status) error {
	q := `
UPDATE channeling_loan_statuses
SET status = $2, reason = $3, application_id = NULLIF($4, ''), updated_at = NOW()
WHERE id = $1
`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, s.ID, s.Status, s.Reason, s.ApplicationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return channeling.ErrStatusNotFound
	}
	return nil
}

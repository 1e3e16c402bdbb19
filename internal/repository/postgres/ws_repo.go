package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/ws"
)

type WSRepository struct {
	pool *pgxpool.Pool
}

func NewWSRepository(pool *pgxpool.Pool) *WSRepository {
	return &WSRepository{pool: pool}
}

func (r *WSRepository) ListLoanStatusEventsSince(ctx context.Context, lastID int64, limit int32) ([]ws.LoanStatusEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT h.id, h.loan_id, l.loan_xid, l.account_id, h.status_old, h.status_new, h.reason, h.created_at
FROM loan_status_histories h
JOIN loans l ON l.id = h.loan_id
WHERE h.id > $1
ORDER BY h.id ASC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ws.LoanStatusEvent, 0)
	for rows.Next() {
		var ev ws.LoanStatusEvent
		if err := rows.Scan(&ev.ID, &ev.LoanID, &ev.LoanXID, &ev.AccountID, &ev.StatusOld, &ev.StatusNew, &ev.Reason, &ev.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *WSRepository) LatestLoanStatusEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM loan_status_histories`).Scan(&id)
	return id, err
}

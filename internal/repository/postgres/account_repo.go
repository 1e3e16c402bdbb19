package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/account"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, customer_id, status, created_at, updated_at`

// Create opens the account together with an empty limit row.
func (r *AccountRepository) Create(ctx context.Context, customerID string) (*account.Account, error) {
	conn := db.Conn(ctx, r.pool)
	out := &account.Account{}
	err := conn.QueryRow(ctx, `
INSERT INTO accounts (customer_id, status) VALUES ($1, $2)
RETURNING `+accountColumns, customerID, account.StatusInactive).
		Scan(&out.ID, &out.CustomerID, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, `INSERT INTO account_limits (account_id) VALUES ($1)`, out.ID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *AccountRepository) GetByCustomerID(ctx context.Context, customerID string) (*account.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE customer_id = $1`, customerID)
}

func (r *AccountRepository) getOne(ctx context.Context, q string, arg any) (*account.Account, error) {
	out := &account.Account{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, arg).
		Scan(&out.ID, &out.CustomerID, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE accounts SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) GetLimit(ctx context.Context, accountID string) (*account.Limit, error) {
	return r.getLimit(ctx, `
SELECT account_id, max_limit, set_limit, available_limit, used_limit, updated_at
FROM account_limits WHERE account_id = $1`, accountID)
}

func (r *AccountRepository) GetLimitForUpdate(ctx context.Context, accountID string) (*account.Limit, error) {
	return r.getLimit(ctx, `
SELECT account_id, max_limit, set_limit, available_limit, used_limit, updated_at
FROM account_limits WHERE account_id = $1
FOR UPDATE`, accountID)
}

func (r *AccountRepository) getLimit(ctx context.Context, q, accountID string) (*account.Limit, error) {
	out := &account.Limit{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, accountID).
		Scan(&out.AccountID, &out.MaxLimit, &out.SetLimit, &out.AvailableLimit, &out.UsedLimit, &out.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, account.ErrLimitNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *AccountRepository) SaveLimit(ctx context.Context, l account.Limit) error {
	q := `
UPDATE account_limits
SET max_limit = $2, set_limit = $3, available_limit = $4, used_limit = $5, updated_at = NOW()
WHERE account_id = $1
`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, l.AccountID, l.MaxLimit, l.SetLimit, l.AvailableLimit, l.UsedLimit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrLimitNotFound
	}
	return nil
}

func (r *AccountRepository) InsertLimitHistory(ctx context.Context, change account.LimitChange) error {
	q := `
INSERT INTO account_limit_histories (account_id, available_old, available_new, used_old, used_new, reason)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err := db.Conn(ctx, r.pool).Exec(ctx, q,
		change.AccountID, change.AvailableOld, change.AvailableNew, change.UsedOld, change.UsedNew, change.Reason)
	return err
}

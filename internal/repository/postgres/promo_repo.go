package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/promo"
)

type PromoRepository struct {
	pool *pgxpool.Pool
}

func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

const promoColumns = `
id, code, is_active, start_at, end_at, min_loan_amount, max_per_customer, total_limit,
transaction_methods, benefit_type, benefit_value, benefit_percent_bps, benefit_max_amount, usage_count`

func scanPromo(row pgx.Row) (*promo.Code, error) {
	out := &promo.Code{}
	err := row.Scan(&out.ID, &out.Code, &out.IsActive, &out.StartAt, &out.EndAt, &out.MinLoanAmount,
		&out.MaxPerCustomer, &out.TotalLimit, &out.TransactionMethods, &out.BenefitType, &out.BenefitValue,
		&out.BenefitPercentBPS, &out.BenefitMaxAmount, &out.UsageCount)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, promo.ErrPromoNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*promo.Code, error) {
	return scanPromo(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT`+promoColumns+` FROM promo_codes WHERE code = $1`, code))
}

func (r *PromoRepository) GetForUpdate(ctx context.Context, id string) (*promo.Code, error) {
	return scanPromo(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT`+promoColumns+` FROM promo_codes WHERE id = $1 FOR UPDATE`, id))
}

func (r *PromoRepository) IncrementUsage(ctx context.Context, id string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE promo_codes SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrPromoNotFound
	}
	return nil
}

func (r *PromoRepository) CountCustomerUsages(ctx context.Context, promoCodeID, customerID string) (int32, error) {
	q := `SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1 AND customer_id = $2 AND status <> $3`
	var n int32
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, promoCodeID, customerID, promo.UsageCancelled).Scan(&n)
	return n, err
}

func (r *PromoRepository) CountReservedUsages(ctx context.Context, promoCodeID string) (int32, error) {
	q := `SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1 AND status = $2`
	var n int32
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, promoCodeID, promo.UsageReserved).Scan(&n)
	return n, err
}

const usageColumns = `id, promo_code_id, customer_id, loan_id, status, benefit_amount, created_at, applied_at`

func scanUsage(row pgx.Row) (*promo.Usage, error) {
	out := &promo.Usage{}
	err := row.Scan(&out.ID, &out.PromoCodeID, &out.CustomerID, &out.LoanID, &out.Status, &out.BenefitAmount, &out.CreatedAt, &out.AppliedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, promo.ErrUsageNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *PromoRepository) CreateUsage(ctx context.Context, u promo.Usage) (*promo.Usage, error) {
	q := `
INSERT INTO promo_code_usages (promo_code_id, customer_id, loan_id, status, benefit_amount)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + usageColumns
	return scanUsage(db.Conn(ctx, r.pool).QueryRow(ctx, q, u.PromoCodeID, u.CustomerID, u.LoanID, u.Status, u.BenefitAmount))
}

func (r *PromoRepository) GetUsageByLoan(ctx context.Context, loanID string) (*promo.Usage, error) {
	return scanUsage(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+usageColumns+` FROM promo_code_usages WHERE loan_id = $1`, loanID))
}

func (r *PromoRepository) UpdateUsageStatus(ctx context.Context, id, status string, at time.Time) error {
	q := `
UPDATE promo_code_usages
SET status = $2, applied_at = CASE WHEN $2 = $4 THEN $3 ELSE applied_at END
WHERE id = $1
`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, id, status, at, promo.UsageApplied)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrUsageNotFound
	}
	return nil
}

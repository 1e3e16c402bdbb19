package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/loan"
)

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanColumns = `
id, loan_xid, account_id, customer_id, lender_id, product_code, transaction_method,
requested_amount, loan_amount, disbursement_amount, provision_fee, interest_rate_monthly_bps,
duration_months, installment_amount, status, disbursement_ref, agreement_signed_at,
fund_transfer_at, created_at, updated_at`

func scanLoan(row pgx.Row) (*loan.Entity, error) {
	out := &loan.Entity{}
	err := row.Scan(
		&out.ID, &out.LoanXID, &out.AccountID, &out.CustomerID, &out.LenderID, &out.ProductCode, &out.TransactionMethod,
		&out.RequestedAmount, &out.LoanAmount, &out.DisbursementAmount, &out.ProvisionFee, &out.InterestRateMonthlyBPS,
		&out.DurationMonths, &out.InstallmentAmount, &out.Status, &out.DisbursementRef, &out.AgreementSignedAt,
		&out.FundTransferAt, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, loan.ErrLoanNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) Create(ctx context.Context, e loan.Entity) (*loan.Entity, error) {
	q := `
INSERT INTO loans (
  account_id, customer_id, lender_id, product_code, transaction_method,
  requested_amount, loan_amount, disbursement_amount, provision_fee,
  interest_rate_monthly_bps, duration_months, installment_amount, status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING` + loanColumns
	return scanLoan(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		e.AccountID, e.CustomerID, e.LenderID, e.ProductCode, e.TransactionMethod,
		e.RequestedAmount, e.LoanAmount, e.DisbursementAmount, e.ProvisionFee,
		e.InterestRateMonthlyBPS, e.DurationMonths, e.InstallmentAmount, e.Status,
	))
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Entity, error) {
	return scanLoan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT`+loanColumns+` FROM loans WHERE id = $1`, id))
}

func (r *LoanRepository) GetForUpdate(ctx context.Context, id string) (*loan.Entity, error) {
	return scanLoan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT`+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
}

func (r *LoanRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]loan.Entity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT` + loanColumns + `
FROM loans
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Entity, 0)
	for rows.Next() {
		e, err := scanLoan(rows)
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

func (r *LoanRepository) ListIDsByStatusBefore(ctx context.Context, status int, before time.Time, limit int32) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id FROM loans WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, status, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus is a compare-and-set on the current status.
func (r *LoanRepository) UpdateStatus(ctx context.Context, id string, from, to int) error {
	q := `UPDATE loans SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return loan.ErrConcurrentUpdate
	}
	return nil
}

func (r *LoanRepository) SetLender(ctx context.Context, id, lenderID string) error {
	return r.exec(ctx, `UPDATE loans SET lender_id = $2, updated_at = NOW() WHERE id = $1`, id, lenderID)
}

func (r *LoanRepository) MarkAgreementSigned(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE loans SET agreement_signed_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
}

func (r *LoanRepository) MarkDisbursed(ctx context.Context, id, ref string, at time.Time) error {
	return r.exec(ctx, `UPDATE loans SET disbursement_ref = $2, fund_transfer_at = $3, updated_at = NOW() WHERE id = $1`, id, ref, at)
}

func (r *LoanRepository) InsertStatusHistory(ctx context.Context, change loan.StatusChange) error {
	q := `INSERT INTO loan_status_histories (loan_id, status_old, status_new, reason) VALUES ($1, $2, $3, $4)`
	_, err := db.Conn(ctx, r.pool).Exec(ctx, q, change.LoanID, change.From, change.To, change.Reason)
	return err
}

func (r *LoanRepository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return loan.ErrLoanNotFound
	}
	return nil
}

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `
id, loan_id, payment_number, due_date, due_amount, installment_principal, installment_interest,
late_fee_amount, paid_principal, paid_interest, paid_late_fee, status, paid_at`

func scanPayment(row pgx.Row) (loan.Payment, error) {
	var p loan.Payment
	err := row.Scan(&p.ID, &p.LoanID, &p.PaymentNumber, &p.DueDate, &p.DueAmount, &p.InstallmentPrincipal,
		&p.InstallmentInterest, &p.LateFeeAmount, &p.PaidPrincipal, &p.PaidInterest, &p.PaidLateFee, &p.Status, &p.PaidAt)
	return p, err
}

func (r *PaymentRepository) CreateBatch(ctx context.Context, payments []loan.Payment) error {
	q := `
INSERT INTO payments (
  loan_id, payment_number, due_date, due_amount, installment_principal, installment_interest, status
) VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	batch := &pgx.Batch{}
	for _, p := range payments {
		batch.Queue(q, p.LoanID, p.PaymentNumber, p.DueDate, p.DueAmount, p.InstallmentPrincipal, p.InstallmentInterest, p.Status)
	}
	return db.Conn(ctx, r.pool).SendBatch(ctx, batch).Close()
}

func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]loan.Payment, error) {
	return r.list(ctx, `SELECT`+paymentColumns+` FROM payments WHERE loan_id = $1 ORDER BY payment_number ASC`, loanID)
}

func (r *PaymentRepository) ListByLoanForUpdate(ctx context.Context, loanID string) ([]loan.Payment, error) {
	return r.list(ctx, `SELECT`+paymentColumns+` FROM payments WHERE loan_id = $1 ORDER BY payment_number ASC FOR UPDATE`, loanID)
}

func (r *PaymentRepository) ListOverdue(ctx context.Context, asOf time.Time, limit int32) ([]loan.Payment, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT` + paymentColumns + `
FROM payments
WHERE status = $1 AND due_date < $2
  AND loan_id IN (SELECT id FROM loans WHERE status IN ($4, $5))
ORDER BY due_date ASC
LIMIT $3`
	return r.list(ctx, q, loan.PaymentNotDue, asOf, limit, loan.StatusCurrent, loan.StatusLate)
}

func (r *PaymentRepository) list(ctx context.Context, q string, args ...any) ([]loan.Payment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p loan.Payment) error {
	q := `
UPDATE payments
SET due_amount = $2, late_fee_amount = $3, paid_principal = $4, paid_interest = $5,
    paid_late_fee = $6, status = $7, paid_at = $8, updated_at = NOW()
WHERE id = $1
`
	_, err := db.Conn(ctx, r.pool).Exec(ctx, q,
		p.ID, p.DueAmount, p.LateFeeAmount, p.PaidPrincipal, p.PaidInterest, p.PaidLateFee, p.Status, p.PaidAt)
	return err
}

func (r *PaymentRepository) InsertRepayment(ctx context.Context, in loan.RepaymentInput) error {
	q := `INSERT INTO repayment_transactions (loan_id, amount, channel, reference, paid_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := db.Conn(ctx, r.pool).Exec(ctx, q, in.LoanID, in.Amount, in.Channel, in.Reference, in.PaidAt)
	return err
}

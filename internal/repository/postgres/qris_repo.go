package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/qris"
)

type QRISRepository struct {
	pool *pgxpool.Pool
}

func NewQRISRepository(pool *pgxpool.Pool) *QRISRepository {
	return &QRISRepository{pool: pool}
}

func (r *QRISRepository) GetLinkage(ctx context.Context, partnerID, partnerCustomerID string) (*qris.Linkage, error) {
	q := `
SELECT id, partner_id, partner_customer_id, customer_id, account_id, status, created_at
FROM qris_partner_linkages
WHERE partner_id = $1 AND partner_customer_id = $2
`
	out := &qris.Linkage{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, partnerID, partnerCustomerID).
		Scan(&out.ID, &out.PartnerID, &out.PartnerCustomerID, &out.CustomerID, &out.AccountID, &out.Status, &out.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, qris.ErrLinkageNotFound
		}
		return nil, err
	}
	return out, nil
}

const qrisTransactionColumns = `
id, partner_id, partner_transaction_id, linkage_id, COALESCE(loan_id::text, ''), merchant_id,
merchant_name, amount, status, created_at, updated_at`

func scanQRISTransaction(row pgx.Row) (*qris.Transaction, error) {
	out := &qris.Transaction{}
	err := row.Scan(&out.ID, &out.PartnerID, &out.PartnerTransactionID, &out.LinkageID, &out.LoanID, &out.MerchantID,
		&out.MerchantName, &out.Amount, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, qris.ErrTransactionNotFound
		}
		return nil, err
	}
	return out, nil
}

// CreateTransaction surfaces the (partner_id, partner_transaction_id)
// constraint as ErrDuplicateTransaction.
func (r *QRISRepository) CreateTransaction(ctx context.Context, t qris.Transaction) (*qris.Transaction, error) {
	q := `
INSERT INTO qris_partner_transactions (partner_id, partner_transaction_id, linkage_id, merchant_id, merchant_name, amount, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING` + qrisTransactionColumns
	out, err := scanQRISTransaction(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		t.PartnerID, t.PartnerTransactionID, t.LinkageID, t.MerchantID, t.MerchantName, t.Amount, t.Status))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, qris.ErrDuplicateTransaction
		}
		return nil, err
	}
	return out, nil
}

func (r *QRISRepository) AttachLoan(ctx context.Context, transactionID, loanID string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE qris_partner_transactions SET loan_id = $2, updated_at = NOW() WHERE id = $1`, transactionID, loanID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return qris.ErrTransactionNotFound
	}
	return nil
}

func (r *QRISRepository) GetTransaction(ctx context.Context, partnerID, partnerTransactionID string) (*qris.Transaction, error) {
	q := `SELECT` + qrisTransactionColumns + ` FROM qris_partner_transactions WHERE partner_id = $1 AND partner_transaction_id = $2`
	return scanQRISTransaction(db.Conn(ctx, r.pool).QueryRow(ctx, q, partnerID, partnerTransactionID))
}

// UpdateStatusByLoan is a no-op for loans that did not originate from QRIS.
func (r *QRISRepository) UpdateStatusByLoan(ctx context.Context, loanID, status string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE qris_partner_transactions SET status = $2, updated_at = NOW() WHERE loan_id = $1`, loanID, status)
	return err
}

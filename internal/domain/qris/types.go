package qris

import (
	"context"
	"errors"
	"time"

	"github.com/julo/lendcore/internal/domain/loan"
)

const (
	LinkageSuccess = "success"

	TransactionPending = "pending"
	TransactionSuccess = "success"
	TransactionFailed  = "failed"

	defaultMinAmount = 10_000
	defaultMaxAmount = 2_000_000
)

var (
	ErrQRISDisabled             = errors.New("qris_disabled")
	ErrLinkageNotFound          = errors.New("qris_linkage_not_found")
	ErrLinkageInactive          = errors.New("qris_linkage_inactive")
	ErrInvalidTransaction       = errors.New("invalid_qris_transaction")
	ErrTransactionAmountTooLow  = errors.New("transaction_amount_too_low")
	ErrTransactionAmountTooHigh = errors.New("transaction_amount_too_high")
	ErrDuplicateTransaction     = errors.New("duplicate_partner_transaction")
	ErrTransactionNotFound      = errors.New("qris_transaction_not_found")
)

type Linkage struct {
	ID                string    `json:"id"`
	PartnerID         string    `json:"partner_id"`
	PartnerCustomerID string    `json:"partner_customer_id"`
	CustomerID        string    `json:"customer_id"`
	AccountID         string    `json:"account_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type Transaction struct {
	ID                   string    `json:"id"`
	PartnerID            string    `json:"partner_id"`
	PartnerTransactionID string    `json:"partner_transaction_id"`
	LinkageID            string    `json:"linkage_id"`
	LoanID               string    `json:"loan_id"`
	MerchantID           string    `json:"merchant_id"`
	MerchantName         string    `json:"merchant_name"`
	Amount               int64     `json:"amount"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type ConfirmInput struct {
	PartnerID            string
	PartnerCustomerID    string
	PartnerTransactionID string
	MerchantID           string
	MerchantName         string
	Amount               int64
}

type Confirmation struct {
	Transaction  Transaction    `json:"transaction"`
	Loan         loan.Entity    `json:"loan"`
	Installments []loan.Payment `json:"installments"`
}

type Repository interface {
	GetLinkage(ctx context.Context, partnerID, partnerCustomerID string) (*Linkage, error)
	// CreateTransaction returns ErrDuplicateTransaction when the partner
	// already submitted the same transaction id.
	CreateTransaction(ctx context.Context, t Transaction) (*Transaction, error)
	AttachLoan(ctx context.Context, transactionID, loanID string) error
	GetTransaction(ctx context.Context, partnerID, partnerTransactionID string) (*Transaction, error)
	UpdateStatusByLoan(ctx context.Context, loanID, status string) error
}

type LoanService interface {
	Create(ctx context.Context, in loan.CreateInput) (*loan.Entity, error)
	SignAgreement(ctx context.Context, loanID, customerID string) (*loan.Entity, error)
	ListPayments(ctx context.Context, loanID string) ([]loan.Payment, error)
}

type FeatureReader interface {
	IsActive(ctx context.Context, name string) bool
	Params(ctx context.Context, name string, out any) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

package promo

import (
	"context"
	"errors"
	"time"
)

const (
	BenefitCashbackFixed            = "cashback_fixed"
	BenefitCashbackPercent          = "cashback_percent"
	BenefitInterestDiscountPercent  = "interest_discount_percent"
	BenefitInstallmentDiscountFixed = "installment_discount_fixed"

	UsageReserved  = "reserved"
	UsageApplied   = "applied"
	UsageCancelled = "cancelled"
)

var (
	ErrPromoNotFound         = errors.New("promo_code_not_found")
	ErrPromoInactive         = errors.New("promo_code_inactive")
	ErrPromoExpired          = errors.New("promo_code_expired")
	ErrPromoMinAmount        = errors.New("promo_code_min_amount_not_met")
	ErrPromoMethodNotAllowed = errors.New("promo_code_transaction_method_not_allowed")
	ErrPromoQuotaExhausted   = errors.New("promo_code_quota_exhausted")
	ErrPromoCustomerLimit    = errors.New("promo_code_customer_limit_reached")
	ErrPromoFeatureOff       = errors.New("promo_code_feature_inactive")
	ErrUsageNotFound         = errors.New("promo_code_usage_not_found")
)

type Code struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	IsActive           bool      `json:"is_active"`
	StartAt            time.Time `json:"start_at"`
	EndAt              time.Time `json:"end_at"`
	MinLoanAmount      int64     `json:"min_loan_amount"`
	MaxPerCustomer     int32     `json:"max_per_customer"`
	TotalLimit         int32     `json:"total_limit"`
	TransactionMethods []string  `json:"transaction_methods"`
	BenefitType        string    `json:"benefit_type"`
	BenefitValue       int64     `json:"benefit_value"`
	BenefitPercentBPS  int32     `json:"benefit_percent_bps"`
	BenefitMaxAmount   int64     `json:"benefit_max_amount"`
	UsageCount         int32     `json:"usage_count"`
}

type Usage struct {
	ID            string     `json:"id"`
	PromoCodeID   string     `json:"promo_code_id"`
	CustomerID    string     `json:"customer_id"`
	LoanID        string     `json:"loan_id"`
	Status        string     `json:"status"`
	BenefitAmount int64      `json:"benefit_amount"`
	CreatedAt     time.Time  `json:"created_at"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
}

type CheckInput struct {
	Code              string `json:"code"`
	CustomerID        string `json:"-"`
	TransactionMethod string `json:"transaction_method"`
	LoanAmount        int64  `json:"loan_amount"`
	DurationMonths    int32  `json:"duration_months"`
	MonthlyInterest   int64  `json:"monthly_interest"`
	InstallmentAmount int64  `json:"installment_amount"`
}

type Evaluation struct {
	Code          Code  `json:"code"`
	BenefitAmount int64 `json:"benefit_amount"`
}

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Code, error)
	GetForUpdate(ctx context.Context, id string) (*Code, error)
	IncrementUsage(ctx context.Context, id string) error
	CountCustomerUsages(ctx context.Context, promoCodeID, customerID string) (int32, error)
	CountReservedUsages(ctx context.Context, promoCodeID string) (int32, error)
	CreateUsage(ctx context.Context, u Usage) (*Usage, error)
	GetUsageByLoan(ctx context.Context, loanID string) (*Usage, error)
	UpdateUsageStatus(ctx context.Context, id, status string, at time.Time) error
}

type FeatureReader interface {
	IsActive(ctx context.Context, name string) bool
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

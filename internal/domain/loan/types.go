package loan

import (
	"context"
	"errors"
	"time"

	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/digisign"
	"github.com/julo/lendcore/internal/domain/lender"
)

const (
	MethodSelf      = "self"
	MethodQRIS      = "qris"
	MethodEcommerce = "ecommerce"

	ProductCashLoan = "cash_loan"
	ProductQRIS     = "qris"
)

var (
	ErrLoanNotFound                = errors.New("loan_not_found")
	ErrInvalidLoanInput            = errors.New("invalid_loan_input")
	ErrInvalidTransition           = errors.New("invalid_status_transition")
	ErrConcurrentUpdate            = errors.New("loan_concurrently_updated")
	ErrLoanNotRepayable            = errors.New("loan_not_repayable")
	ErrInvalidRepayment            = errors.New("invalid_repayment_input")
	ErrRepaymentExceedsOutstanding = errors.New("repayment_exceeds_outstanding")
)

type Entity struct {
	ID                     string     `json:"id"`
	LoanXID                int64      `json:"loan_xid"`
	AccountID              string     `json:"account_id"`
	CustomerID             string     `json:"customer_id"`
	LenderID               string     `json:"lender_id"`
	ProductCode            string     `json:"product_code"`
	TransactionMethod      string     `json:"transaction_method"`
	RequestedAmount        int64      `json:"requested_amount"`
	LoanAmount             int64      `json:"loan_amount"`
	DisbursementAmount     int64      `json:"disbursement_amount"`
	ProvisionFee           int64      `json:"provision_fee"`
	InterestRateMonthlyBPS int32      `json:"interest_rate_monthly_bps"`
	DurationMonths         int32      `json:"duration_months"`
	InstallmentAmount      int64      `json:"installment_amount"`
	Status                 int        `json:"status"`
	DisbursementRef        string     `json:"disbursement_ref"`
	AgreementSignedAt      *time.Time `json:"agreement_signed_at,omitempty"`
	FundTransferAt         *time.Time `json:"fund_transfer_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

type Payment struct {
	ID                   string     `json:"id"`
	LoanID               string     `json:"loan_id"`
	PaymentNumber        int32      `json:"payment_number"`
	DueDate              time.Time  `json:"due_date"`
	DueAmount            int64      `json:"due_amount"`
	InstallmentPrincipal int64      `json:"installment_principal"`
	InstallmentInterest  int64      `json:"installment_interest"`
	LateFeeAmount        int64      `json:"late_fee_amount"`
	PaidPrincipal        int64      `json:"paid_principal"`
	PaidInterest         int64      `json:"paid_interest"`
	PaidLateFee          int64      `json:"paid_late_fee"`
	Status               int        `json:"status"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
}

func (p Payment) PaidAmount() int64 {
	return p.PaidPrincipal + p.PaidInterest + p.PaidLateFee
}

func (p Payment) Outstanding() int64 {
	return p.DueAmount - p.PaidAmount()
}

func (p Payment) IsPaid() bool {
	return IsPaidPaymentStatus(p.Status)
}

type CreateInput struct {
	AccountID              string
	CustomerID             string
	ProductCode            string
	TransactionMethod      string
	Amount                 int64
	DurationMonths         int32
	InterestRateMonthlyBPS int32
	ProvisionRateBPS       int32
	PromoCode              string
	StartDate              time.Time
}

type RepaymentInput struct {
	LoanID    string    `json:"loan_id"`
	Amount    int64     `json:"amount"`
	Channel   string    `json:"channel"`
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"paid_at"`
}

type RepaymentResult struct {
	Loan          *Entity   `json:"loan"`
	Payments      []Payment `json:"payments"`
	PrincipalPaid int64     `json:"principal_paid"`
	InterestPaid  int64     `json:"interest_paid"`
	LateFeePaid   int64     `json:"late_fee_paid"`
}

type StatusChange struct {
	LoanID     string
	AccountID  string
	CustomerID string
	LenderID   string
	From       int
	To         int
	Reason     string
}

// StatusHook runs inside the transaction that changed the loan status.
type StatusHook func(ctx context.Context, change StatusChange) error

type PromoRequest struct {
	Code              string
	CustomerID        string
	LoanID            string
	TransactionMethod string
	LoanAmount        int64
	DurationMonths    int32
	MonthlyInterest   int64
	InstallmentAmount int64
}

type Repository interface {
	Create(ctx context.Context, e Entity) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	GetForUpdate(ctx context.Context, id string) (*Entity, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]Entity, error)
	ListIDsByStatusBefore(ctx context.Context, status int, before time.Time, limit int32) ([]string, error)
	UpdateStatus(ctx context.Context, id string, from, to int) error
	SetLender(ctx context.Context, id, lenderID string) error
	MarkAgreementSigned(ctx context.Context, id string, at time.Time) error
	MarkDisbursed(ctx context.Context, id, ref string, at time.Time) error
	InsertStatusHistory(ctx context.Context, change StatusChange) error
}

type PaymentRepository interface {
	CreateBatch(ctx context.Context, payments []Payment) error
	ListByLoan(ctx context.Context, loanID string) ([]Payment, error)
	ListByLoanForUpdate(ctx context.Context, loanID string) ([]Payment, error)
	ListOverdue(ctx context.Context, asOf time.Time, limit int32) ([]Payment, error)
	Update(ctx context.Context, p Payment) error
	InsertRepayment(ctx context.Context, in RepaymentInput) error
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}

type AccountService interface {
	EnsureUsable(ctx context.Context, accountID string) (*account.Account, error)
	Decrease(ctx context.Context, accountID string, amount int64, reason string) (*account.Limit, error)
	Increase(ctx context.Context, accountID string, amount int64, reason string) (*account.Limit, error)
}

type LenderService interface {
	Get(ctx context.Context, lenderID string) (*lender.Entity, error)
	Select(ctx context.Context, c lender.Criteria) (*lender.Entity, error)
	Reserve(ctx context.Context, lenderID string, amount int64) error
	Release(ctx context.Context, lenderID string, amount int64) error
}

type PromoReserver interface {
	Reserve(ctx context.Context, req PromoRequest) (int64, error)
}

type AgreementSigner interface {
	Sign(ctx context.Context, in digisign.SignInput) (*digisign.Signature, error)
}

// ChannelingStarter hands a signed loan to a channeling lender.
type ChannelingStarter interface {
	Start(ctx context.Context, loanID, channelingType string) error
}

type FeatureReader interface {
	IsActive(ctx context.Context, name string) bool
	Params(ctx context.Context, name string, out any) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

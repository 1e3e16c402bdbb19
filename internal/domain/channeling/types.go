package channeling

import (
	"context"
	"errors"
	"time"

	"github.com/julo/lendcore/internal/domain/lender"
	"github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/partner/dbs"
)

const (
	TypeDBS = "dbs"

	StatusPending = "pending"
	StatusProcess = "process"
	StatusSuccess = "success"
	StatusFailed  = "failed"

	TopicSubmit = "channeling_submit"
)

var (
	ErrStatusNotFound  = errors.New("channeling_status_not_found")
	ErrAlreadyStarted  = errors.New("channeling_already_started")
	ErrInvalidPayload  = errors.New("invalid_channeling_payload")
	ErrUnsupportedType = errors.New("unsupported_channeling_type")
)

type Status struct {
	ID             string    `json:"id"`
	LoanID         string    `json:"loan_id"`
	ChannelingType string    `json:"channeling_type"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason"`
	ApplicationID  string    `json:"application_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s Status) IsFinal() bool {
	return s.Status == StatusSuccess || s.Status == StatusFailed
}

// WebhookReply is the sealed acknowledgement returned to DBS.
type WebhookReply struct {
	Body      string
	Signature string
}

type Repository interface {
	// Create returns ErrAlreadyStarted when the loan already has a status.
	Create(ctx context.Context, s Status) (*Status, error)
	GetByLoan(ctx context.Context, loanID string) (*Status, error)
	GetByApplicationIDForUpdate(ctx context.Context, applicationID string) (*Status, error)
	Update(ctx context.Context, s Status) error
}

type LoanService interface {
	Get(ctx context.Context, loanID string) (*loan.Entity, error)
	ChangeStatus(ctx context.Context, loanID string, to int, reason string) (*loan.Entity, error)
	ReassignLender(ctx context.Context, loanID, lenderID string) (*loan.Entity, error)
}

type LenderSelector interface {
	Select(ctx context.Context, c lender.Criteria) (*lender.Entity, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}

type Envelope interface {
	Encrypt(plain []byte) (string, error)
	Decrypt(encoded string) ([]byte, error)
	Sign(body []byte) string
	Verify(body []byte, signature string) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Envelope = (*dbs.Cipher)(nil)

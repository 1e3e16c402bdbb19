package lender

import (
	"context"
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	ErrLenderNotFound            = errors.New("lender_not_found")
	ErrNoLenderAvailable         = errors.New("no_lender_available")
	ErrInsufficientLenderBalance = errors.New("insufficient_lender_balance")
)

type Entity struct {
	ID                  string    `json:"id"`
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	Status              string    `json:"status"`
	Priority            int32     `json:"priority"`
	IsChanneling        bool      `json:"is_channeling"`
	DisbursementBalance int64     `json:"disbursement_balance"`
	ProductCodes        []string  `json:"product_codes"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type CreateInput struct {
	Code                string   `json:"code"`
	Name                string   `json:"name"`
	Status              string   `json:"status"`
	Priority            int32    `json:"priority"`
	IsChanneling        bool     `json:"is_channeling"`
	DisbursementBalance int64    `json:"disbursement_balance"`
	ProductCodes        []string `json:"product_codes"`
}

// Criteria narrows lender matchmaking for a single loan.
type Criteria struct {
	ProductCode     string
	Amount          int64
	ExcludeIDs      []string
	AllowChanneling bool
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	GetByCode(ctx context.Context, code string) (*Entity, error)
	GetForUpdate(ctx context.Context, id string) (*Entity, error)
	ListActive(ctx context.Context) ([]Entity, error)
	UpdateStatus(ctx context.Context, lenderID, status string) error
	AdjustBalance(ctx context.Context, lenderID string, delta int64) error
}

type FeatureReader interface {
	Params(ctx context.Context, name string, out any) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func (e Entity) Serves(productCode string) bool {
	if len(e.ProductCodes) == 0 {
		return true
	}
	for _, p := range e.ProductCodes {
		if p == productCode {
			return true
		}
	}
	return false
}

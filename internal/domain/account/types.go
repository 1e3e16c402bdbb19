package account

import (
	"context"
	"errors"
	"time"
)

const (
	StatusInactive      = 410
	StatusActive        = 420
	StatusActiveInGrace = 421
	StatusSuspended     = 430
	StatusDeactivated   = 432
)

var (
	ErrAccountNotFound   = errors.New("account_not_found")
	ErrAccountNotActive  = errors.New("account_not_active")
	ErrLimitNotFound     = errors.New("account_limit_not_found")
	ErrInsufficientLimit = errors.New("insufficient_limit")
	ErrInvalidAmount     = errors.New("invalid_limit_amount")
	ErrInvalidLimit      = errors.New("invalid_limit")
)

type Account struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Status     int       `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Limit struct {
	AccountID      string    `json:"account_id"`
	MaxLimit       int64     `json:"max_limit"`
	SetLimit       int64     `json:"set_limit"`
	AvailableLimit int64     `json:"available_limit"`
	UsedLimit      int64     `json:"used_limit"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type LimitChange struct {
	AccountID    string
	AvailableOld int64
	AvailableNew int64
	UsedOld      int64
	UsedNew      int64
	Reason       string
}

type Repository interface {
	Create(ctx context.Context, customerID string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByCustomerID(ctx context.Context, customerID string) (*Account, error)
	UpdateStatus(ctx context.Context, id string, status int) error
	GetLimit(ctx context.Context, accountID string) (*Limit, error)
	GetLimitForUpdate(ctx context.Context, accountID string) (*Limit, error)
	SaveLimit(ctx context.Context, l Limit) error
	InsertLimitHistory(ctx context.Context, change LimitChange) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

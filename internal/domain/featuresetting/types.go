package featuresetting

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	QRISLoan             = "qris_loan"
	QRISTransactionLimit = "qris_transaction_limit"
	OTPSetting           = "otp_setting"
	PromoCode            = "promo_code"
	DBSChanneling        = "dbs_channeling"
	LenderMatchmaking    = "lender_matchmaking"
	LateFee              = "late_fee"
)

var (
	ErrNotFound      = errors.New("feature_setting_not_found")
	ErrInactive      = errors.New("feature_setting_inactive")
	ErrInvalidParams = errors.New("invalid_feature_parameters")
)

type Setting struct {
	ID          int64           `json:"id"`
	FeatureName string          `json:"feature_name"`
	IsActive    bool            `json:"is_active"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type UpdateInput struct {
	IsActive   *bool
	Parameters json.RawMessage
}

type Repository interface {
	GetByName(ctx context.Context, name string) (*Setting, error)
	List(ctx context.Context) ([]Setting, error)
	Update(ctx context.Context, name string, in UpdateInput) (*Setting, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

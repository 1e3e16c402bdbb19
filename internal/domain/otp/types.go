package otp

import (
	"context"
	"errors"
	"time"

	"github.com/julo/lendcore/internal/notify"
)

const (
	ActionRegister = "register"
	ActionResetPIN = "reset_pin"
	ActionLogin    = "login"
)

var (
	ErrOTPInvalidInput    = errors.New("invalid_otp_input")
	ErrOTPMaxRequest      = errors.New("otp_max_request_exceeded")
	ErrOTPResendTooSoon   = errors.New("otp_resend_too_soon")
	ErrOTPNotFound        = errors.New("otp_not_found")
	ErrOTPMaxValidate     = errors.New("otp_max_validate_exceeded")
	ErrOTPInvalid         = errors.New("otp_invalid")
	ErrOTPSessionInvalid  = errors.New("otp_session_invalid")
	ErrChannelUnavailable = errors.New("otp_channel_unavailable")
)

// Settings mirrors the otp_setting feature parameters.
type Settings struct {
	ExpirySeconds        int64 `json:"expiry_seconds"`
	WaitTimeSeconds      int64 `json:"wait_time_seconds"`
	MaxRequest           int64 `json:"max_request"`
	RequestWindowSeconds int64 `json:"request_window_seconds"`
	MaxValidate          int64 `json:"max_validate"`
	Digits               int   `json:"digits"`
	SessionTTLSeconds    int64 `json:"session_ttl_seconds"`
}

func DefaultSettings() Settings {
	return Settings{
		ExpirySeconds:        300,
		WaitTimeSeconds:      60,
		MaxRequest:           3,
		RequestWindowSeconds: 1800,
		MaxValidate:          3,
		Digits:               6,
		SessionTTLSeconds:    600,
	}
}

type RequestInput struct {
	Destination string `json:"destination"`
	Channel     string `json:"channel"`
	Action      string `json:"action"`
}

type RequestResult struct {
	RequestID         string    `json:"request_id"`
	ExpiresAt         time.Time `json:"expires_at"`
	ResendAt          time.Time `json:"resend_at"`
	RemainingRequests int64     `json:"remaining_requests"`
}

type ValidateInput struct {
	Destination string `json:"destination"`
	Action      string `json:"action"`
	Code        string `json:"code"`
}

type Session struct {
	Token     string    `json:"session_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type record struct {
	RequestID string `json:"request_id"`
	Hash      string `json:"hash"`
	Channel   string `json:"channel"`
}

type sessionRecord struct {
	Action      string `json:"action"`
	Destination string `json:"destination"`
}

// Store is the subset of the redis adapter the OTP flow needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetDel(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type FeatureReader interface {
	Params(ctx context.Context, name string, out any) error
}

type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

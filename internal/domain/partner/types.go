package partner

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPartnerNotFound   = errors.New("partner_not_found")
	ErrPartnerInactive   = errors.New("partner_inactive")
	ErrMissingCredential = errors.New("missing_partner_credentials")
	ErrStaleTimestamp    = errors.New("stale_request_timestamp")
	ErrInvalidSignature  = errors.New("invalid_request_signature")
)

type Entity struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	SigningSecret string    `json:"-"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Request is the signed part of an inbound partner call.
type Request struct {
	APIKey    string
	Timestamp string
	Signature string
	Method    string
	Path      string
	Body      []byte
}

type Repository interface {
	GetByAPIKeyHash(ctx context.Context, hash string) (*Entity, error)
}

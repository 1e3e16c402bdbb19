package digisign

import (
	"context"
	"errors"
	"time"
)

const DocumentLoanAgreement = "loan_agreement"

var (
	ErrKeyNotFound       = errors.New("signer_key_not_found")
	ErrSignatureNotFound = errors.New("signature_not_found")
	ErrInvalidDocument   = errors.New("invalid_document")
	ErrSignatureMismatch = errors.New("signature_mismatch")
)

type SignerKey struct {
	CustomerID          string
	PublicKeyPEM        string
	EncryptedPrivateKey []byte
	Fingerprint         string
	CreatedAt           time.Time
}

type Signature struct {
	ID             string    `json:"id"`
	LoanID         string    `json:"loan_id"`
	CustomerID     string    `json:"customer_id"`
	DocumentType   string    `json:"document_type"`
	DocumentHash   string    `json:"document_hash"`
	Signature      string    `json:"signature"`
	KeyFingerprint string    `json:"key_fingerprint"`
	SignedAt       time.Time `json:"signed_at"`
}

type SignInput struct {
	CustomerID   string
	LoanID       string
	DocumentType string
	Content      []byte
}

type Repository interface {
	GetKey(ctx context.Context, customerID string) (*SignerKey, error)
	// CreateKey stores k unless the customer already has a key, and returns
	// the stored key either way.
	CreateKey(ctx context.Context, k SignerKey) (*SignerKey, error)
	InsertSignature(ctx context.Context, s Signature) (*Signature, error)
	GetSignature(ctx context.Context, id string) (*Signature, error)
}

type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

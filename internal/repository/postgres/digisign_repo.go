package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/digisign"
)

type DigisignRepository struct {
	pool *pgxpool.Pool
}

func NewDigisignRepository(pool *pgxpool.Pool) *DigisignRepository {
	return &DigisignRepository{pool: pool}
}

func (r *DigisignRepository) GetKey(ctx context.Context, customerID string) (*digisign.SignerKey, error) {
	q := `SELECT customer_id, public_key_pem, encrypted_private_key, fingerprint, created_at FROM signer_keys WHERE customer_id = $1`
	out := &digisign.SignerKey{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, customerID).
		Scan(&out.CustomerID, &out.PublicKeyPEM, &out.EncryptedPrivateKey, &out.Fingerprint, &out.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, digisign.ErrKeyNotFound
		}
		return nil, err
	}
	return out, nil
}

// CreateKey keeps the first key written for a customer; a concurrent
// writer reads back the winner.
func (r *DigisignRepository) CreateKey(ctx context.Context, k digisign.SignerKey) (*digisign.SignerKey, error) {
	q := `
INSERT INTO signer_keys (customer_id, public_key_pem, encrypted_private_key, fingerprint)
VALUES ($1, $2, $3, $4)
ON CONFLICT (customer_id) DO NOTHING
`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, k.CustomerID, k.PublicKeyPEM, k.EncryptedPrivateKey, k.Fingerprint); err != nil {
		return nil, err
	}
	return r.GetKey(ctx, k.CustomerID)
}

const signatureColumns = `id, loan_id, customer_id, document_type, document_hash, signature, key_fingerprint, signed_at`

func (r *DigisignRepository) InsertSignature(ctx context.Context, s digisign.Signature) (*digisign.Signature, error) {
	q := `
INSERT INTO document_signatures (loan_id, customer_id, document_type, document_hash, signature, key_fingerprint, signed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + signatureColumns
	out := &digisign.Signature{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q,
		s.LoanID, s.CustomerID, s.DocumentType, s.DocumentHash, s.Signature, s.KeyFingerprint, s.SignedAt,
	).Scan(&out.ID, &out.LoanID, &out.CustomerID, &out.DocumentType, &out.DocumentHash, &out.Signature, &out.KeyFingerprint, &out.SignedAt)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DigisignRepository) GetSignature(ctx context.Context, id string) (*digisign.Signature, error) {
	out := &digisign.Signature{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+signatureColumns+` FROM document_signatures WHERE id = $1`, id).
		Scan(&out.ID, &out.LoanID, &out.CustomerID, &out.DocumentType, &out.DocumentHash, &out.Signature, &out.KeyFingerprint, &out.SignedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, digisign.ErrSignatureNotFound
		}
		return nil, err
	}
	return out, nil
}

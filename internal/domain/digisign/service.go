package digisign

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

const keyBits = 2048

type Service struct {
	repo   Repository
	sealer Sealer
	now    func() time.Time
}

func NewService(repo Repository, sealer Sealer) *Service {
	return &Service{
		repo:   repo,
		sealer: sealer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DocumentHash is the SHA3-256 fingerprint stored alongside each signature.
func DocumentHash(content []byte) string {
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// EnsureKey returns the customer's signing key, generating one on first use.
func (s *Service) EnsureKey(ctx context.Context, customerID string) (*SignerKey, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrKeyNotFound
	}
	existing, err := s.repo.GetKey(ctx, customerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate signer key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	sealed, err := s.sealer.Seal(der)
	if err != nil {
		return nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	fp := sha256.Sum256(pubDER)

	return s.repo.CreateKey(ctx, SignerKey{
		CustomerID:          customerID,
		PublicKeyPEM:        string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		EncryptedPrivateKey: sealed,
		Fingerprint:         hex.EncodeToString(fp[:]),
		CreatedAt:           s.now(),
	})
}

func (s *Service) Sign(ctx context.Context, in SignInput) (*Signature, error) {
	if len(in.Content) == 0 || strings.TrimSpace(in.LoanID) == "" || strings.TrimSpace(in.DocumentType) == "" {
		return nil, ErrInvalidDocument
	}
	key, err := s.EnsureKey(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	priv, err := s.privateKey(key)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(in.Content)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign document: %w", err)
	}

	return s.repo.InsertSignature(ctx, Signature{
		LoanID:         in.LoanID,
		CustomerID:     in.CustomerID,
		DocumentType:   in.DocumentType,
		DocumentHash:   DocumentHash(in.Content),
		Signature:      base64.StdEncoding.EncodeToString(sig),
		KeyFingerprint: key.Fingerprint,
		SignedAt:       s.now(),
	})
}

// Verify checks that content is the document referenced by signatureID and
// that the stored signature matches the signer's public key.
func (s *Service) Verify(ctx context.Context, signatureID string, content []byte) error {
	sig, err := s.repo.GetSignature(ctx, signatureID)
	if err != nil {
		return err
	}
	if DocumentHash(content) != sig.DocumentHash {
		return ErrSignatureMismatch
	}
	key, err := s.repo.GetKey(ctx, sig.CustomerID)
	if err != nil {
		return err
	}
	if key.Fingerprint != sig.KeyFingerprint {
		return ErrSignatureMismatch
	}
	pub, err := parsePublicKey(key.PublicKeyPEM)
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		return ErrSignatureMismatch
	}
	digest := sha256.Sum256(content)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], raw); err != nil {
		return ErrSignatureMismatch
	}
	return nil
}

func (s *Service) privateKey(key *SignerKey) (*rsa.PrivateKey, error) {
	der, err := s.sealer.Open(key.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("open signer key: %w", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected signer key type %T", parsed)
	}
	return priv, nil
}

func parsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("invalid public key pem")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", parsed)
	}
	return pub, nil
}

package partner

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const timestampSkew = 5 * time.Minute

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Authenticate resolves the partner behind an API key and checks the
// request signature:
//
//	hex(HMAC-SHA256(secret, METHOD:path:timestamp:hex(sha256(body))))
//
// The timestamp is unix seconds and must be within five minutes of now.
func (s *Service) Authenticate(ctx context.Context, req Request) (*Entity, error) {
	if strings.TrimSpace(req.APIKey) == "" || strings.TrimSpace(req.Signature) == "" || strings.TrimSpace(req.Timestamp) == "" {
		return nil, ErrMissingCredential
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(req.Timestamp), 10, 64)
	if err != nil {
		return nil, ErrStaleTimestamp
	}
	if d := s.now().Sub(time.Unix(ts, 0)); d > timestampSkew || d < -timestampSkew {
		return nil, ErrStaleTimestamp
	}

	p, err := s.repo.GetByAPIKeyHash(ctx, HashAPIKey(req.APIKey))
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrPartnerInactive
	}

	want := Sign(p.SigningSecret, req.Method, req.Path, req.Timestamp, req.Body)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(req.Signature)))) {
		return nil, ErrInvalidSignature
	}
	return p, nil
}

func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func Sign(secret, method, path, timestamp string, body []byte) string {
	bodySum := sha256.Sum256(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.ToUpper(method) + ":" + path + ":" + timestamp + ":" + hex.EncodeToString(bodySum[:])))
	return hex.EncodeToString(mac.Sum(nil))
}

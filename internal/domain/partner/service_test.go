package partner

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoStub map[string]*Entity

func (r repoStub) GetByAPIKeyHash(_ context.Context, hash string) (*Entity, error) {
	if p, ok := r[hash]; ok {
		return p, nil
	}
	return nil, ErrPartnerNotFound
}

func newTestService(now time.Time) *Service {
	svc := NewService(repoStub{
		HashAPIKey("amar-key"):    {ID: "partner-1", Code: "amar", SigningSecret: "s3cret", IsActive: true},
		HashAPIKey("retired-key"): {ID: "partner-2", Code: "old", SigningSecret: "x", IsActive: false},
	})
	svc.now = func() time.Time { return now }
	return svc
}

func TestAuthenticate(t *testing.T) {
	now := time.Unix(1_790_000_000, 0).UTC()
	svc := newTestService(now)
	body := []byte(`{"amount":50000}`)
	ts := strconv.FormatInt(now.Unix(), 10)

	p, err := svc.Authenticate(context.Background(), Request{
		APIKey:    "amar-key",
		Timestamp: ts,
		Signature: Sign("s3cret", "post", "/v1/partner/qris/transactions/confirm", ts, body),
		Method:    "POST",
		Path:      "/v1/partner/qris/transactions/confirm",
		Body:      body,
	})
	require.NoError(t, err)
	assert.Equal(t, "partner-1", p.ID)
}

func TestAuthenticateRejections(t *testing.T) {
	now := time.Unix(1_790_000_000, 0).UTC()
	svc := newTestService(now)
	body := []byte(`{}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	stale := strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10)
	good := Sign("s3cret", "POST", "/p", ts, body)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"missing key", Request{Timestamp: ts, Signature: good}, ErrMissingCredential},
		{"stale timestamp", Request{APIKey: "amar-key", Timestamp: stale, Signature: Sign("s3cret", "POST", "/p", stale, body)}, ErrStaleTimestamp},
		{"garbage timestamp", Request{APIKey: "amar-key", Timestamp: "yesterday", Signature: good}, ErrStaleTimestamp},
		{"unknown key", Request{APIKey: "nope", Timestamp: ts, Signature: good}, ErrPartnerNotFound},
		{"inactive partner", Request{APIKey: "retired-key", Timestamp: ts, Signature: good}, ErrPartnerInactive},
		{"tampered body", Request{APIKey: "amar-key", Timestamp: ts, Signature: good, Body: []byte(`{"x":1}`)}, ErrInvalidSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			req.Method = "POST"
			req.Path = "/p"
			if req.Body == nil {
				req.Body = body
			}
			_, err := svc.Authenticate(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

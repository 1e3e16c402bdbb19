package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/domain/partner"
	"github.com/julo/lendcore/internal/http/response"
)

const (
	PartnerAPIKeyHeader    = "X-Api-Key"
	PartnerTimestampHeader = "X-Timestamp"
	PartnerSignatureHeader = "X-Signature"
)

type PartnerAuthenticator interface {
	Authenticate(ctx context.Context, req partner.Request) (*partner.Entity, error)
}

// RequirePartner verifies the signed partner headers. The body is read for
// the signature and restored for the handler.
func RequirePartner(authn PartnerAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			raw, err := io.ReadAll(c.Request.Body)
			if err != nil {
				response.AbortPartner(c, http.StatusBadRequest, "4000000", "Invalid Request")
				return
			}
			body = raw
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		}

		p, err := authn.Authenticate(c.Request.Context(), partner.Request{
			APIKey:    c.GetHeader(PartnerAPIKeyHeader),
			Timestamp: c.GetHeader(PartnerTimestampHeader),
			Signature: c.GetHeader(PartnerSignatureHeader),
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Body:      body,
		})
		if err != nil {
			switch {
			case errors.Is(err, partner.ErrMissingCredential),
				errors.Is(err, partner.ErrStaleTimestamp),
				errors.Is(err, partner.ErrInvalidSignature),
				errors.Is(err, partner.ErrPartnerNotFound):
				response.AbortPartner(c, http.StatusUnauthorized, "4010000", "Unauthorized")
			case errors.Is(err, partner.ErrPartnerInactive):
				response.AbortPartner(c, http.StatusForbidden, "4030000", "Partner Inactive")
			default:
				response.AbortPartner(c, http.StatusInternalServerError, "5000000", "General Error")
			}
			return
		}

		c.Set("partner_id", p.ID)
		c.Set("partner_code", p.Code)
		c.Next()
	}
}

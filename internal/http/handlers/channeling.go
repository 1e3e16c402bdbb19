package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/domain/channeling"
	"github.com/julo/lendcore/internal/observability"
	"github.com/julo/lendcore/internal/partner/dbs"
)

const dbsSignatureHeader = "X-Signature"

type ChannelingService interface {
	HandleLoanStatusWebhook(ctx context.Context, body []byte, signature string) (*channeling.WebhookReply, error)
}

type ChannelingHandler struct {
	channelingService ChannelingService
}

func NewChannelingHandler(channelingService ChannelingService) *ChannelingHandler {
	return &ChannelingHandler{channelingService: channelingService}
}

// DBSLoanStatus answers the DBS callback with an encrypted, signed
// acknowledgement. Envelope failures get a bare status since the caller
// could not read a sealed reply anyway.
func (h *ChannelingHandler) DBSLoanStatus(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.Status(http.StatusBadRequest)
		return
	}

	reply, err := h.channelingService.HandleLoanStatusWebhook(c.Request.Context(), body, c.GetHeader(dbsSignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, dbs.ErrInvalidSignature):
			c.Status(http.StatusUnauthorized)
		case errors.Is(err, dbs.ErrInvalidCiphertext), errors.Is(err, channeling.ErrInvalidPayload):
			c.Status(http.StatusBadRequest)
		default:
			observability.CtxError(c.Request.Context(), slog.Default(), "dbs webhook failed", "error", err)
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Header(dbsSignatureHeader, reply.Signature)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(reply.Body))
}

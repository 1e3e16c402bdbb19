package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/julo/lendcore/internal/http/response"
	"github.com/julo/lendcore/internal/http/validation"
	"github.com/julo/lendcore/internal/observability"
)

// errorStatus pairs a domain sentinel with the HTTP status it surfaces as.
// The sentinel text doubles as the error code in the envelope.
type errorStatus struct {
	err    error
	status int
}

// writeError answers with the first matching entry. Anything unmatched is
// logged and reported as internal_error.
func writeError(c *gin.Context, err error, table []errorStatus) {
	for _, e := range table {
		if errors.Is(err, e.err) {
			response.Error(c, e.status, e.err.Error())
			return
		}
	}
	observability.CtxError(c.Request.Context(), slog.Default(), "request failed",
		"method", c.Request.Method,
		"route", c.FullPath(),
		"error", err,
	)
	response.Error(c, http.StatusInternalServerError, "internal_error")
}

func bindError(c *gin.Context, err error) {
	response.Error(c, http.StatusBadRequest, validation.Codes(err)...)
}

func currentUserID(c *gin.Context) (string, bool) {
	uid := c.GetString("user_id")
	if uid == "" {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return uid, true
}

// pathID reads a UUID path parameter. Malformed ids answer notFoundCode
// with a 404 instead of reaching the database.
func pathID(c *gin.Context, name, notFoundCode string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if uuid.Validate(id) != nil {
		response.Error(c, http.StatusNotFound, notFoundCode)
		return "", false
	}
	return id, true
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/http/response"
)

type AccountService interface {
	GetByCustomer(ctx context.Context, customerID string) (*account.Account, error)
	GetLimit(ctx context.Context, accountID string) (*account.Limit, error)
}

type AccountHandler struct {
	accounts AccountService
}

var accountErrors = []errorStatus{
	{account.ErrAccountNotFound, http.StatusNotFound},
	{account.ErrLimitNotFound, http.StatusNotFound},
}

func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) GetLimit(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	acc, err := h.accounts.GetByCustomer(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, accountErrors)
		return
	}
	limit, err := h.accounts.GetLimit(c.Request.Context(), acc.ID)
	if err != nil {
		writeError(c, err, accountErrors)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"account_status":  acc.Status,
		"set_limit":       limit.SetLimit,
		"available_limit": limit.AvailableLimit,
		"used_limit":      limit.UsedLimit,
		"updated_at":      limit.UpdatedAt,
	})
}

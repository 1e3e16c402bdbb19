package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/digisign"
	"github.com/julo/lendcore/internal/domain/lender"
	loandomain "github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/domain/promo"
	"github.com/julo/lendcore/internal/http/response"
)

type LoanService interface {
	Create(ctx context.Context, in loandomain.CreateInput) (*loandomain.Entity, error)
	Get(ctx context.Context, loanID string) (*loandomain.Entity, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]loandomain.Entity, error)
	ListPayments(ctx context.Context, loanID string) ([]loandomain.Payment, error)
	SignAgreement(ctx context.Context, loanID, customerID string) (*loandomain.Entity, error)
	Cancel(ctx context.Context, loanID, customerID string) (*loandomain.Entity, error)
}

// LoanPricing holds the cash loan rates applied to customer requests.
type LoanPricing struct {
	InterestRateMonthlyBPS int32
	ProvisionRateBPS       int32
}

type LoanHandler struct {
	loanService LoanService
	accounts    AccountService
	pricing     LoanPricing
}

var loanErrors = []errorStatus{
	{loandomain.ErrLoanNotFound, http.StatusNotFound},
	{loandomain.ErrInvalidLoanInput, http.StatusBadRequest},
	{loandomain.ErrInvalidTransition, http.StatusConflict},
	{loandomain.ErrConcurrentUpdate, http.StatusConflict},
	{account.ErrAccountNotFound, http.StatusNotFound},
	{account.ErrAccountNotActive, http.StatusForbidden},
	{account.ErrInsufficientLimit, http.StatusUnprocessableEntity},
	{lender.ErrNoLenderAvailable, http.StatusServiceUnavailable},
	{lender.ErrInsufficientLenderBalance, http.StatusServiceUnavailable},
	{digisign.ErrInvalidDocument, http.StatusBadRequest},
	{promo.ErrPromoNotFound, http.StatusBadRequest},
	{promo.ErrPromoInactive, http.StatusBadRequest},
	{promo.ErrPromoExpired, http.StatusBadRequest},
	{promo.ErrPromoMinAmount, http.StatusBadRequest},
	{promo.ErrPromoMethodNotAllowed, http.StatusBadRequest},
	{promo.ErrPromoQuotaExhausted, http.StatusBadRequest},
	{promo.ErrPromoCustomerLimit, http.StatusBadRequest},
	{promo.ErrPromoFeatureOff, http.StatusBadRequest},
}

type createLoanRequest struct {
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	DurationMonths int32  `json:"duration_months" binding:"required,min=1,max=36"`
	PromoCode      string `json:"promo_code" binding:"omitempty,max=32"`
}

type loanView struct {
	loandomain.Entity
	StatusName string `json:"status_name"`
}

func viewLoan(e loandomain.Entity) loanView {
	return loanView{Entity: e, StatusName: loandomain.StatusName(e.Status)}
}

func NewLoanHandler(loanService LoanService, accounts AccountService, pricing LoanPricing) *LoanHandler {
	return &LoanHandler{loanService: loanService, accounts: accounts, pricing: pricing}
}

func (h *LoanHandler) CreateLoan(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	acc, err := h.accounts.GetByCustomer(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, loanErrors)
		return
	}
	created, err := h.loanService.Create(c.Request.Context(), loandomain.CreateInput{
		AccountID:              acc.ID,
		CustomerID:             uid,
		ProductCode:            loandomain.ProductCashLoan,
		TransactionMethod:      loandomain.MethodSelf,
		Amount:                 req.Amount,
		DurationMonths:         req.DurationMonths,
		InterestRateMonthlyBPS: h.pricing.InterestRateMonthlyBPS,
		ProvisionRateBPS:       h.pricing.ProvisionRateBPS,
		PromoCode:              strings.TrimSpace(req.PromoCode),
	})
	if err != nil {
		writeError(c, err, loanErrors)
		return
	}
	response.OK(c, http.StatusCreated, viewLoan(*created))
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "20")), 10, 32)
	offset, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)

	acc, err := h.accounts.GetByCustomer(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err, loanErrors)
		return
	}
	items, err := h.loanService.ListByAccount(c.Request.Context(), acc.ID, int32(limit), int32(offset))
	if err != nil {
		writeError(c, err, loanErrors)
		return
	}
	views := make([]loanView, 0, len(items))
	for _, item := range items {
		views = append(views, viewLoan(item))
	}
	response.OK(c, http.StatusOK, gin.H{"items": views})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	item, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	response.OK(c, http.StatusOK, viewLoan(*item))
}

func (h *LoanHandler) ListPayments(c *gin.Context) {
	item, ok := h.ownedLoan(c)
	if !ok {
		return
	}
	payments, err := h.loanService.ListPayments(c.Request.Context(), item.ID)
	if err != nil {
		writeError(c, err, loanErrors)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"items": payments})
}

func (h *LoanHandler) SignAgreement(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	loanID, ok := pathID(c, "loanId", loandomain.ErrLoanNotFound.Error())
	if !ok {
		return
	}
	updated, err := h.loanService.SignAgreement(c.Request.Context(), loanID, uid)
	if err != nil {
		writeError(c, err, loanErrors)
		return
	}
	response.OK(c, http.StatusOK, viewLoan(*updated))
}

func (h *LoanHandler) CancelLoan(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	loanID, ok := pathID(c, "loanId", loandomain.ErrLoanNotFound.Error())
	if !ok {
		return
	}
	updated, err := h.loanService.Cancel(c.Request.Context(), loanID, uid)
	if err != nil {
		writeError(c, err, loanErrors)
		return
	}
	response.OK(c, http.StatusOK, viewLoan(*updated))
}

// ownedLoan loads the path loan and hides loans of other customers behind a
// 404.
func (h *LoanHandler) ownedLoan(c *gin.Context) (*loandomain.Entity, bool) {
	uid, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	loanID, ok := pathID(c, "loanId", loandomain.ErrLoanNotFound.Error())
	if !ok {
		return nil, false
	}
	item, err := h.loanService.Get(c.Request.Context(), loanID)
	if err != nil {
		writeError(c, err, loanErrors)
		return nil, false
	}
	if item.CustomerID != uid {
		response.Error(c, http.StatusNotFound, loandomain.ErrLoanNotFound.Error())
		return nil, false
	}
	return item, true
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	loandomain "github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/domain/promo"
	"github.com/julo/lendcore/internal/http/response"
)

type PromoService interface {
	Check(ctx context.Context, in promo.CheckInput) (*promo.Evaluation, error)
}

type PromoHandler struct {
	promoService PromoService
	pricing      LoanPricing
}

var promoErrors = []errorStatus{
	{promo.ErrPromoNotFound, http.StatusNotFound},
	{promo.ErrPromoInactive, http.StatusBadRequest},
	{promo.ErrPromoExpired, http.StatusBadRequest},
	{promo.ErrPromoMinAmount, http.StatusBadRequest},
	{promo.ErrPromoMethodNotAllowed, http.StatusBadRequest},
	{promo.ErrPromoQuotaExhausted, http.StatusBadRequest},
	{promo.ErrPromoCustomerLimit, http.StatusBadRequest},
	{promo.ErrPromoFeatureOff, http.StatusForbidden},
}

type promoCheckRequest struct {
	Code              string `json:"promo_code" binding:"required,max=32"`
	TransactionMethod string `json:"transaction_method" binding:"omitempty,oneof=self qris ecommerce"`
	LoanAmount        int64  `json:"loan_amount" binding:"required,gt=0"`
	DurationMonths    int32  `json:"duration_months" binding:"required,min=1,max=36"`
}

func NewPromoHandler(promoService PromoService, pricing LoanPricing) *PromoHandler {
	return &PromoHandler{promoService: promoService, pricing: pricing}
}

// Check evaluates a code against the cash loan the customer is about to
// take, priced the same way loan creation prices it.
func (h *PromoHandler) Check(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	var req promoCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	method := req.TransactionMethod
	if method == "" {
		method = loandomain.MethodSelf
	}
	terms := loandomain.ComputeTerms(req.LoanAmount, req.DurationMonths, h.pricing.InterestRateMonthlyBPS, h.pricing.ProvisionRateBPS)

	eval, err := h.promoService.Check(c.Request.Context(), promo.CheckInput{
		Code:              req.Code,
		CustomerID:        uid,
		TransactionMethod: method,
		LoanAmount:        terms.LoanAmount,
		DurationMonths:    req.DurationMonths,
		MonthlyInterest:   terms.MonthlyInterest,
		InstallmentAmount: terms.InstallmentAmount,
	})
	if err != nil {
		writeError(c, err, promoErrors)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"promo_code":     eval.Code.Code,
		"benefit_type":   eval.Code.BenefitType,
		"benefit_amount": eval.BenefitAmount,
		"loan_amount":    terms.LoanAmount,
		"installment":    terms.InstallmentAmount,
	})
}

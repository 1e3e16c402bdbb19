package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/admin"
	"github.com/julo/lendcore/internal/domain/featuresetting"
	lenderdomain "github.com/julo/lendcore/internal/domain/lender"
	loandomain "github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/http/response"
)

type AdminService interface {
	OnboardLender(ctx context.Context, adminUserID string, in lenderdomain.CreateInput) (*lenderdomain.Entity, error)
	UpdateLenderStatus(ctx context.Context, adminUserID, lenderID, status string) error
	ListFeatureSettings(ctx context.Context) ([]featuresetting.Setting, error)
	UpdateFeatureSetting(ctx context.Context, adminUserID, name string, in featuresetting.UpdateInput) (*featuresetting.Setting, error)
	SetAccountLimit(ctx context.Context, adminUserID, accountID string, limit int64) (*account.Limit, error)
	RecordRepayment(ctx context.Context, adminUserID string, in loandomain.RepaymentInput) (*loandomain.RepaymentResult, error)
}

type AdminHandler struct {
	adminService AdminService
}

var adminErrors = []errorStatus{
	{admin.ErrInvalidLenderInput, http.StatusBadRequest},
	{admin.ErrInvalidLenderStatus, http.StatusBadRequest},
	{admin.ErrLenderCodeTaken, http.StatusConflict},
	{lenderdomain.ErrLenderNotFound, http.StatusNotFound},
	{featuresetting.ErrNotFound, http.StatusNotFound},
	{featuresetting.ErrInvalidParams, http.StatusBadRequest},
	{account.ErrAccountNotFound, http.StatusNotFound},
	{account.ErrLimitNotFound, http.StatusNotFound},
	{account.ErrInvalidLimit, http.StatusBadRequest},
	{loandomain.ErrLoanNotFound, http.StatusNotFound},
	{loandomain.ErrInvalidRepayment, http.StatusBadRequest},
	{loandomain.ErrLoanNotRepayable, http.StatusConflict},
	{loandomain.ErrRepaymentExceedsOutstanding, http.StatusUnprocessableEntity},
	{loandomain.ErrConcurrentUpdate, http.StatusConflict},
}

type onboardLenderRequest struct {
	Code                string   `json:"code" binding:"required"`
	Name                string   `json:"name" binding:"required,max=128"`
	Status              string   `json:"status" binding:"omitempty,oneof=active inactive"`
	Priority            int32    `json:"priority" binding:"gte=0"`
	IsChanneling        bool     `json:"is_channeling"`
	DisbursementBalance int64    `json:"disbursement_balance" binding:"gte=0"`
	ProductCodes        []string `json:"product_codes"`
}

type lenderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

type featureSettingRequest struct {
	IsActive   *bool           `json:"is_active"`
	Parameters json.RawMessage `json:"parameters"`
}

type accountLimitRequest struct {
	Limit int64 `json:"limit" binding:"gte=0"`
}

type repaymentRequest struct {
	Amount    int64     `json:"amount" binding:"required,gt=0"`
	Channel   string    `json:"channel" binding:"omitempty,max=32"`
	Reference string    `json:"reference" binding:"required,max=64"`
	PaidAt    time.Time `json:"paid_at"`
}

func NewAdminHandler(adminService AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListFeatureSettings(c *gin.Context) {
	items, err := h.adminService.ListFeatureSettings(c.Request.Context())
	if err != nil {
		writeError(c, err, adminErrors)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"items": items})
}

func (h *AdminHandler) UpdateFeatureSetting(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req featureSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.IsActive == nil && len(req.Parameters) == 0 {
		response.Error(c, http.StatusBadRequest, "empty_update")
		return
	}
	if len(req.Parameters) > 0 && (!json.Valid(req.Parameters) || req.Parameters[0] != '{') {
		response.Error(c, http.StatusBadRequest, featuresetting.ErrInvalidParams.Error())
		return
	}

	updated, err := h.adminService.UpdateFeatureSetting(c.Request.Context(), adminID, strings.TrimSpace(c.Param("name")), featuresetting.UpdateInput{
		IsActive:   req.IsActive,
		Parameters: req.Parameters,
	})
	if err != nil {
		writeError(c, err, adminErrors)
		return
	}
	response.OK(c, http.StatusOK, updated)
}

func (h *AdminHandler) OnboardLender(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req onboardLenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.adminService.OnboardLender(c.Request.Context(), adminID, lenderdomain.CreateInput{
		Code:                req.Code,
		Name:                req.Name,
		Status:              req.Status,
		Priority:            req.Priority,
		IsChanneling:        req.IsChanneling,
		DisbursementBalance: req.DisbursementBalance,
		ProductCodes:        req.ProductCodes,
	})
	if err != nil {
		writeError(c, err, adminErrors)
		return
	}
	response.OK(c, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateLenderStatus(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	lenderID, ok := pathID(c, "lenderId", lenderdomain.ErrLenderNotFound.Error())
	if !ok {
		return
	}
	var req lenderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.adminService.UpdateLenderStatus(c.Request.Context(), adminID, lenderID, req.Status); err != nil {
		writeError(c, err, adminErrors)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"lender_id": lenderID, "status": req.Status})
}

func (h *AdminHandler) SetAccountLimit(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathID(c, "accountId", account.ErrAccountNotFound.Error())
	if !ok {
		return
	}
	var req accountLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	limit, err := h.adminService.SetAccountLimit(c.Request.Context(), adminID, accountID, req.Limit)
	if err != nil {
		writeError(c, err, adminErrors)
		return
	}
	response.OK(c, http.StatusOK, limit)
}

func (h *AdminHandler) RecordRepayment(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	loanID, ok := pathID(c, "loanId", loandomain.ErrLoanNotFound.Error())
	if !ok {
		return
	}
	var req repaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.adminService.RecordRepayment(c.Request.Context(), adminID, loandomain.RepaymentInput{
		LoanID:    loanID,
		Amount:    req.Amount,
		Channel:   req.Channel,
		Reference: req.Reference,
		PaidAt:    req.PaidAt,
	})
	if err != nil {
		writeError(c, err, adminErrors)
		return
	}
	response.OK(c, http.StatusOK, result)
}

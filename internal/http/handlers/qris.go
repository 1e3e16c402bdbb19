package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/lender"
	loandomain "github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/domain/qris"
	"github.com/julo/lendcore/internal/http/response"
	"github.com/julo/lendcore/internal/observability"
)

type QRISService interface {
	Confirm(ctx context.Context, in qris.ConfirmInput) (*qris.Confirmation, error)
	Status(ctx context.Context, partnerID, partnerTransactionID string) (*qris.Transaction, error)
}

type QRISHandler struct {
	qrisService QRISService
}

type partnerCode struct {
	err     error
	status  int
	code    string
	message string
}

const (
	qrisSuccessCode   = "2000000"
	qrisInvalidCode   = "4000000"
	qrisGeneralCode   = "5000000"
	qrisGeneralReason = "General Error"
)

var qrisCodes = []partnerCode{
	{qris.ErrInvalidTransaction, http.StatusBadRequest, qrisInvalidCode, "Invalid Request"},
	{qris.ErrTransactionAmountTooLow, http.StatusBadRequest, "4000101", "Transaction Amount Too Low"},
	{qris.ErrTransactionAmountTooHigh, http.StatusBadRequest, "4000102", "Transaction Amount Too High"},
	{qris.ErrQRISDisabled, http.StatusForbidden, "4030001", "QRIS Loan Not Available"},
	{qris.ErrLinkageNotFound, http.StatusNotFound, "4040001", "Account Linkage Not Found"},
	{qris.ErrLinkageInactive, http.StatusNotFound, "4040002", "Account Linkage Inactive"},
	{qris.ErrTransactionNotFound, http.StatusNotFound, "4040003", "Transaction Not Found"},
	{qris.ErrDuplicateTransaction, http.StatusConflict, "4090001", "Duplicate Partner Transaction"},
	{account.ErrInsufficientLimit, http.StatusUnprocessableEntity, "4220001", "Insufficient Limit"},
	{account.ErrAccountNotActive, http.StatusUnprocessableEntity, "4220002", "Account Not Active"},
	{lender.ErrNoLenderAvailable, http.StatusServiceUnavailable, "5030001", "No Lender Available"},
	{lender.ErrInsufficientLenderBalance, http.StatusServiceUnavailable, "5030001", "No Lender Available"},
}

type qrisConfirmRequest struct {
	PartnerCustomerID    string `json:"partnerCustomerId" binding:"required,max=64"`
	PartnerTransactionID string `json:"partnerTransactionId" binding:"required,max=64"`
	MerchantID           string `json:"merchantId" binding:"required,max=64"`
	MerchantName         string `json:"merchantName" binding:"max=128"`
	Amount               int64  `json:"amount" binding:"required"`
}

func NewQRISHandler(qrisService QRISService) *QRISHandler {
	return &QRISHandler{qrisService: qrisService}
}

func (h *QRISHandler) Confirm(c *gin.Context) {
	var req qrisConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.PartnerReply(c, http.StatusBadRequest, qrisInvalidCode, "Invalid Request", nil)
		return
	}

	out, err := h.qrisService.Confirm(c.Request.Context(), qris.ConfirmInput{
		PartnerID:            c.GetString("partner_id"),
		PartnerCustomerID:    strings.TrimSpace(req.PartnerCustomerID),
		PartnerTransactionID: strings.TrimSpace(req.PartnerTransactionID),
		MerchantID:           strings.TrimSpace(req.MerchantID),
		MerchantName:         strings.TrimSpace(req.MerchantName),
		Amount:               req.Amount,
	})
	if err != nil {
		writePartnerError(c, err)
		return
	}

	installments := make([]gin.H, 0, len(out.Installments))
	for _, p := range out.Installments {
		installments = append(installments, gin.H{
			"installmentNumber": p.PaymentNumber,
			"dueDate":           p.DueDate.Format("2006-01-02"),
			"dueAmount":         p.DueAmount,
		})
	}
	response.PartnerReply(c, http.StatusOK, qrisSuccessCode, "Successful", gin.H{
		"partnerTransactionId": out.Transaction.PartnerTransactionID,
		"transactionStatus":    out.Transaction.Status,
		"loanXid":              out.Loan.LoanXID,
		"loanStatus":           loandomain.StatusName(out.Loan.Status),
		"loanAmount":           out.Loan.LoanAmount,
		"disbursementAmount":   out.Loan.DisbursementAmount,
		"installments":         installments,
	})
}

func (h *QRISHandler) Status(c *gin.Context) {
	txn, err := h.qrisService.Status(c.Request.Context(), c.GetString("partner_id"), strings.TrimSpace(c.Param("partnerTransactionId")))
	if err != nil {
		writePartnerError(c, err)
		return
	}
	response.PartnerReply(c, http.StatusOK, qrisSuccessCode, "Successful", gin.H{
		"partnerTransactionId": txn.PartnerTransactionID,
		"transactionStatus":    txn.Status,
		"amount":               txn.Amount,
		"merchantId":           txn.MerchantID,
		"updatedAt":            txn.UpdatedAt,
	})
}

func writePartnerError(c *gin.Context, err error) {
	for _, pc := range qrisCodes {
		if errors.Is(err, pc.err) {
			response.PartnerReply(c, pc.status, pc.code, pc.message, nil)
			return
		}
	}
	observability.CtxError(c.Request.Context(), slog.Default(), "partner request failed",
		"route", c.FullPath(),
		"partner_id", c.GetString("partner_id"),
		"error", err,
	)
	response.PartnerReply(c, http.StatusInternalServerError, qrisGeneralCode, qrisGeneralReason, nil)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/domain/otp"
	"github.com/julo/lendcore/internal/http/response"
)

type OTPService interface {
	Request(ctx context.Context, in otp.RequestInput) (*otp.RequestResult, error)
	Validate(ctx context.Context, in otp.ValidateInput) (*otp.Session, error)
}

type OTPHandler struct {
	otpService OTPService
}

var otpErrors = []errorStatus{
	{otp.ErrOTPInvalidInput, http.StatusBadRequest},
	{otp.ErrChannelUnavailable, http.StatusBadRequest},
	{otp.ErrOTPResendTooSoon, http.StatusTooManyRequests},
	{otp.ErrOTPMaxRequest, http.StatusTooManyRequests},
	{otp.ErrOTPMaxValidate, http.StatusTooManyRequests},
	{otp.ErrOTPNotFound, http.StatusBadRequest},
	{otp.ErrOTPInvalid, http.StatusBadRequest},
}

type otpRequest struct {
	Destination string `json:"destination" binding:"required"`
	Channel     string `json:"channel" binding:"required,oneof=sms email"`
	Action      string `json:"action" binding:"required"`
}

type otpValidateRequest struct {
	Destination string `json:"destination" binding:"required"`
	Action      string `json:"action" binding:"required"`
	Code        string `json:"code" binding:"required,numeric,min=4,max=8"`
}

func NewOTPHandler(otpService OTPService) *OTPHandler {
	return &OTPHandler{otpService: otpService}
}

func (h *OTPHandler) Request(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.otpService.Request(c.Request.Context(), otp.RequestInput{
		Destination: req.Destination,
		Channel:     req.Channel,
		Action:      req.Action,
	})
	if err != nil {
		writeError(c, err, otpErrors)
		return
	}
	response.OK(c, http.StatusOK, res)
}

func (h *OTPHandler) Validate(c *gin.Context) {
	var req otpValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	session, err := h.otpService.Validate(c.Request.Context(), otp.ValidateInput{
		Destination: req.Destination,
		Action:      req.Action,
		Code:        req.Code,
	})
	if err != nil {
		writeError(c, err, otpErrors)
		return
	}
	response.OK(c, http.StatusOK, session)
}

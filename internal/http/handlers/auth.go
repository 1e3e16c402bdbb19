package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/auth"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/otp"
	"github.com/julo/lendcore/internal/http/response"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput, userAgent, ipAddress string) (*auth.AuthTokens, error)
	Login(ctx context.Context, phone, pin, userAgent, ipAddress string) (*auth.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*auth.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, customerID string) (*db.Customer, error)
}

type AuthHandler struct {
	authService AuthService
	cookieCfg   auth.CookieConfig
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

var authErrors = []errorStatus{
	{auth.ErrInvalidPhone, http.StatusBadRequest},
	{auth.ErrInvalidPIN, http.StatusBadRequest},
	{auth.ErrPhoneRegistered, http.StatusConflict},
	{otp.ErrOTPSessionInvalid, http.StatusForbidden},
	{auth.ErrPINLocked, http.StatusLocked},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{auth.ErrSessionRevoked, http.StatusUnauthorized},
}

type registerRequest struct {
	Phone    string `json:"phone" binding:"required,idphone"`
	PIN      string `json:"pin" binding:"required,numeric,len=6"`
	FullName string `json:"full_name" binding:"required,max=100"`
	Email    string `json:"email" binding:"omitempty,email"`
	OTPToken string `json:"otp_session_token" binding:"required"`
}

type loginRequest struct {
	Phone string `json:"phone" binding:"required,idphone"`
	PIN   string `json:"pin" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func NewAuthHandler(authService AuthService, cookieCfg auth.CookieConfig, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, cookieCfg: cookieCfg, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	tokens, err := h.authService.Register(c.Request.Context(), auth.RegisterInput{
		Phone:    req.Phone,
		PIN:      req.PIN,
		FullName: req.FullName,
		Email:    req.Email,
		OTPToken: req.OTPToken,
	}, c.GetHeader("User-Agent"), auth.ClientIP(c.Request))
	if err != nil {
		writeError(c, err, authErrors)
		return
	}
	h.respondWithTokens(c, http.StatusCreated, tokens)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	tokens, err := h.authService.Login(c.Request.Context(), req.Phone, req.PIN, c.GetHeader("User-Agent"), auth.ClientIP(c.Request))
	if err != nil {
		writeError(c, err, authErrors)
		return
	}
	h.respondWithTokens(c, http.StatusOK, tokens)
}

// Refresh takes the refresh token from its cookie, or from the body for
// clients that do not keep cookies.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := refreshTokenFrom(c)
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing_refresh_token")
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), token, c.GetHeader("User-Agent"), auth.ClientIP(c.Request))
	if err != nil {
		writeError(c, err, authErrors)
		return
	}
	h.respondWithTokens(c, http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if token := refreshTokenFrom(c); token != "" {
		_ = h.authService.Logout(c.Request.Context(), token)
	}
	auth.ClearAuthCookies(c.Writer, h.cookieCfg)
	response.OK(c, http.StatusOK, gin.H{"logged_out": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	customer, err := h.authService.Me(c.Request.Context(), uid)
	if err != nil {
		if db.IsNoRows(err) {
			response.Error(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(c, err, authErrors)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"customer": customer})
}

func (h *AuthHandler) respondWithTokens(c *gin.Context, status int, tokens *auth.AuthTokens) {
	auth.SetAuthCookies(c.Writer, h.cookieCfg, tokens.AccessToken, tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	response.OK(c, status, gin.H{
		"customer":      tokens.Customer,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    int64(h.accessTTL.Seconds()),
	})
}

func refreshTokenFrom(c *gin.Context) string {
	if cookie, err := c.Request.Cookie(auth.RefreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req refreshRequest
	if c.Request.ContentLength > 0 && c.ShouldBindJSON(&req) == nil {
		return req.RefreshToken
	}
	return ""
}

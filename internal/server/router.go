package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/auth"
	"github.com/julo/lendcore/internal/config"
	"github.com/julo/lendcore/internal/http/handlers"
	"github.com/julo/lendcore/internal/http/middleware"
	"github.com/julo/lendcore/internal/http/response"
	"github.com/julo/lendcore/internal/http/validation"
	"github.com/julo/lendcore/internal/observability"
	"github.com/julo/lendcore/internal/version"
	"github.com/julo/lendcore/internal/ws"
)

// Dependencies carries the handlers the router mounts. Nil handlers leave
// their route groups unregistered.
type Dependencies struct {
	DBPinger    handlers.Pinger
	RedisPinger handlers.Pinger

	JWTManager *auth.JWTManager
	Sessions   middleware.SessionValidator
	Partners   middleware.PartnerAuthenticator

	AuthHandler       *handlers.AuthHandler
	OTPHandler        *handlers.OTPHandler
	AccountHandler    *handlers.AccountHandler
	LoanHandler       *handlers.LoanHandler
	PromoHandler      *handlers.PromoHandler
	QRISHandler       *handlers.QRISHandler
	ChannelingHandler *handlers.ChannelingHandler
	AdminHandler      *handlers.AdminHandler
	WSHandler         *ws.Handler
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.Register()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Trace())
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.RequestBodyLimit(cfg.RequestBodyLimitBytes))

	health := handlers.NewHealthHandler(deps.DBPinger, deps.RedisPinger)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, version.Commit)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)
	r.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	if deps.OTPHandler != nil {
		otpGroup := r.Group("/v1/otp")
		otpGroup.Use(limiter.Middleware())
		otpGroup.POST("/request", deps.OTPHandler.Request)
		otpGroup.POST("/validate", deps.OTPHandler.Validate)
	}

	if deps.JWTManager != nil {
		requireAuth := middleware.RequireAuth(deps.JWTManager, deps.Sessions)

		if deps.AuthHandler != nil {
			authGroup := r.Group("/v1/auth")
			authGroup.POST("/register", limiter.Middleware(), deps.AuthHandler.Register)
			authGroup.POST("/login", limiter.Middleware(), deps.AuthHandler.Login)
			authGroup.POST("/refresh", deps.AuthHandler.Refresh)
			authGroup.POST("/logout", deps.AuthHandler.Logout)
			authGroup.GET("/me", requireAuth, deps.AuthHandler.Me)
		}

		customer := r.Group("/v1")
		customer.Use(requireAuth, middleware.RequireRole(auth.RoleCustomer))
		if deps.AccountHandler != nil {
			customer.GET("/account/limit", deps.AccountHandler.GetLimit)
		}
		if deps.LoanHandler != nil {
			customer.POST("/loans", deps.LoanHandler.CreateLoan)
			customer.GET("/loans", deps.LoanHandler.ListLoans)
			customer.GET("/loans/:loanId", deps.LoanHandler.GetLoan)
			customer.GET("/loans/:loanId/payments", deps.LoanHandler.ListPayments)
			customer.POST("/loans/:loanId/sign", deps.LoanHandler.SignAgreement)
			customer.POST("/loans/:loanId/cancel", deps.LoanHandler.CancelLoan)
		}
		if deps.PromoHandler != nil {
			customer.POST("/promo-codes/check", deps.PromoHandler.Check)
		}
		if deps.WSHandler != nil {
			customer.GET("/ws", deps.WSHandler.HandleWebSocket)
		}

		if deps.AdminHandler != nil {
			adminGroup := r.Group("/admin")
			adminGroup.Use(requireAuth, middleware.RequireRole(auth.RoleAdmin))
			adminGroup.GET("/feature-settings", deps.AdminHandler.ListFeatureSettings)
			adminGroup.PATCH("/feature-settings/:name", deps.AdminHandler.UpdateFeatureSetting)
			adminGroup.POST("/lenders", deps.AdminHandler.OnboardLender)
			adminGroup.PATCH("/lenders/:lenderId/status", deps.AdminHandler.UpdateLenderStatus)
			adminGroup.PUT("/accounts/:accountId/limit", deps.AdminHandler.SetAccountLimit)
			adminGroup.POST("/loans/:loanId/repayments", deps.AdminHandler.RecordRepayment)
		}
	}

	if deps.QRISHandler != nil && deps.Partners != nil {
		partnerGroup := r.Group("/v1/partner/qris")
		partnerGroup.Use(middleware.RequirePartner(deps.Partners))
		partnerGroup.POST("/transactions/confirm", deps.QRISHandler.Confirm)
		partnerGroup.GET("/transactions/:partnerTransactionId", deps.QRISHandler.Status)
	}

	if deps.ChannelingHandler != nil {
		r.POST("/v1/channeling/dbs/loan-status", deps.ChannelingHandler.DBSLoanStatus)
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "not_found")
	})

	return r
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/auth"
	"github.com/julo/lendcore/internal/cache"
	"github.com/julo/lendcore/internal/config"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/admin"
	"github.com/julo/lendcore/internal/domain/channeling"
	"github.com/julo/lendcore/internal/domain/digisign"
	"github.com/julo/lendcore/internal/domain/featuresetting"
	"github.com/julo/lendcore/internal/domain/lender"
	"github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/domain/otp"
	"github.com/julo/lendcore/internal/domain/partner"
	"github.com/julo/lendcore/internal/domain/promo"
	"github.com/julo/lendcore/internal/domain/qris"
	"github.com/julo/lendcore/internal/http/handlers"
	"github.com/julo/lendcore/internal/jobs"
	"github.com/julo/lendcore/internal/notify"
	"github.com/julo/lendcore/internal/partner/dbs"
	"github.com/julo/lendcore/internal/partner/disbursement"
	postgresrepo "github.com/julo/lendcore/internal/repository/postgres"
	"github.com/julo/lendcore/internal/securebox"
	"github.com/julo/lendcore/internal/server"
	"github.com/julo/lendcore/internal/ws"
	"github.com/redis/go-redis/v9"
)

// Container holds the services shared by the api and worker binaries.
type Container struct {
	Config config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client

	AuthRepo   *db.AuthRepository
	OutboxRepo *postgresrepo.OutboxRepository
	WSRepo     *postgresrepo.WSRepository

	JWT        *auth.JWTManager
	Auth       *auth.Service
	OTP        *otp.Service
	Features   *featuresetting.Service
	Accounts   *account.Service
	Lenders    *lender.Service
	Loans      *loan.Service
	Promos     *promo.Service
	QRIS       *qris.TransactionConfirmationService
	Channeling *channeling.Service
	Partners   *partner.Service
	Admin      *admin.Service

	SMS     notify.Sender
	Email   notify.Sender
	Gateway disbursement.Gateway
}

// New connects Postgres and Redis and builds every domain service. Callers
// must Close the container.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Container, error) {
	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := cache.Connect(ctx, cfg, logger, nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	c, err := build(cfg, logger, pool, rdb)
	if err != nil {
		_ = rdb.Close()
		pool.Close()
		return nil, err
	}
	return c, nil
}

func build(cfg config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, Pool: pool, Redis: rdb}
	tx := db.NewTxManager(pool)
	store := cache.NewStore(rdb)

	c.AuthRepo = db.NewAuthRepository(pool)
	c.OutboxRepo = postgresrepo.NewOutboxRepository(pool).WithLease(cfg.OutboxLease)
	c.WSRepo = postgresrepo.NewWSRepository(pool)

	sms, email, err := senders(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.SMS, c.Email = sms, email

	box, err := securebox.New(cfg.SignerKeyEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("signer key box: %w", err)
	}
	cipher, err := dbs.NewCipher(cfg.DBSAESKey, cfg.DBSHMACSecret)
	if err != nil {
		return nil, fmt.Errorf("dbs cipher: %w", err)
	}
	dbsClient, err := dbs.NewClientFromConfig(cfg, cipher)
	if err != nil {
		return nil, fmt.Errorf("dbs client: %w", err)
	}
	c.Gateway, err = disbursement.NewGatewayFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("disbursement gateway: %w", err)
	}

	c.Features = featuresetting.NewService(postgresrepo.NewFeatureSettingRepository(pool), store)
	c.OTP = otp.NewService(store, c.Features, map[string]otp.Sender{
		notify.ChannelSMS:   sms,
		notify.ChannelEmail: email,
	})
	c.Accounts = account.NewService(postgresrepo.NewAccountRepository(pool), tx)
	c.Lenders = lender.NewService(postgresrepo.NewLenderRepository(pool), c.Features, tx)
	c.Promos = promo.NewService(postgresrepo.NewPromoRepository(pool), c.Features, tx)

	loanRepo := postgresrepo.NewLoanRepository(pool)
	c.Loans = loan.NewService(loan.Dependencies{
		Loans:    loanRepo,
		Payments: postgresrepo.NewPaymentRepository(pool),
		Outbox:   c.OutboxRepo,
		Accounts: c.Accounts,
		Lenders:  c.Lenders,
		Features: c.Features,
		Tx:       tx,
		Signer:   digisign.NewService(postgresrepo.NewDigisignRepository(pool), box),
		Promos:   c.Promos,
	})

	c.Channeling = channeling.NewService(channeling.Dependencies{
		Repo:     postgresrepo.NewChannelingRepository(pool),
		Loans:    c.Loans,
		Lenders:  c.Lenders,
		Outbox:   c.OutboxRepo,
		Client:   dbsClient,
		Envelope: cipher,
		Tx:       tx,
		OrgID:    cfg.DBSOrgID,
		Logger:   logger,
	})
	c.Loans.SetChanneling(c.Channeling)

	c.QRIS = qris.NewTransactionConfirmationService(postgresrepo.NewQRISRepository(pool), c.Loans, c.Features, tx)
	c.Loans.OnStatusChange(c.Promos.HandleLoanStatus)
	c.Loans.OnStatusChange(c.QRIS.HandleLoanStatus)

	c.Partners = partner.NewService(postgresrepo.NewPartnerRepository(pool))
	c.JWT = auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	c.Auth = auth.NewService(c.AuthRepo, c.JWT, c.OTP, c.Accounts, tx, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	c.Admin = admin.NewService(admin.Dependencies{
		Lenders:    postgresrepo.NewLenderRepository(pool),
		Features:   c.Features,
		Limits:     c.Accounts,
		Repayments: c.Loans,
		Audit:      postgresrepo.NewAdminAuditRepository(pool),
		Tx:         tx,
	})
	return c, nil
}

// senders picks a vendor per channel and falls back to logging when the
// vendor is not configured.
func senders(cfg config.Config, logger *slog.Logger) (notify.Sender, notify.Sender, error) {
	var sms notify.Sender = notify.NewLogSender(notify.ChannelSMS, logger)
	if strings.TrimSpace(cfg.SMSBaseURL) != "" {
		s, err := notify.NewSMSSender(cfg.SMSBaseURL, cfg.SMSAPIKey, cfg.SMSSenderID)
		if err != nil {
			return nil, nil, fmt.Errorf("sms sender: %w", err)
		}
		sms = s
	}

	var email notify.Sender = notify.NewLogSender(notify.ChannelEmail, logger)
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		s, err := notify.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SenderEmail)
		if err != nil {
			return nil, nil, fmt.Errorf("email sender: %w", err)
		}
		email = s
	}
	return sms, email, nil
}

// HTTPDependencies builds every HTTP handler on top of the container's
// services. The returned hub feeds the websocket notifier.
func (c *Container) HTTPDependencies() (*server.Dependencies, *ws.Hub) {
	hub := ws.NewHub()
	pricing := handlers.LoanPricing{
		InterestRateMonthlyBPS: c.Config.CashLoanInterestBPS,
		ProvisionRateBPS:       c.Config.CashLoanProvisionBPS,
	}
	cookies := auth.CookieConfig{Domain: c.Config.CookieDomain, Secure: c.Config.CookieSecure}

	return &server.Dependencies{
		DBPinger:          c.Pool,
		RedisPinger:       redisPinger{client: c.Redis},
		JWTManager:        c.JWT,
		Sessions:          c.Auth,
		Partners:          c.Partners,
		AuthHandler:       handlers.NewAuthHandler(c.Auth, cookies, c.Config.JWTAccessTTL, c.Config.JWTRefreshTTL),
		OTPHandler:        handlers.NewOTPHandler(c.OTP),
		AccountHandler:    handlers.NewAccountHandler(c.Accounts),
		LoanHandler:       handlers.NewLoanHandler(c.Loans, c.Accounts, pricing),
		PromoHandler:      handlers.NewPromoHandler(c.Promos, pricing),
		QRISHandler:       handlers.NewQRISHandler(c.QRIS),
		ChannelingHandler: handlers.NewChannelingHandler(c.Channeling),
		AdminHandler:      handlers.NewAdminHandler(c.Admin),
		WSHandler:         ws.NewHandler(hub, c.Accounts),
	}, hub
}

func (c *Container) Notifier(hub *ws.Hub) *ws.Notifier {
	return ws.NewNotifier(c.WSRepo, hub, c.Logger, c.Config.WorkerPollInterval)
}

func (c *Container) Worker() *jobs.Worker {
	return jobs.NewWorker(jobs.Dependencies{
		Outbox:     c.OutboxRepo,
		Loans:      c.Loans,
		Channeling: c.Channeling,
		Gateway:    c.Gateway,
		Customers:  c.AuthRepo,
		SMS:        c.SMS,
		Logger:     c.Logger,
	})
}

func (c *Container) Scheduler() *jobs.Scheduler {
	return jobs.NewScheduler(c.Loans, c.Config.CronTimezone, c.Config.LoanInactiveTTL, c.Logger)
}

func (c *Container) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

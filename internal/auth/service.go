package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/otp"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxPINFailures  = 3
	pinLockDuration = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrPINLocked          = errors.New("pin_locked")
	ErrInvalidPIN         = errors.New("invalid_pin_format")
	ErrInvalidPhone       = errors.New("invalid_phone")
	ErrPhoneRegistered    = errors.New("phone_already_registered")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrSessionRevoked     = errors.New("session_revoked")
)

var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

type Repository interface {
	CreateCustomer(ctx context.Context, phone, email, fullName, pinHash, role string) (*db.Customer, error)
	GetCustomerByID(ctx context.Context, customerID string) (*db.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*db.Customer, error)
	UpdatePINState(ctx context.Context, customerID string, failedCount int, lockedUntil *time.Time) error
	CreateSession(ctx context.Context, customerID, refreshHash, userAgent, ipAddress string, expiresAt time.Time) (*db.Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (*db.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	UpdateSessionRefreshHash(ctx context.Context, sessionID, refreshHash string) error
}

type OTPSessions interface {
	ConsumeSession(ctx context.Context, token, action string) (string, error)
}

type AccountOpener interface {
	Open(ctx context.Context, customerID string) (*account.Account, error)
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo       Repository
	jwt        *JWTManager
	otp        OTPSessions
	accounts   AccountOpener
	tx         TxRunner
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	Customer     *db.Customer
}

type RegisterInput struct {
	Phone    string
	PIN      string
	FullName string
	Email    string
	OTPToken string
}

func NewService(repo Repository, jwt *JWTManager, otpSessions OTPSessions, accounts AccountOpener, tx TxRunner, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		jwt:        jwt,
		otp:        otpSessions,
		accounts:   accounts,
		tx:         tx,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a customer and an inactive account. The phone must have
// been verified through an OTP session for the register action.
func (s *Service) Register(ctx context.Context, in RegisterInput, userAgent, ipAddress string) (*AuthTokens, error) {
	if !otp.IsPhone(in.Phone) {
		return nil, ErrInvalidPhone
	}
	if !pinPattern.MatchString(in.PIN) {
		return nil, ErrInvalidPIN
	}
	phone := otp.NormalizePhone(strings.TrimSpace(in.Phone))

	verified, err := s.otp.ConsumeSession(ctx, in.OTPToken, otp.ActionRegister)
	if err != nil {
		return nil, err
	}
	if verified != phone {
		return nil, otp.ErrOTPSessionInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var customer *db.Customer
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := s.repo.CreateCustomer(ctx, phone, strings.TrimSpace(in.Email), strings.TrimSpace(in.FullName), string(hash), RoleCustomer)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrPhoneRegistered
			}
			return err
		}
		if _, err := s.accounts.Open(ctx, created.ID); err != nil {
			return err
		}
		customer = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, customer, userAgent, ipAddress)
}

func (s *Service) Login(ctx context.Context, phone, pin, userAgent, ipAddress string) (*AuthTokens, error) {
	if !otp.IsPhone(phone) || strings.TrimSpace(pin) == "" {
		return nil, ErrInvalidCredentials
	}
	customer, err := s.repo.GetCustomerByPhone(ctx, otp.NormalizePhone(strings.TrimSpace(phone)))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if customer.PINLockedUntil != nil && now.Before(*customer.PINLockedUntil) {
		return nil, ErrPINLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(customer.PINHash), []byte(pin)) != nil {
		failures := customer.PINFailedCount + 1
		var lockedUntil *time.Time
		if failures >= maxPINFailures {
			until := now.Add(pinLockDuration)
			lockedUntil = &until
			failures = 0
		}
		if err := s.repo.UpdatePINState(ctx, customer.ID, failures, lockedUntil); err != nil {
			return nil, err
		}
		if lockedUntil != nil {
			return nil, ErrPINLocked
		}
		return nil, ErrInvalidCredentials
	}

	if customer.PINFailedCount > 0 || customer.PINLockedUntil != nil {
		if err := s.repo.UpdatePINState(ctx, customer.ID, 0, nil); err != nil {
			return nil, err
		}
	}
	return s.issue(ctx, customer, userAgent, ipAddress)
}

func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*AuthTokens, error) {
	claims, err := s.jwt.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}

	session, err := s.repo.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if session.RevokedAt != nil || s.now().After(session.ExpiresAt) {
		return nil, ErrSessionRevoked
	}
	if session.RefreshTokenHash != hashToken(refreshToken) {
		return nil, ErrInvalidToken
	}

	if err := s.repo.RevokeSession(ctx, session.ID); err != nil {
		return nil, err
	}

	customer, err := s.repo.GetCustomerByID(ctx, session.CustomerID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, customer, userAgent, ipAddress)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return nil
	}
	return s.repo.RevokeSession(ctx, claims.SessionID)
}

func (s *Service) Me(ctx context.Context, customerID string) (*db.Customer, error) {
	return s.repo.GetCustomerByID(ctx, customerID)
}

// ValidateSession reports whether the session behind an access token is
// still live.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) error {
	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrInvalidToken
		}
		return err
	}
	if session.RevokedAt != nil || s.now().After(session.ExpiresAt) {
		return ErrSessionRevoked
	}
	return nil
}

func (s *Service) issue(ctx context.Context, customer *db.Customer, userAgent, ipAddress string) (*AuthTokens, error) {
	expiresAt := s.now().Add(s.refreshTTL)
	session, err := s.repo.CreateSession(ctx, customer.ID, hashToken(uuid.NewString()), userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.Mint(customer.ID, session.ID, customer.Role, TokenAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwt.Mint(customer.ID, session.ID, customer.Role, TokenRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSessionRefreshHash(ctx, session.ID, hashToken(refreshToken)); err != nil {
		return nil, err
	}

	return &AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken, SessionID: session.ID, Customer: customer}, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

package auth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/julo/lendcore/internal/auth"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/otp"
)

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	customers map[string]*db.Customer
	sessions  map[string]*db.Session
	seq       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{customers: map[string]*db.Customer{}, sessions: map[string]*db.Session{}}
}

func (r *fakeRepo) CreateCustomer(_ context.Context, phone, email, fullName, pinHash, role string) (*db.Customer, error) {
	for _, c := range r.customers {
		if c.Phone == phone {
			return nil, &pgconn.PgError{Code: "23505"}
		}
	}
	r.seq++
	c := &db.Customer{ID: fmt.Sprintf("cust-%d", r.seq), Phone: phone, Email: email, FullName: fullName, PINHash: pinHash, Role: role}
	r.customers[c.ID] = c
	return c, nil
}

func (r *fakeRepo) GetCustomerByID(_ context.Context, customerID string) (*db.Customer, error) {
	if c, ok := r.customers[customerID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRepo) GetCustomerByPhone(_ context.Context, phone string) (*db.Customer, error) {
	for _, c := range r.customers {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRepo) UpdatePINState(_ context.Context, customerID string, failedCount int, lockedUntil *time.Time) error {
	c := r.customers[customerID]
	c.PINFailedCount = failedCount
	c.PINLockedUntil = lockedUntil
	return nil
}

func (r *fakeRepo) CreateSession(_ context.Context, customerID, refreshHash, userAgent, ipAddress string, expiresAt time.Time) (*db.Session, error) {
	r.seq++
	s := &db.Session{ID: fmt.Sprintf("s-%d", r.seq), CustomerID: customerID, RefreshTokenHash: refreshHash, UserAgent: userAgent, IPAddress: ipAddress, ExpiresAt: expiresAt}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *fakeRepo) GetSessionByID(_ context.Context, sessionID string) (*db.Session, error) {
	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRepo) RevokeSession(_ context.Context, sessionID string) error {
	if s, ok := r.sessions[sessionID]; ok && s.RevokedAt == nil {
		now := time.Now().UTC()
		s.RevokedAt = &now
	}
	return nil
}

func (r *fakeRepo) UpdateSessionRefreshHash(_ context.Context, sessionID, refreshHash string) error {
	r.sessions[sessionID].RefreshTokenHash = refreshHash
	return nil
}

type fakeOTP struct {
	tokens map[string]string
}

func (f *fakeOTP) ConsumeSession(_ context.Context, token, action string) (string, error) {
	dest, ok := f.tokens[token]
	if !ok || action != otp.ActionRegister {
		return "", otp.ErrOTPSessionInvalid
	}
	delete(f.tokens, token)
	return dest, nil
}

type fakeAccounts struct {
	opened []string
}

func (a *fakeAccounts) Open(_ context.Context, customerID string) (*account.Account, error) {
	a.opened = append(a.opened, customerID)
	return &account.Account{ID: "acc-" + customerID, CustomerID: customerID, Status: account.StatusInactive}, nil
}

func newService() (*auth.Service, *fakeRepo, *fakeOTP, *fakeAccounts) {
	repo := newFakeRepo()
	otps := &fakeOTP{tokens: map[string]string{"otp-ok": "+6281234567890", "otp-other": "+6289999999999"}}
	accounts := &fakeAccounts{}
	jwt := auth.NewJWTManager("lendcore", "lendcore-web", "secret")
	return auth.NewService(repo, jwt, otps, accounts, passthroughTx{}, 15*time.Minute, 24*time.Hour), repo, otps, accounts
}

func register(t *testing.T, svc *auth.Service) *auth.AuthTokens {
	t.Helper()
	tokens, err := svc.Register(context.Background(), auth.RegisterInput{
		Phone: "081234567890", PIN: "123456", FullName: "Budi Santoso", OTPToken: "otp-ok",
	}, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return tokens
}

func TestRegisterCreatesCustomerAndAccount(t *testing.T) {
	svc, repo, _, accounts := newService()

	tokens := register(t, svc)
	if tokens.Customer.Phone != "+6281234567890" || tokens.Customer.Role != auth.RoleCustomer {
		t.Fatalf("unexpected customer: %+v", tokens.Customer)
	}
	if len(accounts.opened) != 1 || accounts.opened[0] != tokens.Customer.ID {
		t.Fatalf("expected account to be opened, got %v", accounts.opened)
	}
	if repo.customers[tokens.Customer.ID].PINHash == "123456" {
		t.Fatalf("pin must be stored hashed")
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected tokens")
	}
}

func TestRegisterRequiresMatchingOTPSession(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterInput{Phone: "081234567890", PIN: "123456", OTPToken: "otp-other"}, "", "")
	if !errors.Is(err, otp.ErrOTPSessionInvalid) {
		t.Fatalf("expected session mismatch, got %v", err)
	}
	_, err = svc.Register(ctx, auth.RegisterInput{Phone: "081234567890", PIN: "12ab56", OTPToken: "otp-ok"}, "", "")
	if !errors.Is(err, auth.ErrInvalidPIN) {
		t.Fatalf("expected invalid pin, got %v", err)
	}
	_, err = svc.Register(ctx, auth.RegisterInput{Phone: "12345", PIN: "123456", OTPToken: "otp-ok"}, "", "")
	if !errors.Is(err, auth.ErrInvalidPhone) {
		t.Fatalf("expected invalid phone, got %v", err)
	}
}

func TestRegisterDuplicatePhone(t *testing.T) {
	svc, _, otps, _ := newService()
	register(t, svc)

	otps.tokens["otp-again"] = "+6281234567890"
	_, err := svc.Register(context.Background(), auth.RegisterInput{Phone: "+6281234567890", PIN: "654321", OTPToken: "otp-again"}, "", "")
	if !errors.Is(err, auth.ErrPhoneRegistered) {
		t.Fatalf("expected phone registered, got %v", err)
	}
}

func TestLoginLocksPINAfterThreeFailures(t *testing.T) {
	svc, repo, _, _ := newService()
	customer := register(t, svc).Customer
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, "081234567890", "000000", "", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}
	if _, err := svc.Login(ctx, "081234567890", "000000", "", ""); !errors.Is(err, auth.ErrPINLocked) {
		t.Fatalf("expected pin locked on third failure, got %v", err)
	}
	if _, err := svc.Login(ctx, "081234567890", "123456", "", ""); !errors.Is(err, auth.ErrPINLocked) {
		t.Fatalf("correct pin must not bypass the lock, got %v", err)
	}

	past := time.Now().Add(-time.Minute)
	repo.customers[customer.ID].PINLockedUntil = &past
	tokens, err := svc.Login(ctx, "+6281234567890", "123456", "", "")
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if repo.customers[customer.ID].PINLockedUntil != nil || repo.customers[customer.ID].PINFailedCount != 0 {
		t.Fatalf("successful login must reset pin state")
	}
	if tokens.Customer.ID != customer.ID {
		t.Fatalf("unexpected customer %s", tokens.Customer.ID)
	}
}

func TestLoginUnknownPhone(t *testing.T) {
	svc, _, _, _ := newService()
	if _, err := svc.Login(context.Background(), "081200000000", "123456", "", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, repo, _, _ := newService()
	first := register(t, svc)
	ctx := context.Background()

	second, err := svc.Refresh(ctx, first.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatalf("expected a new session")
	}
	if repo.sessions[first.SessionID].RevokedAt == nil {
		t.Fatalf("old session must be revoked")
	}
	if _, err := svc.Refresh(ctx, first.RefreshToken, "", ""); !errors.Is(err, auth.ErrSessionRevoked) {
		t.Fatalf("expected reused refresh token to fail, got %v", err)
	}
	if _, err := svc.Refresh(ctx, second.AccessToken, "", ""); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("access token must not refresh, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, _, _ := newService()
	tokens := register(t, svc)
	ctx := context.Background()

	if err := svc.ValidateSession(ctx, tokens.SessionID); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}
	if err := svc.Logout(ctx, tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := svc.ValidateSession(ctx, tokens.SessionID); !errors.Is(err, auth.ErrSessionRevoked) {
		t.Fatalf("expected revoked session, got %v", err)
	}
	if err := svc.Logout(ctx, "garbage"); err != nil {
		t.Fatalf("logout with garbage token must be a no-op, got %v", err)
	}
}

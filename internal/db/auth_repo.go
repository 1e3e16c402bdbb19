package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Customer struct {
	ID             string     `json:"id"`
	Phone          string     `json:"phone"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	PINHash        string     `json:"-"`
	PINFailedCount int        `json:"-"`
	PINLockedUntil *time.Time `json:"-"`
	Role           string     `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Session struct {
	ID               string
	CustomerID       string
	RefreshTokenHash string
	UserAgent        string
	IPAddress        string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AuthRepository struct {
	pool *pgxpool.Pool
}

func NewAuthRepository(pool *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{pool: pool}
}

const customerColumns = `id, phone, email, full_name, pin_hash, pin_failed_count, pin_locked_until, role, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*Customer, error) {
	c := &Customer{}
	err := row.Scan(&c.ID, &c.Phone, &c.Email, &c.FullName, &c.PINHash, &c.PINFailedCount, &c.PINLockedUntil, &c.Role, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *AuthRepository) CreateCustomer(ctx context.Context, phone, email, fullName, pinHash, role string) (*Customer, error) {
	q := `
INSERT INTO customers (phone, email, full_name, pin_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + customerColumns
	return scanCustomer(Conn(ctx, r.pool).QueryRow(ctx, q, phone, email, fullName, pinHash, role))
}

func (r *AuthRepository) GetCustomerByID(ctx context.Context, customerID string) (*Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return scanCustomer(Conn(ctx, r.pool).QueryRow(ctx, q, customerID))
}

func (r *AuthRepository) GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1`
	return scanCustomer(Conn(ctx, r.pool).QueryRow(ctx, q, phone))
}

func (r *AuthRepository) UpdatePINState(ctx context.Context, customerID string, failedCount int, lockedUntil *time.Time) error {
	q := `UPDATE customers SET pin_failed_count = $2, pin_locked_until = $3, updated_at = NOW() WHERE id = $1`
	_, err := Conn(ctx, r.pool).Exec(ctx, q, customerID, failedCount, lockedUntil)
	return err
}

func (r *AuthRepository) CreateSession(ctx context.Context, customerID, refreshHash, userAgent, ipAddress string, expiresAt time.Time) (*Session, error) {
	q := `
INSERT INTO auth_sessions (customer_id, refresh_token_hash, user_agent, ip_address, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, customer_id, refresh_token_hash, user_agent, ip_address, expires_at, revoked_at, created_at, updated_at
`
	s := &Session{}
	err := Conn(ctx, r.pool).QueryRow(ctx, q, customerID, refreshHash, userAgent, ipAddress, expiresAt).
		Scan(&s.ID, &s.CustomerID, &s.RefreshTokenHash, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *AuthRepository) GetSessionByID(ctx context.Context, sessionID string) (*Session, error) {
	q := `
SELECT id, customer_id, refresh_token_hash, user_agent, ip_address, expires_at, revoked_at, created_at, updated_at
FROM auth_sessions
WHERE id = $1
`
	s := &Session{}
	err := Conn(ctx, r.pool).QueryRow(ctx, q, sessionID).
		Scan(&s.ID, &s.CustomerID, &s.RefreshTokenHash, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *AuthRepository) RevokeSession(ctx context.Context, sessionID string) error {
	q := `UPDATE auth_sessions SET revoked_at = NOW(), updated_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	_, err := Conn(ctx, r.pool).Exec(ctx, q, sessionID)
	return err
}

func (r *AuthRepository) UpdateSessionRefreshHash(ctx context.Context, sessionID, refreshHash string) error {
	q := `UPDATE auth_sessions SET refresh_token_hash = $2, updated_at = NOW() WHERE id = $1`
	_, err := Conn(ctx, r.pool).Exec(ctx, q, sessionID, refreshHash)
	return err
}

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	admindomain "github.com/julo/lendcore/internal/domain/admin"
)

type AdminAuditRepository struct {
	pool *pgxpool.Pool
}

func NewAdminAuditRepository(pool *pgxpool.Pool) *AdminAuditRepository {
	return &AdminAuditRepository{pool: pool}
}

func (r *AdminAuditRepository) Log(ctx context.Context, in admindomain.AuditLogInput) error {
	q := `
INSERT INTO admin_audit_logs (actor_id, action, target_type, target_id, payload)
VALUES ($1, $2, $3, $4, COALESCE($5::jsonb, '{}'::jsonb))
`
	var payload any
	if len(in.Payload) > 0 {
		payload = string(in.Payload)
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, q, in.AdminUserID, in.Action, in.TargetType, in.TargetID, payload)
	return err
}

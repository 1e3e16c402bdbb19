package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/featuresetting"
)

type FeatureSettingRepository struct {
	pool *pgxpool.Pool
}

func NewFeatureSettingRepository(pool *pgxpool.Pool) *FeatureSettingRepository {
	return &FeatureSettingRepository{pool: pool}
}

const featureSettingColumns = `id, feature_name, is_active, category, description, parameters, updated_at`

func scanFeatureSetting(row pgx.Row) (*featuresetting.Setting, error) {
	out := &featuresetting.Setting{}
	err := row.Scan(&out.ID, &out.FeatureName, &out.IsActive, &out.Category, &out.Description, &out.Parameters, &out.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, featuresetting.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *FeatureSettingRepository) GetByName(ctx context.Context, name string) (*featuresetting.Setting, error) {
	return scanFeatureSetting(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+featureSettingColumns+` FROM feature_settings WHERE feature_name = $1`, name))
}

func (r *FeatureSettingRepository) List(ctx context.Context) ([]featuresetting.Setting, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+featureSettingColumns+` FROM feature_settings ORDER BY feature_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]featuresetting.Setting, 0)
	for rows.Next() {
		s, err := scanFeatureSetting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update leaves a field unchanged when its input is nil.
func (r *FeatureSettingRepository) Update(ctx context.Context, name string, in featuresetting.UpdateInput) (*featuresetting.Setting, error) {
	q := `
UPDATE feature_settings
SET is_active = COALESCE($2, is_active),
    parameters = COALESCE($3::jsonb, parameters),
    updated_at = NOW()
WHERE feature_name = $1
RETURNING ` + featureSettingColumns
	var params any
	if len(in.Parameters) > 0 {
		params = string(in.Parameters)
	}
	return scanFeatureSetting(db.Conn(ctx, r.pool).QueryRow(ctx, q, name, in.IsActive, params))
}

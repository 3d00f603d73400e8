package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/libs/db"
)

const availabilityKey = "availability"

// SettingsRepository stores keyed JSON configuration. The availability
// config is written with an upsert, so readers never observe a partial
// replacement.
type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) GetAvailability(ctx context.Context) (*model.AvailabilityConfig, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, availabilityKey).Scan(&raw)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg model.AvailabilityConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode availability config: %w", err)
	}
	return &cfg, nil
}

func (r *SettingsRepository) SaveAvailability(ctx context.Context, cfg model.AvailabilityConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode availability config: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, availabilityKey, raw)
	return err
}

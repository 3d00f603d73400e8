package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/libs/db"
)

type OfferingRepository struct {
	pool *db.Pool
}

func NewOfferingRepository(pool *db.Pool) *OfferingRepository {
	return &OfferingRepository{pool: pool}
}

const offeringColumns = `
	id::text, name, COALESCE(description, ''), duration_minutes, price::float8,
	COALESCE(icon, ''), active, created_at`

func (r *OfferingRepository) Insert(ctx context.Context, o *model.Offering) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO offerings (id, name, description, duration_minutes, price, icon, active)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7)
	`, o.ID, o.Name, o.Description, o.DurationMinutes, o.Price, o.Icon, o.Active)
	if IsUniqueViolation(err) {
		return apperr.Newf(apperr.KindConflict, "an offering named %q already exists", o.Name)
	}
	return err
}

func (r *OfferingRepository) Update(ctx context.Context, o *model.Offering) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE offerings
		SET name = $2,
			description = NULLIF($3, ''),
			duration_minutes = $4,
			price = $5,
			icon = NULLIF($6, ''),
			active = $7
		WHERE id = $1
	`, o.ID, o.Name, o.Description, o.DurationMinutes, o.Price, o.Icon, o.Active)
	if IsUniqueViolation(err) {
		return apperr.Newf(apperr.KindConflict, "an offering named %q already exists", o.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "offering not found")
	}
	return nil
}

func (r *OfferingRepository) GetByID(ctx context.Context, id string) (model.Offering, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+offeringColumns+` FROM offerings WHERE id = $1`, id)
	return scanOffering(row)
}

func (r *OfferingRepository) GetByName(ctx context.Context, name string) (model.Offering, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+offeringColumns+` FROM offerings WHERE lower(name) = lower($1)`, name)
	return scanOffering(row)
}

func (r *OfferingRepository) List(ctx context.Context, activeOnly bool) ([]model.Offering, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+offeringColumns+`
		FROM offerings
		WHERE ($1 = false OR active)
		ORDER BY name ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Offering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM offerings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "offering not found")
	}
	return nil
}

func (r *OfferingRepository) CountAppointments(ctx context.Context, offeringID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments WHERE offering_id = $1`, offeringID).Scan(&n)
	return n, err
}

func scanOffering(row pgx.Row) (model.Offering, error) {
	var o model.Offering
	err := row.Scan(&o.ID, &o.Name, &o.Description, &o.DurationMinutes, &o.Price, &o.Icon, &o.Active, &o.CreatedAt)
	if IsNoRows(err) {
		return model.Offering{}, apperr.New(apperr.KindNotFound, "offering not found")
	}
	if err != nil {
		return model.Offering{}, err
	}
	return o, nil
}

package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/libs/db"
)

type TipRepository struct {
	pool *db.Pool
}

func NewTipRepository(pool *db.Pool) *TipRepository {
	return &TipRepository{pool: pool}
}

const tipColumns = `id::text, title, content, active, created_at, updated_at`

func (r *TipRepository) Insert(ctx context.Context, tip *model.Tip) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tips (id, title, content, active)
		VALUES ($1, $2, $3, $4)
	`, tip.ID, tip.Title, tip.Content, tip.Active)
	return err
}

func (r *TipRepository) Update(ctx context.Context, tip *model.Tip) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tips
		SET title = $2, content = $3, active = $4, updated_at = now()
		WHERE id = $1
	`, tip.ID, tip.Title, tip.Content, tip.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "tip not found")
	}
	return nil
}

func (r *TipRepository) GetByID(ctx context.Context, id string) (model.Tip, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tipColumns+` FROM tips WHERE id = $1`, id)
	return scanTip(row)
}

func (r *TipRepository) List(ctx context.Context, activeOnly bool) ([]model.Tip, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tipColumns+`
		FROM tips
		WHERE ($1 = false OR active)
		ORDER BY created_at DESC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tip
	for rows.Next() {
		tip, err := scanTip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tip)
	}
	return out, rows.Err()
}

func (r *TipRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tips WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "tip not found")
	}
	return nil
}

func scanTip(row pgx.Row) (model.Tip, error) {
	var tip model.Tip
	err := row.Scan(&tip.ID, &tip.Title, &tip.Content, &tip.Active, &tip.CreatedAt, &tip.UpdatedAt)
	if IsNoRows(err) {
		return model.Tip{}, apperr.New(apperr.KindNotFound, "tip not found")
	}
	if err != nil {
		return model.Tip{}, err
	}
	return tip, nil
}

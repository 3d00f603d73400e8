package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/internal/outbox"
	"github.com/naildiary/booking/internal/schedule"
	"github.com/naildiary/booking/internal/stats"
	"github.com/naildiary/booking/libs/db"
)

// AppointmentRepository persists appointments and, where a state change
// carries a domain event, writes the event into the outbox in the same
// transaction. The appointments table carries an exclusion constraint on
// the active interval, so a conflicting insert that slips past the in-code
// check is rejected here with a slot conflict.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, ob *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: ob}
}

const apptColumns = `
	a.id::text, a.client_name, a.client_email, a.client_phone, a.offering_id::text,
	a.scheduled_at, a.end_time, a.duration_minutes, a.status,
	a.archived, a.archived_at, a.verification_token, a.verification_pin,
	COALESCE(a.notes, ''), a.created_at, a.updated_at`

const joinedColumns = apptColumns + `,
	o.id::text, o.name, o.duration_minutes, o.price::float8, COALESCE(o.icon, ''), o.active`

const fromJoined = `
	FROM appointments a
	LEFT JOIN offerings o ON o.id = a.offering_id`

func (r *AppointmentRepository) Insert(ctx context.Context, a *model.Appointment, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, client_name, client_email, client_phone, offering_id, scheduled_at, end_time,
			 duration_minutes, status, verification_token, verification_pin, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''))
	`, a.ID, a.ClientName, a.ClientEmail, a.ClientPhone, a.OfferingID, a.ScheduledAt, a.EndTime,
		a.DurationMinutes, a.Status, a.Token, a.PIN, a.Notes)
	if err != nil {
		return translateWriteError(err)
	}
	if err := r.outbox.InsertTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) Update(ctx context.Context, a *model.Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET client_name = $2,
			client_email = $3,
			client_phone = $4,
			offering_id = $5,
			scheduled_at = $6,
			end_time = $7,
			duration_minutes = $8,
			notes = NULLIF($9, ''),
			updated_at = now()
		WHERE id = $1
	`, a.ID, a.ClientName, a.ClientEmail, a.ClientPhone, a.OfferingID,
		a.ScheduledAt, a.EndTime, a.DurationMinutes, a.Notes)
	if err != nil {
		return translateWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "appointment not found")
	}
	return nil
}

// SetStatus applies a status transition. A non-nil archivedAt marks the
// appointment archived in the same statement, so completion and archiving
// are one observable write.
func (r *AppointmentRepository) SetStatus(ctx context.Context, id string, status model.Status, archivedAt *time.Time, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments a
		SET status = $2,
			archived = (a.archived OR $3::timestamptz IS NOT NULL),
			archived_at = COALESCE($3, a.archived_at),
			updated_at = now()
		WHERE a.id = $1
		RETURNING `+apptColumns,
		id, status, archivedAt)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsNoRows(err) {
			return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
		}
		return model.Appointment{}, translateWriteError(err)
	}
	if err := r.outbox.InsertTx(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) Unarchive(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments a
		SET archived = false,
			archived_at = NULL,
			updated_at = now()
		WHERE a.id = $1
		RETURNING `+apptColumns, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsNoRows(err) {
			return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "appointment not found")
	}
	if err := r.outbox.InsertTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (model.Appointment, error) {
	return r.getOne(ctx, `WHERE a.id = $1`, id)
}

func (r *AppointmentRepository) GetByToken(ctx context.Context, token string) (model.Appointment, error) {
	appt, err := r.getOne(ctx, `WHERE a.verification_token = $1`, token)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "no appointment matches this verification code")
	}
	return appt, err
}

func (r *AppointmentRepository) GetByPINAndEmail(ctx context.Context, pin, email string) (model.Appointment, error) {
	appt, err := r.getOne(ctx, `WHERE a.verification_pin = $1 AND lower(a.client_email) = lower($2)
		ORDER BY a.created_at DESC LIMIT 1`, pin, email)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "no appointment matches this verification code")
	}
	return appt, err
}

func (r *AppointmentRepository) getOne(ctx context.Context, where string, args ...any) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+joinedColumns+fromJoined+` `+where, args...)
	appt, err := scanJoinedAppointment(row)
	if err != nil {
		if IsNoRows(err) {
			return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment not found")
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) List(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	query := `SELECT ` + joinedColumns + fromJoined + ` WHERE a.archived = $1`
	args := []any{f.Archived}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND a.status = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND a.scheduled_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND a.scheduled_at < $%d", len(args))
	}
	// The active list reads as an agenda; the archive reads as a history,
	// most recently archived first.
	if f.Archived {
		query += " ORDER BY a.archived_at DESC"
	} else {
		query += " ORDER BY a.scheduled_at ASC"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanJoinedAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

// ActiveIntervalsOn feeds the conflict checker: the occupied intervals of
// calendar-blocking appointments starting on the given local day.
func (r *AppointmentRepository) ActiveIntervalsOn(ctx context.Context, day time.Time, excludeID string) ([]schedule.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_at, end_time
		FROM appointments
		WHERE status IN ('PENDING', 'CONFIRMED')
			AND scheduled_at >= $1
			AND scheduled_at < $2
			AND ($3 = '' OR id::text <> $3)
		ORDER BY scheduled_at ASC
	`, day, day.AddDate(0, 0, 1), excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []schedule.Interval
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// CompletedRows feeds the statistics aggregator. The inner join drops
// appointments whose offering no longer exists; those are excluded from
// aggregation rather than reported as errors.
func (r *AppointmentRepository) CompletedRows(ctx context.Context, from, to *time.Time) ([]stats.Row, error) {
	query := `
		SELECT o.name, o.price::float8, a.scheduled_at
		FROM appointments a
		JOIN offerings o ON o.id = a.offering_id
		WHERE a.status = 'COMPLETED'`
	args := []any{}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND a.scheduled_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND a.scheduled_at < $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stats.Row
	for rows.Next() {
		var row stats.Row
		if err := rows.Scan(&row.OfferingName, &row.Price, &row.ScheduledAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID, &a.ClientName, &a.ClientEmail, &a.ClientPhone, &a.OfferingID,
		&a.ScheduledAt, &a.EndTime, &a.DurationMinutes, &a.Status,
		&a.Archived, &a.ArchivedAt, &a.Token, &a.PIN,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func scanJoinedAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var offID, offName, offIcon *string
	var offDuration *int
	var offPrice *float64
	var offActive *bool
	err := row.Scan(
		&a.ID, &a.ClientName, &a.ClientEmail, &a.ClientPhone, &a.OfferingID,
		&a.ScheduledAt, &a.EndTime, &a.DurationMinutes, &a.Status,
		&a.Archived, &a.ArchivedAt, &a.Token, &a.PIN,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&offID, &offName, &offDuration, &offPrice, &offIcon, &offActive,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	if offID != nil {
		a.Offering = &model.Offering{
			ID:              *offID,
			Name:            *offName,
			DurationMinutes: *offDuration,
			Price:           *offPrice,
			Icon:            *offIcon,
			Active:          *offActive,
		}
	}
	return a, nil
}

func translateWriteError(err error) error {
	switch {
	case IsExclusionViolation(err):
		return apperr.New(apperr.KindSlotUnavailable, "this time slot is already taken, please pick another")
	case IsUniqueViolation(err):
		return apperr.New(apperr.KindConflict, "a conflicting record already exists")
	default:
		return err
	}
}

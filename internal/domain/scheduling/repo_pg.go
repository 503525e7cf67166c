package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/db"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "23514") {
		return fmt.Errorf("%w: %s", identity.ErrInvalid, pgErr.ConstraintName)
	}
	return err
}

const appointmentFrom = `appointment a
	JOIN patient p ON p.id = a.patient_id
	JOIN doctor d ON d.id = a.doctor_id`

const appointmentCols = `a.id, a.patient_id, a.doctor_id, a.starts_at, a.duration_minutes, a.motive, a.status,
	a.created_at, a.updated_at, p.first_name, p.last_name, d.first_name, d.last_name`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.StartsAt, &a.DurationMinutes, &a.Motive, &a.Status,
		&a.CreatedAt, &a.UpdatedAt, &a.PatientFirstName, &a.PatientLastName, &a.DoctorFirstName, &a.DoctorLastName)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (patient_id, doctor_id, starts_at, duration_minutes, motive, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		a.PatientID, a.DoctorID, a.StartsAt, a.DurationMinutes, a.Motive, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return mapErr(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM `+appointmentFrom+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET
			patient_id = $2, doctor_id = $3, starts_at = $4, duration_minutes = $5,
			motive = $6, status = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.StartsAt, a.DurationMinutes, a.Motive, a.Status,
	).Scan(&a.UpdatedAt)
	return mapErr(err)
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, filter Filter, limit, offset int) ([]*Appointment, int, error) {
	qb := db.NewSearchQuery(appointmentFrom, appointmentCols)
	if filter.PatientID > 0 {
		qb.AddEq("a.patient_id", filter.PatientID)
	}
	if filter.DoctorID > 0 {
		qb.AddEq("a.doctor_id", filter.DoctorID)
	}
	if filter.Status != "" {
		qb.AddEq("a.status", filter.Status)
	}
	qb.AddContains(filter.Search, "p.last_name", "p.first_name", "d.last_name", "d.first_name")
	qb.OrderBy("a.starts_at ASC, a.id ASC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

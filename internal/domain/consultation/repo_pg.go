package consultation

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

type consultationRepoPG struct {
	pool *pgxpool.Pool
}

func NewConsultationRepo(pool *pgxpool.Pool) ConsultationRepository {
	return &consultationRepoPG{pool: pool}
}

func (r *consultationRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "22003") {
		return fmt.Errorf("%w: %s", identity.ErrInvalid, pgErr.Message)
	}
	return err
}

const consultationFrom = `consultation c
	JOIN patient p ON p.id = c.patient_id
	JOIN doctor d ON d.id = c.doctor_id`

const consultationCols = `c.id, c.patient_id, c.doctor_id, c.consulted_at, c.motive, c.clinical_exam,
	c.diagnosis, c.observations, c.weight, c.blood_pressure, c.temperature, c.created_at, c.updated_at,
	p.first_name, p.last_name, d.first_name, d.last_name`

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.ConsultedAt, &c.Motive, &c.ClinicalExam,
		&c.Diagnosis, &c.Observations, &c.Weight, &c.BloodPressure, &c.Temperature, &c.CreatedAt, &c.UpdatedAt,
		&c.PatientFirstName, &c.PatientLastName, &c.DoctorFirstName, &c.DoctorLastName)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultation (
			patient_id, doctor_id, consulted_at, motive, clinical_exam, diagnosis,
			observations, weight, blood_pressure, temperature
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at`,
		c.PatientID, c.DoctorID, c.ConsultedAt, c.Motive, c.ClinicalExam, c.Diagnosis,
		c.Observations, c.Weight, c.BloodPressure, c.Temperature,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapErr(err)
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id int64) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM `+consultationFrom+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (r *consultationRepoPG) Update(ctx context.Context, c *Consultation) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE consultation SET
			patient_id = $2, doctor_id = $3, consulted_at = $4, motive = $5, clinical_exam = $6,
			diagnosis = $7, observations = $8, weight = $9, blood_pressure = $10, temperature = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.PatientID, c.DoctorID, c.ConsultedAt, c.Motive, c.ClinicalExam,
		c.Diagnosis, c.Observations, c.Weight, c.BloodPressure, c.Temperature,
	).Scan(&c.UpdatedAt)
	return mapErr(err)
}

func (r *consultationRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultation WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (r *consultationRepoPG) List(ctx context.Context, filter Filter, limit, offset int) ([]*Consultation, int, error) {
	qb := db.NewSearchQuery(consultationFrom, consultationCols)
	if filter.PatientID > 0 {
		qb.AddEq("c.patient_id", filter.PatientID)
	}
	if filter.DoctorID > 0 {
		qb.AddEq("c.doctor_id", filter.DoctorID)
	}
	qb.AddContains(filter.Search,
		"p.last_name", "p.first_name", "d.last_name", "d.first_name", "c.diagnosis", "c.motive")
	qb.OrderBy("c.consulted_at DESC, c.id DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

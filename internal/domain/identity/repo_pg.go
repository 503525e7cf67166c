package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrInvalid, pgErr.ConstraintName)
		}
	}
	return err
}

// nameCandidatesSQL returns records whose "first last" or "last first" equals
// the submitted text exactly.
func nameCandidatesSQL(table string) string {
	return `SELECT id, first_name, last_name FROM ` + table + `
		WHERE first_name || ' ' || last_name = $1 OR last_name || ' ' || first_name = $1
		ORDER BY id`
}

func queryNames(ctx context.Context, q db.Querier, table, fullName string) ([]PersonName, error) {
	rows, err := q.Query(ctx, nameCandidatesSQL(table), fullName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PersonName
	for rows.Next() {
		var n PersonName
		if err := rows.Scan(&n.ID, &n.FirstName, &n.LastName); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientFrom = `patient p LEFT JOIN medical_file f ON f.patient_id = p.id`

const patientCols = `p.id, p.file_number, p.last_name, p.first_name, p.birth_date::text, p.sex,
	p.phone, p.address, p.email, p.blood_group, p.marital_status, p.created_at, p.updated_at,
	f.id, f.medical_history, f.surgical_history, f.allergies, f.chronic_diseases,
	f.current_treatments, f.updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var f MedicalFile
	var fileID *int64
	var fileUpdated *time.Time
	err := row.Scan(&p.ID, &p.FileNumber, &p.LastName, &p.FirstName, &p.BirthDate, &p.Sex,
		&p.Phone, &p.Address, &p.Email, &p.BloodGroup, &p.MaritalStatus, &p.CreatedAt, &p.UpdatedAt,
		&fileID, &f.MedicalHistory, &f.SurgicalHistory, &f.Allergies, &f.ChronicDiseases,
		&f.CurrentTreatments, &fileUpdated)
	if err != nil {
		return nil, err
	}
	if fileID != nil {
		f.ID = *fileID
		f.PatientID = p.ID
		if fileUpdated != nil {
			f.UpdatedAt = *fileUpdated
		}
		p.MedicalFile = &f
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			file_number, last_name, first_name, birth_date, sex,
			phone, address, email, blood_group, marital_status
		) VALUES ($1,$2,$3,$4::date,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at`,
		p.FileNumber, p.LastName, p.FirstName, p.BirthDate, p.Sex,
		p.Phone, p.Address, p.Email, p.BloodGroup, p.MaritalStatus,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM `+patientFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			last_name = $2, first_name = $3, birth_date = $4::date, sex = $5,
			phone = $6, address = $7, email = $8, blood_group = $9, marital_status = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.LastName, p.FirstName, p.BirthDate, p.Sex,
		p.Phone, p.Address, p.Email, p.BloodGroup, p.MaritalStatus,
	).Scan(&p.UpdatedAt)
	return mapErr(err)
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	qb := db.NewSearchQuery(patientFrom, patientCols)
	qb.AddContains(search, "p.last_name", "p.first_name", "p.file_number")
	qb.OrderBy("p.created_at DESC, p.id DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) NameCandidates(ctx context.Context, fullName string) ([]PersonName, error) {
	return queryNames(ctx, r.conn(ctx), "patient", fullName)
}

func (r *patientRepoPG) LastFileNumber(ctx context.Context) (string, error) {
	q := r.conn(ctx)
	if db.TxFromContext(ctx) != nil {
		if _, err := q.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext(current_schema() || '.patient.file_number'))`); err != nil {
			return "", fmt.Errorf("lock file numbers: %w", err)
		}
	}
	var last string
	err := q.QueryRow(ctx, `SELECT file_number FROM patient ORDER BY id DESC LIMIT 1`).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return last, err
}

// -- Medical File Repository --

type medicalFileRepoPG struct {
	pool *pgxpool.Pool
}

func NewMedicalFileRepo(pool *pgxpool.Pool) MedicalFileRepository {
	return &medicalFileRepoPG{pool: pool}
}

func (r *medicalFileRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const medicalFileCols = `id, patient_id, medical_history, surgical_history, allergies,
	chronic_diseases, current_treatments, updated_at`

func (r *medicalFileRepoPG) Create(ctx context.Context, f *MedicalFile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_file (
			patient_id, medical_history, surgical_history, allergies, chronic_diseases, current_treatments
		) VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, updated_at`,
		f.PatientID, f.MedicalHistory, f.SurgicalHistory, f.Allergies, f.ChronicDiseases, f.CurrentTreatments,
	).Scan(&f.ID, &f.UpdatedAt)
	return mapErr(err)
}

func (r *medicalFileRepoPG) GetByPatient(ctx context.Context, patientID int64) (*MedicalFile, error) {
	var f MedicalFile
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+medicalFileCols+` FROM medical_file WHERE patient_id = $1`, patientID,
	).Scan(&f.ID, &f.PatientID, &f.MedicalHistory, &f.SurgicalHistory, &f.Allergies,
		&f.ChronicDiseases, &f.CurrentTreatments, &f.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &f, nil
}

func (r *medicalFileRepoPG) Update(ctx context.Context, f *MedicalFile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_file SET
			medical_history = $2, surgical_history = $3, allergies = $4,
			chronic_diseases = $5, current_treatments = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.MedicalHistory, f.SurgicalHistory, f.Allergies, f.ChronicDiseases, f.CurrentTreatments,
	).Scan(&f.UpdatedAt)
	return mapErr(err)
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorFrom = `doctor d LEFT JOIN specialty s ON s.id = d.specialty_id`

const doctorCols = `d.id, d.license_number, d.last_name, d.first_name, d.specialty_id, s.name,
	d.phone, d.email, d.consultation_fee, d.created_at, d.updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.LicenseNumber, &d.LastName, &d.FirstName, &d.SpecialtyID, &d.SpecialtyName,
		&d.Phone, &d.Email, &d.ConsultationFee, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.DisplayName = DoctorDisplayName(d.FirstName, d.LastName)
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (
			license_number, last_name, first_name, specialty_id, phone, email, consultation_fee
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		d.LicenseNumber, d.LastName, d.FirstName, d.SpecialtyID, d.Phone, d.Email, d.ConsultationFee,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	return mapErr(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM `+doctorFrom+` WHERE d.id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor SET
			license_number = $2, last_name = $3, first_name = $4, specialty_id = $5,
			phone = $6, email = $7, consultation_fee = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.LicenseNumber, d.LastName, d.FirstName, d.SpecialtyID, d.Phone, d.Email, d.ConsultationFee,
	).Scan(&d.UpdatedAt)
	return mapErr(err)
}

func (r *doctorRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	qb := db.NewSearchQuery(doctorFrom, doctorCols)
	qb.AddContains(filter.Search, "d.last_name", "d.first_name", "d.license_number")
	if filter.SpecialtyID > 0 {
		qb.AddEq("d.specialty_id", filter.SpecialtyID)
	}
	qb.OrderBy("d.last_name, d.first_name, d.id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *doctorRepoPG) NameCandidates(ctx context.Context, fullName string) ([]PersonName, error) {
	return queryNames(ctx, r.conn(ctx), "doctor", fullName)
}

// -- Specialty Repository --

type specialtyRepoPG struct {
	pool *pgxpool.Pool
}

func NewSpecialtyRepo(pool *pgxpool.Pool) SpecialtyRepository {
	return &specialtyRepoPG{pool: pool}
}

func (r *specialtyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO specialty (name, description) VALUES ($1, $2) RETURNING id`,
		s.Name, s.Description,
	).Scan(&s.ID)
	return mapErr(err)
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id int64) (*Specialty, error) {
	var s Specialty
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, description FROM specialty WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Description)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *specialtyRepoPG) List(ctx context.Context) ([]*Specialty, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, description FROM specialty ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

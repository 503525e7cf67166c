package identity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
)

// FileNumberPrefix starts every patient file number.
const FileNumberPrefix = "P"

// firstFileNumber is allocated when no patient exists yet. The three seeded
// demo patients hold P000001 to P000003.
const firstFileNumber = 4

// NextFileNumber derives the file number following last. The numeric part is
// read from the leading digits after the prefix; an unreadable value counts
// as zero.
func NextFileNumber(last string) string {
	if last == "" {
		return fmt.Sprintf("%s%06d", FileNumberPrefix, firstFileNumber)
	}
	digits := strings.TrimPrefix(last, FileNumberPrefix)
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(digits[:end])
	return fmt.Sprintf("%s%06d", FileNumberPrefix, n+1)
}

type Service struct {
	patients    PatientRepository
	files       MedicalFileRepository
	doctors     DoctorRepository
	specialties SpecialtyRepository
	tx          db.TxRunner
	events      *events.Emitter
	logger      zerolog.Logger
}

func NewService(patients PatientRepository, files MedicalFileRepository, doctors DoctorRepository,
	specialties SpecialtyRepository, tx db.TxRunner, emitter *events.Emitter, logger zerolog.Logger) *Service {
	return &Service{
		patients:    patients,
		files:       files,
		doctors:     doctors,
		specialties: specialties,
		tx:          tx,
		events:      emitter,
		logger:      logger,
	}
}

// -- Patient --

func validatePatient(p *Patient) error {
	if strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("%w: last name is required", ErrInvalid)
	}
	if strings.TrimSpace(p.FirstName) == "" {
		return fmt.Errorf("%w: first name is required", ErrInvalid)
	}
	if _, err := time.Parse("2006-01-02", p.BirthDate); err != nil {
		return fmt.Errorf("%w: birth date must be YYYY-MM-DD", ErrInvalid)
	}
	if p.Sex != "M" && p.Sex != "F" {
		return fmt.Errorf("%w: sex must be M or F", ErrInvalid)
	}
	return nil
}

// CreatePatient stores p under the next file number together with its empty
// medical file. Either both rows exist afterwards or neither does.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		last, err := s.patients.LastFileNumber(ctx)
		if err != nil {
			return fmt.Errorf("read last file number: %w", err)
		}
		p.FileNumber = NextFileNumber(last)

		if err := s.patients.Create(ctx, p); err != nil {
			return fmt.Errorf("insert patient: %w", err)
		}

		f := &MedicalFile{PatientID: p.ID}
		if err := s.files.Create(ctx, f); err != nil {
			return fmt.Errorf("insert medical file: %w", err)
		}
		p.MedicalFile = f
		return nil
	})
	if err != nil {
		p.ID = 0
		p.MedicalFile = nil
		return err
	}

	s.logger.Info().Int64("patient_id", p.ID).Str("file_number", p.FileNumber).Msg("patient created")
	s.events.Emit(ctx, events.PatientCreated, p.ID)
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, u PatientUpdate) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(p)
	if err := validatePatient(p); err != nil {
		return nil, err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, strings.TrimSpace(search), limit, offset)
}

// -- Medical File --

func (s *Service) GetMedicalFile(ctx context.Context, patientID int64) (*MedicalFile, error) {
	return s.files.GetByPatient(ctx, patientID)
}

func (s *Service) UpdateMedicalFile(ctx context.Context, patientID int64, u MedicalFileUpdate) (*MedicalFile, error) {
	f, err := s.files.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	u.Apply(f)
	if err := s.files.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// -- Doctor --

func validateDoctor(d *Doctor) error {
	if strings.TrimSpace(d.LicenseNumber) == "" {
		return fmt.Errorf("%w: license number is required", ErrInvalid)
	}
	if strings.TrimSpace(d.LastName) == "" || strings.TrimSpace(d.FirstName) == "" {
		return fmt.Errorf("%w: first and last name are required", ErrInvalid)
	}
	if d.ConsultationFee < 0 {
		return fmt.Errorf("%w: consultation fee must not be negative", ErrInvalid)
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return err
	}
	d.DisplayName = DoctorDisplayName(d.FirstName, d.LastName)
	return nil
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, id int64, u DoctorUpdate) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(d)
	if err := validateDoctor(d); err != nil {
		return nil, err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.doctors.List(ctx, filter, limit, offset)
}

// -- Specialty --

func (s *Service) CreateSpecialty(ctx context.Context, sp *Specialty) error {
	if strings.TrimSpace(sp.Name) == "" {
		return fmt.Errorf("%w: specialty name is required", ErrInvalid)
	}
	return s.specialties.Create(ctx, sp)
}

func (s *Service) ListSpecialties(ctx context.Context) ([]*Specialty, error) {
	return s.specialties.List(ctx)
}

package identity

import (
	"context"
)

type PatientRepository interface {
	NameSource
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error)
	// LastFileNumber returns the file number of the most recently inserted
	// patient, or "" when there is none. Inside a transaction it also
	// serializes concurrent allocations.
	LastFileNumber(ctx context.Context) (string, error)
}

type MedicalFileRepository interface {
	Create(ctx context.Context, f *MedicalFile) error
	GetByPatient(ctx context.Context, patientID int64) (*MedicalFile, error)
	Update(ctx context.Context, f *MedicalFile) error
}

type DoctorRepository interface {
	NameSource
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*Doctor, int, error)
}

type SpecialtyRepository interface {
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id int64) (*Specialty, error)
	List(ctx context.Context) ([]*Specialty, error)
}

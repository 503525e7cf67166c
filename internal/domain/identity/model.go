package identity

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid input")
	ErrDuplicate = errors.New("duplicate value")
)

// Role names which kind of person a name was resolved against.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// PersonNotFoundError reports that no record carries the submitted full name.
type PersonNotFoundError struct {
	Role Role
	Name string
}

func (e *PersonNotFoundError) Error() string {
	if e.Role == RoleDoctor {
		return "Médecin non trouvé"
	}
	return "Patient non trouvé"
}

func (e *PersonNotFoundError) Unwrap() error { return ErrNotFound }

// PersonName is the part of a patient or doctor record used for name lookup.
type PersonName struct {
	ID        int64
	FirstName string
	LastName  string
}

// Patient maps to the patient table.
type Patient struct {
	ID            int64        `json:"id_patient"`
	FileNumber    string       `json:"numero_dossier"`
	LastName      string       `json:"nom"`
	FirstName     string       `json:"prenom"`
	BirthDate     string       `json:"date_naissance"`
	Sex           string       `json:"sexe"`
	Phone         *string      `json:"telephone"`
	Address       *string      `json:"adresse"`
	Email         *string      `json:"email"`
	BloodGroup    *string      `json:"groupe_sanguin"`
	MaritalStatus *string      `json:"situation_familiale"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	MedicalFile   *MedicalFile `json:"dossier_medical"`
}

// PatientUpdate carries a partial patient update; nil fields are left alone.
type PatientUpdate struct {
	LastName      *string `json:"nom" validate:"omitempty,max=100"`
	FirstName     *string `json:"prenom" validate:"omitempty,max=100"`
	BirthDate     *string `json:"date_naissance" validate:"omitempty,datetime=2006-01-02"`
	Sex           *string `json:"sexe" validate:"omitempty,oneof=M F"`
	Phone         *string `json:"telephone" validate:"omitempty,max=20"`
	Address       *string `json:"adresse"`
	Email         *string `json:"email" validate:"omitempty,email"`
	BloodGroup    *string `json:"groupe_sanguin" validate:"omitempty,max=5"`
	MaritalStatus *string `json:"situation_familiale" validate:"omitempty,max=30"`
}

func (u PatientUpdate) Apply(p *Patient) {
	setString(&p.LastName, u.LastName)
	setString(&p.FirstName, u.FirstName)
	setString(&p.BirthDate, u.BirthDate)
	setString(&p.Sex, u.Sex)
	setOptional(&p.Phone, u.Phone)
	setOptional(&p.Address, u.Address)
	setOptional(&p.Email, u.Email)
	setOptional(&p.BloodGroup, u.BloodGroup)
	setOptional(&p.MaritalStatus, u.MaritalStatus)
}

// MedicalFile maps to the medical_file table. Every patient owns exactly one.
type MedicalFile struct {
	ID                int64     `json:"id_dossier"`
	PatientID         int64     `json:"id_patient"`
	MedicalHistory    *string   `json:"antecedents_medicaux"`
	SurgicalHistory   *string   `json:"antecedents_chirurgicaux"`
	Allergies         *string   `json:"allergies"`
	ChronicDiseases   *string   `json:"maladies_chroniques"`
	CurrentTreatments *string   `json:"traitements_cours"`
	UpdatedAt         time.Time `json:"derniere_maj"`
}

type MedicalFileUpdate struct {
	MedicalHistory    *string `json:"antecedents_medicaux"`
	SurgicalHistory   *string `json:"antecedents_chirurgicaux"`
	Allergies         *string `json:"allergies"`
	ChronicDiseases   *string `json:"maladies_chroniques"`
	CurrentTreatments *string `json:"traitements_cours"`
}

func (u MedicalFileUpdate) Apply(f *MedicalFile) {
	setOptional(&f.MedicalHistory, u.MedicalHistory)
	setOptional(&f.SurgicalHistory, u.SurgicalHistory)
	setOptional(&f.Allergies, u.Allergies)
	setOptional(&f.ChronicDiseases, u.ChronicDiseases)
	setOptional(&f.CurrentTreatments, u.CurrentTreatments)
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID              int64     `json:"id_medecin"`
	LicenseNumber   string    `json:"numero_ordre"`
	LastName        string    `json:"nom"`
	FirstName       string    `json:"prenom"`
	SpecialtyID     *int64    `json:"id_specialite"`
	SpecialtyName   *string   `json:"specialite"`
	Phone           *string   `json:"telephone"`
	Email           *string   `json:"email"`
	ConsultationFee float64   `json:"tarif_consultation"`
	DisplayName     string    `json:"nom_complet"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type DoctorUpdate struct {
	LicenseNumber   *string  `json:"numero_ordre" validate:"omitempty,max=50"`
	LastName        *string  `json:"nom" validate:"omitempty,max=100"`
	FirstName       *string  `json:"prenom" validate:"omitempty,max=100"`
	SpecialtyID     *int64   `json:"id_specialite" validate:"omitempty,gt=0"`
	Phone           *string  `json:"telephone" validate:"omitempty,max=20"`
	Email           *string  `json:"email" validate:"omitempty,email"`
	ConsultationFee *float64 `json:"tarif_consultation" validate:"omitempty,gte=0"`
}

func (u DoctorUpdate) Apply(d *Doctor) {
	setString(&d.LicenseNumber, u.LicenseNumber)
	setString(&d.LastName, u.LastName)
	setString(&d.FirstName, u.FirstName)
	if u.SpecialtyID != nil {
		d.SpecialtyID = u.SpecialtyID
	}
	setOptional(&d.Phone, u.Phone)
	setOptional(&d.Email, u.Email)
	if u.ConsultationFee != nil {
		d.ConsultationFee = *u.ConsultationFee
	}
	d.DisplayName = DoctorDisplayName(d.FirstName, d.LastName)
}

// DoctorFilter narrows ListDoctors.
type DoctorFilter struct {
	Search      string
	SpecialtyID int64
}

// Specialty maps to the specialty table.
type Specialty struct {
	ID          int64   `json:"id_specialite"`
	Name        string  `json:"nom_specialite"`
	Description *string `json:"description"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setOptional(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}

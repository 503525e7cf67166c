package consultation

import (
	"time"

	"github.com/clinic/clinic/internal/domain/identity"
)

const dateLayout = "2006-01-02"

// defaultDiagnosis is displayed when neither diagnosis nor motive is set.
const defaultDiagnosis = "Consultation"

// Consultation maps to the consultation table. The name fields are filled from
// the joined patient and doctor rows on reads.
type Consultation struct {
	ID            int64
	PatientID     int64
	DoctorID      int64
	ConsultedAt   time.Time
	Motive        *string
	ClinicalExam  *string
	Diagnosis     *string
	Observations  *string
	Weight        *float64
	BloodPressure *string
	Temperature   *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time

	PatientFirstName string
	PatientLastName  string
	DoctorFirstName  string
	DoctorLastName   string
}

// View is the display form returned by the API.
type View struct {
	ID            int64    `json:"id"`
	PatientID     int64    `json:"id_patient"`
	DoctorID      int64    `json:"id_medecin"`
	Patient       string   `json:"patient"`
	Doctor        string   `json:"doctor"`
	Date          string   `json:"date"`
	Diagnosis     string   `json:"diagnosis"`
	Notes         *string  `json:"notes"`
	Priority      Priority `json:"priority"`
	ClinicalExam  *string  `json:"examen_clinique"`
	Weight        *float64 `json:"poids"`
	BloodPressure *string  `json:"tension"`
	Temperature   *float64 `json:"temperature"`
}

// DisplayDiagnosis prefers the diagnosis, then the motive.
func (c *Consultation) DisplayDiagnosis() string {
	switch {
	case c.Diagnosis != nil:
		return *c.Diagnosis
	case c.Motive != nil:
		return *c.Motive
	default:
		return defaultDiagnosis
	}
}

func (c *Consultation) View(cl *Classifier) View {
	return View{
		ID:            c.ID,
		PatientID:     c.PatientID,
		DoctorID:      c.DoctorID,
		Patient:       identity.FullName(c.PatientFirstName, c.PatientLastName),
		Doctor:        identity.DoctorDisplayName(c.DoctorFirstName, c.DoctorLastName),
		Date:          c.ConsultedAt.Format(dateLayout),
		Diagnosis:     c.DisplayDiagnosis(),
		Notes:         c.Observations,
		Priority:      cl.Classify(c.Diagnosis, c.Observations, c.Motive),
		ClinicalExam:  c.ClinicalExam,
		Weight:        c.Weight,
		BloodPressure: c.BloodPressure,
		Temperature:   c.Temperature,
	}
}

type Filter struct {
	PatientID int64
	DoctorID  int64
	Search    string
}

// Vitals are optional measurements taken during the visit.
type Vitals struct {
	ClinicalExam  *string  `json:"examen_clinique"`
	Weight        *float64 `json:"poids" validate:"omitempty,gt=0,lt=1000"`
	BloodPressure *string  `json:"tension" validate:"omitempty,max=20"`
	Temperature   *float64 `json:"temperature" validate:"omitempty,gte=30,lte=45"`
}

func (v Vitals) apply(c *Consultation) {
	if v.ClinicalExam != nil {
		c.ClinicalExam = v.ClinicalExam
	}
	if v.Weight != nil {
		c.Weight = v.Weight
	}
	if v.BloodPressure != nil {
		c.BloodPressure = v.BloodPressure
	}
	if v.Temperature != nil {
		c.Temperature = v.Temperature
	}
}

// CreateRequest accepts a priority label for compatibility with existing
// clients. It is validated and then ignored: priority is always derived.
type CreateRequest struct {
	Patient   string  `json:"patient" validate:"required"`
	Doctor    string  `json:"doctor" validate:"required"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Diagnosis string  `json:"diagnosis" validate:"required"`
	Notes     *string `json:"notes"`
	Priority  *string `json:"priority" validate:"omitempty,priority_label"`
	Vitals
}

type UpdateRequest struct {
	Patient   *string `json:"patient" validate:"omitempty,min=1"`
	Doctor    *string `json:"doctor" validate:"omitempty,min=1"`
	Date      *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Diagnosis *string `json:"diagnosis" validate:"omitempty,min=1"`
	Notes     *string `json:"notes"`
	Priority  *string `json:"priority" validate:"omitempty,priority_label"`
	Vitals
}

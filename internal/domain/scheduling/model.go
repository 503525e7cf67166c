package scheduling

import (
	"time"

	"github.com/clinic/clinic/internal/domain/identity"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Appointment maps to the appointment table. The name fields are filled from
// the joined patient and doctor rows on reads.
type Appointment struct {
	ID              int64
	PatientID       int64
	DoctorID        int64
	StartsAt        time.Time
	DurationMinutes int
	Motive          *string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	PatientFirstName string
	PatientLastName  string
	DoctorFirstName  string
	DoctorLastName   string
}

// View is the display form returned by the API.
type View struct {
	ID              int64   `json:"id"`
	PatientID       int64   `json:"id_patient"`
	DoctorID        int64   `json:"id_medecin"`
	Patient         string  `json:"patient"`
	Doctor          string  `json:"doctor"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Status          string  `json:"status"`
	Notes           *string `json:"notes"`
	Motive          *string `json:"motif"`
	DurationMinutes int     `json:"duree_minutes"`
}

func (a *Appointment) View() View {
	return View{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		Patient:         identity.FullName(a.PatientFirstName, a.PatientLastName),
		Doctor:          identity.DoctorDisplayName(a.DoctorFirstName, a.DoctorLastName),
		Date:            a.StartsAt.Format(dateLayout),
		Time:            a.StartsAt.Format(timeLayout),
		Status:          ToDisplayLabel(a.Status),
		Notes:           a.Motive,
		Motive:          a.Motive,
		DurationMinutes: a.DurationMinutes,
	}
}

// ParseStart combines a YYYY-MM-DD date and an HH:mm time. Appointment times
// are clinic wall-clock times and carry no zone.
func ParseStart(date, clock string) (time.Time, error) {
	return time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+clock, time.UTC)
}

type Filter struct {
	PatientID int64
	DoctorID  int64
	Status    string
	Search    string
}

type CreateRequest struct {
	Patient string  `json:"patient" validate:"required"`
	Doctor  string  `json:"doctor" validate:"required"`
	Date    string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time    string  `json:"time" validate:"required,datetime=15:04"`
	Status  string  `json:"status" validate:"required,appointment_status"`
	Notes   *string `json:"notes"`
}

// UpdateRequest is partial. Date and Time only apply when both are present.
type UpdateRequest struct {
	Patient *string `json:"patient" validate:"omitempty,min=1"`
	Doctor  *string `json:"doctor" validate:"omitempty,min=1"`
	Date    *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time    *string `json:"time" validate:"omitempty,datetime=15:04"`
	Status  *string `json:"status" validate:"omitempty,appointment_status"`
	Notes   *string `json:"notes"`
}

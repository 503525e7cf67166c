package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/events"
)

// PersonResolver turns submitted names into record ids.
type PersonResolver interface {
	ResolvePatient(ctx context.Context, name string) (int64, error)
	ResolveDoctor(ctx context.Context, name string) (int64, error)
}

type Service struct {
	appointments    AppointmentRepository
	resolver        PersonResolver
	events          *events.Emitter
	defaultDuration int
	logger          zerolog.Logger
}

func NewService(appointments AppointmentRepository, resolver PersonResolver, emitter *events.Emitter,
	defaultDuration int, logger zerolog.Logger) *Service {
	return &Service{
		appointments:    appointments,
		resolver:        resolver,
		events:          emitter,
		defaultDuration: defaultDuration,
		logger:          logger,
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", identity.ErrInvalid, fmt.Sprintf(format, args...))
}

// CreateAppointment resolves the patient then the doctor, normalizes the
// status label and stores the appointment. A failed step stores nothing.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	startsAt, err := ParseStart(req.Date, req.Time)
	if err != nil {
		return nil, invalid("date and time must be YYYY-MM-DD and HH:mm")
	}
	status, err := ToInternalStatus(req.Status)
	if err != nil {
		return nil, invalid("status %q is not accepted", req.Status)
	}

	patientID, err := s.resolver.ResolvePatient(ctx, req.Patient)
	if err != nil {
		return nil, err
	}
	doctorID, err := s.resolver.ResolveDoctor(ctx, req.Doctor)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:       patientID,
		DoctorID:        doctorID,
		StartsAt:        startsAt,
		DurationMinutes: s.defaultDuration,
		Motive:          req.Notes,
		Status:          status,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, events.AppointmentCreated, a.ID)
	return s.appointments.GetByID(ctx, a.ID)
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// UpdateAppointment applies the fields present in req. A date without a time,
// or a time without a date, leaves the start unchanged.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, req UpdateRequest) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Patient != nil {
		if a.PatientID, err = s.resolver.ResolvePatient(ctx, *req.Patient); err != nil {
			return nil, err
		}
	}
	if req.Doctor != nil {
		if a.DoctorID, err = s.resolver.ResolveDoctor(ctx, *req.Doctor); err != nil {
			return nil, err
		}
	}
	if req.Date != nil && req.Time != nil {
		startsAt, err := ParseStart(*req.Date, *req.Time)
		if err != nil {
			return nil, invalid("date and time must be YYYY-MM-DD and HH:mm")
		}
		a.StartsAt = startsAt
	}
	if req.Status != nil {
		if a.Status, err = ToInternalStatus(*req.Status); err != nil {
			return nil, invalid("status %q is not accepted", *req.Status)
		}
	}
	if req.Notes != nil {
		a.Motive = req.Notes
	}

	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.AppointmentUpdated, a.ID)
	return s.appointments.GetByID(ctx, a.ID)
}

// CompleteAppointment marks a held appointment as done. It is the only way to
// reach the completed status.
func (s *Service) CompleteAppointment(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return nil, invalid("a cancelled appointment cannot be completed")
	}
	a.Status = StatusCompleted
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.AppointmentUpdated, a.ID)
	return a, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id int64) error {
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.AppointmentDeleted, id)
	return nil
}

func (s *Service) ListAppointments(ctx context.Context, filter Filter, limit, offset int) ([]*Appointment, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.appointments.List(ctx, filter, limit, offset)
}

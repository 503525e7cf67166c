package consultation

import (
	"context"
	"fmt"
	"strings"
	"time"

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
	consultations ConsultationRepository
	resolver      PersonResolver
	classifier    *Classifier
	events        *events.Emitter
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(consultations ConsultationRepository, resolver PersonResolver, classifier *Classifier,
	emitter *events.Emitter, logger zerolog.Logger) *Service {
	return &Service{
		consultations: consultations,
		resolver:      resolver,
		classifier:    classifier,
		events:        emitter,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Service) Classifier() *Classifier { return s.classifier }

func parseDate(date string) (time.Time, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", identity.ErrInvalid)
	}
	return d, nil
}

// atTimeOfDay returns day's date carrying clock's wall-clock time.
func atTimeOfDay(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
}

func (s *Service) CreateConsultation(ctx context.Context, req CreateRequest) (*Consultation, error) {
	day, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Diagnosis) == "" {
		return nil, fmt.Errorf("%w: diagnosis is required", identity.ErrInvalid)
	}
	if req.Priority != nil && !IsPriorityLabel(*req.Priority) {
		return nil, fmt.Errorf("%w: priority %q is not accepted", identity.ErrInvalid, *req.Priority)
	}

	patientID, err := s.resolver.ResolvePatient(ctx, req.Patient)
	if err != nil {
		return nil, err
	}
	doctorID, err := s.resolver.ResolveDoctor(ctx, req.Doctor)
	if err != nil {
		return nil, err
	}

	diagnosis := req.Diagnosis
	c := &Consultation{
		PatientID:    patientID,
		DoctorID:     doctorID,
		ConsultedAt:  atTimeOfDay(day, s.now()),
		Diagnosis:    &diagnosis,
		Motive:       &diagnosis,
		Observations: req.Notes,
	}
	req.Vitals.apply(c)

	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.ConsultationCreated, c.ID)
	return s.consultations.GetByID(ctx, c.ID)
}

func (s *Service) GetConsultation(ctx context.Context, id int64) (*Consultation, error) {
	return s.consultations.GetByID(ctx, id)
}

// UpdateConsultation applies the fields present in req. A new date keeps the
// stored time of day.
func (s *Service) UpdateConsultation(ctx context.Context, id int64, req UpdateRequest) (*Consultation, error) {
	if req.Priority != nil && !IsPriorityLabel(*req.Priority) {
		return nil, fmt.Errorf("%w: priority %q is not accepted", identity.ErrInvalid, *req.Priority)
	}

	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Patient != nil {
		if c.PatientID, err = s.resolver.ResolvePatient(ctx, *req.Patient); err != nil {
			return nil, err
		}
	}
	if req.Doctor != nil {
		if c.DoctorID, err = s.resolver.ResolveDoctor(ctx, *req.Doctor); err != nil {
			return nil, err
		}
	}
	if req.Date != nil {
		day, err := parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		c.ConsultedAt = atTimeOfDay(day, c.ConsultedAt)
	}
	if req.Diagnosis != nil {
		diagnosis := *req.Diagnosis
		c.Diagnosis = &diagnosis
		c.Motive = &diagnosis
	}
	if req.Notes != nil {
		c.Observations = req.Notes
	}
	req.Vitals.apply(c)

	if err := s.consultations.Update(ctx, c); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.ConsultationUpdated, c.ID)
	return s.consultations.GetByID(ctx, c.ID)
}

func (s *Service) DeleteConsultation(ctx context.Context, id int64) error {
	if err := s.consultations.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.ConsultationDeleted, id)
	return nil
}

func (s *Service) ListConsultations(ctx context.Context, filter Filter, limit, offset int) ([]*Consultation, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.consultations.List(ctx, filter, limit, offset)
}

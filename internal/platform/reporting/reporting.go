// Package reporting computes the clinic dashboard figures. Each figure is a
// predefined measure evaluated over a day or month window; the assembled
// dashboard is cached per clinic.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

// Period selects the window a measure is evaluated over.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// MeasureDefinition defines a dashboard measure. SQL returns one float8 and
// receives the window bounds as $1 (inclusive) and $2 (exclusive), except for
// PeriodAll measures which take no arguments.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Period      Period `json:"period"`
	SQL         string `json:"-"`
}

const (
	MeasureTotalPatients      = "total_patients"
	MeasureAppointmentsToday  = "rdv_aujourdhui"
	MeasureConsultationsMonth = "consultations_mois"
	MeasureRevenueMonth       = "revenu_mois"
)

// PredefinedMeasures is the list of available measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          MeasureTotalPatients,
		Name:        "Total patients",
		Description: "Nombre de patients enregistrés",
		Period:      PeriodAll,
		SQL:         `SELECT COUNT(*)::float8 FROM patient`,
	},
	{
		ID:          MeasureAppointmentsToday,
		Name:        "Rendez-vous du jour",
		Description: "Rendez-vous dont le début tombe aujourd'hui, tous statuts confondus",
		Period:      PeriodDay,
		SQL:         `SELECT COUNT(*)::float8 FROM appointment WHERE starts_at >= $1 AND starts_at < $2`,
	},
	{
		ID:          MeasureConsultationsMonth,
		Name:        "Consultations du mois",
		Description: "Consultations du mois calendaire en cours",
		Period:      PeriodMonth,
		SQL:         `SELECT COUNT(*)::float8 FROM consultation WHERE consulted_at >= $1 AND consulted_at < $2`,
	},
	{
		ID:          MeasureRevenueMonth,
		Name:        "Revenu du mois",
		Description: "Somme des tarifs de consultation des médecins pour les consultations du mois",
		Period:      PeriodMonth,
		SQL: `SELECT COALESCE(SUM(d.consultation_fee), 0)::float8
			FROM consultation c JOIN doctor d ON d.id = c.doctor_id
			WHERE c.consulted_at >= $1 AND c.consulted_at < $2`,
	},
}

var ErrUnknownMeasure = errors.New("unknown measure")

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Window returns the bounds of p around now. Stored timestamps are clinic
// wall-clock times, so bounds are built from now's wall clock.
func Window(p Period, now time.Time) (from, to time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodDay:
		return day, day.AddDate(0, 0, 1)
	case PeriodMonth:
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return month, month.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}
	}
}

// Dashboard is the statistics payload.
type Dashboard struct {
	TotalPatients      int64   `json:"total_patients"`
	AppointmentsToday  int64   `json:"rdv_aujourdhui"`
	ConsultationsMonth int64   `json:"consultations_mois"`
	RevenueMonth       float64 `json:"revenu_mois"`
}

// MeasureResult is one evaluated measure.
type MeasureResult struct {
	MeasureID   string    `json:"measure_id"`
	MeasureName string    `json:"measure_name"`
	GeneratedAt time.Time `json:"generated_at"`
	Value       float64   `json:"value"`
}

// Evaluator runs a measure's query.
type Evaluator interface {
	Evaluate(ctx context.Context, m *MeasureDefinition, from, to time.Time) (float64, error)
}

type pgEvaluator struct {
	pool *pgxpool.Pool
}

func NewEvaluator(pool *pgxpool.Pool) Evaluator {
	return &pgEvaluator{pool: pool}
}

func (e *pgEvaluator) Evaluate(ctx context.Context, m *MeasureDefinition, from, to time.Time) (float64, error) {
	var args []interface{}
	if m.Period != PeriodAll {
		args = append(args, from, to)
	}
	var v float64
	if err := db.Conn(ctx, e.pool).QueryRow(ctx, m.SQL, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("evaluate %s: %w", m.ID, err)
	}
	return v, nil
}

// Service assembles dashboards and caches them per clinic for ttl. A zero ttl
// disables caching.
type Service struct {
	eval   Evaluator
	cache  *cache.Cache
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(eval Evaluator, ttl time.Duration, logger zerolog.Logger) *Service {
	s := &Service{eval: eval, ttl: ttl, now: time.Now, logger: logger}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

func (s *Service) measure(ctx context.Context, id string, now time.Time) (float64, error) {
	m := FindMeasure(id)
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMeasure, id)
	}
	from, to := Window(m.Period, now)
	return s.eval.Evaluate(ctx, m, from, to)
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	key := db.ClinicFromContext(ctx)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached.(*Dashboard), nil
		}
	}

	now := s.now()
	values := make(map[string]float64, len(PredefinedMeasures))
	for _, m := range PredefinedMeasures {
		v, err := s.measure(ctx, m.ID, now)
		if err != nil {
			return nil, err
		}
		values[m.ID] = v
	}

	d := &Dashboard{
		TotalPatients:      int64(values[MeasureTotalPatients]),
		AppointmentsToday:  int64(values[MeasureAppointmentsToday]),
		ConsultationsMonth: int64(values[MeasureConsultationsMonth]),
		RevenueMonth:       values[MeasureRevenueMonth],
	}
	if s.cache != nil {
		s.cache.Set(key, d, s.ttl)
	}
	s.logger.Debug().Str("clinic", key).Msg("dashboard computed")
	return d, nil
}

func (s *Service) EvaluateMeasure(ctx context.Context, id string) (*MeasureResult, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMeasure, id)
	}
	now := s.now()
	v, err := s.measure(ctx, id, now)
	if err != nil {
		return nil, err
	}
	return &MeasureResult{MeasureID: m.ID, MeasureName: m.Name, GeneratedAt: now, Value: v}, nil
}

// Handler provides HTTP handlers for the statistics API.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	statsGroup := api.Group("/statistiques", auth.RequireRole(auth.RoleSecretary, auth.RoleDoctor))
	statsGroup.GET("/dashboard", h.Dashboard)
	statsGroup.GET("/mesures", h.ListMeasures)
	statsGroup.GET("/mesures/:id", h.EvaluateMeasure)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "erreur interne du serveur").SetInternal(err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	res, err := h.svc.EvaluateMeasure(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrUnknownMeasure) {
		return echo.NewHTTPError(http.StatusNotFound, "mesure inconnue")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "erreur interne du serveur").SetInternal(err)
	}
	return c.JSON(http.StatusOK, res)
}

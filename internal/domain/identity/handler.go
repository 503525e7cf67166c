package identity

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validation"
	"github.com/clinic/clinic/pkg/pagination"
)

const (
	msgPatientNotFound     = "Patient non trouvé"
	msgDoctorNotFound      = "Médecin non trouvé"
	msgMedicalFileNotFound = "Dossier médical non trouvé"
)

// HTTPError maps service errors onto API responses. notFound is the message
// used for a missing primary record; a name that failed to resolve keeps its
// own message.
func HTTPError(err error, notFound string) error {
	var pnf *PersonNotFoundError
	switch {
	case errors.As(err, &pnf):
		return echo.NewHTTPError(http.StatusNotFound, pnf.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "enregistrement déjà existant").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "erreur interne du serveur").SetInternal(err)
	}
}

// ParseID reads the :id path parameter. Ids that cannot exist are reported
// as a missing record.
func ParseID(c echo.Context, notFound string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, notFound)
	}
	return id, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Front desk and doctors read everything and manage patient records.
	staffGroup := api.Group("", auth.RequireRole(auth.RoleSecretary, auth.RoleDoctor))
	staffGroup.GET("/patients", h.ListPatients)
	staffGroup.GET("/patients/:id", h.GetPatient)
	staffGroup.GET("/patients/:id/dossier", h.GetMedicalFile)
	staffGroup.GET("/medecins", h.ListDoctors)
	staffGroup.GET("/medecins/:id", h.GetDoctor)
	staffGroup.GET("/specialites", h.ListSpecialties)
	staffGroup.POST("/patients", h.CreatePatient)
	staffGroup.PUT("/patients/:id", h.UpdatePatient)
	staffGroup.DELETE("/patients/:id", h.DeletePatient)

	clinicalGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	clinicalGroup.PUT("/patients/:id/dossier", h.UpdateMedicalFile)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/medecins", h.CreateDoctor)
	adminGroup.PUT("/medecins/:id", h.UpdateDoctor)
	adminGroup.DELETE("/medecins/:id", h.DeleteDoctor)
	adminGroup.POST("/specialites", h.CreateSpecialty)
}

// -- Patient Handlers --

type CreatePatientRequest struct {
	LastName      string  `json:"nom" validate:"required,max=100"`
	FirstName     string  `json:"prenom" validate:"required,max=100"`
	BirthDate     string  `json:"date_naissance" validate:"required,datetime=2006-01-02"`
	Sex           string  `json:"sexe" validate:"required,oneof=M F"`
	Phone         *string `json:"telephone" validate:"omitempty,max=20"`
	Address       *string `json:"adresse"`
	Email         *string `json:"email" validate:"omitempty,email"`
	BloodGroup    *string `json:"groupe_sanguin" validate:"omitempty,max=5"`
	MaritalStatus *string `json:"situation_familiale" validate:"omitempty,max=30"`
}

func (r CreatePatientRequest) toPatient() *Patient {
	return &Patient{
		LastName:      r.LastName,
		FirstName:     r.FirstName,
		BirthDate:     r.BirthDate,
		Sex:           r.Sex,
		Phone:         r.Phone,
		Address:       r.Address,
		Email:         r.Email,
		BloodGroup:    r.BloodGroup,
		MaritalStatus: r.MaritalStatus,
	}
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req CreatePatientRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	p := req.toPatient()
	if err := h.svc.CreatePatient(c.Request().Context(), p); err != nil {
		if errors.Is(err, ErrInvalid) {
			return HTTPError(err, msgPatientNotFound)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Erreur création patient").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := ParseID(c, msgPatientNotFound)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err, msgPatientNotFound)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), c.QueryParam("search"), pg.Limit, pg.Offset)
	if err != nil {
		return HTTPError(err, msgPatientNotFound)
	}
	if items == nil {
		items = []*Patient{}
	}
	pagination.WriteTotal(c, total)
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := ParseID(c, msgPatientNotFound)
	if err != nil {
		return err
	}
	var req PatientUpdate
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, req)
	if err != nil {
		return HTTPError(err, msgPatientNotFound)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := ParseID(c, msgPatientNotFound)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return HTTPError(err, msgPatientNotFound)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Patient supprimé"})
}

// -- Medical File Handlers --

func (h *Handler) GetMedicalFile(c echo.Context) error {
	id, err := ParseID(c, msgPatientNotFound)
	if err != nil {
		return err
	}
	f, err := h.svc.GetMedicalFile(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err, msgMedicalFileNotFound)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) UpdateMedicalFile(c echo.Context) error {
	id, err := ParseID(c, msgPatientNotFound)
	if err != nil {
		return err
	}
	var req MedicalFileUpdate
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	f, err := h.svc.UpdateMedicalFile(c.Request().Context(), id, req)
	if err != nil {
		return HTTPError(err, msgMedicalFileNotFound)
	}
	return c.JSON(http.StatusOK, f)
}

// -- Doctor Handlers --

type CreateDoctorRequest struct {
	LicenseNumber   string  `json:"numero_ordre" validate:"required,max=50"`
	LastName        string  `json:"nom" validate:"required,max=100"`
	FirstName       string  `json:"prenom" validate:"required,max=100"`
	SpecialtyID     *int64  `json:"id_specialite" validate:"omitempty,gt=0"`
	Phone           *string `json:"telephone" validate:"omitempty,max=20"`
	Email           *string `json:"email" validate:"omitempty,email"`
	ConsultationFee float64 `json:"tarif_consultation" validate:"gte=0"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req CreateDoctorRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	d := &Doctor{
		LicenseNumber:   req.LicenseNumber,
		LastName:        req.LastName,
		FirstName:       req.FirstName,
		SpecialtyID:     req.SpecialtyID,
		Phone:           req.Phone,
		Email:           req.Email,
		ConsultationFee: req.ConsultationFee,
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), d); err != nil {
		return HTTPError(err, msgDoctorNotFound)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := ParseID(c, msgDoctorNotFound)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err, msgDoctorNotFound)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := DoctorFilter{Search: c.QueryParam("search")}
	if v := c.QueryParam("id_specialite"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "id_specialite invalide")
		}
		filter.SpecialtyID = id
	}
	items, total, err := h.svc.ListDoctors(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return HTTPError(err, msgDoctorNotFound)
	}
	if items == nil {
		items = []*Doctor{}
	}
	pagination.WriteTotal(c, total)
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := ParseID(c, msgDoctorNotFound)
	if err != nil {
		return err
	}
	var req DoctorUpdate
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), id, req)
	if err != nil {
		return HTTPError(err, msgDoctorNotFound)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := ParseID(c, msgDoctorNotFound)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return HTTPError(err, msgDoctorNotFound)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Médecin supprimé"})
}

// -- Specialty Handlers --

type CreateSpecialtyRequest struct {
	Name        string  `json:"nom_specialite" validate:"required,max=100"`
	Description *string `json:"description"`
}

func (h *Handler) CreateSpecialty(c echo.Context) error {
	var req CreateSpecialtyRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	sp := &Specialty{Name: req.Name, Description: req.Description}
	if err := h.svc.CreateSpecialty(c.Request().Context(), sp); err != nil {
		return HTTPError(err, "Spécialité non trouvée")
	}
	return c.JSON(http.StatusCreated, sp)
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	items, err := h.svc.ListSpecialties(c.Request().Context())
	if err != nil {
		return HTTPError(err, "Spécialité non trouvée")
	}
	if items == nil {
		items = []*Specialty{}
	}
	return c.JSON(http.StatusOK, items)
}

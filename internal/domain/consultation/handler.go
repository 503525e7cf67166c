package consultation

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validation"
	"github.com/clinic/clinic/pkg/pagination"
)

const msgConsultationNotFound = "Consultation non trouvée"

// PriorityRule validates priority labels on input.
var PriorityRule = validation.Rule{Tag: "priority_label", Valid: IsPriorityLabel}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("/consultations", auth.RequireRole(auth.RoleSecretary, auth.RoleDoctor))
	readGroup.GET("", h.ListConsultations)
	readGroup.GET("/:id", h.GetConsultation)

	writeGroup := api.Group("/consultations", auth.RequireRole(auth.RoleDoctor))
	writeGroup.POST("", h.CreateConsultation)
	writeGroup.PUT("/:id", h.UpdateConsultation)
	writeGroup.DELETE("/:id", h.DeleteConsultation)
}

func (h *Handler) CreateConsultation(c echo.Context) error {
	var req CreateRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	cons, err := h.svc.CreateConsultation(c.Request().Context(), req)
	if err != nil {
		return identity.HTTPError(err, msgConsultationNotFound)
	}
	return c.JSON(http.StatusCreated, cons.View(h.svc.Classifier()))
}

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := identity.ParseID(c, msgConsultationNotFound)
	if err != nil {
		return err
	}
	cons, err := h.svc.GetConsultation(c.Request().Context(), id)
	if err != nil {
		return identity.HTTPError(err, msgConsultationNotFound)
	}
	return c.JSON(http.StatusOK, cons.View(h.svc.Classifier()))
}

func queryInt(c echo.Context, name string) (int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" invalide")
	}
	return n, nil
}

func (h *Handler) ListConsultations(c echo.Context) error {
	var filter Filter
	var err error
	if filter.PatientID, err = queryInt(c, "id_patient"); err != nil {
		return err
	}
	if filter.DoctorID, err = queryInt(c, "id_medecin"); err != nil {
		return err
	}
	filter.Search = c.QueryParam("search")

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListConsultations(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return identity.HTTPError(err, msgConsultationNotFound)
	}

	views := make([]View, 0, len(items))
	for _, cons := range items {
		views = append(views, cons.View(h.svc.Classifier()))
	}
	pagination.WriteTotal(c, total)
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) UpdateConsultation(c echo.Context) error {
	id, err := identity.ParseID(c, msgConsultationNotFound)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	cons, err := h.svc.UpdateConsultation(c.Request().Context(), id, req)
	if err != nil {
		return identity.HTTPError(err, msgConsultationNotFound)
	}
	return c.JSON(http.StatusOK, cons.View(h.svc.Classifier()))
}

func (h *Handler) DeleteConsultation(c echo.Context) error {
	id, err := identity.ParseID(c, msgConsultationNotFound)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteConsultation(c.Request().Context(), id); err != nil {
		return identity.HTTPError(err, msgConsultationNotFound)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Consultation supprimée"})
}

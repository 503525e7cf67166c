package scheduling

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validation"
	"github.com/clinic/clinic/pkg/pagination"
)

const msgAppointmentNotFound = "Rendez-vous non trouvé"

// StatusRule validates appointment status labels on input.
var StatusRule = validation.Rule{Tag: "appointment_status", Valid: IsInputLabel}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staffGroup := api.Group("/rendez-vous", auth.RequireRole(auth.RoleSecretary, auth.RoleDoctor))
	staffGroup.GET("", h.ListAppointments)
	staffGroup.GET("/:id", h.GetAppointment)
	staffGroup.POST("", h.CreateAppointment)
	staffGroup.PUT("/:id", h.UpdateAppointment)
	staffGroup.POST("/:id/terminer", h.CompleteAppointment)
	staffGroup.DELETE("/:id", h.DeleteAppointment)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req CreateRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), req)
	if err != nil {
		return identity.HTTPError(err, msgAppointmentNotFound)
	}
	return c.JSON(http.StatusCreated, a.View())
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := identity.ParseID(c, msgAppointmentNotFound)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return identity.HTTPError(err, msgAppointmentNotFound)
	}
	return c.JSON(http.StatusOK, a.View())
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

func (h *Handler) ListAppointments(c echo.Context) error {
	var filter Filter
	var err error
	if filter.PatientID, err = queryInt(c, "id_patient"); err != nil {
		return err
	}
	if filter.DoctorID, err = queryInt(c, "id_medecin"); err != nil {
		return err
	}
	filter.Status = c.QueryParam("statut")
	if filter.Status != "" && !IsStatusToken(filter.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "statut invalide")
	}
	filter.Search = c.QueryParam("search")

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return identity.HTTPError(err, msgAppointmentNotFound)
	}

	views := make([]View, 0, len(items))
	for _, a := range items {
		views = append(views, a.View())
	}
	pagination.WriteTotal(c, total)
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := identity.ParseID(c, msgAppointmentNotFound)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), id, req)
	if err != nil {
		return identity.HTTPError(err, msgAppointmentNotFound)
	}
	return c.JSON(http.StatusOK, a.View())
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	id, err := identity.ParseID(c, msgAppointmentNotFound)
	if err != nil {
		return err
	}
	a, err := h.svc.CompleteAppointment(c.Request().Context(), id)
	if err != nil {
		return identity.HTTPError(err, msgAppointmentNotFound)
	}
	return c.JSON(http.StatusOK, a.View())
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := identity.ParseID(c, msgAppointmentNotFound)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return identity.HTTPError(err, msgAppointmentNotFound)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Rendez-vous supprimé"})
}

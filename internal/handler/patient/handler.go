package patient

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// AppointmentLister lists appointments for the patient history endpoint.
type AppointmentLister interface {
	ListAppointments(ctx context.Context, actor model.Actor, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, int, error)
}

type Handler struct {
	service      patient.PatientService
	appointments AppointmentLister
}

func NewHandler(service patient.PatientService, appointments AppointmentLister) *Handler {
	return &Handler{
		service:      service,
		appointments: appointments,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	clinical := auth.RequireRole(model.RoleStaff, model.RoleAdmin)

	patients := r.Group("/patients", auth.Authenticate())
	{
		patients.POST("", clinical, h.CreatePatient)
		patients.GET("", clinical, h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", clinical, h.DeletePatient)

		patients.GET("/:id/treatments", h.ListTreatments)
		patients.POST("/:id/treatments", clinical, h.AddTreatment)
		patients.GET("/:id/appointments", h.ListAppointments)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	patient, err := h.service.CreatePatient(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(patient))
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.GetPatient(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	patient, err := h.service.UpdatePatient(c.Request.Context(), handler.Actor(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePatient(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("patient deleted"))
}

func (h *Handler) ListPatients(c *gin.Context) {
	var filters model.PatientFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		handler.BadRequest(c, err)
		return
	}

	patients, total, err := h.service.ListPatients(c.Request.Context(), &filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.NewPage(patients, total, filters.Pagination)))
}

func (h *Handler) ListTreatments(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	treatments, err := h.service.ListTreatments(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(treatments))
}

func (h *Handler) AddTreatment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.CreateTreatmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	treatment, err := h.service.AddTreatment(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(treatment))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	actor := handler.Actor(c)
	if !actor.CanAccessPatient(id) {
		handler.RespondError(c, apperrors.Forbidden("access to this patient is not allowed"))
		return
	}

	var filters model.AppointmentFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		handler.BadRequest(c, err)
		return
	}
	filters.PatientID = id

	items, total, err := h.appointments.ListAppointments(c.Request.Context(), actor, &filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.NewPage(items, total, filters.Pagination)))
}

package appointment

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Handler struct {
	service appointment.AppointmentService
}

func NewHandler(service appointment.AppointmentService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	clinical := auth.RequireRole(model.RoleStaff, model.RoleAdmin)

	appointments := r.Group("/appointments", auth.Authenticate())
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/today", clinical, h.TodayAppointments)
		appointments.GET("/available-slots", h.AvailableSlots)
		appointments.POST("/check-conflict", h.CheckConflict)
		appointments.GET("/stats", clinical, h.Stats)

		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", auth.RequireRole(model.RoleAdmin), h.DeleteAppointment)
		appointments.PATCH("/:id/status", clinical, h.UpdateStatus)
		appointments.POST("/:id/cancel", h.CancelAppointment)
	}
}

// queryID parses an optional UUID query parameter.
func queryID(c *gin.Context, name string) (uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid "+name, err)
	}
	return id, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, name string) (*model.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}
	return &d, nil
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	appt, err := h.service.CreateAppointment(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appt))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	appt, err := h.service.GetAppointment(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	var filters model.AppointmentFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		handler.BadRequest(c, err)
		return
	}

	var err error
	if filters.StaffID, err = queryID(c, "staff_id"); err != nil {
		handler.RespondError(c, err)
		return
	}
	if filters.PatientID, err = queryID(c, "patient_id"); err != nil {
		handler.RespondError(c, err)
		return
	}
	if filters.From, err = queryDate(c, "from"); err != nil {
		handler.RespondError(c, err)
		return
	}
	if filters.To, err = queryDate(c, "to"); err != nil {
		handler.RespondError(c, err)
		return
	}

	items, total, err := h.service.ListAppointments(c.Request.Context(), handler.Actor(c), &filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.NewPage(items, total, filters.Pagination)))
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	appt, err := h.service.UpdateAppointment(c.Request.Context(), handler.Actor(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.CancelAppointmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.BadRequest(c, err)
			return
		}
	}

	appt, err := h.service.CancelAppointment(c.Request.Context(), handler.Actor(c), id, req.Reason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	appt, err := h.service.UpdateStatus(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteAppointment(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("appointment deleted"))
}

func (h *Handler) TodayAppointments(c *gin.Context) {
	staffID, err := queryID(c, "staff_id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	items, err := h.service.TodayAppointments(c.Request.Context(), staffID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(items))
}

// AvailableSlots answers GET /appointments/available-slots?staff_id=&date=
// with either service_id or duration (minutes).
func (h *Handler) AvailableSlots(c *gin.Context) {
	staffID, err := queryID(c, "staff_id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if staffID == uuid.Nil {
		handler.RespondError(c, apperrors.BadRequest("staff_id is required", nil))
		return
	}
	date, err := queryDate(c, "date")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if date == nil {
		handler.RespondError(c, apperrors.BadRequest("date is required", nil))
		return
	}

	q := model.SlotQuery{StaffID: staffID, Date: *date}
	serviceID, err := queryID(c, "service_id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if serviceID != uuid.Nil {
		q.ServiceID = &serviceID
	}
	if raw := c.Query("duration"); raw != "" {
		if q.Duration, err = strconv.Atoi(raw); err != nil {
			handler.RespondError(c, apperrors.BadRequest("invalid duration", err))
			return
		}
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), q)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

func (h *Handler) CheckConflict(c *gin.Context) {
	var req model.CheckConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	conflict, err := h.service.CheckConflict(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"conflict": conflict}))
}

func (h *Handler) Stats(c *gin.Context) {
	from, err := queryDate(c, "from")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	to, err := queryDate(c, "to")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), from, to)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

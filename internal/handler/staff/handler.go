package staff

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/staff"
)

type Handler struct {
	service staff.StaffService
}

func NewHandler(service staff.StaffService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	admin := auth.RequireRole(model.RoleAdmin)

	group := r.Group("/staff", auth.Authenticate())
	{
		group.GET("", h.ListStaff)
		group.POST("", admin, h.CreateStaff)
		group.GET("/:id", h.GetStaff)
		group.PUT("/:id", admin, h.UpdateStaff)
		group.DELETE("/:id", admin, h.DeleteStaff)
		group.GET("/:id/availability", h.GetAvailability)
		group.PUT("/:id/availability", admin, h.SetAvailability)
	}
}

func (h *Handler) CreateStaff(c *gin.Context) {
	var req model.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	st, err := h.service.CreateStaff(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(st))
}

func (h *Handler) GetStaff(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	st, err := h.service.GetStaff(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(st))
}

func (h *Handler) UpdateStaff(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	st, err := h.service.UpdateStaff(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(st))
}

func (h *Handler) DeleteStaff(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteStaff(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("staff member deleted"))
}

func (h *Handler) ListStaff(c *gin.Context) {
	var filters model.StaffFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		handler.BadRequest(c, err)
		return
	}

	list, total, err := h.service.ListStaff(c.Request.Context(), &filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.NewPage(list, total, filters.Pagination)))
}

func (h *Handler) GetAvailability(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	windows, err := h.service.GetAvailability(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(windows))
}

// SetAvailability replaces every working window of the staff member.
func (h *Handler) SetAvailability(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	windows, err := h.service.SetAvailability(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(windows))
}

package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/catalog"
)

type Handler struct {
	service catalog.CatalogService
}

func NewHandler(service catalog.CatalogService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	admin := auth.RequireRole(model.RoleAdmin)

	services := r.Group("/services", auth.Authenticate())
	{
		services.GET("", h.ListServices)
		services.POST("", admin, h.CreateService)
		services.GET("/:id", h.GetService)
		services.PUT("/:id", admin, h.UpdateService)
		services.DELETE("/:id", admin, h.DeleteService)
	}
}

func (h *Handler) CreateService(c *gin.Context) {
	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	svc, err := h.service.CreateService(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(svc))
}

func (h *Handler) GetService(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	svc, err := h.service.GetService(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(svc))
}

func (h *Handler) UpdateService(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	svc, err := h.service.UpdateService(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(svc))
}

func (h *Handler) DeleteService(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteService(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("service deleted"))
}

func (h *Handler) ListServices(c *gin.Context) {
	var filters model.ServiceFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		handler.BadRequest(c, err)
		return
	}

	services, err := h.service.ListServices(c.Request.Context(), &filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if services == nil {
		services = []*model.Service{}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(services))
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// ContextActor is the gin context key holding the authenticated model.Actor.
const ContextActor = "actor"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Page wraps a page of list results.
type Page struct {
	Items    interface{} `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func NewPage(items interface{}, total int, p model.Pagination) *Page {
	return &Page{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}

// RespondError writes err using the status of the AppError it carries.
// Anything else is logged and reported as an internal error.
func RespondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}

	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		log.Ctx(c.Request.Context()).Error().Err(err).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, NewErrorResponse(appErr.Message))
}

// BadRequest reports a binding or parsing failure.
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
}

// Actor returns the caller set by the auth middleware.
func Actor(c *gin.Context) model.Actor {
	if v, ok := c.Get(ContextActor); ok {
		if actor, ok := v.(model.Actor); ok {
			return actor
		}
	}
	return model.Actor{}
}

// ParamID parses a UUID path parameter, answering 400 when malformed.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

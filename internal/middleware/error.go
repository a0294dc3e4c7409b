package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// ErrorLogger logs the errors handlers attached with c.Error. Client errors
// are logged at debug level, everything else at error level.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, e := range c.Errors {
			event := log.Ctx(c.Request.Context()).Error()
			if appErr, ok := apperrors.As(e.Err); ok && appErr.StatusCode() < 500 {
				event = log.Ctx(c.Request.Context()).Debug()
			}
			event.Err(e.Err).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("request error")
		}
	}
}

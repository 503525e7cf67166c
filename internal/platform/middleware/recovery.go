package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const msgInternalError = "erreur interne du serveur"

// Recovery turns a handler panic into a 500 and logs the stack with the
// request and clinic it happened in.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					rid, _ := c.Get("request_id").(string)
					clinic, _ := c.Get("clinic_id").(string)
					logger.Error().
						Str("request_id", rid).
						Str("clinic", clinic).
						Str("method", c.Request().Method).
						Str("path", c.Request().URL.Path).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic while serving clinic request")

					err = echo.NewHTTPError(http.StatusInternalServerError, msgInternalError)
				}
			}()
			return next(c)
		}
	}
}

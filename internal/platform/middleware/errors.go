package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorHandler renders every error as {"error": message}. Errors that are not
// *echo.HTTPError are store or programming failures: they are logged and the
// client only sees an opaque 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		var body interface{} = map[string]string{"error": msgInternalError}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				body = map[string]string{"error": m}
			case nil:
				body = map[string]string{"error": http.StatusText(code)}
			default:
				body = m
			}
			if he.Internal != nil {
				rid, _ := c.Get("request_id").(string)
				logger.Error().Err(he.Internal).Str("request_id", rid).Int("status", code).Msg("request failed")
			}
		} else {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pquerna/otp/totp"
)

// HeaderTOTP carries the admin one-time code on mutating requests.
const HeaderTOTP = "X-TOTP-Code"

// Recover turns handler panics into a 500 reply.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in handler",
						"path", c.Path(),
						"panic", fmt.Sprint(r),
						"stack", string(debug.Stack()),
					)
					err = DataResponse(c, http.StatusInternalServerError, "Internal Server Error")
				}
			}()
			return next(c)
		}
	}
}

// RequestLogging logs one line per request.
func RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			slog.Debug("http request",
				"method", req.Method,
				"uri", req.RequestURI,
				"remote", c.RealIP(),
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}

// RequireTOTP rejects requests without a valid code for secret in
// HeaderTOTP. An empty secret disables the check.
func RequireTOTP(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(c echo.Context) error {
			code := c.Request().Header.Get(HeaderTOTP)
			if code == "" || !totp.Validate(code, secret) {
				slog.Warn("rejected request without valid TOTP", "path", c.Path(), "remote", c.RealIP())
				return DataResponse(c, http.StatusUnauthorized, []ErrorDetail{{
					Code:    "ERR_TOTP",
					Message: HeaderTOTP + " header missing or invalid",
				}})
			}
			return next(c)
		}
	}
}

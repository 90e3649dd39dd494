package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/labstack/echo/v4"
)

// envelope is the body of every API response. Failures carry Message and
// never Data.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(data any) envelope {
	return envelope{Success: true, Data: data}
}

func failure(msg string) envelope {
	return envelope{Success: false, Message: msg}
}

// handleError is echo's HTTPErrorHandler. Domain errors map to their HTTP
// status; anything unrecognized is logged and reported as a bare 500.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed",
			"method", c.Request().Method,
			"route", c.Path(),
			"error", err.Error(),
		)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, failure(msg))
	}
	if werr != nil {
		s.logger.Error(c.Request().Context(), "write error response", "error", werr.Error())
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, detail(err, common.ErrorValidation)
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, detail(err, common.ErrorAlreadyExists)
	case errors.Is(err, common.ErrorInvalidCredentials):
		return http.StatusUnauthorized, common.ErrorInvalidCredentials.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, detail(err, common.ErrorUnauthorized)
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "task not found"
	case errors.Is(err, common.ErrExportDisabled):
		return http.StatusNotImplemented, "export is not configured"
	case errors.As(err, &he):
		if he.Code >= http.StatusInternalServerError {
			return he.Code, "server error"
		}
		if m, ok := he.Message.(string); ok && m != "" {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	default:
		return http.StatusInternalServerError, "server error"
	}
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, found := strings.CutPrefix(msg, sentinel.Error()+": "); found {
		return rest
	}
	return msg
}

// errorKind labels err for tracing.
func errorKind(err error) string {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return "validation"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "conflict"
	case errors.Is(err, common.ErrorInvalidCredentials), errors.Is(err, common.ErrorUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrExportDisabled):
		return "export_disabled"
	default:
		return "internal"
	}
}

// sonicSerializer replaces echo's encoding/json serializer.
type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	return nil
}

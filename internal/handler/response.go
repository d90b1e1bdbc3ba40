package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
	"github.com/mealmitra/mealmitra-backend/internal/service"
)

type errorPayload struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// writeError maps service errors onto status codes and the error envelope.
func writeError(c echo.Context, err error) error {
	var ve *service.ValidationError
	var te *service.InvalidTransitionError
	switch {
	case errors.As(err, &ve):
		resp := NewErrorResponse("validation_error", ve.Error())
		resp.Error.Fields = ve.Fields
		return c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", err.Error()))
	case errors.As(err, &te):
		return c.JSON(http.StatusConflict, NewErrorResponse("invalid_transition", te.Error()))
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, NewErrorResponse("invalid_transition", err.Error()))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", err.Error()))
	case errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthenticated", err.Error()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("cancelled", "request cancelled"))
	}
	log.Printf("[http] rid=%s path=%s err=%v", logctx.RID(c.Request().Context()), c.Path(), err)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "internal error"))
}

// durabilityOnly reports whether err is only a failed snapshot write. The
// in-memory change it accompanies has already been applied.
func durabilityOnly(err error) bool {
	var se *repository.StorageError
	return err != nil && errors.As(err, &se)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", message))
}

package apperr

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type ErrorResponse struct {
	Error   string     `json:"error"`
	Details Violations `json:"details,omitempty"`
}

// Status maps an error onto an HTTP status code.
func Status(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is the fiber.Config ErrorHandler for the API.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := Status(err)
	resp := ErrorResponse{Error: err.Error()}

	var ve *ValidationError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		resp.Error = fe.Message
	case errors.As(err, &ve):
		resp.Error = ErrValidation.Error()
		resp.Details = ve.Violations
	case errors.Is(err, ErrTransaction):
		slog.ErrorContext(c.UserContext(), "transaction failed", "path", c.Path(), "error", err)
		resp.Error = ErrTransaction.Error()
	case status == fiber.StatusInternalServerError:
		slog.ErrorContext(c.UserContext(), "unexpected error", "path", c.Path(), "error", err)
		resp.Error = "internal server error"
	}
	return c.Status(status).JSON(resp)
}

package server

import (
	"errors"
	"log/slog"

	"cuecard/app/service/engine"
	"cuecard/app/service/orchestrator"
	"cuecard/app/service/session"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var (
	errQueueFull = fiber.NewError(fiber.StatusServiceUnavailable, "input queue is full")
	errBadID     = fiber.NewError(fiber.StatusBadRequest, "invalid message id")
)

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var fiberErr *fiber.Error
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.As(err, &validationErrs):
		code = fiber.StatusBadRequest
	case errors.Is(err, session.ErrNoSession), errors.Is(err, orchestrator.ErrNoSession):
		code = fiber.StatusConflict
		message = session.ErrNoSession.Error()
	case errors.Is(err, session.ErrUnknownPersona):
		code = fiber.StatusBadRequest
	case errors.Is(err, engine.ErrStopped):
		code = fiber.StatusServiceUnavailable
	case errors.Is(err, orchestrator.ErrUnknownMessage):
		code = fiber.StatusNotFound
	default:
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		message = "internal error"
	}

	return c.Status(code).JSON(errorResponse{Error: message})
}

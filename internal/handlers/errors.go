package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/example/telephony/internal/apperr"
)

// ErrorHandler renders every error returned by a handler as a JSON body:
//
//	{"success": false, "error": "<message>", "fields": {"<field>": "<message>"}}
//
// fields is present only for validation failures. Unknown errors become a
// generic 500 and are logged.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	log = log.Named("http")
	return func(c *fiber.Ctx, err error) error {
		status, body := renderError(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", utils.CopyString(c.Method())),
				zap.String("path", utils.CopyString(c.Path())),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(body)
	}
}

func renderError(err error) (int, fiber.Map) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest, fiber.Map{
			"success": false,
			"error":   "validation failed",
			"fields":  ve.Fields,
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, failure(fe.Message)
	}

	switch {
	case errors.Is(err, apperr.ErrConflict):
		return fiber.StatusBadRequest, failure(err.Error())
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return fiber.StatusBadRequest, failure("invalid credentials")
	case errors.Is(err, apperr.ErrInvalidToken):
		return fiber.StatusUnauthorized, failure("invalid token")
	case errors.Is(err, apperr.ErrUnauthorized):
		return fiber.StatusUnauthorized, failure("unauthorized")
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound, failure("not found")
	}

	return fiber.StatusInternalServerError, failure("internal server error")
}

func failure(msg string) fiber.Map {
	return fiber.Map{"success": false, "error": msg}
}

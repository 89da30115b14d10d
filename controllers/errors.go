package controllers

import (
	"errors"
	"tutorlink_go/services"
	"tutorlink_go/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// serviceError maps service-layer sentinels onto HTTP responses. Anything
// unrecognized is a 500 with the detail kept out of the response body.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	case errors.Is(err, services.ErrCallNotFound),
		errors.Is(err, services.ErrBatchNotFound),
		errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Call is not in a state that allows this operation"})
	case errors.Is(err, services.ErrHasDependentAttendance):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Call has recorded attendance and cannot be deleted"})
	case errors.Is(err, services.ErrInvalidStudentEntry),
		errors.Is(err, services.ErrInvalidCallSlot),
		errors.Is(err, services.ErrMissingIdempotencyKey):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		logrus.WithError(err).Error("unhandled service error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}

package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/Bosco9119/wms-appi1/internal/pkg/mail"
)

// HandleSendAppointmentConfirmation sends a booking confirmation email.
// Best-effort: a send failure is reported to the caller, not escalated.
func HandleSendAppointmentConfirmation(c *fiber.Ctx) error {
	var in mail.AppointmentConfirmation
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	if err := mail.SendAppointmentConfirmation(in); err != nil {
		fiberlog.Errorf("[Mail] confirmation send failed (bookingId=%s): %v", in.BookingID, err)
		return c.Status(emailErrorStatus(err)).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// HandleSendAppointmentReminder sends an appointment reminder email.
func HandleSendAppointmentReminder(c *fiber.Ctx) error {
	var in mail.AppointmentReminder
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	if err := mail.SendAppointmentReminder(in); err != nil {
		fiberlog.Errorf("[Mail] reminder send failed (type=%s): %v", in.ReminderType, err)
		return c.Status(emailErrorStatus(err)).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func emailErrorStatus(err error) int {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

package mail

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// AppointmentConfirmation carries the fields rendered into a booking
// confirmation email.
type AppointmentConfirmation struct {
	CustomerEmail   string `json:"customerEmail" validate:"required,email"`
	CustomerName    string `json:"customerName" validate:"required"`
	ShopName        string `json:"shopName" validate:"required"`
	AppointmentDate string `json:"appointmentDate" validate:"required"`
	AppointmentTime string `json:"appointmentTime" validate:"required"`
	ServiceTypes    string `json:"serviceTypes"`
	EstimatedCost   string `json:"estimatedCost"`
	BookingID       string `json:"bookingId"`
}

// AppointmentReminder carries the fields rendered into a reminder email.
// ReminderType is free text shown in the subject, e.g. "24-hour".
type AppointmentReminder struct {
	CustomerEmail   string `json:"customerEmail" validate:"required,email"`
	CustomerName    string `json:"customerName" validate:"required"`
	ShopName        string `json:"shopName" validate:"required"`
	AppointmentDate string `json:"appointmentDate" validate:"required"`
	AppointmentTime string `json:"appointmentTime" validate:"required"`
	ReminderType    string `json:"reminderType" validate:"required"`
}

// SendAppointmentConfirmation validates the input and sends the confirmation
// email. Best-effort: the error is returned to the caller, never escalated.
func SendAppointmentConfirmation(in AppointmentConfirmation) error {
	if err := validator.New().Struct(in); err != nil {
		return err
	}
	subject := fmt.Sprintf("Appointment Confirmed - %s", in.ShopName)
	return SendMail(in.CustomerEmail, subject, ConfirmationBody(in))
}

// SendAppointmentReminder validates the input and sends the reminder email.
func SendAppointmentReminder(in AppointmentReminder) error {
	if err := validator.New().Struct(in); err != nil {
		return err
	}
	subject := fmt.Sprintf("Appointment Reminder - %s - %s", in.ReminderType, in.ShopName)
	return SendMail(in.CustomerEmail, subject, ReminderBody(in))
}

// ConfirmationBody renders the confirmation email HTML.
func ConfirmationBody(in AppointmentConfirmation) string {
	return fmt.Sprintf(`
		<h2>Appointment Confirmed!</h2>
		<p>Dear %s,</p>
		<p>Your appointment has been successfully confirmed.</p>

		<h3>Appointment Details:</h3>
		<ul>
			<li><strong>Shop:</strong> %s</li>
			<li><strong>Date:</strong> %s</li>
			<li><strong>Time:</strong> %s</li>
			<li><strong>Services:</strong> %s</li>
			<li><strong>Cost:</strong> $%s</li>
			<li><strong>Booking ID:</strong> %s</li>
		</ul>

		<p>Thank you for choosing AutoAnywhere!</p>
	`, in.CustomerName, in.ShopName, in.AppointmentDate, in.AppointmentTime, in.ServiceTypes, in.EstimatedCost, in.BookingID)
}

// ReminderBody renders the reminder email HTML.
func ReminderBody(in AppointmentReminder) string {
	return fmt.Sprintf(`
		<h2>Appointment Reminder</h2>
		<p>Dear %s,</p>
		<p>This is a %s reminder for your upcoming appointment.</p>

		<h3>Appointment Details:</h3>
		<ul>
			<li><strong>Shop:</strong> %s</li>
			<li><strong>Date:</strong> %s</li>
			<li><strong>Time:</strong> %s</li>
		</ul>

		<p>See you soon!</p>
	`, in.CustomerName, in.ReminderType, in.ShopName, in.AppointmentDate, in.AppointmentTime)
}

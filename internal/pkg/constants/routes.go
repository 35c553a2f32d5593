package constants

// Static route constants
const (
	APIRoute = "/api"

	CreateBillRoute          = "/createBill"
	PaymentCallbackRoute     = "/paymentCallback"
	GetPaymentStatusRoute    = "/getPaymentStatus"
	GetCustomerPaymentsRoute = "/getCustomerPayments"

	SendAppointmentConfirmationRoute = "/sendAppointmentConfirmation"
	SendAppointmentReminderRoute     = "/sendAppointmentReminder"
)

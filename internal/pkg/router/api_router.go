package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/Bosco9119/wms-appi1/app/controllers"
	"github.com/Bosco9119/wms-appi1/internal/pkg/constants"
)

type ApiRouter struct {
}

// InstallRouter registers the POST-only payment and email endpoints. CORS
// preflight requests are acknowledged with permissive headers; requests with
// any other method on these paths get 405 from Fiber's method matching.
func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET, POST, OPTIONS",
		AllowHeaders: "Content-Type",
	}), limiter.New())

	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	api.Post(constants.CreateBillRoute, controllers.HandleCreateBill)
	api.Post(constants.PaymentCallbackRoute, controllers.HandlePaymentCallback)
	api.Post(constants.GetPaymentStatusRoute, controllers.HandleGetPaymentStatus)
	api.Post(constants.GetCustomerPaymentsRoute, controllers.HandleGetCustomerPayments)

	api.Post(constants.SendAppointmentConfirmationRoute, controllers.HandleSendAppointmentConfirmation)
	api.Post(constants.SendAppointmentReminderRoute, controllers.HandleSendAppointmentReminder)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

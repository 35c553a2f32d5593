package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/Bosco9119/wms-appi1/app/models"
	"github.com/Bosco9119/wms-appi1/internal/pkg/archive"
	"github.com/Bosco9119/wms-appi1/internal/pkg/billplz"
	"github.com/Bosco9119/wms-appi1/internal/pkg/cache"
	"github.com/Bosco9119/wms-appi1/internal/pkg/database"
	"github.com/Bosco9119/wms-appi1/internal/pkg/env"
	"github.com/Bosco9119/wms-appi1/internal/pkg/payments"
)

const paymentStatusCacheTTL = 24 * time.Hour

// newPaymentService builds the ledger service per request. Tests swap the
// factory to run the handlers against an in-memory repository.
var newPaymentService = func() *payments.Service {
	return payments.NewServiceFromDB(database.GetDB(), billplz.NewClientFromEnv())
}

// HandleCreateBill creates a bill on the gateway and persists the ledger record.
// Request: JSON { amount, description, customerName, customerEmail, customerPhone?, orderId? }
func HandleCreateBill(c *fiber.Ctx) error {
	var in payments.CreatePaymentInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	svc := newPaymentService()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := svc.CreatePayment(ctx, in)
	if err != nil {
		fiberlog.Errorf("[Payments] create bill failed (orderId=%s): %v", in.OrderID, err)
		return paymentErrorResponse(c, "Failed to create bill", err)
	}

	fiberlog.Infof("[Payments] bill created billId=%s orderId=%s", result.BillID, in.OrderID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"billId":  result.BillID,
		"billUrl": result.BillURL,
		"message": "Bill created successfully",
	})
}

// HandlePaymentCallback ingests the gateway's asynchronous payment outcome.
// The raw payload is recorded idempotently and its signature verified before
// any ledger mutation.
func HandlePaymentCallback(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	payload, err := billplz.ParseCallbackBody(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid callback payload"})
	}

	svc := newPaymentService()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := payload.VerifySignature(env.GetEnv("BILLPLZ_X_SIGNATURE_KEY", ""))
	created, stored, err := svc.RecordWebhookEvent(ctx, payments.WebhookEventInput{
		Provider:       payments.ProviderBillplz,
		BillID:         payload.BillID,
		PayloadJSON:    string(rawBody),
		SignatureValid: signatureValid,
	})
	if err != nil {
		fiberlog.Errorf("[Payments] callback event persist failed (billId=%s): %v", payload.BillID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "callback event persist failed"})
	}
	// A redelivery only short-circuits when the first delivery was fully
	// applied. Events that failed transiently or were rejected on signature
	// fall through so the gateway's retry can complete the work; the
	// pending-only status update keeps re-application safe.
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "duplicate": true, "message": "Callback already received"})
	}
	if !signatureValid {
		fiberlog.Warnf("[Payments] callback with invalid signature rejected (billId=%s)", payload.BillID)
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid callback signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "invalid callback signature"})
	}

	archiveCallbackPayload(ctx, payload.BillID, rawBody)

	result, applyErr := svc.ApplyCallback(ctx, payments.CallbackInput{
		BillID:            payload.BillID,
		PaidAt:            payload.PaidAt,
		TransactionID:     payload.TransactionID,
		TransactionStatus: payload.TransactionStatus,
	})
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, applyErr)
	if applyErr != nil {
		fiberlog.Errorf("[Payments] callback apply failed (billId=%s): %v", payload.BillID, applyErr)
		return paymentErrorResponse(c, "Payment callback failed", applyErr)
	}
	if result.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "duplicate": true, "message": "Payment already finalized"})
	}

	fiberlog.Infof("[Payments] payment status updated billId=%s status=%s transactionId=%s",
		payload.BillID, result.Status, payload.TransactionID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Payment callback processed successfully",
	})
}

// HandleGetPaymentStatus returns the full current record for a bill.
// Request: JSON { billId }
func HandleGetPaymentStatus(c *fiber.Ctx) error {
	var req struct {
		BillID string `json:"billId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	// Terminal records never change; serve them from cache when present.
	if req.BillID != "" {
		if cached, err := cache.Get(paymentStatusCacheKey(req.BillID)); err == nil && cached != "" {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "payment": json.RawMessage(cached)})
		}
	}

	svc := newPaymentService()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record, err := svc.GetPaymentStatus(ctx, req.BillID)
	if err != nil {
		return paymentErrorResponse(c, "Failed to get payment status", err)
	}

	if record.IsTerminal() {
		if encoded, err := json.Marshal(record); err == nil {
			if err := cache.Set(paymentStatusCacheKey(record.BillID), string(encoded), paymentStatusCacheTTL); err != nil {
				fiberlog.Warnf("[Payments] status cache write failed (billId=%s): %v", record.BillID, err)
			}
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "payment": record})
}

// HandleGetCustomerPayments returns a customer's payment history.
// Request: JSON { customerEmail, limit? } — newest first, at most limit records.
func HandleGetCustomerPayments(c *fiber.Ctx) error {
	var req struct {
		CustomerEmail string `json:"customerEmail"`
		Limit         int    `json:"limit"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	svc := newPaymentService()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := svc.ListCustomerPayments(ctx, req.CustomerEmail, req.Limit)
	if err != nil {
		return paymentErrorResponse(c, "Failed to get customer payments", err)
	}
	if records == nil {
		records = []models.Payment{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "payments": records})
}

// paymentErrorResponse maps the payments error taxonomy onto HTTP statuses
// while keeping the uniform {success:false, error} body.
func paymentErrorResponse(c *fiber.Ctx, prefix string, err error) error {
	status := fiber.StatusInternalServerError

	var validationErr *payments.ValidationError
	var notFoundErr *payments.NotFoundError
	var gatewayErr *payments.GatewayError
	switch {
	case errors.As(err, &validationErr):
		status = fiber.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = fiber.StatusNotFound
	case errors.As(err, &gatewayErr):
		status = fiber.StatusBadGateway
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   prefix + ": " + err.Error(),
	})
}

func paymentStatusCacheKey(billID string) string {
	return "payment:status:" + billID
}

var (
	archiveOnce   sync.Once
	archiveClient *archive.Client
)

// archiveCallbackPayload stores the raw payload best-effort; archive failures
// never block callback processing.
func archiveCallbackPayload(ctx context.Context, billID string, payload []byte) {
	archiveOnce.Do(func() {
		cfg, err := archive.LoadConfig()
		if err != nil {
			fiberlog.Warnf("[Payments] payload archive misconfigured: %v", err)
			return
		}
		if !cfg.IsEnabled() {
			return
		}
		client, err := archive.NewClient(cfg)
		if err != nil {
			fiberlog.Warnf("[Payments] payload archive unavailable: %v", err)
			return
		}
		archiveClient = client
	})
	if archiveClient == nil {
		return
	}
	if _, err := archiveClient.StorePayload(ctx, billID, payload); err != nil {
		fiberlog.Warnf("[Payments] payload archive write failed (billId=%s): %v", billID, err)
	}
}

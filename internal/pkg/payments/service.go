package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/Bosco9119/wms-appi1/app/models"
	"github.com/Bosco9119/wms-appi1/internal/pkg/billplz"
	"github.com/go-playground/validator/v10"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// ProviderBillplz tags records and webhook events with their gateway.
	ProviderBillplz = "billplz"

	// transactionStatusCompleted is the gateway's literal "paid" marker.
	transactionStatusCompleted = "completed"

	billDueIn = 7 * 24 * time.Hour
)

// DefaultHistoryLimit is applied when a customer-history lookup does not
// specify a limit.
const DefaultHistoryLimit = 10

// Service owns the payment record lifecycle: creation (initiating→pending),
// callback reconciliation (pending→paid/failed) and read access.
type Service struct {
	repo     Repository
	gateway  Gateway
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a payment ledger service from injected collaborators.
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		validate: validator.New(),
		now:      time.Now,
	}
}

// NewServiceFromDB creates a payment ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway) *Service {
	return NewService(NewRepository(db), gateway)
}

// CreatePayment creates a bill on the gateway and records it locally.
//
// The write is two-phase: a provisional record (status=initiating) is
// persisted before the gateway call so that a bill can never exist upstream
// without any local trace. Gateway success promotes it to pending under the
// gateway-issued bill id.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatePaymentResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, &ValidationError{Msg: "missing required fields: amount, description, customerName, customerEmail"}
	}

	record := &models.Payment{
		LocalRef:      uuid.NewString(),
		OrderID:       strings.TrimSpace(in.OrderID),
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Amount:        in.Amount,
		Description:   strings.TrimSpace(in.Description),
		Status:        models.PaymentStatusInitiating,
	}
	if err := s.repo.CreatePayment(record); err != nil {
		return nil, &PersistenceError{Op: "create payment record", Err: err}
	}

	bill, err := s.gateway.CreateBill(ctx, billplz.CreateBillParams{
		Email:           record.CustomerEmail,
		Mobile:          record.CustomerPhone,
		Name:            record.CustomerName,
		AmountCents:     int64(math.Round(in.Amount * 100)),
		Description:     record.Description,
		DueAt:           s.now().Add(billDueIn),
		Reference1Label: "Order ID",
		Reference1:      record.OrderID,
		Reference2Label: "Customer",
		Reference2:      record.CustomerName,
	})
	if err != nil {
		if cleanupErr := s.repo.MarkInitiatingFailed(record.LocalRef); cleanupErr != nil {
			fiberlog.Errorf("[Payments] failed to mark provisional record %s failed: %v", record.LocalRef, cleanupErr)
		}
		return nil, &GatewayError{Err: err}
	}

	if err := s.repo.FinalizeBill(record.LocalRef, bill.ID, bill.URL); err != nil {
		// Dangling bill: the gateway holds a bill this ledger could not
		// finalize. The initiating row under localRef is the reconciliation
		// hook for an orphan sweep.
		fiberlog.Errorf("[Payments] bill %s created upstream but finalize failed (localRef=%s): %v", bill.ID, record.LocalRef, err)
		return nil, &PersistenceError{Op: "finalize payment record", Err: err}
	}

	return &CreatePaymentResult{BillID: bill.ID, BillURL: bill.URL}, nil
}

// ApplyCallback reconciles an externally reported payment outcome with the
// local record. Terminal records are never overwritten: a late or duplicate
// callback no-ops and is reported as such.
func (s *Service) ApplyCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	_ = ctx
	billID := strings.TrimSpace(in.BillID)
	if billID == "" {
		return nil, &ValidationError{Msg: "missing billplzid"}
	}

	record, err := s.repo.GetByBillID(billID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Msg: "payment record not found"}
		}
		return nil, &PersistenceError{Op: "load payment record", Err: err}
	}
	if record.IsTerminal() {
		return &CallbackResult{Status: record.Status, Duplicate: true}, nil
	}

	isPaid := in.TransactionStatus == transactionStatusCompleted
	update := StatusUpdate{
		Status:        models.PaymentStatusFailed,
		TransactionID: strings.TrimSpace(in.TransactionID),
	}
	if isPaid {
		paidAt, err := billplz.ParsePaidAt(in.PaidAt)
		if err != nil {
			return nil, &ValidationError{Msg: "invalid paid_at in callback: " + err.Error()}
		}
		update.Status = models.PaymentStatusPaid
		update.PaidAt = &paidAt
	} else if !isKnownFailureStatus(in.TransactionStatus) {
		// Unrecognized statuses are coerced to failed; keep the raw value
		// visible for investigation.
		fiberlog.Warnf("[Payments] bill %s callback with unrecognized transaction status %q treated as failed", billID, in.TransactionStatus)
	}

	applied, err := s.repo.UpdateStatusIfPending(billID, update)
	if err != nil {
		return nil, &PersistenceError{Op: "update payment status", Err: err}
	}
	if !applied {
		// Lost a race against a concurrent callback; the record is terminal now.
		current, err := s.repo.GetByBillID(billID)
		if err != nil {
			return nil, &PersistenceError{Op: "reload payment record", Err: err}
		}
		return &CallbackResult{Status: current.Status, Duplicate: true}, nil
	}

	return &CallbackResult{Status: update.Status}, nil
}

// GetPaymentStatus returns the full current record for a bill. Pure read.
func (s *Service) GetPaymentStatus(ctx context.Context, billID string) (*models.Payment, error) {
	_ = ctx
	if strings.TrimSpace(billID) == "" {
		return nil, &ValidationError{Msg: "missing billId"}
	}

	record, err := s.repo.GetByBillID(strings.TrimSpace(billID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Msg: "payment record not found"}
		}
		return nil, &PersistenceError{Op: "load payment record", Err: err}
	}
	return record, nil
}

// ListCustomerPayments returns up to limit records for an exact customer
// email match, newest first. There is no pagination cursor.
func (s *Service) ListCustomerPayments(ctx context.Context, customerEmail string, limit int) ([]models.Payment, error) {
	_ = ctx
	email := strings.TrimSpace(customerEmail)
	if email == "" {
		return nil, &ValidationError{Msg: "missing customerEmail"}
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	records, err := s.repo.ListByCustomerEmail(email, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list customer payments", Err: err}
	}
	return records, nil
}

// RecordWebhookEvent persists callback payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.PaymentWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		BillID:          strings.TrimSpace(in.BillID),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

func isKnownFailureStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "due", "deleted":
		return true
	default:
		return false
	}
}

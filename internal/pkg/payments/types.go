package payments

import (
	"context"
	"time"

	"github.com/Bosco9119/wms-appi1/internal/pkg/billplz"
)

// Gateway is the outbound bill-creation contract consumed by the service.
type Gateway interface {
	CreateBill(ctx context.Context, in billplz.CreateBillParams) (*billplz.Bill, error)
}

// CreatePaymentInput is the caller-supplied shape for a new payment.
type CreatePaymentInput struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Description   string  `json:"description" validate:"required"`
	CustomerName  string  `json:"customerName" validate:"required"`
	CustomerEmail string  `json:"customerEmail" validate:"required,email"`
	CustomerPhone string  `json:"customerPhone"`
	OrderID       string  `json:"orderId"`
}

// CreatePaymentResult carries the gateway-issued identifiers back to the caller.
type CreatePaymentResult struct {
	BillID  string `json:"billId"`
	BillURL string `json:"billUrl"`
}

// CallbackInput is the normalized gateway callback.
type CallbackInput struct {
	BillID            string
	PaidAt            string
	TransactionID     string
	TransactionStatus string
}

// CallbackResult reports the outcome of applying a callback. Duplicate means
// the record was already terminal (or lost a concurrent-callback race) and
// was left untouched.
type CallbackResult struct {
	Status    string
	Duplicate bool
}

// WebhookEventInput is the normalized input for callback event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	BillID          string
	PayloadJSON     string
	SignatureValid  bool
}

// StatusUpdate is the mutable field set a callback may write.
type StatusUpdate struct {
	Status        string
	TransactionID string
	PaidAt        *time.Time
}

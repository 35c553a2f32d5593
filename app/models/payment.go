package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PaymentStatusInitiating = "initiating"
	PaymentStatusPending    = "pending"
	PaymentStatusPaid       = "paid"
	PaymentStatusFailed     = "failed"
)

// Payment is the local ledger record for a gateway bill. A row starts as
// "initiating" before the gateway has acknowledged bill creation; only after
// the gateway assigns a bill id does it become "pending". "paid" and "failed"
// are terminal.
type Payment struct {
	ID            uint       `gorm:"primaryKey" json:"-"`
	LocalRef      string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"localRef"`
	BillID        string     `gorm:"type:varchar(191);default:'';index" json:"billId"`
	OrderID       string     `gorm:"type:varchar(191);default:''" json:"orderId"`
	CustomerName  string     `gorm:"type:varchar(191);not null" json:"customerName" validate:"required"`
	CustomerEmail string     `gorm:"type:varchar(200);not null;index" json:"customerEmail" validate:"required,email"`
	CustomerPhone string     `gorm:"type:varchar(32);default:''" json:"customerPhone"`
	Amount        float64    `gorm:"type:decimal(12,2);not null" json:"amount" validate:"required,gt=0"`
	Description   string     `gorm:"type:varchar(255);not null" json:"description" validate:"required"`
	Status        string     `gorm:"type:varchar(16);not null;default:'initiating';index" json:"status" validate:"oneof=initiating pending paid failed"`
	BillURL       string     `gorm:"type:varchar(255);default:''" json:"billUrl"`
	TransactionID string     `gorm:"type:varchar(191);default:''" json:"transactionId"`
	PaidAt        *time.Time `gorm:"type:timestamp;default:null" json:"paidAt,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (p *Payment) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsTerminal reports whether the payment has reached a final status.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusFailed
}

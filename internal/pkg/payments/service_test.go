package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/Bosco9119/wms-appi1/app/models"
	"github.com/Bosco9119/wms-appi1/internal/pkg/billplz"
	"gorm.io/gorm"
)

type fakeRepo struct {
	records []*models.Payment
	events  map[string]*models.PaymentWebhookEvent

	failCreate   error
	failFinalize error
	failUpdate   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: make(map[string]*models.PaymentWebhookEvent)}
}

func (r *fakeRepo) CreatePayment(p *models.Payment) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	p.ID = uint(len(r.records) + 1)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	r.records = append(r.records, p)
	return nil
}

func (r *fakeRepo) FinalizeBill(localRef, billID, billURL string) error {
	if r.failFinalize != nil {
		return r.failFinalize
	}
	for _, p := range r.records {
		if p.LocalRef == localRef && p.Status == models.PaymentStatusInitiating {
			p.BillID = billID
			p.BillURL = billURL
			p.Status = models.PaymentStatusPending
			p.UpdatedAt = time.Now()
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRepo) MarkInitiatingFailed(localRef string) error {
	for _, p := range r.records {
		if p.LocalRef == localRef && p.Status == models.PaymentStatusInitiating {
			p.Status = models.PaymentStatusFailed
			p.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *fakeRepo) GetByBillID(billID string) (*models.Payment, error) {
	for _, p := range r.records {
		if p.BillID != "" && p.BillID == billID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UpdateStatusIfPending(billID string, update StatusUpdate) (bool, error) {
	if r.failUpdate != nil {
		return false, r.failUpdate
	}
	for _, p := range r.records {
		if p.BillID == billID && p.Status == models.PaymentStatusPending {
			p.Status = update.Status
			p.TransactionID = update.TransactionID
			p.PaidAt = update.PaidAt
			p.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ListByCustomerEmail(email string, limit int) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range r.records {
		if p.BillID != "" && p.CustomerEmail == email {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := r.events[key]; ok {
		return false, existing, nil
	}
	event.ID = uint(len(r.events) + 1)
	r.events[key] = event
	return true, event, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, ev := range r.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeGateway struct {
	bill       *billplz.Bill
	err        error
	lastParams billplz.CreateBillParams
	calls      int
}

func (g *fakeGateway) CreateBill(ctx context.Context, in billplz.CreateBillParams) (*billplz.Bill, error) {
	g.calls++
	g.lastParams = in
	if g.err != nil {
		return nil, g.err
	}
	return g.bill, nil
}

func validCreateInput() CreatePaymentInput {
	return CreatePaymentInput{
		Amount:        50.00,
		Description:   "Oil change",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
	}
}

func TestCreatePayment_Success(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{bill: &billplz.Bill{ID: "bill_123", URL: "https://pay/bill_123"}}
	svc := NewService(repo, gw)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	result, err := svc.CreatePayment(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BillID != "bill_123" || result.BillURL != "https://pay/bill_123" {
		t.Fatalf("unexpected result: %+v", result)
	}

	record, err := repo.GetByBillID("bill_123")
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if record.Status != models.PaymentStatusPending {
		t.Fatalf("expected status pending, got %q", record.Status)
	}
	if record.PaidAt != nil {
		t.Fatalf("expected paidAt unset on creation")
	}
	if record.Amount != 50.00 {
		t.Fatalf("expected amount 50.00, got %v", record.Amount)
	}

	if gw.lastParams.AmountCents != 5000 {
		t.Fatalf("expected 5000 cents, got %d", gw.lastParams.AmountCents)
	}
	if want := now.Add(7 * 24 * time.Hour); !gw.lastParams.DueAt.Equal(want) {
		t.Fatalf("expected due at %v, got %v", want, gw.lastParams.DueAt)
	}
	if gw.lastParams.Reference1Label != "Order ID" || gw.lastParams.Reference2Label != "Customer" {
		t.Fatalf("unexpected reference labels: %+v", gw.lastParams)
	}
	if gw.lastParams.Reference2 != "Jane Doe" {
		t.Fatalf("expected customer name in reference_2, got %q", gw.lastParams.Reference2)
	}
}

func TestCreatePayment_AmountRounding(t *testing.T) {
	tests := []struct {
		amount float64
		cents  int64
	}{
		{amount: 50.00, cents: 5000},
		{amount: 19.99, cents: 1999},
		{amount: 10.005, cents: 1001},
		{amount: 0.01, cents: 1},
	}

	for _, tt := range tests {
		repo := newFakeRepo()
		gw := &fakeGateway{bill: &billplz.Bill{ID: "b", URL: "u"}}
		svc := NewService(repo, gw)

		in := validCreateInput()
		in.Amount = tt.amount
		if _, err := svc.CreatePayment(context.Background(), in); err != nil {
			t.Fatalf("amount %v: unexpected error: %v", tt.amount, err)
		}
		if gw.lastParams.AmountCents != tt.cents {
			t.Fatalf("amount %v: expected %d cents, got %d", tt.amount, tt.cents, gw.lastParams.AmountCents)
		}
	}
}

func TestCreatePayment_Validation(t *testing.T) {
	mutations := map[string]func(*CreatePaymentInput){
		"missing amount":        func(in *CreatePaymentInput) { in.Amount = 0 },
		"negative amount":       func(in *CreatePaymentInput) { in.Amount = -5 },
		"missing description":   func(in *CreatePaymentInput) { in.Description = "" },
		"missing customerName":  func(in *CreatePaymentInput) { in.CustomerName = "" },
		"missing customerEmail": func(in *CreatePaymentInput) { in.CustomerEmail = "" },
		"malformed email":       func(in *CreatePaymentInput) { in.CustomerEmail = "not-an-email" },
	}

	for name, mutate := range mutations {
		repo := newFakeRepo()
		gw := &fakeGateway{bill: &billplz.Bill{ID: "b", URL: "u"}}
		svc := NewService(repo, gw)

		in := validCreateInput()
		mutate(&in)

		_, err := svc.CreatePayment(context.Background(), in)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
		if len(repo.records) != 0 {
			t.Fatalf("%s: expected no record persisted", name)
		}
		if gw.calls != 0 {
			t.Fatalf("%s: expected no gateway call", name)
		}
	}
}

func TestCreatePayment_GatewayFailure(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{err: errors.New("status=500 body=boom")}
	svc := NewService(repo, gw)

	_, err := svc.CreatePayment(context.Background(), validCreateInput())
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}

	// The provisional record must not survive as pending.
	for _, p := range repo.records {
		if p.Status != models.PaymentStatusFailed {
			t.Fatalf("expected provisional record marked failed, got %q", p.Status)
		}
	}
}

func TestCreatePayment_FinalizeFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failFinalize = errors.New("connection lost")
	gw := &fakeGateway{bill: &billplz.Bill{ID: "bill_dangling", URL: "https://pay/x"}}
	svc := NewService(repo, gw)

	_, err := svc.CreatePayment(context.Background(), validCreateInput())
	var persistenceErr *PersistenceError
	if !errors.As(err, &persistenceErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func seedPending(repo *fakeRepo, billID, email string, createdAt time.Time) *models.Payment {
	p := &models.Payment{
		LocalRef:      "ref-" + billID,
		BillID:        billID,
		CustomerName:  "Jane Doe",
		CustomerEmail: email,
		Amount:        50.00,
		Description:   "Oil change",
		Status:        models.PaymentStatusPending,
		BillURL:       "https://pay/" + billID,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	p.ID = uint(len(repo.records) + 1)
	repo.records = append(repo.records, p)
	return p
}

func TestApplyCallback_Paid(t *testing.T) {
	repo := newFakeRepo()
	seedPending(repo, "bill_123", "jane@example.com", time.Now())
	svc := NewService(repo, &fakeGateway{})

	result, err := svc.ApplyCallback(context.Background(), CallbackInput{
		BillID:            "bill_123",
		PaidAt:            "2024-01-01T10:00:00Z",
		TransactionID:     "tx_9",
		TransactionStatus: "completed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("expected first callback not to be a duplicate")
	}
	if result.Status != models.PaymentStatusPaid {
		t.Fatalf("expected paid, got %q", result.Status)
	}

	record, _ := repo.GetByBillID("bill_123")
	if record.Status != models.PaymentStatusPaid {
		t.Fatalf("expected record paid, got %q", record.Status)
	}
	if record.TransactionID != "tx_9" {
		t.Fatalf("expected transaction id tx_9, got %q", record.TransactionID)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if record.PaidAt == nil || !record.PaidAt.Equal(want) {
		t.Fatalf("expected paidAt %v, got %v", want, record.PaidAt)
	}
}

func TestApplyCallback_NonCompletedStatuses(t *testing.T) {
	for _, status := range []string{"failed", "due", "something_odd", ""} {
		repo := newFakeRepo()
		seedPending(repo, "bill_123", "jane@example.com", time.Now())
		svc := NewService(repo, &fakeGateway{})

		result, err := svc.ApplyCallback(context.Background(), CallbackInput{
			BillID:            "bill_123",
			TransactionStatus: status,
		})
		if err != nil {
			t.Fatalf("status %q: unexpected error: %v", status, err)
		}
		if result.Status != models.PaymentStatusFailed {
			t.Fatalf("status %q: expected failed, got %q", status, result.Status)
		}

		record, _ := repo.GetByBillID("bill_123")
		if record.PaidAt != nil {
			t.Fatalf("status %q: expected paidAt to stay null", status)
		}
	}
}

func TestApplyCallback_MissingBillID(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeGateway{})

	_, err := svc.ApplyCallback(context.Background(), CallbackInput{TransactionStatus: "completed"})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestApplyCallback_PaidWithoutPaidAt(t *testing.T) {
	repo := newFakeRepo()
	seedPending(repo, "bill_123", "jane@example.com", time.Now())
	svc := NewService(repo, &fakeGateway{})

	_, err := svc.ApplyCallback(context.Background(), CallbackInput{
		BillID:            "bill_123",
		TransactionStatus: "completed",
	})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	record, _ := repo.GetByBillID("bill_123")
	if record.Status != models.PaymentStatusPending {
		t.Fatalf("expected record to stay pending, got %q", record.Status)
	}
}

func TestApplyCallback_NotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeGateway{})

	_, err := svc.ApplyCallback(context.Background(), CallbackInput{
		BillID:            "bill_missing",
		TransactionStatus: "completed",
		PaidAt:            "2024-01-01T10:00:00Z",
	})
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestApplyCallback_TerminalRecordNotOverwritten(t *testing.T) {
	repo := newFakeRepo()
	record := seedPending(repo, "bill_123", "jane@example.com", time.Now())
	paidAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	record.Status = models.PaymentStatusPaid
	record.TransactionID = "tx_first"
	record.PaidAt = &paidAt
	svc := NewService(repo, &fakeGateway{})

	result, err := svc.ApplyCallback(context.Background(), CallbackInput{
		BillID:            "bill_123",
		TransactionStatus: "failed",
		TransactionID:     "tx_second",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("expected duplicate result for terminal record")
	}
	if result.Status != models.PaymentStatusPaid {
		t.Fatalf("expected reported status paid, got %q", result.Status)
	}

	stored, _ := repo.GetByBillID("bill_123")
	if stored.TransactionID != "tx_first" || stored.PaidAt == nil || !stored.PaidAt.Equal(paidAt) {
		t.Fatalf("terminal record was mutated: %+v", stored)
	}
}

func TestGetPaymentStatus(t *testing.T) {
	repo := newFakeRepo()
	seedPending(repo, "bill_123", "jane@example.com", time.Now())
	svc := NewService(repo, &fakeGateway{})

	record, err := svc.GetPaymentStatus(context.Background(), "bill_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.BillID != "bill_123" || record.Status != models.PaymentStatusPending {
		t.Fatalf("unexpected record: %+v", record)
	}

	_, err = svc.GetPaymentStatus(context.Background(), "bill_unknown")
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	_, err = svc.GetPaymentStatus(context.Background(), "")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestListCustomerPayments_LimitAndOrder(t *testing.T) {
	repo := newFakeRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		seedPending(repo, fmt.Sprintf("bill_%02d", i), "jane@example.com", base.Add(time.Duration(i)*time.Hour))
	}
	seedPending(repo, "bill_other", "other@example.com", base)
	svc := NewService(repo, &fakeGateway{})

	// Default limit.
	records, err := svc.ListCustomerPayments(context.Background(), "jane@example.com", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != DefaultHistoryLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultHistoryLimit, len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.After(records[i-1].CreatedAt) {
			t.Fatalf("records not sorted by createdAt descending")
		}
	}
	if records[0].BillID != "bill_11" {
		t.Fatalf("expected newest record first, got %q", records[0].BillID)
	}

	// Explicit limit.
	records, err = svc.ListCustomerPayments(context.Background(), "jane@example.com", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	// Exact-match email only.
	for _, r := range records {
		if r.CustomerEmail != "jane@example.com" {
			t.Fatalf("unexpected record for %q", r.CustomerEmail)
		}
	}

	_, err = svc.ListCustomerPayments(context.Background(), "", 5)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRecordWebhookEvent_Deduplicates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeGateway{})

	in := WebhookEventInput{
		Provider:    ProviderBillplz,
		BillID:      "bill_123",
		PayloadJSON: `billplzid=bill_123&billplztransaction_status=completed`,
	}

	created, first, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("expected first event to be created")
	}

	created, second, err := svc.RecordWebhookEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected identical payload to deduplicate")
	}
	if first.ID != second.ID {
		t.Fatalf("expected same stored event, got %d and %d", first.ID, second.ID)
	}

	if err := svc.MarkWebhookProcessed(context.Background(), first.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ProcessedAt == nil {
		t.Fatalf("expected processed_at to be set")
	}
}

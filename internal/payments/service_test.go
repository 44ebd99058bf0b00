package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/types"
)

type stubPaymentsRepo struct {
	payment     *models.Payment
	order       *models.Order
	lockedReads int
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPaymentsRepo) FindPaymentByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	s.lockedReads++
	if s.payment == nil || s.payment.GatewayOrderID == nil || *s.payment.GatewayOrderID != gatewayOrderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) FindPaymentByGatewayPaymentIDForUpdate(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	s.lockedReads++
	if s.payment == nil || s.payment.GatewayPaymentID == nil || *s.payment.GatewayPaymentID != gatewayPaymentID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubPaymentsRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	s.lockedReads++
	return s.FindOrder(ctx, orderID)
}

func (s *stubPaymentsRepo) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	p := s.payment
	if v, ok := updates["status"]; ok {
		p.Status = v.(enums.PaymentStatus)
	}
	if v, ok := updates["gateway_payment_id"]; ok {
		id := v.(string)
		p.GatewayPaymentID = &id
	}
	if v, ok := updates["gateway_signature"]; ok {
		sig := v.(string)
		p.GatewaySignature = &sig
	}
	if v, ok := updates["paid_to_vendor"]; ok {
		p.PaidToVendor = v.(bool)
	}
	if v, ok := updates["method"]; ok {
		m := v.(string)
		p.Method = &m
	}
	if v, ok := updates["error_code"]; ok {
		c := v.(string)
		p.ErrorCode = &c
	}
	if v, ok := updates["error_description"]; ok {
		d := v.(string)
		p.ErrorDescription = &d
	}
	if v, ok := updates["refund_id"]; ok {
		id := v.(string)
		p.RefundID = &id
	}
	if v, ok := updates["refund_amount_minor"]; ok {
		p.RefundAmountMinor = v.(int64)
	}
	if v, ok := updates["refunded_at"]; ok {
		at := v.(time.Time)
		p.RefundedAt = &at
	}
	return nil
}

func (s *stubPaymentsRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	o := s.order
	if v, ok := updates["status"]; ok {
		o.Status = v.(enums.OrderStatus)
	}
	if v, ok := updates["timeline"]; ok {
		o.Timeline = v.(types.Timeline)
	}
	return nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubVerifier struct {
	valid bool
	err   error
	calls int
}

func (s *stubVerifier) VerifyPaymentSignature(ctx context.Context, vendorID uuid.UUID, gatewayOrderID, gatewayPaymentID, signature string) (bool, error) {
	s.calls++
	return s.valid, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
}

func newTestService(t *testing.T, repo *stubPaymentsRepo, pub *stubOutboxPublisher, verifier *stubVerifier) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Tx:       &stubTxRunner{},
		Repo:     repo,
		Outbox:   pub,
		Verifier: verifier,
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedPendingPayment(gatewayOrderID string) (*models.Order, *models.Payment) {
	orderID := uuid.New()
	order := &models.Order{
		ID:       orderID,
		Code:     "VD-20260810-ABC123",
		BuyerID:  uuid.New(),
		VendorID: uuid.New(),
		Status:   enums.OrderStatusPlaced,
		Timeline: types.Timeline{}.Append("placed", time.Now().UTC(), "order placed"),
	}
	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        orderID,
		BuyerID:        order.BuyerID,
		VendorID:       order.VendorID,
		Status:         enums.PaymentStatusPending,
		AmountMinor:    124900,
		GatewayOrderID: &gatewayOrderID,
	}
	return order, payment
}

func capturedEvent(gatewayOrderID, gatewayPaymentID string) *WebhookEvent {
	return &WebhookEvent{
		ID:    "evt_" + uuid.NewString(),
		Event: "payment.captured",
		Payload: WebhookPayload{
			Payment: &PaymentWrapper{Entity: PaymentEntity{
				ID:      gatewayPaymentID,
				OrderID: gatewayOrderID,
				Status:  "captured",
				Method:  "upi",
				VPA:     "buyer@upi",
			}},
		},
	}
}

func TestCapturedSettlesPaymentAndConfirmsOrder(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	repo := &stubPaymentsRepo{order: order, payment: payment}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), capturedEvent("order_GW1", "pay_X1"))
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	if payment.Status != enums.PaymentStatusSuccess {
		t.Fatalf("payment status = %s, want success", payment.Status)
	}
	if payment.GatewayPaymentID == nil || *payment.GatewayPaymentID != "pay_X1" {
		t.Fatal("gateway payment id not recorded")
	}
	if !payment.PaidToVendor {
		t.Fatal("paid_to_vendor not set")
	}
	if payment.Method == nil || *payment.Method != "upi" {
		t.Fatal("method metadata not recorded")
	}

	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("order status = %s, want confirmed", order.Status)
	}
	if len(order.Timeline) != 2 || order.Timeline[1].Status != "confirmed" {
		t.Fatalf("timeline = %+v, want confirmed appended", order.Timeline)
	}

	if len(pub.events) != 2 {
		t.Fatalf("events = %d, want order_confirmed + payment_captured", len(pub.events))
	}
	if pub.events[0].EventType != enums.EventOrderConfirmed || pub.events[1].EventType != enums.EventPaymentCaptured {
		t.Fatalf("event types = %s, %s", pub.events[0].EventType, pub.events[1].EventType)
	}
}

func TestCapturedReplayIsNoOp(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	repo := &stubPaymentsRepo{order: order, payment: payment}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubVerifier{})

	event := capturedEvent("order_GW1", "pay_X1")
	if err := svc.HandleWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(order.Timeline) != 2 {
		t.Fatalf("timeline grew on replay: %+v", order.Timeline)
	}
	if len(pub.events) != 2 {
		t.Fatalf("events = %d, replay must not emit", len(pub.events))
	}
}

func TestCapturedDoesNotRewindShippedOrder(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	order.Status = enums.OrderStatusShipped
	repo := &stubPaymentsRepo{order: order, payment: payment}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), capturedEvent("order_GW1", "pay_X1"))
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	if payment.Status != enums.PaymentStatusSuccess {
		t.Fatal("payment should still settle")
	}
	if order.Status != enums.OrderStatusShipped {
		t.Fatalf("order status = %s, capture must not touch fulfillment", order.Status)
	}
}

func TestCapturedLeavesCancelledOrderCancelled(t *testing.T) {
	// A buyer cancel that committed before the capture arrives must win: the
	// payment settles (it is real money, refundable later), but the order is
	// never pulled back to confirmed and its cancelled timeline entry stays.
	order, payment := seedPendingPayment("order_GW1")
	order.Status = enums.OrderStatusCancelled
	order.Timeline = order.Timeline.Append(enums.OrderStatusCancelled.String(), time.Now().UTC(), "buyer cancelled")
	repo := &stubPaymentsRepo{order: order, payment: payment}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), capturedEvent("order_GW1", "pay_X1"))
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	if payment.Status != enums.PaymentStatusSuccess {
		t.Fatal("payment should still settle")
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("order status = %s, capture must not resurrect a cancelled order", order.Status)
	}
	if len(order.Timeline) != 2 || order.Timeline[1].Status != "cancelled" {
		t.Fatalf("timeline = %+v, cancelled entry must survive", order.Timeline)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventPaymentCaptured {
		t.Fatalf("events = %+v, want only payment_captured", pub.events)
	}
	if repo.lockedReads == 0 {
		t.Fatal("capture must read rows under a row lock")
	}
}

func TestCapturedUnknownGatewayOrderIsAcknowledged(t *testing.T) {
	repo := &stubPaymentsRepo{}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), capturedEvent("order_missing", "pay_X1"))
	if err != nil {
		t.Fatalf("unknown gateway order must be a no-op, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatal("no events expected")
	}
}

func TestUnknownEventTypeIsAcknowledged(t *testing.T) {
	repo := &stubPaymentsRepo{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), &WebhookEvent{
		ID:    "evt_1",
		Event: "invoice.paid",
	})
	if err != nil {
		t.Fatalf("unknown event type must be a no-op, got %v", err)
	}
}

func TestFailedRecordsErrorDetails(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	repo := &stubPaymentsRepo{order: order, payment: payment}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), &WebhookEvent{
		ID:    "evt_2",
		Event: "payment.failed",
		Payload: WebhookPayload{
			Payment: &PaymentWrapper{Entity: PaymentEntity{
				ID:               "pay_F1",
				OrderID:          "order_GW1",
				Status:           "failed",
				ErrorCode:        "BAD_REQUEST_ERROR",
				ErrorDescription: "Payment declined by bank",
			}},
		},
	})
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	if payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("payment status = %s, want failed", payment.Status)
	}
	if payment.ErrorCode == nil || *payment.ErrorCode != "BAD_REQUEST_ERROR" {
		t.Fatal("error code not recorded")
	}
	if order.Status != enums.OrderStatusPlaced {
		t.Fatal("failed payment must not touch the order")
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("events = %+v, want single payment_failed", pub.events)
	}
}

func TestFailedCannotOverwriteSuccess(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	payment.Status = enums.PaymentStatusSuccess
	repo := &stubPaymentsRepo{order: order, payment: payment}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), &WebhookEvent{
		Event: "payment.failed",
		Payload: WebhookPayload{
			Payment: &PaymentWrapper{Entity: PaymentEntity{OrderID: "order_GW1"}},
		},
	})
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if payment.Status != enums.PaymentStatusSuccess {
		t.Fatalf("payment status = %s, failed must not overwrite success", payment.Status)
	}
	if len(pub.events) != 0 {
		t.Fatal("no events expected")
	}
}

func TestRefundCreatedRecordsRefundID(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	payment.Status = enums.PaymentStatusSuccess
	gwPaymentID := "pay_X1"
	payment.GatewayPaymentID = &gwPaymentID
	repo := &stubPaymentsRepo{order: order, payment: payment}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), &WebhookEvent{
		Event: "refund.created",
		Payload: WebhookPayload{
			Refund: &RefundWrapper{Entity: RefundEntity{
				ID:          "rfnd_1",
				PaymentID:   "pay_X1",
				AmountMinor: 50000,
				Status:      "created",
			}},
		},
	})
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	if payment.RefundID == nil || *payment.RefundID != "rfnd_1" {
		t.Fatal("refund id not recorded")
	}
	if payment.RefundAmountMinor != 50000 {
		t.Fatalf("refund amount = %d, want 50000", payment.RefundAmountMinor)
	}
	if payment.Status != enums.PaymentStatusSuccess {
		t.Fatal("refund.created must not change payment status")
	}
}

func TestRefundProcessedMarksRefundedAndReturnsOrder(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	order.Status = enums.OrderStatusDelivered
	payment.Status = enums.PaymentStatusSuccess
	gwPaymentID := "pay_X1"
	payment.GatewayPaymentID = &gwPaymentID
	repo := &stubPaymentsRepo{order: order, payment: payment}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), &WebhookEvent{
		Event: "refund.processed",
		Payload: WebhookPayload{
			Refund: &RefundWrapper{Entity: RefundEntity{
				ID:          "rfnd_1",
				PaymentID:   "pay_X1",
				AmountMinor: 124900,
				Status:      "processed",
			}},
		},
	})
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	if payment.Status != enums.PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want refunded", payment.Status)
	}
	if payment.RefundedAt == nil {
		t.Fatal("refunded_at not stamped")
	}
	if order.Status != enums.OrderStatusReturned {
		t.Fatalf("order status = %s, want returned", order.Status)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventPaymentRefunded {
		t.Fatalf("events = %+v, want single payment_refunded", pub.events)
	}
}

func TestRefundProcessedRequiresSettledPayment(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	gwPaymentID := "pay_X1"
	payment.GatewayPaymentID = &gwPaymentID
	repo := &stubPaymentsRepo{order: order, payment: payment}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubVerifier{})

	err := svc.HandleWebhookEvent(context.Background(), &WebhookEvent{
		Event: "refund.processed",
		Payload: WebhookPayload{
			Refund: &RefundWrapper{Entity: RefundEntity{ID: "rfnd_1", PaymentID: "pay_X1"}},
		},
	})
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatal("pending payment must not become refunded")
	}
}

func TestVerifyBuyerPaymentHappyPath(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	repo := &stubPaymentsRepo{order: order, payment: payment}
	pub := &stubOutboxPublisher{}
	verifier := &stubVerifier{valid: true}
	svc := newTestService(t, repo, pub, verifier)

	result, err := svc.VerifyBuyerPayment(context.Background(), order.BuyerID, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "order_GW1",
		GatewayPaymentID: "pay_X1",
		Signature:        "deadbeef",
	})
	if err != nil {
		t.Fatalf("VerifyBuyerPayment: %v", err)
	}

	if verifier.calls != 1 {
		t.Fatalf("verifier calls = %d, want 1", verifier.calls)
	}
	if result.Status != enums.PaymentStatusSuccess {
		t.Fatalf("payment status = %s, want success", result.Status)
	}
	if result.GatewaySignature == nil || *result.GatewaySignature != "deadbeef" {
		t.Fatal("signature not stored")
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("order status = %s, want confirmed", order.Status)
	}
}

func TestVerifyBuyerPaymentRejectsBadSignature(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	repo := &stubPaymentsRepo{order: order, payment: payment}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubVerifier{valid: false})

	_, err := svc.VerifyBuyerPayment(context.Background(), order.BuyerID, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "order_GW1",
		GatewayPaymentID: "pay_X1",
		Signature:        "forged",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeSignature) {
		t.Fatalf("err = %v, want SIGNATURE_MISMATCH", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatal("payment must stay pending on signature mismatch")
	}
}

func TestVerifyBuyerPaymentForeignOrder(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	repo := &stubPaymentsRepo{order: order, payment: payment}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubVerifier{valid: true})

	_, err := svc.VerifyBuyerPayment(context.Background(), uuid.New(), VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "order_GW1",
		GatewayPaymentID: "pay_X1",
		Signature:        "deadbeef",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("err = %v, want FORBIDDEN", err)
	}
}

func TestVerifyBuyerPaymentMismatchedGatewayOrder(t *testing.T) {
	order, payment := seedPendingPayment("order_GW1")
	repo := &stubPaymentsRepo{order: order, payment: payment}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubVerifier{valid: true})

	_, err := svc.VerifyBuyerPayment(context.Background(), order.BuyerID, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   "order_OTHER",
		GatewayPaymentID: "pay_X1",
		Signature:        "deadbeef",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v, want VALIDATION_ERROR", err)
	}
}

package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/gateway"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/metrics"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SignatureVerifier recomputes a captured-payment signature under the
// vendor's gateway credentials.
type SignatureVerifier interface {
	VerifyPaymentSignature(ctx context.Context, vendorID uuid.UUID, gatewayOrderID, gatewayPaymentID, signature string) (bool, error)
}

type factoryVerifier struct {
	factory *gateway.Factory
}

// NewSignatureVerifier adapts the client factory for the sync buyer path.
func NewSignatureVerifier(factory *gateway.Factory) SignatureVerifier {
	return &factoryVerifier{factory: factory}
}

func (v *factoryVerifier) VerifyPaymentSignature(ctx context.Context, vendorID uuid.UUID, gatewayOrderID, gatewayPaymentID, signature string) (bool, error) {
	client, err := v.factory.ForVendor(ctx, vendorID)
	if err != nil {
		return false, err
	}
	return client.VerifySignature(gatewayOrderID, gatewayPaymentID, signature), nil
}

// VerifyInput is the browser-supplied payment confirmation.
type VerifyInput struct {
	OrderID          uuid.UUID `json:"order_id" validate:"required"`
	GatewayOrderID   string    `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string    `json:"gateway_payment_id" validate:"required"`
	Signature        string    `json:"signature" validate:"required"`
}

// Service reconciles gateway state onto local payments and orders.
type Service interface {
	HandleWebhookEvent(ctx context.Context, event *WebhookEvent) error
	VerifyBuyerPayment(ctx context.Context, buyerID uuid.UUID, input VerifyInput) (*models.Payment, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	outbox   outboxPublisher
	verifier SignatureVerifier
	metrics  *metrics.PaymentMetrics
	log      *logger.Logger
}

// ServiceParams wires the reconciliation service.
type ServiceParams struct {
	Tx       txRunner
	Repo     Repository
	Outbox   outboxPublisher
	Verifier SignatureVerifier
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
}

// NewService builds the reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("signature verifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       params.Tx,
		repo:     params.Repo,
		outbox:   params.Outbox,
		verifier: params.Verifier,
		metrics:  params.Metrics,
		log:      params.Logger,
	}, nil
}

// HandleWebhookEvent routes a verified webhook to its handler. Each handler
// runs in its own transaction and is idempotent under replay: the payment
// status ordinal guard makes re-delivery and reordering converge.
func (s *service) HandleWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	kind, handled := enums.ParseGatewayEvent(event.Event)
	if !handled {
		s.log.Info(s.log.WithField(ctx, "event_type", event.Event), "ignoring unhandled gateway event")
		return nil
	}

	switch kind {
	case enums.GatewayEventPaymentCaptured:
		if event.Payload.Payment == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment.captured event missing payment entity")
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.applyCaptured(ctx, tx, event.Payload.Payment.Entity, nil)
		})
	case enums.GatewayEventPaymentFailed:
		if event.Payload.Payment == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment.failed event missing payment entity")
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.applyFailed(ctx, tx, event.Payload.Payment.Entity)
		})
	case enums.GatewayEventRefundCreated:
		if event.Payload.Refund == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund.created event missing refund entity")
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.applyRefundCreated(ctx, tx, event.Payload.Refund.Entity)
		})
	case enums.GatewayEventRefundProcessed:
		if event.Payload.Refund == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund.processed event missing refund entity")
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.applyRefundProcessed(ctx, tx, event.Payload.Refund.Entity)
		})
	}
	return nil
}

// VerifyBuyerPayment is the synchronous browser-return path. The signature is
// checked under the vendor's key pair, then the capture applies through the
// same idempotent transition the webhook uses, so whichever path lands first
// wins and the other becomes a no-op.
func (s *service) VerifyBuyerPayment(ctx context.Context, buyerID uuid.UUID, input VerifyInput) (*models.Payment, error) {
	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}

	payment, err := s.repo.FindPaymentByOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.GatewayOrderID == nil || *payment.GatewayOrderID != input.GatewayOrderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id does not match payment")
	}

	valid, err := s.verifier.VerifyPaymentSignature(ctx, order.VendorID, input.GatewayOrderID, input.GatewayPaymentID, input.Signature)
	if err != nil {
		return nil, err
	}
	if !valid {
		s.log.Security(s.log.WithOrderID(ctx, order.ID.String()), "payment signature mismatch on buyer verify")
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "payment verification failed")
	}

	entity := PaymentEntity{
		ID:          input.GatewayPaymentID,
		OrderID:     input.GatewayOrderID,
		AmountMinor: payment.AmountMinor,
		Status:      "captured",
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.applyCaptured(ctx, tx, entity, &input.Signature)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindPaymentByOrder(ctx, order.ID)
}

// applyCaptured settles a payment and confirms its order. Safe to call any
// number of times for the same capture. Both rows are read under FOR UPDATE
// so a concurrent cancel or replay serializes behind this transaction instead
// of racing the status write.
func (s *service) applyCaptured(ctx context.Context, tx *gorm.DB, entity PaymentEntity, signature *string) error {
	repo := s.repo.WithTx(tx)

	payment, err := repo.FindPaymentByGatewayOrderIDForUpdate(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Gateway may deliver events for orders created out-of-band
			// (dashboard tests, stale environments). Acknowledge and move on.
			s.log.Warn(s.log.WithField(ctx, "gateway_order_id", entity.OrderID), "captured payment matches no local order")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment by gateway order id")
	}

	if !payment.Status.CanAdvanceTo(enums.PaymentStatusSuccess) {
		return nil
	}

	updates := map[string]any{
		"status":             enums.PaymentStatusSuccess,
		"gateway_payment_id": entity.ID,
		"paid_to_vendor":     true,
	}
	if signature != nil {
		updates["gateway_signature"] = *signature
	}
	setIfPresent(updates, "method", entity.Method)
	setIfPresent(updates, "bank", entity.Bank)
	setIfPresent(updates, "wallet", entity.Wallet)
	setIfPresent(updates, "vpa", entity.VPA)
	if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment captured")
	}
	s.metrics.IncStatusTransition(enums.PaymentStatusSuccess.String())

	// Confirm the order only while it is still sitting in placed. A late or
	// replayed capture must never rewind fulfillment that has moved on, and a
	// cancellation that committed first must stay cancelled.
	order, err := repo.FindOrderForUpdate(ctx, payment.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for confirmation")
	}
	if order.Status == enums.OrderStatusPlaced {
		now := time.Now().UTC()
		timeline := order.Timeline.Append(enums.OrderStatusConfirmed.String(), now, "payment captured")
		err = repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":   enums.OrderStatusConfirmed,
			"timeline": timeline,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStateChangedEvent{
				OrderID:   order.ID,
				OrderCode: order.Code,
				VendorID:  order.VendorID,
				From:      enums.OrderStatusPlaced,
				To:        enums.OrderStatusConfirmed,
				Note:      "payment captured",
			},
		})
		if err != nil {
			return err
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCaptured,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: payloads.PaymentCapturedEvent{
			PaymentID:        payment.ID,
			OrderID:          payment.OrderID,
			GatewayPaymentID: entity.ID,
			AmountMinor:      payment.AmountMinor,
			Method:           entity.Method,
		},
	})
}

func (s *service) applyFailed(ctx context.Context, tx *gorm.DB, entity PaymentEntity) error {
	repo := s.repo.WithTx(tx)

	payment, err := repo.FindPaymentByGatewayOrderIDForUpdate(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn(s.log.WithField(ctx, "gateway_order_id", entity.OrderID), "failed payment matches no local order")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment by gateway order id")
	}

	if !payment.Status.CanAdvanceTo(enums.PaymentStatusFailed) {
		return nil
	}

	updates := map[string]any{
		"status": enums.PaymentStatusFailed,
	}
	if entity.ID != "" {
		updates["gateway_payment_id"] = entity.ID
	}
	setIfPresent(updates, "error_code", entity.ErrorCode)
	setIfPresent(updates, "error_description", entity.ErrorDescription)
	if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	s.metrics.IncStatusTransition(enums.PaymentStatusFailed.String())

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: payloads.PaymentFailedEvent{
			PaymentID:        payment.ID,
			OrderID:          payment.OrderID,
			ErrorCode:        entity.ErrorCode,
			ErrorDescription: entity.ErrorDescription,
		},
	})
}

// applyRefundCreated records the gateway refund id the moment the gateway
// acknowledges it. Informational only; refund.processed is authoritative.
func (s *service) applyRefundCreated(ctx context.Context, tx *gorm.DB, entity RefundEntity) error {
	repo := s.repo.WithTx(tx)

	payment, err := repo.FindPaymentByGatewayPaymentIDForUpdate(ctx, entity.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn(s.log.WithField(ctx, "gateway_payment_id", entity.PaymentID), "refund matches no local payment")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment by gateway payment id")
	}

	if payment.RefundID != nil && *payment.RefundID == entity.ID {
		return nil
	}
	return repo.UpdatePayment(ctx, payment.ID, map[string]any{
		"refund_id":           entity.ID,
		"refund_amount_minor": entity.AmountMinor,
	})
}

func (s *service) applyRefundProcessed(ctx context.Context, tx *gorm.DB, entity RefundEntity) error {
	repo := s.repo.WithTx(tx)

	payment, err := repo.FindPaymentByGatewayPaymentIDForUpdate(ctx, entity.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn(s.log.WithField(ctx, "gateway_payment_id", entity.PaymentID), "processed refund matches no local payment")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment by gateway payment id")
	}

	if !payment.Status.CanAdvanceTo(enums.PaymentStatusRefunded) {
		return nil
	}

	now := time.Now().UTC()
	err = repo.UpdatePayment(ctx, payment.ID, map[string]any{
		"status":              enums.PaymentStatusRefunded,
		"refund_id":           entity.ID,
		"refund_amount_minor": entity.AmountMinor,
		"refunded_at":         now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
	}
	s.metrics.IncStatusTransition(enums.PaymentStatusRefunded.String())

	// A completed refund on a delivered order moves the order to returned.
	order, err := repo.FindOrderForUpdate(ctx, payment.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for return")
	}
	if order.Status == enums.OrderStatusDelivered {
		timeline := order.Timeline.Append(enums.OrderStatusReturned.String(), now, "refund processed")
		err = repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":   enums.OrderStatusReturned,
			"timeline": timeline,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order returned")
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRefunded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: payloads.PaymentRefundedEvent{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
			RefundID:    entity.ID,
			AmountMinor: entity.AmountMinor,
			RefundedAt:  now,
		},
	})
}

func setIfPresent(updates map[string]any, key, value string) {
	if value != "" {
		updates[key] = value
	}
}

package orders

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
	"github.com/vendorahq/vendora-backend/pkg/pagination"
)

const maxCancelReasonLen = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type otpIssuer interface {
	Generate(ctx context.Context, orderID string) (string, error)
	ChargeVerifyAttempt(ctx context.Context, orderID string) error
	ClearAttempts(ctx context.Context, orderID string) error
	TTL() time.Duration
}

// Service defines order lifecycle operations beyond repository reads.
type Service interface {
	AdvanceStatus(ctx context.Context, input AdvanceInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	GenerateDeliveryOTP(ctx context.Context, input DeliveryOTPInput) (*DeliveryOTPResult, error)
	Deliver(ctx context.Context, input DeliverInput) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	ListVendorOrders(ctx context.Context, vendorID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	GetOrder(ctx context.Context, orderID, actorID uuid.UUID, role enums.ActorRole) (*models.Order, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	otp    otpIssuer
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	OTP    otpIssuer
}

// NewService validates wiring and builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.OTP == nil {
		return nil, fmt.Errorf("otp issuer required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		otp:    params.OTP,
	}, nil
}

// AdvanceInput captures a vendor-side fulfillment move.
type AdvanceInput struct {
	OrderID     uuid.UUID
	Target      enums.OrderStatus
	Note        string
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
}

// CancelInput captures a buyer cancellation.
type CancelInput struct {
	OrderID     uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
}

// DeliveryOTPInput asks for a fresh delivery code.
type DeliveryOTPInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
}

// DeliveryOTPResult carries the one-time code back to the vendor flow. The
// code is returned exactly once and never readable again.
type DeliveryOTPResult struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeliverInput verifies a delivery code and completes the order.
type DeliverInput struct {
	OrderID     uuid.UUID
	Code        string
	ActorUserID uuid.UUID
}

func (s *service) AdvanceStatus(ctx context.Context, input AdvanceInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if !VendorCanSet(input.Target) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status %s cannot be set directly", input.Target))
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrderForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.VendorID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
		if !CanTransition(order.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Target))
		}

		from := order.Status
		if err := applyTransition(ctx, repo, order, input.Target, input.Note, nil); err != nil {
			return err
		}
		updated = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole.String()},
			Data: payloads.OrderStateChangedEvent{
				OrderID:   order.ID,
				OrderCode: order.Code,
				VendorID:  order.VendorID,
				From:      from,
				To:        input.Target,
				Note:      input.Note,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Reason) > maxCancelReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancel reason too long")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrderForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.BuyerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		if order.Status == enums.OrderStatusCancelled {
			updated = order
			return nil
		}
		if !BuyerCanCancel(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %s can no longer be cancelled", order.Status))
		}

		now := time.Now().UTC()
		extra := map[string]any{
			"cancelled_at": now,
		}
		if input.Reason != "" {
			extra["cancel_reason"] = input.Reason
		}
		if err := applyTransition(ctx, repo, order, enums.OrderStatusCancelled, input.Reason, extra); err != nil {
			return err
		}
		order.CancelledAt = &now
		if input.Reason != "" {
			reason := input.Reason
			order.CancelReason = &reason
		}
		updated = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: enums.ActorRoleBuyer.String()},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				OrderCode:   order.Code,
				BuyerID:     order.BuyerID,
				VendorID:    order.VendorID,
				CancelledAt: now,
				Reason:      input.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) GenerateDeliveryOTP(ctx context.Context, input DeliveryOTPInput) (*DeliveryOTPResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := loadOrder(ctx, s.repo, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.VendorID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
	}
	if order.Status != enums.OrderStatusOutForDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery code is only available while out for delivery")
	}

	code, err := s.otp.Generate(ctx, order.ID.String())
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(s.otp.TTL())

	err = s.repo.UpdateOrder(ctx, order.ID, map[string]any{
		"delivery_otp":            code,
		"delivery_otp_expires_at": expiresAt,
		"delivery_otp_verified":   false,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store delivery code")
	}

	return &DeliveryOTPResult{Code: code, ExpiresAt: expiresAt}, nil
}

func (s *service) Deliver(ctx context.Context, input DeliverInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery code required")
	}

	// Charge the attempt before comparing so wrong guesses burn the window.
	if err := s.otp.ChargeVerifyAttempt(ctx, input.OrderID.String()); err != nil {
		return nil, err
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrderForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.VendorID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
		if order.Status != enums.OrderStatusOutForDelivery {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not out for delivery")
		}
		if order.DeliveryOTP == nil || *order.DeliveryOTP == "" {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no delivery code issued for this order")
		}
		if order.DeliveryOTPExpiresAt == nil || time.Now().After(*order.DeliveryOTPExpiresAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery code expired, generate a new one")
		}
		if subtle.ConstantTimeCompare([]byte(*order.DeliveryOTP), []byte(input.Code)) != 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "incorrect delivery code")
		}

		now := time.Now().UTC()
		extra := map[string]any{
			"delivered_at":          now,
			"delivery_otp_verified": true,
		}
		if err := applyTransition(ctx, repo, order, enums.OrderStatusDelivered, "delivery code verified", extra); err != nil {
			return err
		}
		order.DeliveredAt = &now
		order.DeliveryOTPVerified = true
		updated = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: enums.ActorRoleVendor.String()},
			Data: payloads.OrderStateChangedEvent{
				OrderID:   order.ID,
				OrderCode: order.Code,
				VendorID:  order.VendorID,
				From:      enums.OrderStatusOutForDelivery,
				To:        enums.OrderStatusDelivered,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	// Attempt counter reset is best-effort; the window TTL expires it anyway.
	_ = s.otp.ClearAttempts(ctx, input.OrderID.String())
	return updated, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListBuyerOrders(ctx, buyerID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return list, nil
}

func (s *service) ListVendorOrders(ctx context.Context, vendorID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListVendorOrders(ctx, vendorID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor orders")
	}
	return list, nil
}

func (s *service) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, role enums.ActorRole) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	switch role {
	case enums.ActorRoleAdmin:
	case enums.ActorRoleVendor:
		if order.VendorID != actorID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
	default:
		if order.BuyerID != actorID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
	}
	return order, nil
}

func loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	return mapOrderErr(repo.FindOrder(ctx, orderID))
}

// loadOrderForUpdate holds the row lock until the surrounding transaction
// commits. Every transition decision reads through it so the state checked
// is the state written over.
func loadOrderForUpdate(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	return mapOrderErr(repo.FindOrderForUpdate(ctx, orderID))
}

func mapOrderErr(order *models.Order, err error) (*models.Order, error) {
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// applyTransition validates nothing: callers decide legality. It appends the
// timeline entry, writes the status plus any extra columns, and mirrors the
// change onto the in-memory order.
func applyTransition(ctx context.Context, repo Repository, order *models.Order, to enums.OrderStatus, note string, extra map[string]any) error {
	timeline := order.Timeline.Append(to.String(), time.Now().UTC(), note)
	updates := map[string]any{
		"status":   to,
		"timeline": timeline,
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = to
	order.Timeline = timeline
	return nil
}

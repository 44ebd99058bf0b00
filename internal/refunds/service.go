package refunds

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
	"github.com/vendorahq/vendora-backend/pkg/metrics"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
)

const maxReasonLen = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RefundIssuer submits a refund to the gateway under the vendor's
// credentials. The gateway processes refunds asynchronously; the
// refund.processed webhook is the authoritative completion signal.
type RefundIssuer interface {
	IssueRefund(ctx context.Context, vendorID uuid.UUID, gatewayPaymentID string, amountMinor int64, notes map[string]string) (*gateway.Refund, error)
}

type factoryIssuer struct {
	factory *gateway.Factory
}

// NewRefundIssuer adapts the client factory for refund submission.
func NewRefundIssuer(factory *gateway.Factory) RefundIssuer {
	return &factoryIssuer{factory: factory}
}

func (i *factoryIssuer) IssueRefund(ctx context.Context, vendorID uuid.UUID, gatewayPaymentID string, amountMinor int64, notes map[string]string) (*gateway.Refund, error) {
	client, err := i.factory.ForVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return client.Refund(ctx, gatewayPaymentID, amountMinor, notes)
}

// CreateInput opens a refund request against a delivered order.
type CreateInput struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	AmountMinor int64     `json:"amount_minor"`
	Reason      string    `json:"reason" validate:"required"`
}

// DecideInput resolves a pending refund request.
type DecideInput struct {
	Approve       bool    `json:"approve"`
	ApprovedMinor *int64  `json:"approved_minor,omitempty"`
	Note          *string `json:"note,omitempty"`
}

// Service owns the refund request lifecycle.
type Service interface {
	Create(ctx context.Context, buyerID uuid.UUID, input CreateInput) (*models.RefundRequest, error)
	Decide(ctx context.Context, deciderID uuid.UUID, role enums.ActorRole, requestID uuid.UUID, input DecideInput) (*models.RefundRequest, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	outbox  outboxPublisher
	issuer  RefundIssuer
	metrics *metrics.PaymentMetrics
}

// ServiceParams wires the refunds service.
type ServiceParams struct {
	Tx      txRunner
	Repo    Repository
	Outbox  outboxPublisher
	Issuer  RefundIssuer
	Metrics *metrics.PaymentMetrics
}

// NewService builds the refunds service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Issuer == nil {
		return nil, fmt.Errorf("refund issuer required")
	}
	return &service{
		tx:      params.Tx,
		repo:    params.Repo,
		outbox:  params.Outbox,
		issuer:  params.Issuer,
		metrics: params.Metrics,
	}, nil
}

func (s *service) Create(ctx context.Context, buyerID uuid.UUID, input CreateInput) (*models.RefundRequest, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}
	if len(input.Reason) > maxReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason too long")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders are refundable")
	}
	if order.RefundStatus == enums.OrderRefundStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a refund request is already open for this order")
	}

	payment, err := s.repo.FindPaymentByOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status != enums.PaymentStatusSuccess {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not settled")
	}

	requested := input.AmountMinor
	if requested == 0 {
		requested = payment.AmountMinor
	}
	if requested <= 0 || requested > payment.AmountMinor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive and within the paid amount")
	}

	request := &models.RefundRequest{
		OrderID:        order.ID,
		PaymentID:      &payment.ID,
		BuyerID:        order.BuyerID,
		VendorID:       order.VendorID,
		Status:         enums.RefundRequestStatusPending,
		Reason:         input.Reason,
		RequestedMinor: requested,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateRefundRequest(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund request")
		}
		err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"refund_status":    enums.OrderRefundStatusPending,
			"refund_requested": true,
			"refund_reason":    input.Reason,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project refund status")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefundRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: enums.ActorRoleBuyer.String()},
			Data: payloads.RefundRequestedEvent{
				RefundRequestID: request.ID,
				OrderID:         order.ID,
				BuyerID:         order.BuyerID,
				VendorID:        order.VendorID,
				RequestedMinor:  requested,
				Reason:          input.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Decide resolves a pending request exactly once. Approval submits the
// gateway refund before recording the decision, so a gateway outage leaves
// the request pending and retryable rather than approved-but-unrefunded.
func (s *service) Decide(ctx context.Context, deciderID uuid.UUID, role enums.ActorRole, requestID uuid.UUID, input DecideInput) (*models.RefundRequest, error) {
	request, err := s.repo.FindRefundRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund request")
	}
	if role != enums.ActorRoleAdmin && request.VendorID != deciderID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refund request belongs to another vendor")
	}
	if request.Status != enums.RefundRequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refund request already decided")
	}
	if input.Note != nil && len(*input.Note) > maxReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision note too long")
	}

	if !input.Approve {
		return s.applyDecision(ctx, request, deciderID, enums.RefundRequestStatusRejected, nil, input.Note)
	}

	approved := request.RequestedMinor
	if input.ApprovedMinor != nil {
		approved = *input.ApprovedMinor
	}
	if approved <= 0 || approved > request.RequestedMinor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "approved amount must be positive and within the requested amount")
	}

	payment, err := s.repo.FindPaymentByOrder(ctx, request.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.GatewayPaymentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no gateway payment id")
	}

	_, err = s.issuer.IssueRefund(ctx, request.VendorID, *payment.GatewayPaymentID, approved, map[string]string{
		"order_id":          request.OrderID.String(),
		"refund_request_id": request.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	return s.applyDecision(ctx, request, deciderID, enums.RefundRequestStatusApproved, &approved, input.Note)
}

func (s *service) applyDecision(ctx context.Context, request *models.RefundRequest, deciderID uuid.UUID, status enums.RefundRequestStatus, approved *int64, note *string) (*models.RefundRequest, error) {
	now := time.Now().UTC()
	projection := enums.OrderRefundStatusRejected
	if status == enums.RefundRequestStatusApproved {
		projection = enums.OrderRefundStatusApproved
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{
			"status":        status,
			"decided_by_id": deciderID,
			"decided_at":    now,
		}
		if approved != nil {
			updates["approved_minor"] = *approved
		}
		if note != nil {
			updates["decision_note"] = *note
		}
		if err := repo.UpdateRefundRequest(ctx, request.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund decision")
		}
		err := repo.UpdateOrder(ctx, request.OrderID, map[string]any{
			"refund_status": projection,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project refund decision")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundDecided,
			AggregateType: enums.AggregateRefundRequest,
			AggregateID:   request.ID,
			Version:       1,
			Data: payloads.RefundDecidedEvent{
				RefundRequestID: request.ID,
				OrderID:         request.OrderID,
				Status:          status,
				ApprovedMinor:   approved,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	request.Status = status
	request.ApprovedMinor = approved
	request.DecisionNote = note
	request.DecidedByID = &deciderID
	request.DecidedAt = &now
	s.metrics.IncRefundDecision(status.String())
	return request, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

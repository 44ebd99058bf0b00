package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
)

// Repository defines persistence for refund requests plus the order and
// payment rows the workflow reads and projects onto.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRefundRequest(ctx context.Context, request *models.RefundRequest) (*models.RefundRequest, error)
	FindRefundRequest(ctx context.Context, requestID uuid.UUID) (*models.RefundRequest, error)
	FindOpenRequestByOrder(ctx context.Context, orderID uuid.UUID) (*models.RefundRequest, error)
	UpdateRefundRequest(ctx context.Context, requestID uuid.UUID, updates map[string]any) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

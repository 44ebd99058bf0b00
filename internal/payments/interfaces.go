package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
)

// Repository defines the persistence surface of the reconciliation engine.
// Lookups key on gateway identifiers because that is all a webhook carries.
// The ForUpdate variants take a row lock and must run inside a transaction:
// every status or timeline write reads through them so concurrent handlers
// serialize instead of overwriting each other.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPaymentByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	FindPaymentByGatewayPaymentIDForUpdate(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

package checkout

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/internal/orders"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/gateway"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/payloads"
	"github.com/vendorahq/vendora-backend/pkg/types"
)

const (
	maxLineItems = 100

	// Amount ceilings hold every line and fee inside a range where even a
	// maxed-out cart sums far below the int64 minor-unit limit.
	maxItemQty        = 1_000
	maxUnitPriceMinor = int64(1_000_000_000)
	maxFeeMinor       = int64(1_000_000_000)
)

// codeAlphabet omits look-alike characters so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// GatewayOrders registers pre-payment orders with the gateway under the
// vendor's credentials.
type GatewayOrders interface {
	CreateOrder(ctx context.Context, vendorID uuid.UUID, params gateway.CreateOrderParams) (*gateway.Order, string, error)
}

type factoryGatewayOrders struct {
	factory *gateway.Factory
}

// NewGatewayOrders adapts the client factory for checkout use.
func NewGatewayOrders(factory *gateway.Factory) GatewayOrders {
	return &factoryGatewayOrders{factory: factory}
}

func (g *factoryGatewayOrders) CreateOrder(ctx context.Context, vendorID uuid.UUID, params gateway.CreateOrderParams) (*gateway.Order, string, error) {
	client, err := g.factory.ForVendor(ctx, vendorID)
	if err != nil {
		return nil, "", err
	}
	order, err := client.CreateOrder(ctx, params)
	if err != nil {
		return nil, "", err
	}
	return order, client.KeyID(), nil
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, buyerID uuid.UUID, input Input) (*Result, error)
}

// ItemInput is one cart line at checkout time.
type ItemInput struct {
	ProductID      *uuid.UUID `json:"product_id"`
	Name           string     `json:"name"`
	UnitPriceMinor int64      `json:"unit_price_minor"`
	Qty            int        `json:"qty"`
	ImageURL       *string    `json:"image_url"`
}

// Input captures everything needed to place a single-vendor order. The
// client prices the cart; subtotal and total arrive precomputed and are
// validated against the line items rather than derived here.
type Input struct {
	VendorID        uuid.UUID      `json:"vendor_id"`
	Currency        enums.Currency `json:"currency"`
	Items           []ItemInput    `json:"items"`
	SubtotalMinor   int64          `json:"subtotal_minor"`
	TaxMinor        int64          `json:"tax_minor"`
	ShippingMinor   int64          `json:"shipping_minor"`
	TotalMinor      int64          `json:"total_minor"`
	ShippingAddress *types.Address `json:"shipping_address"`
}

// Result carries the persisted order plus what the browser needs to open
// the gateway checkout: the gateway order id and the vendor's public key id.
type Result struct {
	Order          *models.Order  `json:"order"`
	GatewayOrderID string         `json:"gateway_order_id"`
	GatewayKeyID   string         `json:"gateway_key_id"`
	AmountMinor    int64          `json:"amount_minor"`
	Currency       enums.Currency `json:"currency"`
}

type service struct {
	tx      txRunner
	repo    orders.Repository
	gateway GatewayOrders
	outbox  outboxPublisher
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Tx      txRunner
	Repo    orders.Repository
	Gateway GatewayOrders
	Outbox  outboxPublisher
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway orders required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:      params.Tx,
		repo:    params.Repo,
		gateway: params.Gateway,
		outbox:  params.Outbox,
	}, nil
}

func (s *service) Execute(ctx context.Context, buyerID uuid.UUID, input Input) (*Result, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateInput(buyerID, input); err != nil {
		return nil, err
	}

	subtotal := input.SubtotalMinor
	total := input.TotalMinor

	code, err := generateOrderCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order code")
	}

	now := time.Now().UTC()
	order := &models.Order{
		Code:            code,
		BuyerID:         buyerID,
		VendorID:        input.VendorID,
		Status:          enums.OrderStatusPlaced,
		RefundStatus:    enums.OrderRefundStatusNone,
		Currency:        input.Currency,
		SubtotalMinor:   subtotal,
		TaxMinor:        input.TaxMinor,
		ShippingMinor:   input.ShippingMinor,
		TotalMinor:      total,
		ShippingAddress: input.ShippingAddress,
		Timeline:        types.Timeline{}.Append(enums.OrderStatusPlaced.String(), now, "order placed"),
	}

	var payment *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderLineItem, 0, len(input.Items))
		for _, item := range input.Items {
			items = append(items, models.OrderLineItem{
				OrderID:        order.ID,
				ProductID:      item.ProductID,
				Name:           item.Name,
				UnitPriceMinor: item.UnitPriceMinor,
				Qty:            item.Qty,
				ImageURL:       item.ImageURL,
			})
		}
		if err := repo.CreateOrderLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}

		payment = &models.Payment{
			OrderID:     order.ID,
			BuyerID:     buyerID,
			VendorID:    input.VendorID,
			Status:      enums.PaymentStatusPending,
			AmountMinor: total,
			Currency:    input.Currency,
		}
		if _, err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: enums.ActorRoleBuyer.String()},
			Data: payloads.OrderPlacedEvent{
				OrderID:    order.ID,
				OrderCode:  order.Code,
				BuyerID:    buyerID,
				VendorID:   input.VendorID,
				TotalMinor: total,
				Currency:   input.Currency,
				LineItems:  len(input.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	// The gateway call stays outside the transaction: a slow or failing
	// gateway must not hold row locks. The order survives either way; the
	// payment only gains its gateway order id on success.
	gwOrder, keyID, err := s.gateway.CreateOrder(ctx, input.VendorID, gateway.CreateOrderParams{
		AmountMinor: total,
		Currency:    input.Currency.String(),
		Receipt:     order.Code,
		Notes: map[string]string{
			"order_id": order.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePayment(ctx, payment.ID, map[string]any{
		"gateway_order_id": gwOrder.ID,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store gateway order id")
	}
	payment.GatewayOrderID = &gwOrder.ID
	order.Payment = payment

	return &Result{
		Order:          order,
		GatewayOrderID: gwOrder.ID,
		GatewayKeyID:   keyID,
		AmountMinor:    total,
		Currency:       input.Currency,
	}, nil
}

func validateInput(buyerID uuid.UUID, input Input) error {
	if input.VendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.VendorID == buyerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot order from yourself")
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	if len(input.Items) > maxLineItems {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many line items")
	}
	itemsTotal := int64(0)
	for i, item := range input.Items {
		if item.Name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: name required", i))
		}
		if item.UnitPriceMinor <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: unit price must be positive", i))
		}
		if item.UnitPriceMinor > maxUnitPriceMinor {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: unit price exceeds maximum", i))
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.Qty > maxItemQty {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity exceeds maximum", i))
		}
		itemsTotal += item.UnitPriceMinor * int64(item.Qty)
	}
	if input.TaxMinor < 0 || input.ShippingMinor < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "tax and shipping must be non-negative")
	}
	if input.TaxMinor > maxFeeMinor || input.ShippingMinor > maxFeeMinor {
		return pkgerrors.New(pkgerrors.CodeValidation, "tax and shipping exceed maximum")
	}
	if input.SubtotalMinor != itemsTotal {
		return pkgerrors.New(pkgerrors.CodeValidation, "subtotal does not match line items")
	}
	if input.TotalMinor != input.SubtotalMinor+input.TaxMinor+input.ShippingMinor {
		return pkgerrors.New(pkgerrors.CodeValidation, "total does not match subtotal plus tax and shipping")
	}
	if input.ShippingAddress == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	return nil
}

func generateOrderCode() (string, error) {
	suffix := make([]byte, 6)
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("VD-%s-%s", time.Now().UTC().Format("20060102"), suffix), nil
}

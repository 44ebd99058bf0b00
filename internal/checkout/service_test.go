package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/internal/orders"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/gateway"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/pagination"
	"github.com/vendorahq/vendora-backend/pkg/types"
)

type stubCheckoutRepo struct {
	order          *models.Order
	items          []models.OrderLineItem
	payment        *models.Payment
	paymentUpdates map[string]any
}

func (s *stubCheckoutRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubCheckoutRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.order = order
	return order, nil
}

func (s *stubCheckoutRepo) CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error {
	s.items = items
	return nil
}

func (s *stubCheckoutRepo) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	s.payment = payment
	return payment, nil
}

func (s *stubCheckoutRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutRepo) FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutRepo) FindOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutRepo) FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return s.payment, nil
}

func (s *stubCheckoutRepo) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubCheckoutRepo) ListVendorOrders(ctx context.Context, vendorID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubCheckoutRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *stubCheckoutRepo) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	s.paymentUpdates = updates
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

type stubGatewayOrders struct {
	lastVendorID uuid.UUID
	lastParams   gateway.CreateOrderParams
	order        *gateway.Order
	keyID        string
	err          error
	calls        int
}

func (s *stubGatewayOrders) CreateOrder(ctx context.Context, vendorID uuid.UUID, params gateway.CreateOrderParams) (*gateway.Order, string, error) {
	s.calls++
	s.lastVendorID = vendorID
	s.lastParams = params
	if s.err != nil {
		return nil, "", s.err
	}
	return s.order, s.keyID, nil
}

func newTestService(t *testing.T, repo *stubCheckoutRepo, gw *stubGatewayOrders, pub *stubOutboxPublisher) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Tx:      &stubTxRunner{},
		Repo:    repo,
		Gateway: gw,
		Outbox:  pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func testAddress() *types.Address {
	return &types.Address{
		Line1:      "14 Lakeview Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
	}
}

func validInput(vendorID uuid.UUID) Input {
	return Input{
		VendorID: vendorID,
		Currency: enums.CurrencyINR,
		Items: []ItemInput{
			{Name: "Ceramic mug", UnitPriceMinor: 45000, Qty: 2},
			{Name: "Coaster set", UnitPriceMinor: 20000, Qty: 1},
		},
		SubtotalMinor:   110000,
		TaxMinor:        9900,
		ShippingMinor:   5000,
		TotalMinor:      124900,
		ShippingAddress: testAddress(),
	}
}

func TestExecuteCreatesOrderPaymentAndGatewayOrder(t *testing.T) {
	repo := &stubCheckoutRepo{}
	gw := &stubGatewayOrders{
		order: &gateway.Order{ID: "order_Nx92Ka", Status: "created"},
		keyID: "rzp_test_abc",
	}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, gw, pub)

	buyerID := uuid.New()
	vendorID := uuid.New()

	result, err := svc.Execute(context.Background(), buyerID, validInput(vendorID))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if repo.order == nil {
		t.Fatal("order not persisted")
	}
	if repo.order.Status != enums.OrderStatusPlaced {
		t.Fatalf("order status = %s, want placed", repo.order.Status)
	}
	if len(repo.order.Timeline) != 1 || repo.order.Timeline[0].Status != "placed" {
		t.Fatalf("timeline = %+v, want single placed entry", repo.order.Timeline)
	}
	if repo.order.SubtotalMinor != 110000 {
		t.Fatalf("subtotal = %d, want 110000", repo.order.SubtotalMinor)
	}
	if repo.order.TotalMinor != 124900 {
		t.Fatalf("total = %d, want 124900", repo.order.TotalMinor)
	}
	if len(repo.items) != 2 {
		t.Fatalf("line items = %d, want 2", len(repo.items))
	}
	if repo.items[0].OrderID != repo.order.ID {
		t.Fatal("line items not bound to order")
	}

	if repo.payment == nil {
		t.Fatal("payment not persisted")
	}
	if repo.payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s, want pending", repo.payment.Status)
	}
	if repo.payment.AmountMinor != 124900 {
		t.Fatalf("payment amount = %d, want 124900", repo.payment.AmountMinor)
	}
	if got := repo.paymentUpdates["gateway_order_id"]; got != "order_Nx92Ka" {
		t.Fatalf("gateway_order_id update = %v, want order_Nx92Ka", got)
	}

	if gw.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.calls)
	}
	if gw.lastVendorID != vendorID {
		t.Fatal("gateway order created under wrong vendor")
	}
	if gw.lastParams.AmountMinor != 124900 {
		t.Fatalf("gateway amount = %d, want 124900", gw.lastParams.AmountMinor)
	}
	if gw.lastParams.Receipt != repo.order.Code {
		t.Fatalf("gateway receipt = %s, want order code %s", gw.lastParams.Receipt, repo.order.Code)
	}

	if result.GatewayOrderID != "order_Nx92Ka" || result.GatewayKeyID != "rzp_test_abc" {
		t.Fatalf("result gateway fields = %s / %s", result.GatewayOrderID, result.GatewayKeyID)
	}
	if result.Order.Payment == nil || result.Order.Payment.GatewayOrderID == nil {
		t.Fatal("result payment missing gateway order id")
	}

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	if pub.events[0].EventType != enums.EventOrderPlaced {
		t.Fatalf("event type = %s, want order_placed", pub.events[0].EventType)
	}
}

func TestExecuteOrderCodeFormat(t *testing.T) {
	repo := &stubCheckoutRepo{}
	gw := &stubGatewayOrders{order: &gateway.Order{ID: "order_1"}, keyID: "rzp_test_abc"}
	svc := newTestService(t, repo, gw, &stubOutboxPublisher{})

	_, err := svc.Execute(context.Background(), uuid.New(), validInput(uuid.New()))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	code := repo.order.Code
	parts := strings.Split(code, "-")
	if len(parts) != 3 || parts[0] != "VD" {
		t.Fatalf("code = %q, want VD-<date>-<suffix>", code)
	}
	if len(parts[1]) != 8 || len(parts[2]) != 6 {
		t.Fatalf("code = %q, want 8-digit date and 6-char suffix", code)
	}
}

func TestExecuteValidation(t *testing.T) {
	buyerID := uuid.New()
	vendorID := uuid.New()

	cases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"no items", func(in *Input) { in.Items = nil }},
		{"zero quantity", func(in *Input) { in.Items[0].Qty = 0 }},
		{"negative price", func(in *Input) { in.Items[0].UnitPriceMinor = -100 }},
		{"missing name", func(in *Input) { in.Items[0].Name = "" }},
		{"negative tax", func(in *Input) { in.TaxMinor = -1 }},
		{"negative shipping", func(in *Input) { in.ShippingMinor = -1 }},
		{"bad currency", func(in *Input) { in.Currency = "DOGE" }},
		{"missing vendor", func(in *Input) { in.VendorID = uuid.Nil }},
		{"self order", func(in *Input) { in.VendorID = buyerID }},
		{"missing address", func(in *Input) { in.ShippingAddress = nil }},
		{"incomplete address", func(in *Input) { in.ShippingAddress.PostalCode = "" }},
		{"quantity above maximum", func(in *Input) { in.Items[0].Qty = maxItemQty + 1 }},
		{"price above maximum", func(in *Input) { in.Items[0].UnitPriceMinor = maxUnitPriceMinor + 1 }},
		{"tax above maximum", func(in *Input) { in.TaxMinor = maxFeeMinor + 1 }},
		{"subtotal mismatch", func(in *Input) { in.SubtotalMinor = 99999 }},
		{"total mismatch", func(in *Input) { in.TotalMinor = 124899 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubCheckoutRepo{}
			gw := &stubGatewayOrders{order: &gateway.Order{ID: "order_1"}}
			svc := newTestService(t, repo, gw, &stubOutboxPublisher{})

			input := validInput(vendorID)
			tc.mutate(&input)

			_, err := svc.Execute(context.Background(), buyerID, input)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("err = %v, want VALIDATION_ERROR", err)
			}
			if repo.order != nil {
				t.Fatal("order persisted despite invalid input")
			}
			if gw.calls != 0 {
				t.Fatal("gateway called despite invalid input")
			}
		})
	}
}

func TestExecuteValidatesClientSuppliedTotals(t *testing.T) {
	// Pricing belongs to the client; the server only cross-checks the
	// arithmetic. A cart of 1000 with 180 tax must total exactly 1180.
	buyerID := uuid.New()
	vendorID := uuid.New()
	base := Input{
		VendorID:        vendorID,
		Currency:        enums.CurrencyINR,
		Items:           []ItemInput{{Name: "Tea sampler", UnitPriceMinor: 500, Qty: 2}},
		SubtotalMinor:   1000,
		TaxMinor:        180,
		ShippingMinor:   0,
		TotalMinor:      1180,
		ShippingAddress: testAddress(),
	}

	repo := &stubCheckoutRepo{}
	gw := &stubGatewayOrders{order: &gateway.Order{ID: "order_1"}, keyID: "rzp_test_abc"}
	svc := newTestService(t, repo, gw, &stubOutboxPublisher{})

	if _, err := svc.Execute(context.Background(), buyerID, base); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if repo.order.SubtotalMinor != 1000 || repo.order.TotalMinor != 1180 {
		t.Fatalf("persisted amounts = %d / %d, want 1000 / 1180", repo.order.SubtotalMinor, repo.order.TotalMinor)
	}

	short := base
	short.TotalMinor = 1000
	repo = &stubCheckoutRepo{}
	gw = &stubGatewayOrders{order: &gateway.Order{ID: "order_1"}}
	svc = newTestService(t, repo, gw, &stubOutboxPublisher{})

	_, err := svc.Execute(context.Background(), buyerID, short)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v, want VALIDATION_ERROR for total that drops the tax", err)
	}
	if repo.order != nil {
		t.Fatal("order persisted despite total mismatch")
	}
}

func TestExecuteGatewayFailureKeepsOrder(t *testing.T) {
	repo := &stubCheckoutRepo{}
	gw := &stubGatewayOrders{err: pkgerrors.New(pkgerrors.CodeGateway, "gateway unavailable")}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, gw, pub)

	_, err := svc.Execute(context.Background(), uuid.New(), validInput(uuid.New()))
	if !pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("err = %v, want GATEWAY_ERROR", err)
	}
	if repo.order == nil {
		t.Fatal("order should survive gateway failure")
	}
	if repo.paymentUpdates != nil {
		t.Fatal("payment should not gain a gateway order id")
	}
}

func TestExecuteMissingCredentialsSurface(t *testing.T) {
	repo := &stubCheckoutRepo{}
	gw := &stubGatewayOrders{err: pkgerrors.New(pkgerrors.CodeCredentialsMissing, "vendor has no gateway credentials")}
	svc := newTestService(t, repo, gw, &stubOutboxPublisher{})

	_, err := svc.Execute(context.Background(), uuid.New(), validInput(uuid.New()))
	if !pkgerrors.IsCode(err, pkgerrors.CodeCredentialsMissing) {
		t.Fatalf("err = %v, want CREDENTIALS_NOT_CONFIGURED", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for empty params")
	}
}

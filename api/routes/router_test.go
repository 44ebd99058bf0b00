package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	checkoutsvc "github.com/vendorahq/vendora-backend/internal/checkout"
	ordersvc "github.com/vendorahq/vendora-backend/internal/orders"
	paymentssvc "github.com/vendorahq/vendora-backend/internal/payments"
	refundssvc "github.com/vendorahq/vendora-backend/internal/refunds"
	pkgAuth "github.com/vendorahq/vendora-backend/pkg/auth"
	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/metrics"
	"github.com/vendorahq/vendora-backend/pkg/pagination"
	"github.com/vendorahq/vendora-backend/pkg/types"
)

type stubOrdersService struct{}

func (stubOrdersService) AdvanceStatus(ctx context.Context, input ordersvc.AdvanceInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) Cancel(ctx context.Context, input ordersvc.CancelInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) GenerateDeliveryOTP(ctx context.Context, input ordersvc.DeliveryOTPInput) (*ordersvc.DeliveryOTPResult, error) {
	return &ordersvc.DeliveryOTPResult{}, nil
}

func (stubOrdersService) Deliver(ctx context.Context, input ordersvc.DeliverInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters ordersvc.ListFilters) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{Orders: []ordersvc.OrderSummary{}}, nil
}

func (stubOrdersService) ListVendorOrders(ctx context.Context, vendorID uuid.UUID, params pagination.Params, filters ordersvc.ListFilters) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{Orders: []ordersvc.OrderSummary{}}, nil
}

func (stubOrdersService) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, role enums.ActorRole) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Execute(ctx context.Context, buyerID uuid.UUID, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	return &checkoutsvc.Result{Order: &models.Order{}}, nil
}

type stubPaymentsService struct{}

func (stubPaymentsService) HandleWebhookEvent(ctx context.Context, event *paymentssvc.WebhookEvent) error {
	return nil
}

func (stubPaymentsService) VerifyBuyerPayment(ctx context.Context, buyerID uuid.UUID, input paymentssvc.VerifyInput) (*models.Payment, error) {
	return &models.Payment{}, nil
}

type stubRefundsService struct{}

func (stubRefundsService) Create(ctx context.Context, buyerID uuid.UUID, input refundssvc.CreateInput) (*models.RefundRequest, error) {
	return &models.RefundRequest{}, nil
}

func (stubRefundsService) Decide(ctx context.Context, deciderID uuid.UUID, role enums.ActorRole, requestID uuid.UUID, input refundssvc.DecideInput) (*models.RefundRequest, error) {
	return &models.RefundRequest{}, nil
}

type stubDBPinger struct{}

func (stubDBPinger) Ping(context.Context) error { return nil }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "router-test-secret", Issuer: "vendora-test", ExpirationMinutes: 30}
	cfg.Gateway.WebhookSecret = "platform-webhook-secret"
	// Zero window disables webhook throttling so tests skip redis.
	cfg.Gateway.WebhookWindow = 0
	return cfg
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewRouter(Deps{
		Config:   testConfig(),
		Logger:   logger.New(logger.Options{ServiceName: "router-test"}),
		DBPinger: stubDBPinger{},
		Metrics:  metrics.NewPaymentMetrics(registry),
		Registry: registry,
		Checkout: stubCheckoutService{},
		Orders:   stubOrdersService{},
		Payments: stubPaymentsService{},
		Refunds:  stubRefundsService{},
	})
}

func bearerToken(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}
	return "Bearer " + token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Vendora-Env") != "test" {
		t.Fatal("environment header missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestOrdersListWithToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", bearerToken(t, enums.ActorRoleBuyer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(`{"event":"payment.captured"}`))
	req.Header.Set("X-Gateway-Signature", "not-a-real-signature")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	paymentssvc "github.com/vendorahq/vendora-backend/internal/payments"
	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/metrics"
)

const testWebhookSecret = "platform-webhook-secret"

type stubWebhookService struct {
	events []*paymentssvc.WebhookEvent
	err    error
}

func (s *stubWebhookService) HandleWebhookEvent(ctx context.Context, event *paymentssvc.WebhookEvent) error {
	s.events = append(s.events, event)
	return s.err
}

func (s *stubWebhookService) VerifyBuyerPayment(ctx context.Context, buyerID uuid.UUID, input paymentssvc.VerifyInput) (*models.Payment, error) {
	return nil, errors.New("not used")
}

type memDedupe struct {
	seen map[string]bool
}

func (m *memDedupe) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memDedupe) WebhookEventKey(eventID string) string {
	return "vd:webhook:event:" + eventID
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memDLQ) Insert(ctx context.Context, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

func signBody(body string) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookHandler(svc *stubWebhookService, dedupe *memDedupe, dlq *memDLQ) http.HandlerFunc {
	cfg := config.GatewayConfig{WebhookSecret: testWebhookSecret}
	return GatewayWebhook(svc, cfg, dedupe, dlq,
		metrics.NewPaymentMetrics(prometheus.NewRegistry()),
		logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard}))
}

func postWebhook(t *testing.T, handler http.HandlerFunc, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Gateway-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGatewayWebhookProcessesSignedEvent(t *testing.T) {
	svc := &stubWebhookService{}
	dedupe := &memDedupe{}
	dlq := &memDLQ{}
	handler := webhookHandler(svc, dedupe, dlq)

	body := `{"id":"evt_1","event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`
	rec := postWebhook(t, handler, body, signBody(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(svc.events) != 1 || svc.events[0].Event != "payment.captured" {
		t.Fatalf("handler events = %+v", svc.events)
	}
	if len(dlq.entries) != 0 {
		t.Fatal("no DLQ entries expected")
	}
}

func TestGatewayWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubWebhookService{}
	handler := webhookHandler(svc, &memDedupe{}, &memDLQ{})

	body := `{"id":"evt_1","event":"payment.captured"}`
	rec := postWebhook(t, handler, body, "0000")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatal("handler must not run on signature mismatch")
	}
}

func TestGatewayWebhookRejectsMissingSignature(t *testing.T) {
	svc := &stubWebhookService{}
	handler := webhookHandler(svc, &memDedupe{}, &memDLQ{})

	rec := postWebhook(t, handler, `{"id":"evt_1"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGatewayWebhookDeduplicatesByEventID(t *testing.T) {
	svc := &stubWebhookService{}
	handler := webhookHandler(svc, &memDedupe{}, &memDLQ{})

	body := `{"id":"evt_dup","event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`
	sig := signBody(body)

	if rec := postWebhook(t, handler, body, sig); rec.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", rec.Code)
	}
	rec := postWebhook(t, handler, body, sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate delivery status = %d, want 200", rec.Code)
	}
	if len(svc.events) != 1 {
		t.Fatalf("handler ran %d times, want 1", len(svc.events))
	}
	if !strings.Contains(rec.Body.String(), "duplicate") {
		t.Fatalf("body = %s, want duplicate marker", rec.Body.String())
	}
}

func TestGatewayWebhookParksHandlerFailure(t *testing.T) {
	svc := &stubWebhookService{err: errors.New("db down")}
	dlq := &memDLQ{}
	handler := webhookHandler(svc, &memDedupe{}, dlq)

	body := `{"id":"evt_bad","event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`
	rec := postWebhook(t, handler, body, signBody(body))

	// The gateway still gets a 200; the failure is parked for replay.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("DLQ entries = %d, want 1", len(dlq.entries))
	}
	if dlq.entries[0].ErrorMessage == nil || !strings.Contains(*dlq.entries[0].ErrorMessage, "db down") {
		t.Fatal("DLQ entry missing error message")
	}
}

func TestGatewayWebhookRejectsMalformedBody(t *testing.T) {
	svc := &stubWebhookService{}
	handler := webhookHandler(svc, &memDedupe{}, &memDLQ{})

	body := `{"id": not json`
	rec := postWebhook(t, handler, body, signBody(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

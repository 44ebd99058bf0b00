package controllers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/api/responses"
	paymentssvc "github.com/vendorahq/vendora-backend/internal/payments"
	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/vendorahq/vendora-backend/pkg/gateway"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/metrics"
)

const (
	webhookSignatureHeader = "X-Gateway-Signature"
	webhookMaxBodyBytes    = 1 << 20
	webhookDedupeTTL       = 48 * time.Hour
)

type webhookDedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	WebhookEventKey(eventID string) string
}

type webhookDLQ interface {
	Insert(ctx context.Context, entry models.OutboxDLQ) error
}

// GatewayWebhook is the ingress for asynchronous gateway notifications.
// The body signature gates everything; after that the contract with the
// gateway is "always 200": unknown events are acknowledged, duplicate
// deliveries are acknowledged, and handler failures are parked in the DLQ
// rather than bounced, because the gateway's retries would hit the same
// failure anyway.
func GatewayWebhook(
	service paymentssvc.Service,
	cfg config.GatewayConfig,
	dedupe webhookDedupeStore,
	dlq webhookDLQ,
	payMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBodyBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(webhookSignatureHeader))
		if !gateway.VerifyWebhookSignature(cfg.WebhookSecret, body, signature) {
			if logg != nil {
				logg.Security(r.Context(), "gateway webhook signature mismatch")
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeSignature, "invalid signature"))
			return
		}

		event, err := paymentssvc.ParseWebhookEvent(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body"))
			return
		}
		payMetrics.IncWebhookReceived(event.Event)

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		if event.ID != "" && dedupe != nil {
			fresh, err := dedupe.SetNX(ctx, dedupe.WebhookEventKey(event.ID), "1", webhookDedupeTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook dedupe"))
				return
			}
			if !fresh {
				responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
				return
			}
		}

		if err := service.HandleWebhookEvent(ctx, event); err != nil {
			payMetrics.IncWebhookFailed(event.Event)
			if logg != nil {
				logg.Error(ctx, "webhook handler failed", err)
			}
			parkWebhookFailure(ctx, dlq, event, body, err, logg)
			responses.WriteSuccess(w, map[string]string{"status": "parked"})
			return
		}

		payMetrics.IncWebhookProcessed(event.Event)
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}

// parkWebhookFailure records the failed delivery for manual replay. The
// handler transaction already rolled back, so this insert runs outside it.
func parkWebhookFailure(ctx context.Context, dlq webhookDLQ, event *paymentssvc.WebhookEvent, body []byte, cause error, logg *logger.Logger) {
	if dlq == nil {
		return
	}
	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(event.ID)),
		EventType:    enums.EventWebhookHandlerFailed,
		Reason:       enums.OutboxDLQReasonHandlerError,
		Payload:      body,
		ErrorMessage: &msg,
	}
	if err := dlq.Insert(ctx, entry); err != nil && logg != nil {
		logg.Error(ctx, "park webhook failure", err)
	}
}

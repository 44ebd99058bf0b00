package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records gateway webhook traffic and reconciliation outcomes.
type PaymentMetrics struct {
	webhookReceived  *prometheus.CounterVec
	webhookProcessed *prometheus.CounterVec
	webhookFailed    *prometheus.CounterVec
	statusTransition *prometheus.CounterVec
	refundDecision   *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_received",
		Help: "Gateway webhook events received, by event type.",
	}, []string{"event"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_processed",
		Help: "Gateway webhook events handled successfully, by event type.",
	}, []string{"event"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_failed",
		Help: "Gateway webhook events whose handler failed, by event type.",
	}, []string{"event"})
	transition := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_transition",
		Help: "Payment status transitions applied, by target status.",
	}, []string{"to"})
	decision := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_decision",
		Help: "Refund request decisions, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(received, processed, failed, transition, decision)
	return &PaymentMetrics{
		webhookReceived:  received,
		webhookProcessed: processed,
		webhookFailed:    failed,
		statusTransition: transition,
		refundDecision:   decision,
	}
}

// IncWebhookReceived counts an incoming webhook event.
func (m *PaymentMetrics) IncWebhookReceived(event string) {
	if m == nil || m.webhookReceived == nil {
		return
	}
	m.webhookReceived.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncWebhookProcessed counts a successfully handled webhook event.
func (m *PaymentMetrics) IncWebhookProcessed(event string) {
	if m == nil || m.webhookProcessed == nil {
		return
	}
	m.webhookProcessed.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncWebhookFailed counts a webhook event whose handler errored.
func (m *PaymentMetrics) IncWebhookFailed(event string) {
	if m == nil || m.webhookFailed == nil {
		return
	}
	m.webhookFailed.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncStatusTransition counts a payment status change.
func (m *PaymentMetrics) IncStatusTransition(to string) {
	if m == nil || m.statusTransition == nil {
		return
	}
	m.statusTransition.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncRefundDecision counts a refund decision outcome.
func (m *PaymentMetrics) IncRefundDecision(outcome string) {
	if m == nil || m.refundDecision == nil {
		return
	}
	m.refundDecision.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

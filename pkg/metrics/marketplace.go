package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
)

// MarketplaceMetrics groups the domain counters for checkout, payment
// webhooks, seller fulfillment and stock.
type MarketplaceMetrics struct {
	checkoutSessions *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	oversold         prometheus.Counter
}

func NewMarketplaceMetrics(reg prometheus.Registerer) *MarketplaceMetrics {
	if reg == nil {
		return &MarketplaceMetrics{}
	}
	checkoutSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Payment sessions requested by mode and outcome.",
	}, []string{"mode", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment webhook events by endpoint, type and outcome.",
	}, []string{"endpoint", "type", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_transitions_total",
		Help: "Seller fulfillment actions by action and outcome.",
	}, []string{"action", "outcome"})
	oversold := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_oversold_total",
		Help: "Paid order items whose stock could not be decremented.",
	})
	reg.MustRegister(checkoutSessions, webhookEvents, transitions, oversold)
	return &MarketplaceMetrics{
		checkoutSessions: checkoutSessions,
		webhookEvents:    webhookEvents,
		transitions:      transitions,
		oversold:         oversold,
	}
}

func (m *MarketplaceMetrics) CheckoutSession(mode, outcome string) {
	if m == nil || m.checkoutSessions == nil {
		return
	}
	m.checkoutSessions.WithLabelValues(normalizeLabel(mode), normalizeLabel(outcome)).Inc()
}

func (m *MarketplaceMetrics) WebhookEvent(endpoint, eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *MarketplaceMetrics) FulfillmentTransition(action, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

func (m *MarketplaceMetrics) StockOversold() {
	if m == nil || m.oversold == nil {
		return
	}
	m.oversold.Inc()
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// FlowMetrics exposes counters/histograms for conversation turns. It
// satisfies the flow engine's observer hook.
type FlowMetrics struct {
	turnDuration  *prometheus.HistogramVec
	decisionTotal *prometheus.CounterVec
}

func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	m := &FlowMetrics{
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowline",
			Subsystem: "flow",
			Name:      "turn_duration_seconds",
			Help:      "Duration of one conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"goal_type", "outcome"}),
		decisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowline",
			Subsystem: "flow",
			Name:      "decisions_total",
			Help:      "Navigation decisions by action and source",
		}, []string{"action", "source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnDuration, m.decisionTotal)
	return m
}

func (m *FlowMetrics) ObserveTurn(goalType string, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnDuration.WithLabelValues(goalType, outcome).Observe(seconds)
}

func (m *FlowMetrics) ObserveDecision(action string, fromOracle bool) {
	if m == nil {
		return
	}
	source := "rules"
	if fromOracle {
		source = "oracle"
	}
	m.decisionTotal.WithLabelValues(action, source).Inc()
}

// WebhookMetrics exposes counters/histograms for channel webhooks.
type WebhookMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowline",
			Subsystem: "channels",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"message_type", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowline",
			Subsystem: "channels",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowline",
			Subsystem: "channels",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of WhatsApp webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"message_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveInbound(messageType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(messageType, status).Inc()
}

func (m *WebhookMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *WebhookMetrics) ObserveWebhookLatency(messageType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(messageType).Observe(seconds)
}

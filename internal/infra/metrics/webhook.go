package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookRequests,
		settlementRelays,
		sessionsSwept,
	)
}

var (
	// result: accepted|unauthorized|duplicate|malformed|unreadable
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Inbound payment webhooks by verification result.",
		},
		[]string{"result"},
	)

	// outcome: delivered|failed|skipped|ignored
	settlementRelays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_relay_total",
			Help: "Order-platform status relays by outcome. Failed relays need manual reconciliation.",
		},
		[]string{"outcome"},
	)

	sessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_sessions_swept_total",
			Help: "Expired checkout sessions removed by the periodic sweep.",
		},
	)
)

func IncWebhook(result string) {
	webhookRequests.WithLabelValues(norm(result)).Inc()
}

func IncRelay(outcome string) {
	settlementRelays.WithLabelValues(norm(outcome)).Inc()
}

func AddSessionsSwept(n int) {
	sessionsSwept.Add(float64(n))
}

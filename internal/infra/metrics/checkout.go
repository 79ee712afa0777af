package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		checkoutsTotal,
		checkoutUpstreamDuration,
		amountParseFallbacks,
		statusPollsTotal,
	)
}

var (
	// result: ready|failed|invalid|superseded
	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout creation attempts by result.",
		},
		[]string{"result"},
	)

	checkoutUpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_upstream_duration_seconds",
			Help:    "Latency of payment-platform checkout calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "success"},
	)

	amountParseFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_amount_parse_fallbacks_total",
			Help: "Create requests whose amount could not be parsed and was treated as 0.",
		},
	)

	// state: waiting|preparing|ready|expired
	statusPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_status_polls_total",
			Help: "Status polls by observed session state.",
		},
		[]string{"state"},
	)
)

func IncCheckout(result string) {
	checkoutsTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveUpstream(provider string, d time.Duration, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	checkoutUpstreamDuration.WithLabelValues(norm(provider), s).Observe(d.Seconds())
}

func IncAmountParseFallback() {
	amountParseFallbacks.Inc()
}

func IncStatusPoll(state string) {
	statusPollsTotal.WithLabelValues(norm(state)).Inc()
}

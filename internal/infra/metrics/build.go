package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "checkout_bridge_build_info",
		Help: "A constant metric with labels for version and session backend.",
	},
	[]string{"version", "store"},
)

func SetBuildInfo(version, store string) {
	buildInfo.WithLabelValues(version, norm(store)).Set(1)
}

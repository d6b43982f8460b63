package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storePoolConns) }

// storePoolConns is labelled by store driver so a mongo-backed deployment can
// publish alongside postgres without colliding.
var storePoolConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "store_pool_connections",
		Help: "Record store connection pool by state (total, idle, in_use).",
	},
	[]string{"store", "state"},
)

func SetStorePoolStats(store string, total, idle, inUse int32) {
	s := norm(store)
	storePoolConns.WithLabelValues(s, "total").Set(float64(total))
	storePoolConns.WithLabelValues(s, "idle").Set(float64(idle))
	storePoolConns.WithLabelValues(s, "in_use").Set(float64(inUse))
}

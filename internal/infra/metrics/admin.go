// File: internal/infra/metrics/admin.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminRequestsTotal) }

var adminRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_requests_total",
		Help: "Tracks calls to guarded admin routes.",
	},
	[]string{"route", "status"}, // status: 'authorized', 'unauthorized'
)

func IncAdminRequest(route, status string) {
	adminRequestsTotal.WithLabelValues(norm(route), norm(status)).Inc()
}

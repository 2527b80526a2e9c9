// Package metrics define los collectors Prometheus del servicio.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "record_access_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_access_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	AuthzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_access_authz_decisions_total",
			Help: "Authorization decisions by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	AuditEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_access_audit_entries_total",
			Help: "Audit entries appended, by action",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		AuthzDecisions, AuditEntries,
	)
}

// README: Prometheus collectors for HTTP traffic, order transitions and the realtime hub.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petride_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petride_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petride_order_transitions_total",
			Help: "Applied order status transitions by target status",
		},
		[]string{"to"},
	)

	OrderConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "petride_order_conflicts_total",
			Help: "Transitions that lost a compare-and-swap race",
		},
	)

	HubConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "petride_hub_connections",
			Help: "Currently registered realtime connections",
		},
	)

	HubDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "petride_hub_delivered_total",
			Help: "Frames enqueued to realtime connections",
		},
	)

	HubDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "petride_hub_dropped_total",
			Help: "Connections dropped because their outbound queue was full",
		},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OrderTransitionsTotal,
		OrderConflictsTotal,
		HubConnections,
		HubDeliveredTotal,
		HubDroppedTotal,
	)
}

package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	}, []string{"order_type"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of committed order transitions",
	}, []string{"transition"})

	OrderRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_rejections_total",
		Help: "Total number of rejected order operations",
	}, []string{"operation", "kind"})

	CommissionCollectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commission_collected_total",
		Help: "Total platform commission collected at settlement",
	})

	DepositsHeldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposits_held_total",
		Help: "Total rental deposit moved into platform escrow",
	})

	DepositsReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposits_released_total",
		Help: "Total rental deposit released from escrow to buyers",
	})

	TransitionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_transition_latency_seconds",
		Help:    "Latency of order transitions including the database transaction",
		Buckets: prometheus.DefBuckets,
	}, []string{"transition"})

	NotificationsPublishFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_publish_failed_total",
		Help: "Total number of notifications that could not be queued",
	})

	NotificationsDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Total number of notifications handled by the worker",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

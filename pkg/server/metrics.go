package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// register adds c to reg. When an identical collector is already registered,
// as happens when several listeners share one registry, the existing one is
// returned so they all report into the same series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// dispatchMetrics are recorded by the connection router.
type dispatchMetrics struct {
	connections *prometheus.CounterVec
	errors      *prometheus.CounterVec
}

func newDispatchMetrics(reg prometheus.Registerer) *dispatchMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &dispatchMetrics{
		connections: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spt",
			Subsystem: "http",
			Name:      "connections_total",
			Help:      "Inbound connections by dispatch target (websocket, listener, next)",
		}, []string{"target"})),

		errors: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spt",
			Subsystem: "http",
			Name:      "dispatch_errors_total",
			Help:      "Requests that failed after dispatch, by outcome",
		}, []string{"outcome"})),
	}
}

// listenerMetrics are recorded by the protocol listener.
type listenerMetrics struct {
	responses     *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	requestBytes  prometheus.Histogram
	responseBytes prometheus.Histogram
}

func newListenerMetrics(reg prometheus.Registerer) *listenerMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	sizeBuckets := prometheus.ExponentialBuckets(64, 4, 10)

	return &listenerMetrics{
		responses: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spt",
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "Responses by writer (json, zlib, none, or the serializer name)",
		}, []string{"writer"})),

		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spt",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Protocol listener request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"})),

		requestBytes: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spt",
			Subsystem: "http",
			Name:      "request_body_bytes",
			Help:      "Decoded request body size",
			Buckets:   sizeBuckets,
		})),

		responseBytes: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spt",
			Subsystem: "http",
			Name:      "response_body_bytes",
			Help:      "Response payload size before compression",
			Buckets:   sizeBuckets,
		})),
	}
}

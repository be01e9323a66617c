package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	redisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Total number of Redis requests by method.",
		},
		[]string{"method"},
	)
	redisErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors by method.",
		},
		[]string{"method"},
	)
	redisRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_request_duration_seconds",
			Help:    "Redis request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(redisRequestsTotal, redisErrorsTotal, redisRequestDuration)
}

// MetricsClient decorates Client with per-method Prometheus metrics. It
// satisfies KV, so it drops in wherever the plain client is used.
type MetricsClient struct {
	next *Client
}

func NewMetricsClient(next *Client) *MetricsClient {
	return &MetricsClient{next: next}
}

func (m *MetricsClient) Get(ctx context.Context, key string) (string, error) {
	var result string
	err := m.instrument("get", func() error {
		var err error
		result, err = m.next.Get(ctx, key)
		return err
	})

	return result, err
}

func (m *MetricsClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.instrument("set", func() error {
		return m.next.Set(ctx, key, value, ttl)
	})
}

func (m *MetricsClient) Delete(ctx context.Context, key string) error {
	return m.instrument("delete", func() error {
		return m.next.Delete(ctx, key)
	})
}

func (m *MetricsClient) Close() error {
	return m.next.Close()
}

func (m *MetricsClient) instrument(method string, op func() error) error {
	timer := prometheus.NewTimer(redisRequestDuration.WithLabelValues(method))
	err := op()
	timer.ObserveDuration()

	redisRequestsTotal.WithLabelValues(method).Inc()
	if err != nil {
		redisErrorsTotal.WithLabelValues(method).Inc()
	}

	return err
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "refarch"

// Login outcomes
const (
	LoginSuccess     = "success"
	LoginInvalid     = "invalid_credentials"
	LoginError       = "error"
	LoginRateLimited = "rate_limited"
)

// Metrics holds application collectors on its own registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	sweeperDeleted    *prometheus.CounterVec
	loginAttempts     *prometheus.CounterVec
	securityFederated prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		sweeperDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_deleted_total",
			Help:      "Expired rows deleted by sweeper task.",
		}, []string{"task"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Password login attempts by outcome.",
		}, []string{"outcome"}),
		securityFederated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "security_federated",
			Help:      "1 when requests are verified by identity provider, 0 in local bypass mode.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.sweeperDeleted,
		m.loginAttempts,
		m.securityFederated,
	)

	return m
}

// Handler exposes registry in prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method string, code int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) SweeperDeleted(task string, deleted int64) {
	m.sweeperDeleted.WithLabelValues(task).Add(float64(deleted))
}

func (m *Metrics) LoginAttempt(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetFederated(federated bool) {
	if federated {
		m.securityFederated.Set(1)
		return
	}
	m.securityFederated.Set(0)
}

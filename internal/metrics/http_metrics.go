package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics — метрики REST API и платёжных интентов.
type HTTPMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	rateLimited     prometheus.Counter
	paymentIntents  *prometheus.CounterVec
}

// NewHTTPMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewHTTPMetrics() *HTTPMetrics {
	return NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewHTTPMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewHTTPMetricsWithRegisterer(registerer prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		}),
		rateLimited: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		paymentIntents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_payment_intents_total",
			Help: "Total number of payment intent creation attempts",
		}, []string{"result"}),
	}
}

// RequestStarted увеличивает число обрабатываемых запросов.
func (m *HTTPMetrics) RequestStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// RequestFinished записывает завершённый запрос.
func (m *HTTPMetrics) RequestFinished(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited увеличивает счётчик отклонённых лимитером запросов.
func (m *HTTPMetrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// RecordPaymentIntent записывает результат создания платёжного интента.
func (m *HTTPMetrics) RecordPaymentIntent(result string) {
	if m == nil {
		return
	}
	m.paymentIntents.WithLabelValues(result).Inc()
}

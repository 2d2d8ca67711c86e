package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const _namespace = "crm_payments"

// Результаты для лейбла result.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	BusPublished *prometheus.CounterVec
	BusConsumed  *prometheus.CounterVec

	Webhooks       *prometheus.CounterVec
	ExportMessages *prometheus.CounterVec

	registerer prometheus.Registerer
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: _namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: _namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		BusPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: _namespace,
			Name:      "bus_published_total",
			Help:      "Messages published to the bus.",
		}, []string{"destination", "result"}),

		BusConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: _namespace,
			Name:      "bus_consumed_total",
			Help:      "Messages consumed from the bus.",
		}, []string{"source", "result"}),

		Webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: _namespace,
			Name:      "webhooks_total",
			Help:      "CRM webhooks by event and response code.",
		}, []string{"event", "status"}),

		ExportMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: _namespace,
			Name:      "export_messages_total",
			Help:      "Export job and status messages handled.",
		}, []string{"kind", "result"}),

		registerer: reg,
	}
}

// ObserveStreamSubscribers регистрирует gauge с текущим числом SSE-подписчиков.
func (m *Metrics) ObserveStreamSubscribers(count func() int) {
	promauto.With(m.registerer).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: _namespace,
		Name:      "stream_subscribers",
		Help:      "Active payment stream subscribers.",
	}, func() float64 {
		return float64(count())
	})
}

// ObserveConsumerLag регистрирует gauge отставания consumer-группы по топику.
func (m *Metrics) ObserveConsumerLag(topic string, lag func() int64) {
	promauto.With(m.registerer).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   _namespace,
		Name:        "bus_consumer_lag",
		Help:        "Messages the consumer group is behind the end of the topic.",
		ConstLabels: prometheus.Labels{"topic": topic},
	}, func() float64 {
		return float64(lag())
	})
}

package folio

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records FOLIO client traffic. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	records  *prometheus.CounterVec
}

// NewMetrics registers the FOLIO client collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boffo_folio_requests_total",
			Help: "FOLIO API requests by endpoint and HTTP status",
		},
		[]string{"endpoint", "status"},
	)

	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boffo_folio_request_duration_seconds",
			Help:    "FOLIO API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boffo_records_fetched_total",
			Help: "Item records retrieved, by retrieval kind",
		},
		[]string{"kind"},
	)

	reg.MustRegister(requests, latency, records)

	return &Metrics{
		requests: requests,
		latency:  latency,
		records:  records,
	}
}

func (m *Metrics) observeRequest(endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(endpoint, label).Inc()
	m.latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) addRecords(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(kind).Add(float64(n))
}

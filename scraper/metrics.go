package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors shared by all supplier workers
// in a run.
type Metrics struct {
	Registry          *prometheus.Registry
	PagesTotal        *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ProductsExtracted *prometheus.CounterVec
	RetriesTotal      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total listing pages fetched per supplier.",
		},
		[]string{"supplier"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_products_extracted_total",
			Help: "Total raw product records extracted per supplier.",
		},
		[]string{"supplier"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of page retry attempts per supplier.",
		},
		[]string{"supplier"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by supplier and type.",
		},
		[]string{"supplier", "error_type"},
	)

	registry.MustRegister(pages, requestDuration, products, retries, errorsTotal)

	return &Metrics{
		Registry:          registry,
		PagesTotal:        pages,
		RequestDuration:   requestDuration,
		ProductsExtracted: products,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
	}
}

// IncPages increments the pages counter for a supplier.
func (m *Metrics) IncPages(supplier string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(supplier).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddProducts adds to the extracted records counter for a supplier.
func (m *Metrics) AddProducts(supplier string, n int) {
	if m == nil {
		return
	}
	m.ProductsExtracted.WithLabelValues(supplier).Add(float64(n))
}

// IncRetries increments the retries counter for a supplier.
func (m *Metrics) IncRetries(supplier string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(supplier).Inc()
}

// IncError increments the errors counter for a supplier and type label.
func (m *Metrics) IncError(supplier, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(supplier, errorType).Inc()
}

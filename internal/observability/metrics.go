package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sales_dashboard",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sales_dashboard",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"method"})

	panelQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sales_dashboard",
		Name:      "panel_query_duration_seconds",
		Help:      "Time spent filtering and aggregating one panel.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"panel"})

	panelQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sales_dashboard",
		Name:      "panel_query_errors_total",
		Help:      "Panel queries that failed.",
	}, []string{"panel"})

	datasetRows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sales_dashboard",
		Name:      "dataset_rows",
		Help:      "Rows in the loaded dataset.",
	})

	datasetLoadSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sales_dashboard",
		Name:      "dataset_load_seconds",
		Help:      "Duration of the last dataset load.",
	})

	datasetBadCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sales_dashboard",
		Name:      "dataset_bad_cells",
		Help:      "Cells normalised to a default during the last load, by column.",
	}, []string{"column"})
)

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func ObserveHTTPRequest(method, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, status).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func ObservePanelQuery(panel string, d time.Duration, err error) {
	panelQueryDuration.WithLabelValues(panel).Observe(d.Seconds())
	if err != nil {
		panelQueryErrors.WithLabelValues(panel).Inc()
	}
}

func RecordDatasetLoad(rows int, d time.Duration, badCells map[string]int) {
	datasetRows.Set(float64(rows))
	datasetLoadSeconds.Set(d.Seconds())
	for column, n := range badCells {
		datasetBadCells.WithLabelValues(column).Set(float64(n))
	}
}

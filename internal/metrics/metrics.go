package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// catalogLoads counts feed loads by outcome.
	catalogLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markup_catalog_loads_total",
		Help: "Total number of catalog feed loads by status",
	}, []string{"status"})

	// catalogLoadDuration tracks download, parse and aggregation time of a feed.
	catalogLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "markup_catalog_load_duration_seconds",
		Help:    "Time taken to download and parse a catalog feed",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	catalogOffers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "markup_catalog_offers",
		Help: "Number of offers in the last loaded snapshot of a catalog",
	}, []string{"catalog_url"})

	// remoteBatches counts calls to the remote product update endpoint.
	remoteBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markup_remote_batches_total",
		Help: "Total number of remote price update batches by HTTP status",
	}, []string{"status"})

	remoteBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "markup_remote_batch_duration_seconds",
		Help:    "Time taken by one remote price update batch",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// remoteOffers counts per-offer outcomes reported by the remote platform.
	remoteOffers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markup_remote_offers_total",
		Help: "Total number of offer price updates by result",
	}, []string{"result"})

	markupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "markup_runs_total",
		Help: "Total number of markup pipeline runs by type and status",
	}, []string{"type", "status"})

	armedAutomations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "markup_automations_armed",
		Help: "Number of automations with a live timer",
	})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "markup_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

func RecordCatalogLoad(url string, offers int, duration time.Duration, err error) {
	catalogLoadDuration.Observe(duration.Seconds())
	if err != nil {
		catalogLoads.WithLabelValues("failed").Inc()
		return
	}
	catalogLoads.WithLabelValues("success").Inc()
	catalogOffers.WithLabelValues(url).Set(float64(offers))
}

// RecordRemoteBatch records one batch call. status is 0 when no response arrived.
func RecordRemoteBatch(status int, duration time.Duration) {
	remoteBatchDuration.Observe(duration.Seconds())
	label := "none"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	remoteBatches.WithLabelValues(label).Inc()
}

func RecordRemoteOffers(succeeded, failed int) {
	remoteOffers.WithLabelValues("success").Add(float64(succeeded))
	remoteOffers.WithLabelValues("failed").Add(float64(failed))
}

func RecordMarkupRun(runType, status string) {
	markupRuns.WithLabelValues(runType, status).Inc()
}

func SetArmedAutomations(n int) {
	armedAutomations.Set(float64(n))
}

func ObserveHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(duration.Seconds())
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SourceRequest = "request"
	SourceStored  = "stored"
	SourceCache   = "cache"
	SourceExport  = "export"
	SourceCLI     = "cli"
)

var (
	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladder_extractions_total",
		Help: "Chain extractions by where the graph came from",
	}, []string{"source"})

	extractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ladder_extraction_duration_seconds",
		Help:    "Duration of a single chain extraction",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	chainsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ladder_chains_extracted_total",
		Help: "Chains produced across all extractions",
	})

	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladder_exports_total",
		Help: "Finished export jobs by status",
	}, []string{"status"})
)

// ObserveExtraction records one extraction that started at start and
// produced chains results.
func ObserveExtraction(source string, start time.Time, chains int) {
	extractionsTotal.WithLabelValues(source).Inc()
	if source != SourceCache {
		extractionDuration.Observe(time.Since(start).Seconds())
	}
	chainsExtracted.Add(float64(chains))
}

func ExportFinished(status string) {
	exportsTotal.WithLabelValues(status).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

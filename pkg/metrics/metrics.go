// Package metrics holds the Prometheus collectors exported by edgestore.
// Collectors are registered with the default registry on package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanPages counts page fetches issued by scan cursors, per row family.
	ScanPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgestore_scan_pages_total",
			Help: "Total number of column pages fetched from the store",
		},
		[]string{"family"},
	)

	// ScanColumns counts columns returned by page fetches.
	ScanColumns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgestore_scan_columns_total",
			Help: "Total number of columns returned by page fetches",
		},
		[]string{"family"},
	)

	// ScanErrors counts page fetches that failed in the store.
	ScanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgestore_scan_errors_total",
			Help: "Total number of failed page fetches",
		},
		[]string{"family"},
	)

	// ScanDuration measures store round-trips for one page.
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgestore_scan_duration_seconds",
			Help:    "Duration of one page fetch in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"family"},
	)

	// DecodeErrors counts columns that did not match their family layout.
	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgestore_decode_errors_total",
			Help: "Total number of columns that failed to decode",
		},
		[]string{"family"},
	)

	// Batches counts built mutation batches by kind ("write" or "delete").
	Batches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgestore_batches_total",
			Help: "Total number of edge mutation batches built",
		},
		[]string{"kind"},
	)
)

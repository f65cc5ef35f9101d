// Package metrics holds the prometheus collectors of extraction, training
// and page fetching. Batch runs dump them with WriteTextfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry collects every metric of this package.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// PagesExtracted counts pages turned into candidate sets, by result.
	PagesExtracted = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "extractor_pages_extracted_total",
		Help: "Pages processed by candidate extraction, by result",
	}, []string{"result"})

	// CandidatesPerPage tracks how many candidates a page yields.
	CandidatesPerPage = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "extractor_candidates_per_page",
		Help:    "Number of candidates generated per page",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// ExtractionDuration tracks candidate extraction latency.
	ExtractionDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "extractor_extraction_duration_seconds",
		Help:    "Candidate extraction duration per page in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// GradientUpdates counts training examples by outcome (updated or skipped).
	GradientUpdates = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "extractor_gradient_updates_total",
		Help: "Training examples visited by the learner, by outcome",
	}, []string{"outcome"})

	// IterationDuration tracks the duration of one training pass.
	IterationDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "extractor_train_iteration_duration_seconds",
		Help:    "Training iteration duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"learner"})

	// Evaluations counts evaluated examples by outcome.
	Evaluations = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "extractor_evaluations_total",
		Help: "Evaluated examples by outcome",
	}, []string{"outcome"})

	// PageFetches counts page loads by source (cache, http, render) and result.
	PageFetches = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "extractor_page_fetches_total",
		Help: "Page loads by source and result",
	}, []string{"source", "result"})
)

// Result label values.
const (
	OK    = "ok"
	Error = "error"
)

// WriteTextfile writes the current values in the text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

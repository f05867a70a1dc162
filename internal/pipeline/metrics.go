package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the pipeline collectors. They live in the default registry
// and are exposed by budgetd on /metrics.
//
//   - budget_documents_total{path,outcome}
//   - budget_items_extracted_total
//   - budget_items_priced_total{match_kind}
//   - budget_inference_rewrites_total
//   - budget_stage_duration_seconds{stage}
type Metrics struct {
	DocumentsTotal    *prometheus.CounterVec
	ItemsExtracted    prometheus.Counter
	ItemsPriced       *prometheus.CounterVec
	InferenceRewrites prometheus.Counter
	StageDuration     *prometheus.HistogramVec
}

// NewMetrics registers the collectors once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			DocumentsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "budget",
					Name:      "documents_total",
					Help:      "Documents processed by extraction path and outcome",
				},
				[]string{"path", "outcome"},
			),
			ItemsExtracted: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "budget",
				Name:      "items_extracted_total",
				Help:      "Measurement items extracted from documents",
			}),
			ItemsPriced: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "budget",
					Name:      "items_priced_total",
					Help:      "Priced items by the kind of the match used",
				},
				[]string{"match_kind"},
			),
			InferenceRewrites: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "budget",
				Name:      "inference_rewrites_total",
				Help:      "Items whose unit and quantity were rewritten by dimensional inference",
			}),
			StageDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "budget",
					Name:      "stage_duration_seconds",
					Help:      "Duration of each pipeline stage",
					Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
				},
				[]string{"stage"},
			),
		}
	})
	return globalMetrics
}

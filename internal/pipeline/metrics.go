package pipeline

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/bookmerge/internal/oracle"
)

type metrics struct {
	records     *prometheus.CounterVec
	classified  *prometheus.CounterVec
	iconsFilled prometheus.Counter
	groups      prometheus.Gauge
	sites       prometheus.Gauge
	oracle      *oracle.Metrics
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookmerge",
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Records by stage: loaded, merged, duplicate.",
		}, []string{"stage"}),
		classified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookmerge",
			Subsystem: "pipeline",
			Name:      "classified_total",
			Help:      "Classified records by strategy.",
		}, []string{"via"}),
		iconsFilled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bookmerge",
			Subsystem: "pipeline",
			Name:      "icons_filled_total",
			Help:      "Records given a favicon service URL.",
		}),
		groups: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "bookmerge",
			Subsystem: "catalog",
			Name:      "groups",
			Help:      "Groups in the assigned catalog.",
		}),
		sites: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "bookmerge",
			Subsystem: "catalog",
			Name:      "sites",
			Help:      "Sites in the assigned catalog.",
		}),
		oracle: oracle.NewMetrics(reg),
	}
}

// WriteMetrics writes everything g gathers to path in the text exposition
// format, for the node exporter textfile collector.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

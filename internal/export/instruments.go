package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type instruments struct {
	jobs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	rows     prometheus.Counter
	bytes    prometheus.Counter
}

func newInstruments(reg prometheus.Registerer) *instruments {
	factory := promauto.With(reg)
	return &instruments{
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aevon_export_jobs_total",
			Help: "Export jobs by final result.",
		}, []string{"result"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aevon_export_failures_total",
			Help: "Failed export jobs by failing step.",
		}, []string{"step"}),
		rows: factory.NewCounter(prometheus.CounterOpts{
			Name: "aevon_export_rows_total",
			Help: "Rows written to export files.",
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "aevon_export_bytes_total",
			Help: "Compressed bytes streamed to object storage.",
		}),
	}
}

package metric

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage"
)

type instruments struct {
	writeFailures *prometheus.CounterVec
}

func newInstruments(reg prometheus.Registerer) *instruments {
	f := promauto.With(reg)
	return &instruments{
		writeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aevon",
			Subsystem: "metrics",
			Name:      "store_write_failures_total",
			Help:      "Failed metric writes by store and operation. Stores are not rolled back.",
		}, []string{"store", "op"}),
	}
}

// recordFailure counts backend failures. Caller mistakes are not failures.
func (i *instruments) recordFailure(store, op string, err error) {
	var verr *v1.ValidationError
	if errors.Is(err, storage.ErrNotFound) || errors.As(err, &verr) {
		return
	}
	i.writeFailures.WithLabelValues(store, op).Inc()
	slog.Error("Metric write failed", "store", store, "op", op, "error", err)
}

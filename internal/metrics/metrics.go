// Package metrics exposes run counters for the daemon's Prometheus
// endpoint. Amounts are reported as floats; the audit record stays the
// exact source of truth.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payout-engine/internal/payout"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_runs_total",
		Help: "Completed payout runs by result.",
	}, []string{"result"})

	entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_entries_total",
		Help: "Processed plan entries by final status.",
	}, []string{"status"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_transfer_retries_total",
		Help: "Transfer attempts beyond the first, across all runs.",
	})

	amountSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_amount_sent_total",
		Help: "Total amount sent, in payout token units.",
	})

	planEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payout_plan_entries",
		Help: "Entries in the most recently built payout plan.",
	})

	runDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payout_run_duration_seconds",
		Help:    "Wall time of payout runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// Sink feeds executor events into the process-wide registry.
type Sink struct{}

var _ payout.EventSink = Sink{}

func (Sink) PlanBuilt(p *payout.Plan) {
	planEntries.Set(float64(len(p.Entries)))
}

func (Sink) EntryAttempted(_ payout.Entry, attempt int) {
	if attempt > 1 {
		retriesTotal.Inc()
	}
}

func (Sink) EntryResult(o payout.Outcome) {
	entriesTotal.WithLabelValues(string(o.Status)).Inc()
	if o.Status == payout.StatusSent {
		amount, _ := o.Amount.Float64()
		amountSentTotal.Add(amount)
	}
}

func (Sink) RunSealed(r *payout.Report) {
	result := "completed"
	if r.Aborted {
		result = "aborted"
	}
	runsTotal.WithLabelValues(result).Inc()

	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		runDurationSeconds.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

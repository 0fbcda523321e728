package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cyclesTotal counts finished cycles.
	// Labels: result (ok, fetch_failed, aborted)
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invitewatch",
		Name:      "cycles_total",
		Help:      "Total monitor cycles by outcome",
	}, []string{"result"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "invitewatch",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a monitor cycle",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	// codesDiscovered counts codes seen for the first time.
	// Labels: kind (pattern kind)
	codesDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invitewatch",
		Name:      "codes_discovered_total",
		Help:      "Total new codes discovered by pattern kind",
	}, []string{"kind"})

	// fetchErrors counts failed fetch units.
	// Labels: kind (auth, network)
	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invitewatch",
		Name:      "fetch_errors_total",
		Help:      "Total fetch failures by kind",
	}, []string{"kind"})

	// notifications counts delivery attempts.
	// Labels: result (sent, failed)
	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invitewatch",
		Name:      "notifications_total",
		Help:      "Total notification batches by outcome",
	}, []string{"result"})
)

const (
	resultOK          = "ok"
	resultFetchFailed = "fetch_failed"
	resultAborted     = "aborted"
)

package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Workflow Metrics ───────────────────────────────────────────────────────

var (
	joinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pledged_joins_total",
		Help: "Join attempts by outcome (issued, duplicate, not_found, invalid, error).",
	}, []string{"outcome"})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pledged_decisions_total",
		Help: "Maker decisions applied, by decision.",
	}, []string{"decision"})

	notifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pledged_notify_failures_total",
		Help: "Notification dispatches that failed and were swallowed.",
	})
)

// timeNow is swappable in tests.
var timeNow = time.Now

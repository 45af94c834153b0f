package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "malluclub_xp_awarded_total",
			Help: "XP awarded, by source",
		},
		[]string{"source"},
	)

	VoiceTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "malluclub_voice_ticks_total",
			Help: "Voice tracker tick evaluations that awarded XP",
		},
	)

	TrackedUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "malluclub_tracked_users",
			Help: "Users currently tracked in voice channels",
		},
	)

	ReconcileRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "malluclub_reconcile_runs_total",
			Help: "VC Active role reconciliation runs",
		},
	)

	RoleMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "malluclub_role_mutations_total",
			Help: "VC Active role changes applied, by operation",
		},
		[]string{"op"},
	)
)

func Register() {
	prometheus.MustRegister(
		XPAwarded,
		VoiceTicks,
		TrackedUsers,
		ReconcileRuns,
		RoleMutations,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

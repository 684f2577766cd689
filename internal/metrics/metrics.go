package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the portal's prometheus collectors. A nil *Metrics is
// valid and records nothing, which keeps unit tests free of registries.
type Metrics struct {
	votesCast      *prometheus.CounterVec
	voteRejections *prometheus.CounterVec
	backfills      *prometheus.CounterVec
	cacheRefreshes *prometheus.CounterVec
}

func New(registry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(registry)
	return &Metrics{
		votesCast: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_votes_cast_total",
				Help: "Votes accepted, by vote type",
			},
			[]string{"vote_type"},
		),
		voteRejections: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_vote_rejections_total",
				Help: "Votes rejected, by reason",
			},
			[]string{"reason"},
		),
		backfills: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_deadline_backfills_total",
				Help: "Voting deadlines written back to storage, by outcome",
			},
			[]string{"outcome"},
		),
		cacheRefreshes: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_settings_cache_refreshes_total",
				Help: "Settings and history cache reloads, by cache and outcome",
			},
			[]string{"cache", "outcome"},
		),
	}
}

func (m *Metrics) VoteCast(voteType string) {
	if m == nil {
		return
	}
	m.votesCast.WithLabelValues(voteType).Inc()
}

func (m *Metrics) VoteRejected(reason string) {
	if m == nil {
		return
	}
	m.voteRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Backfill(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.backfills.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) CacheRefresh(cache, outcome string) {
	if m == nil {
		return
	}
	m.cacheRefreshes.WithLabelValues(cache, outcome).Inc()
}

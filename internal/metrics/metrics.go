package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the approval pipeline. Registered on the default registry and
// served through the review API's /metrics endpoint.
var (
	MatchesRetweeted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anagram_matches_retweeted_total",
		Help: "Matches amplified on the primary platform.",
	})

	MatchesMirrored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anagram_matches_mirrored_total",
		Help: "Matches mirrored to the secondary platform.",
	})

	MatchesAutoRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anagram_matches_auto_rejected_total",
		Help: "Matches rejected automatically after a permanent platform error.",
	})

	QueueDrained = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anagram_queue_drained_total",
		Help: "Queue drain attempts by outcome.",
	}, []string{"outcome"})

	TweetsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anagram_tweets_pruned_total",
		Help: "Source tweets deleted after the platform confirmed them gone.",
	})

	PairsUnwound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anagram_reconciliation_unwound_total",
		Help: "Orphaned amplifications unwound by the timeline sweep.",
	})
)

// Queue drain outcome label values.
const (
	OutcomeEmpty       = "empty"
	OutcomePosted      = "posted"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

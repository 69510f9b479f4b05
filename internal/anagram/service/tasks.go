package service

import (
	"context"
	"fmt"

	"anagrambot/internal/metrics"
	"anagrambot/internal/platform/twitter"
)

const (
	// rateLimitSafetyMargin is how many show/:id calls a sweep always
	// leaves unused for interactive approvals.
	rateLimitSafetyMargin = 10

	// reconcileRecentMatches bounds how many recent amplifications the
	// timeline sweep compares against.
	reconcileRecentMatches = 100

	// reconcileTimelineFetch over-fetches the timeline relative to
	// reconcileRecentMatches (two posts per match, plus gaps left by
	// deletions).
	reconcileTimelineFetch = 1000
)

// DrainResult says what one queue drain cycle did.
type DrainResult string

const (
	DrainEmpty       DrainResult = "empty"
	DrainPosted      DrainResult = "posted"
	DrainRateLimited DrainResult = "rate_limited"
	DrainError       DrainResult = "error"
)

// DrainOnePendingEntry dequeues at most one eligible queue entry and
// executes it. A rate-limited attempt leaves the entry pending for the next
// cycle and records nothing; any other failure transitions the entry to
// error with the message.
func (s *Service) DrainOnePendingEntry(ctx context.Context) (DrainResult, error) {
	entry, err := s.queue.DequeueNextEligible(ctx)
	if err != nil {
		return DrainError, err
	}
	if entry == nil {
		s.log.Debug("No pending matches to dequeue")
		metrics.QueueDrained.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return DrainEmpty, nil
	}

	var outcome Outcome
	shared, err := s.matches.CountOtherRetweetedMatchesSharingTweets(ctx, entry.MatchID)
	switch {
	case err != nil:
		outcome = failure(err)
	case shared > 0:
		outcome = s.PostTumblrOnly(ctx, entry.MatchID, entry.OrderAsShown)
	default:
		outcome = s.RetweetAndPostTumblr(ctx, entry.MatchID, entry.OrderAsShown)
	}

	if !outcome.Failed() {
		if err := s.queue.MarkPosted(ctx, entry.ID); err != nil {
			outcome = failure(err)
		} else {
			s.log.Infof("Successfully dequeued and posted %d for match %d", entry.ID, entry.MatchID)
			metrics.QueueDrained.WithLabelValues(metrics.OutcomePosted).Inc()
			return DrainPosted, nil
		}
	}

	if twitter.IsRateLimited(outcome.cause) {
		s.log.Infof("Rate limited when dequeuing %d for match %d", entry.ID, entry.MatchID)
		metrics.QueueDrained.WithLabelValues(metrics.OutcomeRateLimited).Inc()
		return DrainRateLimited, nil
	}

	if err := s.queue.MarkError(ctx, entry.ID, outcome.Error); err != nil {
		// Recording the failure failed too; log and let the next cycle
		// retry the still-pending entry.
		s.log.Errorf("Error when updating %d for %d into error status: %v", entry.ID, entry.MatchID, err)
	} else {
		s.log.Errorf("Error when dequeuing %d for %d, changed status to error: %s", entry.ID, entry.MatchID, outcome.Error)
		s.notifier.NotifyQueueError(ctx, entry.ID, entry.MatchID, outcome.Error)
	}
	metrics.QueueDrained.WithLabelValues(metrics.OutcomeError).Inc()
	return DrainError, nil
}

// PruneStaleTweets checks the oldest tweets not tied to a reviewable match
// against the platform and deletes the ones confirmed gone, together with
// any matches referencing them. The batch shrinks to respect the remaining
// rate limit and the whole cycle is skipped when the budget is too low.
func (s *Service) PruneStaleTweets(ctx context.Context, batchSize int) error {
	log := s.sweepLog
	log.Debugf("Starting clean up of %d old tweets", batchSize)

	rateLimit, err := s.twitter.ShowIDRateLimit(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch show/:id rate limit: %w", err)
	}

	numberToCheck := safeBatchSize(rateLimit.Remaining, rateLimitSafetyMargin, batchSize)
	if numberToCheck <= 0 {
		log.Infof("%d show/:id remaining, skipping check of %d tweets", rateLimit.Remaining, batchSize)
		return nil
	}
	log.Infof("%d show/:id remaining, checking %d tweets", rateLimit.Remaining, numberToCheck)

	tweets, err := s.tweets.OldestCheckableTweets(ctx, numberToCheck)
	if err != nil {
		return err
	}

	var existing, gone []string
	for _, tweet := range tweets {
		exists, err := s.tweetExists(ctx, tweet.StatusID)
		if err != nil {
			// Not a per-tweet condition: the gateway itself is unwell.
			// Abort the batch instead of misclassifying the rest.
			return fmt.Errorf("existence check for tweet %s failed: %w", tweet.StatusID, err)
		}
		if exists {
			existing = append(existing, tweet.ID)
		} else {
			gone = append(gone, tweet.ID)
		}
	}

	log.Infof("%d tweets still exist, deleting %d non-existent tweets: %v", len(existing), len(gone), gone)

	if err := s.tweets.TouchExistenceChecked(ctx, existing); err != nil {
		return err
	}

	deletedMatches, err := s.matches.DeleteMatchesReferencingTweets(ctx, gone)
	if err != nil {
		return err
	}
	log.Debugf("Deleted %d matches", deletedMatches)

	if err := s.tweets.DeleteTweets(ctx, gone); err != nil {
		return err
	}
	metrics.TweetsPruned.Add(float64(len(gone)))

	return nil
}

// tweetExists probes one tweet. Permanently-inaccessible kinds mean the
// tweet is gone; anything else is a gateway failure, not an answer.
func (s *Service) tweetExists(ctx context.Context, statusID string) (bool, error) {
	if _, err := s.twitter.GetTweet(ctx, statusID); err != nil {
		if twitter.IsAutoRejectable(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// safeBatchSize shrinks the requested batch so at least margin calls stay
// unused.
func safeBatchSize(remaining, margin, requested int) int {
	if remaining <= margin {
		return 0
	}
	if remaining-requested > margin {
		return requested
	}
	return remaining - margin
}

// ReconcileTimelineDesync finds amplified pairs where one half has vanished
// from the bot's own timeline (removed upstream or by hand, outside this
// system) and unwinds the dangling half.
func (s *Service) ReconcileTimelineDesync(ctx context.Context) error {
	log := s.sweepLog

	timeline, err := s.twitter.RecentTimeline(ctx, reconcileTimelineFetch)
	if err != nil {
		return fmt.Errorf("failed to fetch recent timeline: %w", err)
	}

	pairs, err := s.matches.RetweetedStatusIDs(ctx, reconcileRecentMatches)
	if err != nil {
		return err
	}

	type sibling struct {
		matchID       int64
		otherStatusID string
	}
	siblingByStatusID := make(map[string]sibling, len(pairs)*2)
	for _, pair := range pairs {
		siblingByStatusID[pair.Tweet1StatusID] = sibling{matchID: pair.MatchID, otherStatusID: pair.Tweet2StatusID}
		siblingByStatusID[pair.Tweet2StatusID] = sibling{matchID: pair.MatchID, otherStatusID: pair.Tweet1StatusID}
	}

	onTimeline := make(map[string]struct{}, len(timeline))
	for _, tweet := range timeline {
		if tweet.RetweetedStatus != nil {
			onTimeline[tweet.RetweetedStatus.ID] = struct{}{}
		}
	}

	log.Debugf("Reconciling %d timeline retweets against %d recorded matches", len(onTimeline), len(pairs))

	unwound := 0
	for statusID := range onTimeline {
		match, known := siblingByStatusID[statusID]
		if !known {
			// Not one of the recent recorded amplifications; an older
			// sweep window will have covered it.
			continue
		}
		if _, present := onTimeline[match.otherStatusID]; present {
			continue
		}

		// The platform is the authority: only unwind once it confirms the
		// missing half really is gone, not just outside the fetch window.
		// A rate limit or transport failure is not an answer either way.
		if _, err := s.twitter.GetTweetPair(ctx, match.otherStatusID, statusID); err == nil {
			log.Infof("Both tweets still exist for match %d, skipping", match.matchID)
			continue
		} else if !twitter.IsAutoRejectable(err) {
			log.Errorf("Could not verify pair for match %d, skipping: %v", match.matchID, err)
			continue
		}

		if err := s.unwindOrphanedPair(ctx, match.matchID); err != nil {
			log.Errorf("Failed to unwind match %d: %v", match.matchID, err)
			continue
		}
		unwound++
	}

	if unwound > 0 {
		log.Infof("Unwound %d orphaned pairs", unwound)
	}
	return nil
}

// unwindOrphanedPair destroys both recorded retweets (independently; one
// failing does not block the other) and marks the match unretweeted via the
// cleanup path.
func (s *Service) unwindOrphanedPair(ctx context.Context, matchID int64) error {
	log := s.sweepLog

	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}

	for _, retweetID := range []string{match.Tweet1RetweetID, match.Tweet2RetweetID} {
		if retweetID == "" {
			continue
		}
		if _, err := s.twitter.DestroyTweet(ctx, retweetID); err != nil {
			log.Errorf("Failed to destroy retweet %s for match %d: %v", retweetID, matchID, err)
		}
	}

	if err := s.matches.MarkUnretweetedFromCleanup(ctx, matchID); err != nil {
		return err
	}

	metrics.PairsUnwound.Inc()
	s.notifier.NotifyPairUnwound(ctx, matchID)
	return nil
}

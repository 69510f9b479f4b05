package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"anagrambot/internal/anagram/repository"
	"anagrambot/internal/logger"
	"anagrambot/internal/metrics"
	"anagrambot/internal/notify"
	"anagrambot/internal/platform/twitter"
)

// Service is the approval engine: it executes review decisions against the
// external platforms and keeps the repository consistent through partial
// failures.
type Service struct {
	matches  repository.MatchRepository
	tweets   repository.TweetRepository
	queue    repository.QueueRepository
	twitter  TwitterGateway
	tumblr   TumblrGateway
	notifier notify.Notifier

	log      *logrus.Logger
	sweepLog *logrus.Entry
}

// NewService wires the approval engine. Logging goes to the general sink;
// the prune and reconcile sweeps write to the reconciliation channel.
func NewService(
	matches repository.MatchRepository,
	tweets repository.TweetRepository,
	queue repository.QueueRepository,
	twitterGateway TwitterGateway,
	tumblrGateway TumblrGateway,
	notifier notify.Notifier,
) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		matches:  matches,
		tweets:   tweets,
		queue:    queue,
		twitter:  twitterGateway,
		tumblr:   tumblrGateway,
		notifier: notifier,
		log:      logger.L(),
		sweepLog: logger.Reconciliation(),
	}
}

// ApproveNow executes a direct human approval synchronously. If another
// amplified match already contains one of this match's tweets, amplifying
// again would duplicate a post, so only the mirror is created.
func (s *Service) ApproveNow(ctx context.Context, matchID int64, orderAsShown bool) Outcome {
	if err := s.matches.MarkAttemptedApproval(ctx, matchID); err != nil {
		return failure(err)
	}

	count, err := s.matches.CountOtherRetweetedMatchesSharingTweets(ctx, matchID)
	if err != nil {
		return failure(err)
	}

	if count > 0 {
		return s.PostTumblrOnly(ctx, matchID, orderAsShown)
	}
	return s.RetweetAndPostTumblr(ctx, matchID, orderAsShown)
}

// RetweetAndPostTumblr amplifies both tweets and then mirrors the pair.
// The second-shown tweet is retweeted first so the first-shown one ends up
// topmost on a reverse-chronological feed. A mirror failure after a
// successful amplification is reported but does not roll anything back.
func (s *Service) RetweetAndPostTumblr(ctx context.Context, matchID int64, orderAsShown bool) Outcome {
	tweet1, tweet2, err := s.matches.GetTweetsForMatch(ctx, matchID)
	if err != nil {
		return failure(err)
	}

	pair, err := s.twitter.GetTweetPair(ctx, tweet1.StatusID, tweet2.StatusID)
	if err != nil {
		return s.platformFailure(ctx, matchID, err)
	}

	if !orderAsShown {
		pair.Swap()
	}

	retweet1, err := s.twitter.Retweet(ctx, pair.Tweet2.ID)
	if err != nil {
		return s.platformFailure(ctx, matchID, err)
	}

	retweet2, err := s.twitter.Retweet(ctx, pair.Tweet1.ID)
	if err != nil {
		if twitter.IsAutoRejectable(err) {
			return s.autoRejectFromPlatformError(ctx, matchID, err)
		}
		return s.compensateRetweets(ctx, matchID, err, retweet1.ID)
	}

	if err := s.matches.RecordRetweets(ctx, matchID, retweet1.ID, retweet2.ID, orderAsShown); err != nil {
		return s.compensateRetweets(ctx, matchID, err, retweet1.ID, retweet2.ID)
	}
	metrics.MatchesRetweeted.Inc()

	tumblrErr := s.postMatchToTumblr(ctx, matchID, pair.Tweet1.ID, pair.Tweet2.ID, orderAsShown)

	rateLimitRemaining := pair.Tweet1.RateLimitRemaining
	if pair.Tweet2.RateLimitRemaining < rateLimitRemaining {
		rateLimitRemaining = pair.Tweet2.RateLimitRemaining
	}

	outcome := Outcome{
		SuccessMessage: fmt.Sprintf("Approved %d. %d calls remaining.", matchID, rateLimitRemaining),
		Remove:         true,
	}
	if tumblrErr != nil {
		outcome.TumblrError = fmt.Sprintf("tumblr error for %d: %v", matchID, tumblrErr)
	}
	return outcome
}

// PostTumblrOnly mirrors the pair without amplifying, for matches whose
// tweets are already amplified through another match.
func (s *Service) PostTumblrOnly(ctx context.Context, matchID int64, orderAsShown bool) Outcome {
	tweet1, tweet2, err := s.matches.GetTweetsForMatch(ctx, matchID)
	if err != nil {
		return failure(err)
	}

	pair, err := s.twitter.GetTweetPair(ctx, tweet1.StatusID, tweet2.StatusID)
	if err != nil {
		return s.platformFailure(ctx, matchID, err)
	}

	if !orderAsShown {
		pair.Swap()
	}

	if err := s.postMatchToTumblr(ctx, matchID, pair.Tweet1.ID, pair.Tweet2.ID, orderAsShown); err != nil {
		s.log.Errorf("Error posting %d to tumblr: %v", matchID, err)
		return Outcome{Error: fmt.Sprintf("error posting %d to tumblr: %v", matchID, err), cause: err}
	}

	return Outcome{SuccessMessage: "Match contains retweet. Posted to tumblr.", Remove: true}
}

// postMatchToTumblr renders both tweets' embeds into one text post, creates
// it and records the post id. The status ids must already be in display
// order.
func (s *Service) postMatchToTumblr(ctx context.Context, matchID int64, statusID1, statusID2 string, postedInOrder bool) error {
	oembed1, err := s.twitter.Oembed(ctx, statusID1)
	if err != nil {
		return err
	}
	oembed2, err := s.twitter.Oembed(ctx, statusID2)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s vs. %s", oembed1.AuthorName, oembed2.AuthorName)
	body := fmt.Sprintf("<div> %s %s </div>", oembed1.HTML, oembed2.HTML)

	postID, err := s.tumblr.CreateTextPost(ctx, title, body)
	if err != nil {
		return err
	}
	s.log.Infof("Posted tumblr post id %d for match %d", postID, matchID)

	if err := s.matches.RecordTumblrPost(ctx, matchID, postID, postedInOrder); err != nil {
		return err
	}
	metrics.MatchesMirrored.Inc()
	return nil
}

// Enqueue defers an approval for the queue drain task. The match's tweets
// are probed first so a pair that is already gone is auto-rejected instead
// of queued.
func (s *Service) Enqueue(ctx context.Context, matchID int64, orderAsShown bool) Outcome {
	if err := s.matches.MarkAttemptedApproval(ctx, matchID); err != nil {
		return failure(err)
	}

	if outcome := s.checkExistenceAndAutoReject(ctx, matchID); outcome.Failed() {
		return outcome
	}

	count, err := s.queue.CountPendingForMatch(ctx, matchID)
	if err != nil {
		return failure(err)
	}
	if count > 0 {
		return Outcome{Error: fmt.Sprintf("%d existing pending queued matches for %d", count, matchID)}
	}

	if _, err := s.queue.Enqueue(ctx, matchID, orderAsShown); err != nil {
		return failure(err)
	}

	containsRetweets := false
	if shared, err := s.matches.CountOtherRetweetedMatchesSharingTweets(ctx, matchID); err == nil {
		containsRetweets = shared > 0
	}

	return Outcome{
		SuccessMessage:                fmt.Sprintf("Enqueued %d.", matchID),
		EnqueuedMatchContainsRetweets: containsRetweets,
		Remove:                        true,
	}
}

// checkExistenceAndAutoReject probes both tweets of a match. The zero
// Outcome means both still exist.
func (s *Service) checkExistenceAndAutoReject(ctx context.Context, matchID int64) Outcome {
	tweet1, tweet2, err := s.matches.GetTweetsForMatch(ctx, matchID)
	if err != nil {
		return failure(err)
	}

	if _, err := s.twitter.GetTweetPair(ctx, tweet1.StatusID, tweet2.StatusID); err != nil {
		return s.platformFailure(ctx, matchID, err)
	}
	return Outcome{}
}

// Reject records a human rejection.
func (s *Service) Reject(ctx context.Context, matchID int64) Outcome {
	if err := s.matches.RejectMatch(ctx, matchID, false); err != nil {
		return failure(err)
	}
	return Outcome{SuccessMessage: fmt.Sprintf("Rejected match %d.", matchID), Remove: true}
}

// Unreject clears a rejection so the match shows up for review again.
func (s *Service) Unreject(ctx context.Context, matchID int64) Outcome {
	if err := s.matches.UnrejectMatch(ctx, matchID); err != nil {
		return failure(err)
	}
	return Outcome{SuccessMessage: fmt.Sprintf("Unrejected match %d.", matchID)}
}

// UnretweetMatch manually unwinds an amplification, its mirror post or
// both. Retweets are destroyed on the platform before the match is
// cleared; a tumblr-only request deletes the mirror post and leaves the
// retweets in place.
func (s *Service) UnretweetMatch(ctx context.Context, matchID int64, unretweet, deleteFromTumblr bool) Outcome {
	if !unretweet && !deleteFromTumblr {
		return Outcome{Error: fmt.Sprintf("neither unretweet nor deleteFromTumblr was requested for match %d", matchID)}
	}

	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return failure(err)
	}
	if unretweet && !match.IsRetweeted() {
		return Outcome{Error: fmt.Sprintf("match %d is not retweeted", matchID)}
	}
	if !unretweet && match.TumblrPostID == 0 {
		return Outcome{Error: fmt.Sprintf("match %d has no tumblr post", matchID)}
	}

	if unretweet {
		for _, retweetID := range []string{match.Tweet1RetweetID, match.Tweet2RetweetID} {
			if _, err := s.twitter.DestroyTweet(ctx, retweetID); err != nil {
				s.log.Errorf("Failed to destroy retweet %s for match %d: %v", retweetID, matchID, err)
				return Outcome{Error: err.Error(), RecoveryError: true, cause: err}
			}
		}
	}

	if deleteFromTumblr && match.TumblrPostID != 0 {
		if err := s.tumblr.DeletePost(ctx, match.TumblrPostID); err != nil {
			s.log.Errorf("Failed to delete tumblr post %d for match %d: %v", match.TumblrPostID, matchID, err)
			return Outcome{Error: err.Error(), RecoveryError: true, cause: err}
		}
	}

	if !unretweet {
		if err := s.matches.ClearTumblrOnly(ctx, matchID); err != nil {
			return failure(err)
		}
		return Outcome{SuccessMessage: fmt.Sprintf("Deleted tumblr post for match %d.", matchID), Remove: true}
	}

	if err := s.matches.ClearRetweets(ctx, matchID, deleteFromTumblr); err != nil {
		return failure(err)
	}
	return Outcome{SuccessMessage: fmt.Sprintf("Unretweeted match %d.", matchID), Remove: true}
}

// RemoveQueueEntry takes a queued approval out of circulation.
func (s *Service) RemoveQueueEntry(ctx context.Context, entryID int64) error {
	return s.queue.MarkRemoved(ctx, entryID)
}

// AcknowledgeQueueError marks an errored entry as observed by a human.
func (s *Service) AcknowledgeQueueError(ctx context.Context, entryID int64) error {
	return s.queue.MarkErrorObserved(ctx, entryID)
}

// BulkPostMissingTumblrPosts mirrors amplified matches that never got their
// tumblr post (usually after earlier mirror failures). Returns how many
// posts were attempted and the first error encountered, if any.
func (s *Service) BulkPostMissingTumblrPosts(ctx context.Context, limit int) (int, error) {
	missing, err := s.matches.MatchesMissingTumblrPost(ctx, limit)
	if err != nil {
		return 0, err
	}

	var firstErr error
	for _, m := range missing {
		statusID1, statusID2 := m.Tweet1StatusID, m.Tweet2StatusID
		if !m.PostedInOrder {
			statusID1, statusID2 = statusID2, statusID1
		}
		if err := s.postMatchToTumblr(ctx, m.MatchID, statusID1, statusID2, m.PostedInOrder); err != nil {
			s.log.Errorf("Failed to post match %d to tumblr: %v", m.MatchID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return len(missing), firstErr
}

// platformFailure handles a gateway error on the approve path: permanent
// content errors auto-reject the match, everything else is reported as-is.
func (s *Service) platformFailure(ctx context.Context, matchID int64, err error) Outcome {
	if isPlatformError(err) {
		return s.autoRejectFromPlatformError(ctx, matchID, err)
	}
	s.log.Errorf("Approval of match %d failed: %v", matchID, err)
	return failure(err)
}

// autoRejectFromPlatformError rejects the match when the platform says its
// content is permanently inaccessible; other platform errors pass through.
func (s *Service) autoRejectFromPlatformError(ctx context.Context, matchID int64, platformErr error) Outcome {
	message := platformErr.Error()

	if !twitter.IsAutoRejectable(platformErr) {
		s.log.Error(message)
		return Outcome{Error: message, cause: platformErr}
	}

	if err := s.matches.RejectMatch(ctx, matchID, true); err != nil {
		s.log.Errorf("Auto-rejection of match %d failed: %v", matchID, err)
		return Outcome{
			Error:          message,
			SystemResponse: fmt.Sprintf("Auto-rejection failed: %v", err),
			RecoveryError:  true,
			cause:          platformErr,
		}
	}

	metrics.MatchesAutoRejected.Inc()
	return Outcome{Error: message, SystemResponse: "Auto-rejected.", Remove: true, cause: platformErr}
}

// compensateRetweets unwinds the retweets that did succeed after a partial
// amplification failure. A failing compensation is flagged for a human.
func (s *Service) compensateRetweets(ctx context.Context, matchID int64, approvalErr error, retweetIDs ...string) Outcome {
	message := approvalErr.Error()

	for _, retweetID := range retweetIDs {
		if _, err := s.twitter.Unretweet(ctx, retweetID); err != nil {
			s.log.Errorf("Failed to unretweet %s while recovering match %d: %v", retweetID, matchID, err)
			s.notifier.NotifyRecoveryFailure(ctx, matchID, err.Error())
			return Outcome{
				Error:          message,
				SystemResponse: fmt.Sprintf("Error unretweeting: %v", err),
				RecoveryError:  true,
				cause:          approvalErr,
			}
		}
	}

	return Outcome{Error: message, SystemResponse: "Unretweeted.", cause: approvalErr}
}

func failure(err error) Outcome {
	return Outcome{Error: err.Error(), cause: err}
}

func isPlatformError(err error) bool {
	var apiErr *twitter.APIError
	return errors.As(err, &apiErr)
}

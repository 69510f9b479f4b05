package service

import (
	"context"
	"time"

	"anagrambot/internal/anagram/models"
	"anagrambot/internal/anagram/repository"
	"anagrambot/internal/platform/twitter"
)

// Hand-written stubs. Each method delegates to its function field when set
// and returns a harmless zero value otherwise, so tests only wire what they
// assert on.

type stubMatchRepo struct {
	getMatch           func(ctx context.Context, matchID int64) (*models.Match, error)
	getTweetsForMatch  func(ctx context.Context, matchID int64) (*models.Tweet, *models.Tweet, error)
	rejectMatch        func(ctx context.Context, matchID int64, autoRejected bool) error
	unrejectMatch      func(ctx context.Context, matchID int64) error
	markAttempted      func(ctx context.Context, matchID int64) error
	recordRetweets     func(ctx context.Context, matchID int64, rt1, rt2 string, orderAsShown bool) error
	recordTumblrPost   func(ctx context.Context, matchID int64, postID int64, orderAsShown bool) error
	clearRetweets      func(ctx context.Context, matchID int64, alsoClearTumblr bool) error
	markUnretweeted    func(ctx context.Context, matchID int64) error
	clearTumblrOnly    func(ctx context.Context, matchID int64) error
	countSharing       func(ctx context.Context, matchID int64) (int64, error)
	findMatches        func(ctx context.Context, queryType string, limit int, cutoff float64) ([]repository.MatchSummary, error)
	retweetedStatusIDs func(ctx context.Context, limit int) ([]repository.RetweetedPair, error)
	missingTumblr      func(ctx context.Context, limit int) ([]repository.MissingMirror, error)
	deleteReferencing  func(ctx context.Context, tweetIDs []string) (int64, error)
}

func (s *stubMatchRepo) GetMatch(ctx context.Context, matchID int64) (*models.Match, error) {
	if s.getMatch != nil {
		return s.getMatch(ctx, matchID)
	}
	return &models.Match{ID: matchID, Tweet1ID: "t1", Tweet2ID: "t2"}, nil
}

func (s *stubMatchRepo) GetTweetsForMatch(ctx context.Context, matchID int64) (*models.Tweet, *models.Tweet, error) {
	if s.getTweetsForMatch != nil {
		return s.getTweetsForMatch(ctx, matchID)
	}
	return &models.Tweet{ID: "t1", StatusID: "101"}, &models.Tweet{ID: "t2", StatusID: "102"}, nil
}

func (s *stubMatchRepo) RejectMatch(ctx context.Context, matchID int64, autoRejected bool) error {
	if s.rejectMatch != nil {
		return s.rejectMatch(ctx, matchID, autoRejected)
	}
	return nil
}

func (s *stubMatchRepo) UnrejectMatch(ctx context.Context, matchID int64) error {
	if s.unrejectMatch != nil {
		return s.unrejectMatch(ctx, matchID)
	}
	return nil
}

func (s *stubMatchRepo) MarkAttemptedApproval(ctx context.Context, matchID int64) error {
	if s.markAttempted != nil {
		return s.markAttempted(ctx, matchID)
	}
	return nil
}

func (s *stubMatchRepo) RecordRetweets(ctx context.Context, matchID int64, rt1, rt2 string, orderAsShown bool) error {
	if s.recordRetweets != nil {
		return s.recordRetweets(ctx, matchID, rt1, rt2, orderAsShown)
	}
	return nil
}

func (s *stubMatchRepo) RecordTumblrPost(ctx context.Context, matchID int64, postID int64, orderAsShown bool) error {
	if s.recordTumblrPost != nil {
		return s.recordTumblrPost(ctx, matchID, postID, orderAsShown)
	}
	return nil
}

func (s *stubMatchRepo) ClearRetweets(ctx context.Context, matchID int64, alsoClearTumblr bool) error {
	if s.clearRetweets != nil {
		return s.clearRetweets(ctx, matchID, alsoClearTumblr)
	}
	return nil
}

func (s *stubMatchRepo) MarkUnretweetedFromCleanup(ctx context.Context, matchID int64) error {
	if s.markUnretweeted != nil {
		return s.markUnretweeted(ctx, matchID)
	}
	return nil
}

func (s *stubMatchRepo) ClearTumblrOnly(ctx context.Context, matchID int64) error {
	if s.clearTumblrOnly != nil {
		return s.clearTumblrOnly(ctx, matchID)
	}
	return nil
}

func (s *stubMatchRepo) CountOtherRetweetedMatchesSharingTweets(ctx context.Context, matchID int64) (int64, error) {
	if s.countSharing != nil {
		return s.countSharing(ctx, matchID)
	}
	return 0, nil
}

func (s *stubMatchRepo) FindMatches(ctx context.Context, queryType string, limit int, cutoff float64) ([]repository.MatchSummary, error) {
	if s.findMatches != nil {
		return s.findMatches(ctx, queryType, limit, cutoff)
	}
	return nil, nil
}

func (s *stubMatchRepo) RetweetedStatusIDs(ctx context.Context, limit int) ([]repository.RetweetedPair, error) {
	if s.retweetedStatusIDs != nil {
		return s.retweetedStatusIDs(ctx, limit)
	}
	return nil, nil
}

func (s *stubMatchRepo) MatchesMissingTumblrPost(ctx context.Context, limit int) ([]repository.MissingMirror, error) {
	if s.missingTumblr != nil {
		return s.missingTumblr(ctx, limit)
	}
	return nil, nil
}

func (s *stubMatchRepo) DeleteMatchesReferencingTweets(ctx context.Context, tweetIDs []string) (int64, error) {
	if s.deleteReferencing != nil {
		return s.deleteReferencing(ctx, tweetIDs)
	}
	return 0, nil
}

type stubTweetRepo struct {
	oldestCheckable func(ctx context.Context, limit int) ([]models.Tweet, error)
	touchChecked    func(ctx context.Context, tweetIDs []string) error
	deleteTweets    func(ctx context.Context, tweetIDs []string) error
}

func (s *stubTweetRepo) OldestCheckableTweets(ctx context.Context, limit int) ([]models.Tweet, error) {
	if s.oldestCheckable != nil {
		return s.oldestCheckable(ctx, limit)
	}
	return nil, nil
}

func (s *stubTweetRepo) TouchExistenceChecked(ctx context.Context, tweetIDs []string) error {
	if s.touchChecked != nil {
		return s.touchChecked(ctx, tweetIDs)
	}
	return nil
}

func (s *stubTweetRepo) DeleteTweets(ctx context.Context, tweetIDs []string) error {
	if s.deleteTweets != nil {
		return s.deleteTweets(ctx, tweetIDs)
	}
	return nil
}

type stubQueueRepo struct {
	enqueue           func(ctx context.Context, matchID int64, orderAsShown bool) (*models.QueueEntry, error)
	countPending      func(ctx context.Context, matchID int64) (int64, error)
	dequeue           func(ctx context.Context) (*models.QueueEntry, error)
	markPosted        func(ctx context.Context, entryID int64) error
	markError         func(ctx context.Context, entryID int64, message string) error
	markRemoved       func(ctx context.Context, entryID int64) error
	markErrorObserved func(ctx context.Context, entryID int64) error
	countByStatus     func(ctx context.Context, status string) (int64, error)
	entriesByStatus   func(ctx context.Context, status string) ([]models.QueueEntry, error)
}

func (s *stubQueueRepo) Enqueue(ctx context.Context, matchID int64, orderAsShown bool) (*models.QueueEntry, error) {
	if s.enqueue != nil {
		return s.enqueue(ctx, matchID, orderAsShown)
	}
	return &models.QueueEntry{ID: 1, MatchID: matchID, OrderAsShown: orderAsShown, Status: models.QueueStatusPending, DateQueued: time.Now()}, nil
}

func (s *stubQueueRepo) CountPendingForMatch(ctx context.Context, matchID int64) (int64, error) {
	if s.countPending != nil {
		return s.countPending(ctx, matchID)
	}
	return 0, nil
}

func (s *stubQueueRepo) DequeueNextEligible(ctx context.Context) (*models.QueueEntry, error) {
	if s.dequeue != nil {
		return s.dequeue(ctx)
	}
	return nil, nil
}

func (s *stubQueueRepo) MarkPosted(ctx context.Context, entryID int64) error {
	if s.markPosted != nil {
		return s.markPosted(ctx, entryID)
	}
	return nil
}

func (s *stubQueueRepo) MarkError(ctx context.Context, entryID int64, message string) error {
	if s.markError != nil {
		return s.markError(ctx, entryID, message)
	}
	return nil
}

func (s *stubQueueRepo) MarkRemoved(ctx context.Context, entryID int64) error {
	if s.markRemoved != nil {
		return s.markRemoved(ctx, entryID)
	}
	return nil
}

func (s *stubQueueRepo) MarkErrorObserved(ctx context.Context, entryID int64) error {
	if s.markErrorObserved != nil {
		return s.markErrorObserved(ctx, entryID)
	}
	return nil
}

func (s *stubQueueRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	if s.countByStatus != nil {
		return s.countByStatus(ctx, status)
	}
	return 0, nil
}

func (s *stubQueueRepo) EntriesByStatus(ctx context.Context, status string) ([]models.QueueEntry, error) {
	if s.entriesByStatus != nil {
		return s.entriesByStatus(ctx, status)
	}
	return nil, nil
}

func (s *stubQueueRepo) EnsureIndexes(ctx context.Context) error { return nil }

type stubTwitter struct {
	getTweet        func(ctx context.Context, statusID string) (*twitter.Tweet, error)
	getTweetPair    func(ctx context.Context, statusID1, statusID2 string) (*twitter.TweetPair, error)
	retweet         func(ctx context.Context, statusID string) (*twitter.Tweet, error)
	unretweet       func(ctx context.Context, statusID string) (*twitter.Tweet, error)
	destroyTweet    func(ctx context.Context, statusID string) (*twitter.Tweet, error)
	oembed          func(ctx context.Context, statusID string) (*twitter.Oembed, error)
	showIDRateLimit func(ctx context.Context) (*twitter.RateLimit, error)
	recentTimeline  func(ctx context.Context, maxTweets int) ([]twitter.Tweet, error)
}

func (s *stubTwitter) GetTweet(ctx context.Context, statusID string) (*twitter.Tweet, error) {
	if s.getTweet != nil {
		return s.getTweet(ctx, statusID)
	}
	return &twitter.Tweet{ID: statusID}, nil
}

func (s *stubTwitter) GetTweetPair(ctx context.Context, statusID1, statusID2 string) (*twitter.TweetPair, error) {
	if s.getTweetPair != nil {
		return s.getTweetPair(ctx, statusID1, statusID2)
	}
	return &twitter.TweetPair{
		Tweet1: &twitter.Tweet{ID: statusID1, RateLimitRemaining: 100},
		Tweet2: &twitter.Tweet{ID: statusID2, RateLimitRemaining: 99},
	}, nil
}

func (s *stubTwitter) Retweet(ctx context.Context, statusID string) (*twitter.Tweet, error) {
	if s.retweet != nil {
		return s.retweet(ctx, statusID)
	}
	return &twitter.Tweet{ID: "rt-" + statusID}, nil
}

func (s *stubTwitter) Unretweet(ctx context.Context, statusID string) (*twitter.Tweet, error) {
	if s.unretweet != nil {
		return s.unretweet(ctx, statusID)
	}
	return &twitter.Tweet{ID: statusID}, nil
}

func (s *stubTwitter) DestroyTweet(ctx context.Context, statusID string) (*twitter.Tweet, error) {
	if s.destroyTweet != nil {
		return s.destroyTweet(ctx, statusID)
	}
	return &twitter.Tweet{ID: statusID}, nil
}

func (s *stubTwitter) Oembed(ctx context.Context, statusID string) (*twitter.Oembed, error) {
	if s.oembed != nil {
		return s.oembed(ctx, statusID)
	}
	return &twitter.Oembed{AuthorName: "author-" + statusID, HTML: "<blockquote>" + statusID + "</blockquote>"}, nil
}

func (s *stubTwitter) ShowIDRateLimit(ctx context.Context) (*twitter.RateLimit, error) {
	if s.showIDRateLimit != nil {
		return s.showIDRateLimit(ctx)
	}
	return &twitter.RateLimit{Limit: 900, Remaining: 900}, nil
}

func (s *stubTwitter) RecentTimeline(ctx context.Context, maxTweets int) ([]twitter.Tweet, error) {
	if s.recentTimeline != nil {
		return s.recentTimeline(ctx, maxTweets)
	}
	return nil, nil
}

type stubTumblr struct {
	createTextPost func(ctx context.Context, title, body string) (int64, error)
	deletePost     func(ctx context.Context, postID int64) error
}

func (s *stubTumblr) CreateTextPost(ctx context.Context, title, body string) (int64, error) {
	if s.createTextPost != nil {
		return s.createTextPost(ctx, title, body)
	}
	return 555, nil
}

func (s *stubTumblr) DeletePost(ctx context.Context, postID int64) error {
	if s.deletePost != nil {
		return s.deletePost(ctx, postID)
	}
	return nil
}

type stubNotifier struct {
	queueErrors      []int64
	recoveryFailures []int64
	pairsUnwound     []int64
}

func (s *stubNotifier) NotifyQueueError(_ context.Context, entryID, matchID int64, _ string) {
	s.queueErrors = append(s.queueErrors, entryID)
}

func (s *stubNotifier) NotifyRecoveryFailure(_ context.Context, matchID int64, _ string) {
	s.recoveryFailures = append(s.recoveryFailures, matchID)
}

func (s *stubNotifier) NotifyPairUnwound(_ context.Context, matchID int64) {
	s.pairsUnwound = append(s.pairsUnwound, matchID)
}

func apiError(code int) *twitter.APIError {
	kinds := map[int]twitter.ErrorKind{
		34:  twitter.KindNotFound,
		63:  twitter.KindSuspended,
		88:  twitter.KindRateLimited,
		136: twitter.KindBlocked,
		144: twitter.KindNotFound,
		179: twitter.KindUnauthorized,
	}
	kind, ok := kinds[code]
	if !ok {
		kind = twitter.KindUnknown
	}
	return &twitter.APIError{Kind: kind, Code: code, Message: "stub error"}
}

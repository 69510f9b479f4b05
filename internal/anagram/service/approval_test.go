package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"anagrambot/internal/anagram/models"
	"anagrambot/internal/anagram/repository"
	"anagrambot/internal/platform/twitter"
)

func newTestService(matches *stubMatchRepo, tweets *stubTweetRepo, queue *stubQueueRepo, tw *stubTwitter, tb *stubTumblr, n *stubNotifier) *Service {
	if matches == nil {
		matches = &stubMatchRepo{}
	}
	if tweets == nil {
		tweets = &stubTweetRepo{}
	}
	if queue == nil {
		queue = &stubQueueRepo{}
	}
	if tw == nil {
		tw = &stubTwitter{}
	}
	if tb == nil {
		tb = &stubTumblr{}
	}
	if n == nil {
		return NewService(matches, tweets, queue, tw, tb, nil)
	}
	return NewService(matches, tweets, queue, tw, tb, n)
}

func TestApproveNowRetweetsSecondShownFirst(t *testing.T) {
	var retweeted []string
	var recorded []string

	tw := &stubTwitter{}
	tw.retweet = func(_ context.Context, statusID string) (*twitter.Tweet, error) {
		retweeted = append(retweeted, statusID)
		return &twitter.Tweet{ID: "rt-" + statusID}, nil
	}
	matches := &stubMatchRepo{
		recordRetweets: func(_ context.Context, _ int64, rt1, rt2 string, _ bool) error {
			recorded = append(recorded, rt1, rt2)
			return nil
		},
	}

	svc := newTestService(matches, nil, nil, tw, nil, nil)
	outcome := svc.ApproveNow(context.Background(), 42, true)

	if outcome.Failed() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	// With orderAsShown, the second-shown tweet (102) is amplified first so
	// the first-shown one lands topmost on the feed.
	if len(retweeted) != 2 || retweeted[0] != "102" || retweeted[1] != "101" {
		t.Fatalf("unexpected retweet order: %v", retweeted)
	}
	if len(recorded) != 2 || recorded[0] != "rt-102" || recorded[1] != "rt-101" {
		t.Fatalf("unexpected recorded retweet ids: %v", recorded)
	}
	if !outcome.Remove {
		t.Fatal("expected remove flag")
	}
	if !strings.Contains(outcome.SuccessMessage, "Approved 42.") {
		t.Fatalf("unexpected success message: %q", outcome.SuccessMessage)
	}
}

func TestApproveNowSwappedOrderReversesRetweets(t *testing.T) {
	var retweeted []string
	tw := &stubTwitter{}
	tw.retweet = func(_ context.Context, statusID string) (*twitter.Tweet, error) {
		retweeted = append(retweeted, statusID)
		return &twitter.Tweet{ID: "rt-" + statusID}, nil
	}

	svc := newTestService(nil, nil, nil, tw, nil, nil)
	outcome := svc.ApproveNow(context.Background(), 42, false)

	if outcome.Failed() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(retweeted) != 2 || retweeted[0] != "101" || retweeted[1] != "102" {
		t.Fatalf("unexpected retweet order: %v", retweeted)
	}
}

func TestApproveNowSharedTweetPostsTumblrOnly(t *testing.T) {
	var retweets int
	var posted int

	tw := &stubTwitter{}
	tw.retweet = func(_ context.Context, statusID string) (*twitter.Tweet, error) {
		retweets++
		return &twitter.Tweet{ID: "rt-" + statusID}, nil
	}
	tb := &stubTumblr{
		createTextPost: func(_ context.Context, _, _ string) (int64, error) {
			posted++
			return 777, nil
		},
	}
	matches := &stubMatchRepo{
		countSharing: func(_ context.Context, _ int64) (int64, error) { return 1, nil },
	}

	svc := newTestService(matches, nil, nil, tw, tb, nil)
	outcome := svc.ApproveNow(context.Background(), 42, true)

	if outcome.Failed() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if retweets != 0 {
		t.Fatalf("expected no retweets, got %d", retweets)
	}
	if posted != 1 {
		t.Fatalf("expected one tumblr post, got %d", posted)
	}
	if outcome.SuccessMessage != "Match contains retweet. Posted to tumblr." {
		t.Fatalf("unexpected success message: %q", outcome.SuccessMessage)
	}
}

func TestSecondRetweetFailureCompensatesFirst(t *testing.T) {
	var unretweeted []string
	var rejected int

	tw := &stubTwitter{}
	tw.retweet = func(_ context.Context, statusID string) (*twitter.Tweet, error) {
		if statusID == "101" {
			return nil, errors.New("wire failure")
		}
		return &twitter.Tweet{ID: "rt-" + statusID}, nil
	}
	tw.unretweet = func(_ context.Context, statusID string) (*twitter.Tweet, error) {
		unretweeted = append(unretweeted, statusID)
		return &twitter.Tweet{ID: statusID}, nil
	}
	matches := &stubMatchRepo{
		rejectMatch: func(_ context.Context, _ int64, _ bool) error {
			rejected++
			return nil
		},
	}

	svc := newTestService(matches, nil, nil, tw, nil, nil)
	outcome := svc.RetweetAndPostTumblr(context.Background(), 42, true)

	if !outcome.Failed() {
		t.Fatal("expected failure")
	}
	if len(unretweeted) != 1 || unretweeted[0] != "rt-102" {
		t.Fatalf("expected compensation of rt-102, got %v", unretweeted)
	}
	if outcome.SystemResponse != "Unretweeted." {
		t.Fatalf("unexpected system response: %q", outcome.SystemResponse)
	}
	if outcome.RecoveryError {
		t.Fatal("compensation succeeded, recovery error must not be set")
	}
	if rejected != 0 {
		t.Fatalf("transient failure must not reject the match, got %d rejections", rejected)
	}
}

func TestSecondRetweetAutoRejectableSkipsCompensation(t *testing.T) {
	var unretweets int
	var autoRejected bool

	tw := &stubTwitter{}
	tw.retweet = func(_ context.Context, statusID string) (*twitter.Tweet, error) {
		if statusID == "101" {
			return nil, apiError(144)
		}
		return &twitter.Tweet{ID: "rt-" + statusID}, nil
	}
	tw.unretweet = func(_ context.Context, statusID string) (*twitter.Tweet, error) {
		unretweets++
		return &twitter.Tweet{ID: statusID}, nil
	}
	matches := &stubMatchRepo{
		rejectMatch: func(_ context.Context, _ int64, auto bool) error {
			autoRejected = auto
			return nil
		},
	}

	svc := newTestService(matches, nil, nil, tw, nil, nil)
	outcome := svc.RetweetAndPostTumblr(context.Background(), 42, true)

	if !outcome.Failed() {
		t.Fatal("expected failure")
	}
	if !autoRejected {
		t.Fatal("expected automatic rejection")
	}
	if unretweets != 0 {
		t.Fatalf("auto-rejectable failures must not compensate, got %d unretweets", unretweets)
	}
	if outcome.SystemResponse != "Auto-rejected." {
		t.Fatalf("unexpected system response: %q", outcome.SystemResponse)
	}
	if !outcome.Remove {
		t.Fatal("expected remove flag after auto-rejection")
	}
}

func TestFailedCompensationFlagsRecoveryError(t *testing.T) {
	notifier := &stubNotifier{}

	tw := &stubTwitter{}
	tw.retweet = func(_ context.Context, statusID string) (*twitter.Tweet, error) {
		if statusID == "101" {
			return nil, errors.New("wire failure")
		}
		return &twitter.Tweet{ID: "rt-" + statusID}, nil
	}
	tw.unretweet = func(_ context.Context, _ string) (*twitter.Tweet, error) {
		return nil, errors.New("compensation failure")
	}

	svc := newTestService(nil, nil, nil, tw, nil, notifier)
	outcome := svc.RetweetAndPostTumblr(context.Background(), 42, true)

	if !outcome.RecoveryError {
		t.Fatal("expected recovery error")
	}
	if !strings.Contains(outcome.SystemResponse, "Error unretweeting") {
		t.Fatalf("unexpected system response: %q", outcome.SystemResponse)
	}
	if len(notifier.recoveryFailures) != 1 || notifier.recoveryFailures[0] != 42 {
		t.Fatalf("expected recovery failure notification for match 42, got %v", notifier.recoveryFailures)
	}
}

func TestMirrorFailureDoesNotFailApproval(t *testing.T) {
	tb := &stubTumblr{
		createTextPost: func(_ context.Context, _, _ string) (int64, error) {
			return 0, errors.New("tumblr down")
		},
	}

	svc := newTestService(nil, nil, nil, nil, tb, nil)
	outcome := svc.RetweetAndPostTumblr(context.Background(), 42, true)

	if outcome.Failed() {
		t.Fatalf("mirror failure must not fail the approval: %+v", outcome)
	}
	if outcome.TumblrError == "" {
		t.Fatal("expected tumblr error to be reported")
	}
	if !outcome.Remove {
		t.Fatal("expected remove flag")
	}
}

func TestEnqueueRejectsDuplicatePending(t *testing.T) {
	var enqueued int
	queue := &stubQueueRepo{
		countPending: func(_ context.Context, _ int64) (int64, error) { return 1, nil },
	}
	queue.enqueue = func(_ context.Context, _ int64, _ bool) (*models.QueueEntry, error) {
		enqueued++
		return nil, nil
	}

	svc := newTestService(nil, nil, queue, nil, nil, nil)
	outcome := svc.Enqueue(context.Background(), 42, true)

	if !outcome.Failed() {
		t.Fatal("expected failure for duplicate pending entry")
	}
	if enqueued != 0 {
		t.Fatalf("duplicate must not enqueue, got %d inserts", enqueued)
	}
}

func TestEnqueueAutoRejectsVanishedPair(t *testing.T) {
	var enqueued int
	var autoRejected bool

	tw := &stubTwitter{}
	tw.getTweetPair = func(_ context.Context, _, _ string) (*twitter.TweetPair, error) {
		return nil, apiError(34)
	}
	matches := &stubMatchRepo{
		rejectMatch: func(_ context.Context, _ int64, auto bool) error {
			autoRejected = auto
			return nil
		},
	}
	queue := &stubQueueRepo{}
	queue.enqueue = func(_ context.Context, matchID int64, orderAsShown bool) (*models.QueueEntry, error) {
		enqueued++
		return nil, nil
	}

	svc := newTestService(matches, nil, queue, tw, nil, nil)
	outcome := svc.Enqueue(context.Background(), 42, true)

	if !outcome.Failed() {
		t.Fatal("expected failure")
	}
	if !autoRejected {
		t.Fatal("expected automatic rejection of the vanished pair")
	}
	if enqueued != 0 {
		t.Fatalf("vanished pair must not be enqueued, got %d inserts", enqueued)
	}
	if outcome.SystemResponse != "Auto-rejected." {
		t.Fatalf("unexpected system response: %q", outcome.SystemResponse)
	}
}

func TestUnretweetMatchClearsTumblrTogether(t *testing.T) {
	var deletedPosts []int64
	var clearedTumblr []bool

	now := time.Now()
	retweetedAt := &now
	matches := &stubMatchRepo{
		getMatch: func(_ context.Context, matchID int64) (*models.Match, error) {
			return &models.Match{
				ID:              matchID,
				Tweet1RetweetID: "901",
				Tweet2RetweetID: "902",
				DateRetweeted:   retweetedAt,
				TumblrPostID:    777,
			}, nil
		},
		clearRetweets: func(_ context.Context, _ int64, alsoClearTumblr bool) error {
			clearedTumblr = append(clearedTumblr, alsoClearTumblr)
			return nil
		},
	}
	tb := &stubTumblr{
		deletePost: func(_ context.Context, postID int64) error {
			deletedPosts = append(deletedPosts, postID)
			return nil
		},
	}

	svc := newTestService(matches, nil, nil, nil, tb, nil)
	outcome := svc.UnretweetMatch(context.Background(), 42, true, true)

	if outcome.Failed() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(deletedPosts) != 1 || deletedPosts[0] != 777 {
		t.Fatalf("expected tumblr post 777 deleted, got %v", deletedPosts)
	}
	if len(clearedTumblr) != 1 || !clearedTumblr[0] {
		t.Fatalf("expected retweet and tumblr fields cleared together, got %v", clearedTumblr)
	}
}

func TestUnretweetMatchTumblrOnlyKeepsRetweets(t *testing.T) {
	var deletedPosts []int64
	var clearedTumblrOnly []int64
	var destroyed int
	var clearedRetweets int

	now := time.Now()
	retweetedAt := &now
	matches := &stubMatchRepo{
		getMatch: func(_ context.Context, matchID int64) (*models.Match, error) {
			return &models.Match{
				ID:              matchID,
				Tweet1RetweetID: "901",
				Tweet2RetweetID: "902",
				DateRetweeted:   retweetedAt,
				TumblrPostID:    777,
			}, nil
		},
		clearRetweets: func(_ context.Context, _ int64, _ bool) error {
			clearedRetweets++
			return nil
		},
		clearTumblrOnly: func(_ context.Context, matchID int64) error {
			clearedTumblrOnly = append(clearedTumblrOnly, matchID)
			return nil
		},
	}
	tw := &stubTwitter{
		destroyTweet: func(_ context.Context, statusID string) (*twitter.Tweet, error) {
			destroyed++
			return &twitter.Tweet{ID: statusID}, nil
		},
	}
	tb := &stubTumblr{
		deletePost: func(_ context.Context, postID int64) error {
			deletedPosts = append(deletedPosts, postID)
			return nil
		},
	}

	svc := newTestService(matches, nil, nil, tw, tb, nil)
	outcome := svc.UnretweetMatch(context.Background(), 42, false, true)

	if outcome.Failed() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(deletedPosts) != 1 || deletedPosts[0] != 777 {
		t.Fatalf("expected tumblr post 777 deleted, got %v", deletedPosts)
	}
	if destroyed != 0 {
		t.Fatalf("a tumblr-only request must leave the retweets alone, got %d destroys", destroyed)
	}
	if clearedRetweets != 0 {
		t.Fatalf("a tumblr-only request must not clear retweet fields, got %d calls", clearedRetweets)
	}
	if len(clearedTumblrOnly) != 1 || clearedTumblrOnly[0] != 42 {
		t.Fatalf("expected tumblr fields cleared for match 42, got %v", clearedTumblrOnly)
	}
}

func TestUnretweetMatchRefusesEmptyRequest(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil, nil)
	outcome := svc.UnretweetMatch(context.Background(), 42, false, false)

	if !outcome.Failed() {
		t.Fatal("expected failure when neither action was requested")
	}
}

func TestUnretweetMatchRefusesUnretweetedMatch(t *testing.T) {
	matches := &stubMatchRepo{
		getMatch: func(_ context.Context, matchID int64) (*models.Match, error) {
			return &models.Match{ID: matchID}, nil
		},
	}

	svc := newTestService(matches, nil, nil, nil, nil, nil)
	outcome := svc.UnretweetMatch(context.Background(), 42, true, false)

	if !outcome.Failed() {
		t.Fatal("expected failure for a match with no live amplification")
	}
}

func TestBulkPostMissingTumblrPostsRespectsStoredOrder(t *testing.T) {
	var titles []string
	tb := &stubTumblr{
		createTextPost: func(_ context.Context, title, _ string) (int64, error) {
			titles = append(titles, title)
			return 900, nil
		},
	}
	matches := &stubMatchRepo{
		missingTumblr: func(_ context.Context, _ int) ([]repository.MissingMirror, error) {
			return []repository.MissingMirror{
				{MatchID: 1, Tweet1StatusID: "101", Tweet2StatusID: "102", PostedInOrder: true},
				{MatchID: 2, Tweet1StatusID: "201", Tweet2StatusID: "202", PostedInOrder: false},
			}, nil
		},
	}

	svc := newTestService(matches, nil, nil, nil, tb, nil)
	attempted, err := svc.BulkPostMissingTumblrPosts(context.Background(), 20)
	if err != nil {
		t.Fatalf("BulkPostMissingTumblrPosts failed: %v", err)
	}
	if attempted != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempted)
	}
	// The stub oembed titles embed the status id, so order is observable.
	if len(titles) != 2 {
		t.Fatalf("expected 2 posts, got %v", titles)
	}
	if titles[0] != "author-101 vs. author-102" {
		t.Fatalf("unexpected in-order title: %q", titles[0])
	}
	if titles[1] != "author-202 vs. author-201" {
		t.Fatalf("expected swapped title for out-of-order match, got %q", titles[1])
	}
}

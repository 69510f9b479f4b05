package repository

import (
	"context"
	"errors"

	"anagrambot/internal/anagram/models"
)

// ErrUnexpectedRowCount reports a conditional write that matched zero or
// more than one document. Every repository write here is a single-document
// operation; any other count means the caller raced a concurrent transition
// or holds a stale id, and the operation must abort rather than guess.
var ErrUnexpectedRowCount = errors.New("update affected an unexpected number of documents")

// ErrNotFound reports a point read that matched nothing.
var ErrNotFound = errors.New("document not found")

// Match query types accepted by FindMatches.
const (
	QueryTopMatches       = "topmatches"
	QueryOldestTopMatches = "oldesttopmatches"
	QueryMostRecent       = "mostrecentmatches"
)

// MatchSummary is a match joined with both tweets, shaped for the review
// surface.
type MatchSummary struct {
	ID             int64   `json:"id" bson:"_id"`
	Interesting    float64 `json:"interesting" bson:"interesting_factor"`
	Tweet1Text     string  `json:"t1_originalText" bson:"t1_original_text"`
	Tweet2Text     string  `json:"t2_originalText" bson:"t2_original_text"`
	Tweet1UserName string  `json:"t1_username" bson:"t1_user_name"`
	Tweet2UserName string  `json:"t2_username" bson:"t2_user_name"`
	Tweet1StatusID string  `json:"t1_statusId" bson:"t1_status_id"`
	Tweet2StatusID string  `json:"t2_statusId" bson:"t2_status_id"`
}

// RetweetedPair is one currently amplified match with both tweets' external
// status ids, the reconciliation sweep's unit of work.
type RetweetedPair struct {
	MatchID        int64  `bson:"_id"`
	Tweet1StatusID string `bson:"t1_status_id"`
	Tweet2StatusID string `bson:"t2_status_id"`
}

// MissingMirror is an amplified match that has no tumblr post yet.
type MissingMirror struct {
	MatchID        int64  `bson:"_id"`
	Tweet1StatusID string `bson:"t1_status_id"`
	Tweet2StatusID string `bson:"t2_status_id"`
	PostedInOrder  bool   `bson:"posted_in_order"`
}

// MatchRepository is the transactional store of candidate pairs.
type MatchRepository interface {
	// GetMatch returns one match by id.
	GetMatch(ctx context.Context, matchID int64) (*models.Match, error)

	// GetTweetsForMatch returns both source tweets of a match.
	GetTweetsForMatch(ctx context.Context, matchID int64) (*models.Tweet, *models.Tweet, error)

	// RejectMatch marks a match rejected, recording whether the rejection
	// was automatic.
	RejectMatch(ctx context.Context, matchID int64, autoRejected bool) error

	// UnrejectMatch clears all rejection fields.
	UnrejectMatch(ctx context.Context, matchID int64) error

	// MarkAttemptedApproval flags that a human asked to approve or enqueue.
	MarkAttemptedApproval(ctx context.Context, matchID int64) error

	// RecordRetweets stores both retweet ids and the amplification time,
	// clearing any previous unretweet marker.
	RecordRetweets(ctx context.Context, matchID int64, tweet1RetweetID, tweet2RetweetID string, orderAsShown bool) error

	// RecordTumblrPost stores the mirror post id and time.
	RecordTumblrPost(ctx context.Context, matchID int64, tumblrPostID int64, orderAsShown bool) error

	// ClearRetweets nulls both retweet ids and the amplification time; with
	// alsoClearTumblr it atomically clears the mirror fields too.
	ClearRetweets(ctx context.Context, matchID int64, alsoClearTumblr bool) error

	// MarkUnretweetedFromCleanup is ClearRetweets via the reconciliation
	// path: it additionally sets the cleanup flag so a sweep unwind is
	// distinguishable from a manual one.
	MarkUnretweetedFromCleanup(ctx context.Context, matchID int64) error

	// ClearTumblrOnly clears the mirror fields and leaves amplification
	// untouched.
	ClearTumblrOnly(ctx context.Context, matchID int64) error

	// CountOtherRetweetedMatchesSharingTweets counts currently amplified
	// matches, other than matchID, containing either of matchID's tweets.
	CountOtherRetweetedMatchesSharingTweets(ctx context.Context, matchID int64) (int64, error)

	// FindMatches returns reviewable matches for the given query type.
	// limit is capped at 50 and cutoff clamped to [0, 1] before querying.
	FindMatches(ctx context.Context, queryType string, limit int, interestingFactorCutoff float64) ([]MatchSummary, error)

	// RetweetedStatusIDs returns the most recently amplified matches with
	// both status ids, newest first.
	RetweetedStatusIDs(ctx context.Context, limit int) ([]RetweetedPair, error)

	// MatchesMissingTumblrPost returns amplified, not unretweeted matches
	// that have no mirror post yet, oldest amplification first.
	MatchesMissingTumblrPost(ctx context.Context, limit int) ([]MissingMirror, error)

	// DeleteMatchesReferencingTweets cascade-deletes matches containing any
	// of the given tweet ids and reports how many went away.
	DeleteMatchesReferencingTweets(ctx context.Context, tweetIDs []string) (int64, error)
}

// TweetRepository is the store of ingested source tweets.
type TweetRepository interface {
	// OldestCheckableTweets returns up to limit tweets not referenced by any
	// unreviewed match, ordered by least recently existence-checked.
	OldestCheckableTweets(ctx context.Context, limit int) ([]models.Tweet, error)

	// TouchExistenceChecked stamps the existence check time on all given
	// tweets.
	TouchExistenceChecked(ctx context.Context, tweetIDs []string) error

	// DeleteTweets removes tweets confirmed gone upstream.
	DeleteTweets(ctx context.Context, tweetIDs []string) error
}

// QueueRepository is the store of deferred approvals.
type QueueRepository interface {
	// Enqueue inserts a new pending entry for a match.
	Enqueue(ctx context.Context, matchID int64, orderAsShown bool) (*models.QueueEntry, error)

	// CountPendingForMatch counts pending entries for one match.
	CountPendingForMatch(ctx context.Context, matchID int64) (int64, error)

	// DequeueNextEligible returns the oldest pending entry whose match has
	// exactly one pending entry, or nil when none qualifies. Matches queued
	// twice are skipped entirely until the duplicate is resolved by hand;
	// starving them beats double-posting them.
	DequeueNextEligible(ctx context.Context) (*models.QueueEntry, error)

	// MarkPosted transitions an entry to posted.
	MarkPosted(ctx context.Context, entryID int64) error

	// MarkError transitions an entry to error with the failure message.
	MarkError(ctx context.Context, entryID int64, message string) error

	// MarkRemoved transitions an entry to removed.
	MarkRemoved(ctx context.Context, entryID int64) error

	// MarkErrorObserved acknowledges an errored entry.
	MarkErrorObserved(ctx context.Context, entryID int64) error

	// CountByStatus counts entries with the given status.
	CountByStatus(ctx context.Context, status string) (int64, error)

	// EntriesByStatus lists entries with the given status, oldest first.
	EntriesByStatus(ctx context.Context, status string) ([]models.QueueEntry, error)

	// EnsureIndexes creates the partial unique index that backs the
	// one-pending-entry-per-match invariant at the storage layer.
	EnsureIndexes(ctx context.Context) error
}

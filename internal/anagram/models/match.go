package models

import (
	"time"
)

// Match is a candidate pair of tweets scored by the upstream matcher.
//
// A match is in exactly one state at a time: untouched, rejected, pending in
// the queue, retweeted, tumblr-only, or unretweeted. Rejection and
// amplification are mutually exclusive going forward; unrejecting clears the
// rejection fields, re-retweeting clears DateUnretweeted.
type Match struct {
	ID                int64   `bson:"_id"`
	Tweet1ID          string  `bson:"tweet1_id"`
	Tweet2ID          string  `bson:"tweet2_id"`
	InterestingFactor float64 `bson:"interesting_factor"`

	Rejected     bool       `bson:"rejected"`
	AutoRejected bool       `bson:"auto_rejected"`
	DateRejected *time.Time `bson:"date_rejected,omitempty"`

	// AttemptedApproval is set the instant a human asks to approve or
	// enqueue, before any side effect runs.
	AttemptedApproval bool `bson:"attempted_approval"`

	// Both retweet ids are set together with DateRetweeted and cleared
	// together when unretweeting.
	Tweet1RetweetID string     `bson:"tweet1_retweet_id,omitempty"`
	Tweet2RetweetID string     `bson:"tweet2_retweet_id,omitempty"`
	DateRetweeted   *time.Time `bson:"date_retweeted,omitempty"`

	DateUnretweeted *time.Time `bson:"date_unretweeted,omitempty"`
	// UnretweetedByCleanup distinguishes the reconciliation sweep's unwind
	// from a manual unretweet.
	UnretweetedByCleanup bool `bson:"unretweeted_by_cleanup"`

	TumblrPostID       int64      `bson:"tumblr_post_id,omitempty"`
	DatePostedTumblr   *time.Time `bson:"date_posted_tumblr,omitempty"`
	DateUnpostedTumblr *time.Time `bson:"date_unposted_tumblr,omitempty"`

	// PostedInOrder records whether tweet1 was shown first when posted.
	PostedInOrder bool `bson:"posted_in_order"`

	DateCreated time.Time `bson:"date_created"`
}

// IsRetweeted reports whether the match currently has a live amplification.
func (m *Match) IsRetweeted() bool {
	return m.DateRetweeted != nil && m.Tweet1RetweetID != "" && m.Tweet2RetweetID != ""
}

package models

import (
	"time"
)

// Queue entry status values. Transitions are strictly forward:
// pending -> posted | error | removed, error -> error_ok | removed.
// Nothing ever goes back to pending, and entries are never deleted; the
// queue doubles as an audit log.
const (
	QueueStatusPending       = "pending"
	QueueStatusPosted        = "posted"
	QueueStatusError         = "error"
	QueueStatusErrorObserved = "error_ok"
	QueueStatusRemoved       = "removed"
)

// QueueEntry is a human's approval of a match, deferred for asynchronous
// execution by the queue drain task.
type QueueEntry struct {
	ID           int64      `bson:"_id"`
	MatchID      int64      `bson:"match_id"`
	OrderAsShown bool       `bson:"order_as_shown"`
	Status       string     `bson:"status"`
	DateQueued   time.Time  `bson:"date_queued"`
	DatePosted   *time.Time `bson:"date_posted,omitempty"`
	DateError    *time.Time `bson:"date_error,omitempty"`
	Message      string     `bson:"message,omitempty"`
}

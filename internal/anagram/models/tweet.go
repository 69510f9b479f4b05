package models

import (
	"time"
)

// Tweet is one externally authored source post, ingested by the upstream
// matching process. The stripped/sorted text is the matching signature; this
// system never interprets it, only stores it.
type Tweet struct {
	ID                 string    `bson:"_id"` // uuid assigned at ingest
	StatusID           string    `bson:"status_id"`
	UserName           string    `bson:"user_name"`
	OriginalText       string    `bson:"original_text"`
	StrippedSortedText string    `bson:"stripped_sorted_text"`
	DateCreated        time.Time `bson:"date_created"`

	// DateExistenceLastChecked is touched by the stale-tweet sweep each time
	// the platform confirms the tweet still exists. Zero means never checked.
	DateExistenceLastChecked time.Time `bson:"date_existence_last_checked"`
}

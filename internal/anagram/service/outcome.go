package service

// Outcome is the structured result of a review operation. The review surface
// renders these fields verbatim; expected failures travel in Error, never as
// a transport error.
type Outcome struct {
	SuccessMessage string `json:"successMessage,omitempty"`
	Error          string `json:"error,omitempty"`
	SystemResponse string `json:"systemResponse,omitempty"`
	TumblrError    string `json:"tumblrError,omitempty"`

	// Remove tells the caller the reviewed item should disappear from the
	// pending-review list.
	Remove bool `json:"remove,omitempty"`

	// RecoveryError flags that automatic compensation itself failed and the
	// match needs human attention.
	RecoveryError bool `json:"recoveryError,omitempty"`

	EnqueuedMatchContainsRetweets bool `json:"enqueuedMatchContainsRetweets,omitempty"`

	// cause preserves the original error for in-process classification
	// (the queue drain's rate-limit check); it never serializes.
	cause error
}

// Failed reports whether the operation failed.
func (o Outcome) Failed() bool { return o.Error != "" }

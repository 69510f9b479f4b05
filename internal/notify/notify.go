package notify

import (
	"context"
)

// Notifier delivers operator alerts for conditions that need a human:
// recorded queue errors, failed automatic compensation, and reconciliation
// unwinds.
type Notifier interface {
	// NotifyQueueError reports a queue entry recorded as error.
	NotifyQueueError(ctx context.Context, entryID, matchID int64, message string)

	// NotifyRecoveryFailure reports that automatic compensation for a
	// partial amplification itself failed and manual cleanup is needed.
	NotifyRecoveryFailure(ctx context.Context, matchID int64, message string)

	// NotifyPairUnwound reports that the timeline sweep unwound an orphaned
	// amplification.
	NotifyPairUnwound(ctx context.Context, matchID int64)
}

// Noop is the notifier used when no alert channel is configured.
type Noop struct{}

func (Noop) NotifyQueueError(context.Context, int64, int64, string) {}
func (Noop) NotifyRecoveryFailure(context.Context, int64, string)   {}
func (Noop) NotifyPairUnwound(context.Context, int64)               {}

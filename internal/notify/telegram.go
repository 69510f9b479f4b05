package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"anagrambot/internal/config"
	"anagrambot/internal/logger"
)

// TelegramNotifier sends operator alerts to a Telegram chat. Delivery is
// best effort: a failed alert is logged and dropped, never retried, so the
// alert channel can't stall the pipeline it reports on.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
}

// NewTelegramNotifier creates a notifier from configuration.
func NewTelegramNotifier(cfg config.NotifyConfig) (*TelegramNotifier, error) {
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id cannot be empty")
	}

	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramNotifier{bot: b, chatID: cfg.ChatID}, nil
}

// NotifyQueueError reports a queue entry recorded as error.
func (n *TelegramNotifier) NotifyQueueError(ctx context.Context, entryID, matchID int64, message string) {
	n.send(ctx, fmt.Sprintf("queue entry %d for match %d errored: %s", entryID, matchID, message))
}

// NotifyRecoveryFailure reports that automatic compensation failed.
func (n *TelegramNotifier) NotifyRecoveryFailure(ctx context.Context, matchID int64, message string) {
	n.send(ctx, fmt.Sprintf("match %d needs manual cleanup, compensation failed: %s", matchID, message))
}

// NotifyPairUnwound reports a reconciliation unwind.
func (n *TelegramNotifier) NotifyPairUnwound(ctx context.Context, matchID int64) {
	n.send(ctx, fmt.Sprintf("reconciliation unwound orphaned retweets for match %d", matchID))
}

func (n *TelegramNotifier) send(ctx context.Context, text string) {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		logger.L().Errorf("Failed to send operator alert: %v", err)
	}
}

package service

import (
	"context"

	"anagrambot/internal/platform/twitter"
)

// TwitterGateway is the amplification-platform surface the approval flow
// consumes. Satisfied by *twitter.Client; stubbed in tests.
type TwitterGateway interface {
	GetTweet(ctx context.Context, statusID string) (*twitter.Tweet, error)
	GetTweetPair(ctx context.Context, statusID1, statusID2 string) (*twitter.TweetPair, error)
	Retweet(ctx context.Context, statusID string) (*twitter.Tweet, error)
	Unretweet(ctx context.Context, statusID string) (*twitter.Tweet, error)
	DestroyTweet(ctx context.Context, statusID string) (*twitter.Tweet, error)
	Oembed(ctx context.Context, statusID string) (*twitter.Oembed, error)
	ShowIDRateLimit(ctx context.Context) (*twitter.RateLimit, error)
	RecentTimeline(ctx context.Context, maxTweets int) ([]twitter.Tweet, error)
}

// TumblrGateway is the mirror-platform surface the approval flow consumes.
type TumblrGateway interface {
	CreateTextPost(ctx context.Context, title, body string) (int64, error)
	DeletePost(ctx context.Context, postID int64) error
}

package twitter

import (
	"context"
	"fmt"
)

// maxTimelinePages bounds pagination so a misbehaving upstream that keeps
// returning full pages cannot make the sweep loop forever.
const maxTimelinePages = 20

const timelinePageSize = 200

// TimelinePager is a lazy, finite, non-restartable pager over the bot's own
// timeline, newest first.
type TimelinePager struct {
	client   *Client
	pageSize int
	maxID    string
	pages    int
	done     bool
}

// TimelinePages starts paging the bot's own timeline. pageSize <= 0 uses the
// platform maximum.
func (c *Client) TimelinePages(pageSize int) *TimelinePager {
	if pageSize <= 0 || pageSize > timelinePageSize {
		pageSize = timelinePageSize
	}
	return &TimelinePager{client: c, pageSize: pageSize}
}

// Next returns the next page, or (nil, nil) once the timeline is exhausted.
// Exceeding the page cap is an error, not silent truncation.
func (p *TimelinePager) Next(ctx context.Context) ([]Tweet, error) {
	if p.done {
		return nil, nil
	}

	p.pages++
	if p.pages > maxTimelinePages {
		return nil, fmt.Errorf("timeline paging exceeded %d pages at max_id %s", maxTimelinePages, p.maxID)
	}

	tweets, err := p.client.timelinePage(ctx, p.maxID, p.pageSize)
	if err != nil {
		return nil, err
	}

	// max_id is inclusive, so every page after the first repeats its first
	// tweet. A page of one tweet means only the cursor itself came back.
	if len(tweets) <= 1 {
		p.done = true
	} else {
		p.maxID = tweets[len(tweets)-1].ID
	}

	return tweets, nil
}

// RecentTimeline drains the pager and returns up to maxTweets unique recent
// timeline tweets.
func (c *Client) RecentTimeline(ctx context.Context, maxTweets int) ([]Tweet, error) {
	pager := c.TimelinePages(0)

	seen := make(map[string]struct{})
	var all []Tweet

	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return all, nil
		}

		for _, tweet := range page {
			if _, dup := seen[tweet.ID]; dup {
				continue
			}
			seen[tweet.ID] = struct{}{}
			all = append(all, tweet)
			if len(all) >= maxTweets {
				return all, nil
			}
		}
	}
}

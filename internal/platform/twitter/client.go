package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"anagrambot/internal/config"
	"anagrambot/internal/platform/oauth1"
)

const defaultBaseURL = "https://api.twitter.com/1.1"

// Client wraps the amplification platform's v1.1 REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *oauth1.Signer
}

// Option customizes client behavior.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a platform client from configuration.
func NewClient(cfg config.TwitterConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		signer: oauth1.NewSigner(oauth1.Credentials{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			Token:          cfg.AccessToken,
			TokenSecret:    cfg.AccessTokenSecret,
		}),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Tweet is a platform status, trimmed to the fields this system reads.
type Tweet struct {
	ID              string `json:"id_str"`
	Text            string `json:"text"`
	RetweetedStatus *Tweet `json:"retweeted_status"`

	// RateLimitRemaining carries the x-rate-limit-remaining header of the
	// response this tweet came from, so callers get an existence check and
	// a rate-limit probe in one call.
	RateLimitRemaining int `json:"-"`
}

// TweetPair is the two sides of a match, already fetched.
type TweetPair struct {
	Tweet1 *Tweet
	Tweet2 *Tweet
}

// Swap exchanges the two tweets in place.
func (p *TweetPair) Swap() {
	p.Tweet1, p.Tweet2 = p.Tweet2, p.Tweet1
}

// RateLimit describes the remaining budget for one endpoint class.
type RateLimit struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Oembed is the embeddable rendering of a tweet.
type Oembed struct {
	AuthorName string `json:"author_name"`
	HTML       string `json:"html"`
}

// GetTweet fetches a single status by its external id.
func (c *Client) GetTweet(ctx context.Context, statusID string) (*Tweet, error) {
	params := url.Values{}
	params.Set("include_entities", "false")
	params.Set("trim_user", "true")
	params.Set("include_my_retweet", "true")

	body, header, err := c.do(ctx, http.MethodGet, "/statuses/show/"+statusID+".json", params)
	if err != nil {
		return nil, err
	}

	var tweet Tweet
	if err := json.Unmarshal(body, &tweet); err != nil {
		return nil, fmt.Errorf("decode tweet %s: %w", statusID, err)
	}
	if tweet.ID == "" {
		return nil, &APIError{Kind: KindUnknown, Message: fmt.Sprintf("unknown error when retrieving %s", statusID)}
	}

	if remaining := header.Get("x-rate-limit-remaining"); remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			tweet.RateLimitRemaining = n
		}
	}

	return &tweet, nil
}

// GetTweetPair fetches both sides of a match. Either side failing fails the
// pair.
func (c *Client) GetTweetPair(ctx context.Context, statusID1, statusID2 string) (*TweetPair, error) {
	tweet1, err := c.GetTweet(ctx, statusID1)
	if err != nil {
		return nil, err
	}
	tweet2, err := c.GetTweet(ctx, statusID2)
	if err != nil {
		return nil, err
	}
	return &TweetPair{Tweet1: tweet1, Tweet2: tweet2}, nil
}

// Retweet amplifies the given status on the bot's own timeline.
func (c *Client) Retweet(ctx context.Context, statusID string) (*Tweet, error) {
	return c.postStatusAction(ctx, "/statuses/retweet/"+statusID+".json", statusID, "retweeting")
}

// Unretweet removes an amplification created by Retweet.
func (c *Client) Unretweet(ctx context.Context, statusID string) (*Tweet, error) {
	return c.postStatusAction(ctx, "/statuses/unretweet/"+statusID+".json", statusID, "unretweeting")
}

// DestroyTweet deletes one of the bot's own statuses (used when unwinding an
// orphaned amplification by its retweet id).
func (c *Client) DestroyTweet(ctx context.Context, statusID string) (*Tweet, error) {
	return c.postStatusAction(ctx, "/statuses/destroy/"+statusID+".json", statusID, "destroying")
}

func (c *Client) postStatusAction(ctx context.Context, path, statusID, verb string) (*Tweet, error) {
	params := url.Values{}
	params.Set("trim_user", "true")

	body, _, err := c.do(ctx, http.MethodPost, path, params)
	if err != nil {
		return nil, err
	}

	var tweet Tweet
	if err := json.Unmarshal(body, &tweet); err != nil {
		return nil, fmt.Errorf("decode response while %s %s: %w", verb, statusID, err)
	}
	if tweet.ID == "" {
		return nil, &APIError{Kind: KindUnknown, Message: fmt.Sprintf("unknown error when %s %s", verb, statusID)}
	}
	return &tweet, nil
}

// Oembed fetches the embeddable HTML rendering of a tweet.
func (c *Client) Oembed(ctx context.Context, statusID string) (*Oembed, error) {
	params := url.Values{}
	params.Set("id", statusID)
	params.Set("hide_thread", "true")
	params.Set("hide_media", "true")

	body, _, err := c.do(ctx, http.MethodGet, "/statuses/oembed.json", params)
	if err != nil {
		return nil, err
	}

	var oembed Oembed
	if err := json.Unmarshal(body, &oembed); err != nil {
		return nil, fmt.Errorf("decode oembed for %s: %w", statusID, err)
	}
	return &oembed, nil
}

// ShowIDRateLimit returns the remaining call budget for the statuses/show/:id
// endpoint class.
func (c *Client) ShowIDRateLimit(ctx context.Context) (*RateLimit, error) {
	params := url.Values{}
	params.Set("resources", "statuses")

	body, _, err := c.do(ctx, http.MethodGet, "/application/rate_limit_status.json", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Resources struct {
			Statuses map[string]struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"statuses"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode rate_limit_status: %w", err)
	}

	entry, ok := payload.Resources.Statuses["/statuses/show/:id"]
	if !ok {
		return nil, &APIError{Kind: KindUnknown, Message: "rate_limit_status response missing /statuses/show/:id"}
	}

	return &RateLimit{
		Limit:     entry.Limit,
		Remaining: entry.Remaining,
		ResetAt:   time.Unix(entry.Reset, 0),
	}, nil
}

func (c *Client) timelinePage(ctx context.Context, maxID string, count int) ([]Tweet, error) {
	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	params.Set("trim_user", "true")
	params.Set("exclude_replies", "true")
	if maxID != "" {
		params.Set("max_id", maxID)
	}

	body, _, err := c.do(ctx, http.MethodGet, "/statuses/user_timeline.json", params)
	if err != nil {
		return nil, err
	}

	var tweets []Tweet
	if err := json.Unmarshal(body, &tweets); err != nil {
		return nil, fmt.Errorf("decode user_timeline: %w", err)
	}
	return tweets, nil
}

// do executes one signed request and returns the raw body. Failure payloads
// are normalized into *APIError here; nothing downstream sees raw shapes.
func (c *Client) do(ctx context.Context, method, path string, params url.Values) ([]byte, http.Header, error) {
	endpoint := c.baseURL + path

	var reqBody io.Reader
	var form url.Values
	if method == http.MethodPost {
		form = params
		reqBody = strings.NewReader(params.Encode())
	} else if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request failed: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	c.signer.Authorize(req, form)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request twitter api failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read twitter response failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, nil, apiErrorFromResponse(resp.StatusCode, body)
	}

	return body, resp.Header, nil
}

// apiErrorFromResponse converts an error payload ({"errors":[{code,message}]})
// into a single *APIError. The first error's code decides the kind; messages
// are joined so nothing is lost.
func apiErrorFromResponse(status int, body []byte) error {
	var payload struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}

	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		messages := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			messages = append(messages, e.Message)
		}
		return &APIError{
			Kind:    kindForCode(payload.Errors[0].Code),
			Code:    payload.Errors[0].Code,
			Message: strings.Join(messages, " "),
		}
	}

	if status == http.StatusTooManyRequests {
		return &APIError{Kind: KindRateLimited, Code: codeRateLimitExceeded, Message: "Rate limit exceeded"}
	}

	return &APIError{Kind: KindUnknown, Message: fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body)))}
}

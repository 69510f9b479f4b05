package tumblr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"anagrambot/internal/config"
	"anagrambot/internal/platform/oauth1"
)

const defaultBaseURL = "https://api.tumblr.com/v2"

// Client wraps the mirror platform's blog API. It only knows how to create
// and delete text posts; everything else the platform offers is unused.
type Client struct {
	baseURL    string
	blogName   string
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

// NewClient creates a mirror-platform client from configuration.
func NewClient(cfg config.TumblrConfig, opts ...Option) (*Client, error) {
	if cfg.BlogName == "" {
		return nil, fmt.Errorf("tumblr blog name cannot be empty")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &Client{
		baseURL:  baseURL,
		blogName: cfg.BlogName,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		signer: oauth1.NewSigner(oauth1.Credentials{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			Token:          cfg.Token,
			TokenSecret:    cfg.TokenSecret,
		}),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// APIError is a normalized mirror-platform error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tumblr api error: status=%d, message=%s", e.Status, e.Message)
}

// BlogName returns the blog posts are created under.
func (c *Client) BlogName() string { return c.blogName }

// CreateTextPost publishes a text post and returns its id.
func (c *Client) CreateTextPost(ctx context.Context, title, body string) (int64, error) {
	form := url.Values{}
	form.Set("type", "text")
	form.Set("title", title)
	form.Set("body", body)

	respBody, err := c.post(ctx, fmt.Sprintf("/blog/%s/post", c.blogName), form)
	if err != nil {
		return 0, err
	}

	var payload struct {
		Response struct {
			ID int64 `json:"id"`
		} `json:"response"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return 0, fmt.Errorf("decode create post response: %w", err)
	}
	if payload.Response.ID == 0 {
		return 0, &APIError{Message: "create post response missing id"}
	}
	return payload.Response.ID, nil
}

// DeletePost removes a previously created post.
func (c *Client) DeletePost(ctx context.Context, postID int64) error {
	form := url.Values{}
	form.Set("id", strconv.FormatInt(postID, 10))

	_, err := c.post(ctx, fmt.Sprintf("/blog/%s/post/delete", c.blogName), form)
	return err
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.signer.Authorize(req, form)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request tumblr api failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tumblr response failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, apiErrorFromResponse(resp.StatusCode, body)
	}

	return body, nil
}

func apiErrorFromResponse(status int, body []byte) error {
	var payload struct {
		Meta struct {
			Msg string `json:"msg"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Meta.Msg != "" {
		return &APIError{Status: status, Message: payload.Meta.Msg}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
}

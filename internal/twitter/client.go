package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const apiBase = "https://api.twitter.com/2"

// User is the subset of the v2 user object the agent needs.
type User struct {
	ID            string
	Username      string
	FollowerCount int
}

// Tweet is the subset of the v2 tweet object the agent needs.
type Tweet struct {
	ID        string
	Text      string
	CreatedAt *time.Time
}

// Client is a minimal Twitter API v2 client using app-only bearer auth.
type Client struct {
	bearerToken string
	httpClient  *http.Client
	baseURL     string
}

func NewClient(bearerToken string) *Client {
	return &Client{
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		baseURL:     apiBase,
	}
}

// NewClientWithBase is used by tests to point at a stub server.
func NewClientWithBase(bearerToken, baseURL string) *Client {
	c := NewClient(bearerToken)
	c.baseURL = baseURL
	return c
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("twitter api: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type userResponse struct {
	Data struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		PublicMetrics struct {
			FollowersCount int `json:"followers_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// GetUserByUsername looks a user up by handle. A nil user with nil error
// means the handle does not exist.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var resp userResponse
	q := url.Values{"user.fields": {"public_metrics"}}
	err := c.get(ctx, "/users/by/username/"+url.PathEscape(username), q, &resp)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", username, err)
	}
	if resp.Data.ID == "" {
		return nil, nil
	}
	return &User{
		ID:            resp.Data.ID,
		Username:      resp.Data.Username,
		FollowerCount: resp.Data.PublicMetrics.FollowersCount,
	}, nil
}

type tweetsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
}

// GetUserTweets fetches a user's recent tweets, newest first, optionally
// only those newer than sinceID.
func (c *Client) GetUserTweets(ctx context.Context, userID, sinceID string, maxResults int) ([]Tweet, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	q := url.Values{
		"max_results":  {fmt.Sprintf("%d", maxResults)},
		"tweet.fields": {"created_at"},
		"exclude":      {"retweets,replies"},
	}
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}

	var resp tweetsResponse
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/tweets", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch tweets for %s: %w", userID, err)
	}

	tweets := make([]Tweet, 0, len(resp.Data))
	for _, t := range resp.Data {
		tweet := Tweet{ID: t.ID, Text: t.Text}
		if t.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
				tweet.CreatedAt = &ts
			}
		}
		tweets = append(tweets, tweet)
	}
	return tweets, nil
}

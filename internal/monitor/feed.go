package monitor

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FeedItem is one entry parsed out of an RSS or Atom feed.
type FeedItem struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	PublishedAt *time.Time
}

// FeedFetcher fetches and parses a feed URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}

// HTTPFeedFetcher parses RSS 2.0 and Atom feeds over HTTP.
type HTTPFeedFetcher struct {
	client *http.Client
}

func NewFeedFetcher() *HTTPFeedFetcher {
	return &HTTPFeedFetcher{client: &http.Client{Timeout: 20 * time.Second}}
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssEntry `xml:"item"`
	} `xml:"channel"`
}

type rssEntry struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Links   []atomLink `xml:"link"`
	Summary string `xml:"summary"`
	Content string `xml:"content"`
	Updated string `xml:"updated"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func (f *HTTPFeedFetcher) Fetch(ctx context.Context, url string) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "content-agent/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", url, err)
	}
	return parseFeed(body)
}

func parseFeed(data []byte) ([]FeedItem, error) {
	var rss rssFeed
	if err := xml.Unmarshal(data, &rss); err == nil && len(rss.Channel.Items) > 0 {
		items := make([]FeedItem, 0, len(rss.Channel.Items))
		for _, e := range rss.Channel.Items {
			item := FeedItem{
				Title:       strings.TrimSpace(e.Title),
				Link:        strings.TrimSpace(e.Link),
				Summary:     strings.TrimSpace(e.Description),
				PublishedAt: parseFeedTime(e.PubDate),
			}
			item.GUID = firstNonEmpty(strings.TrimSpace(e.GUID), item.Link, item.Title)
			if item.GUID == "" {
				continue
			}
			items = append(items, item)
		}
		return items, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(data, &atom); err == nil && len(atom.Entries) > 0 {
		items := make([]FeedItem, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			item := FeedItem{
				Title:       strings.TrimSpace(e.Title),
				Link:        atomHref(e.Links),
				Summary:     strings.TrimSpace(firstNonEmpty(e.Summary, e.Content)),
				PublishedAt: parseFeedTime(e.Updated),
			}
			item.GUID = firstNonEmpty(strings.TrimSpace(e.ID), item.Link, item.Title)
			if item.GUID == "" {
				continue
			}
			items = append(items, item)
		}
		return items, nil
	}

	return nil, fmt.Errorf("unrecognized feed format")
}

func atomHref(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}

var feedTimeFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range feedTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

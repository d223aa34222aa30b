package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Nairametrics</title>
    <item>
      <guid>https://nairametrics.com/cbn-rate-decision</guid>
      <title>CBN holds rates at 27.5%</title>
      <link>https://nairametrics.com/cbn-rate-decision</link>
      <description>The central bank kept its benchmark rate unchanged.</description>
      <pubDate>Tue, 26 Aug 2025 09:30:00 +0100</pubDate>
    </item>
    <item>
      <title>Naira gains on parallel market</title>
      <link>https://nairametrics.com/naira-gains</link>
      <description>NGN firmed against the dollar.</description>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>BCRA Updates</title>
  <entry>
    <id>tag:bcra,2025:comunicado-123</id>
    <title>BCRA ajusta tasas</title>
    <link rel="alternate" href="https://bcra.gob.ar/comunicado-123"/>
    <summary>El banco central ajustó la tasa de política monetaria.</summary>
    <updated>2025-08-26T12:00:00Z</updated>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	items, err := parseFeed([]byte(rssFixture))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "https://nairametrics.com/cbn-rate-decision", items[0].GUID)
	assert.Equal(t, "CBN holds rates at 27.5%", items[0].Title)
	assert.Equal(t, "The central bank kept its benchmark rate unchanged.", items[0].Summary)
	require.NotNil(t, items[0].PublishedAt)

	// No guid element: the link stands in as the stable id.
	assert.Equal(t, "https://nairametrics.com/naira-gains", items[1].GUID)
	assert.Nil(t, items[1].PublishedAt)
}

func TestParseAtom(t *testing.T) {
	items, err := parseFeed([]byte(atomFixture))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "tag:bcra,2025:comunicado-123", items[0].GUID)
	assert.Equal(t, "https://bcra.gob.ar/comunicado-123", items[0].Link)
	assert.NotEmpty(t, items[0].Summary)
	require.NotNil(t, items[0].PublishedAt)
}

func TestParseUnrecognizedFormat(t *testing.T) {
	_, err := parseFeed([]byte(`{"not": "xml"}`))
	assert.Error(t, err)
}

func TestFetchOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	items, err := NewFeedFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFeedFetcher().Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

package channelfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/httpretry"
)

const channelAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Sugar Talk</title>
 <author><name>Sugar Talk</name></author>
 <entry>
  <id>yt:video:v1</id>
  <yt:videoId>v1</yt:videoId>
  <yt:channelId>UC-small</yt:channelId>
  <title>GlucoShield Review 2026 - Does It Work?</title>
  <author><name>Sugar Talk</name></author>
  <published>2026-03-09T10:00:00+00:00</published>
  <updated>2026-03-09T11:00:00+00:00</updated>
  <media:group>
   <media:title>GlucoShield Review 2026 - Does It Work?</media:title>
   <media:description>Official site: https://glucoshield.com/?hop=sugartalk</media:description>
   <media:community>
    <media:starRating count="120" average="5.00" min="1" max="5"/>
    <media:statistics views="64000"/>
   </media:community>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:v0</id>
  <yt:videoId>v0</yt:videoId>
  <yt:channelId>UC-small</yt:channelId>
  <title>Java Burn | Is It Legit?</title>
  <published>2025-12-01T10:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:v2</id>
  <yt:videoId>v2</yt:videoId>
  <yt:channelId>UC-small</yt:channelId>
  <title>Review</title>
  <published>2026-03-09T12:00:00+00:00</published>
 </entry>
</feed>`

func newTestAdapter(srv *httptest.Server, channels ...Channel) *Adapter {
	a := New(Config{FeedURL: srv.URL + "/feeds/videos.xml", Channels: channels},
		httpretry.NewRetryClient(srv.Client(), 1, httpretry.WithBackoff(time.Millisecond, time.Millisecond)))
	a.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestAdapter_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("channel_id") != "UC-small" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(channelAtom))
	}))
	defer srv.Close()

	a := newTestAdapter(srv, Channel{ID: "UC-small", Subscribers: 8500}, Channel{ID: "UC-gone"})
	records, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1, "old entries and unusable titles are skipped; failed channel ignored")

	assert.Equal(t, opportunity.SourceYouTube, records[0].Kind)
	assert.Equal(t, opportunity.YouTubeMention{
		ProductNameHint: "GlucoShield",
		VendorHint:      "glucoshield.com",
		ChannelID:       "UC-small",
		ChannelName:     "Sugar Talk",
		SubscriberCount: 8500,
		ViewCount:       64000,
		PublishedAt:     time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		VideoID:         "v1",
		VideoTitle:      "GlucoShield Review 2026 - Does It Work?",
	}, *records[0].YouTube)
}

func TestAdapter_AllFeedsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestAdapter(srv, Channel{ID: "UC-a"}, Channel{ID: "UC-b"}).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestAdapter_InvalidFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml"))
	}))
	defer srv.Close()

	_, err := newTestAdapter(srv, Channel{ID: "UC-a"}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestAdapter_NoChannels(t *testing.T) {
	a := New(Config{}, nil)
	records, err := a.Fetch(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, DefaultFeedURL, a.cfg.FeedURL)
}

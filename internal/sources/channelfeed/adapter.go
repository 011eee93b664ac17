// Package channelfeed watches a fixed list of known promoter channels through
// their public YouTube Atom feeds, which need no API quota.
package channelfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/httpretry"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
	"github.com/ignite/smart-affiliate/internal/sources"
)

// DefaultFeedURL is the public channel feed endpoint.
const DefaultFeedURL = "https://www.youtube.com/feeds/videos.xml"

// Channel is a watched channel. Feeds carry no subscriber count, so it is
// configured alongside the ID.
type Channel struct {
	ID          string
	Subscribers int64
}

// Config controls which channels are watched.
type Config struct {
	FeedURL  string
	Channels []Channel
	Lookback time.Duration
}

// Adapter implements sources.Adapter over channel feeds.
type Adapter struct {
	cfg    Config
	client httpretry.HTTPDoer
	parser *gofeed.Parser
	now    func() time.Time
	log    *logger.Logger
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates the adapter. A nil client gets a retrying client with default settings.
func New(cfg Config, client httpretry.HTTPDoer) *Adapter {
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultFeedURL
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 7 * 24 * time.Hour
	}
	if client == nil {
		client = httpretry.NewRetryClient(&http.Client{Timeout: 20 * time.Second}, 2)
	}
	return &Adapter{
		cfg:    cfg,
		client: client,
		parser: gofeed.NewParser(),
		now:    time.Now,
		log:    logger.New("sources.channelfeed"),
	}
}

// Name implements sources.Adapter.
func (a *Adapter) Name() string { return "channel-feeds" }

// Kind implements sources.Adapter.
func (a *Adapter) Kind() opportunity.SourceKind { return opportunity.SourceYouTube }

// Fetch reads every channel feed. A channel whose feed fails is skipped; the
// fetch fails only when no feed could be read.
func (a *Adapter) Fetch(ctx context.Context) ([]opportunity.RawRecord, error) {
	var records []opportunity.RawRecord
	var lastErr error
	failed := 0
	cutoff := a.now().Add(-a.cfg.Lookback)

	for _, ch := range a.cfg.Channels {
		feed, err := a.fetchFeed(ctx, ch.ID)
		if err != nil {
			failed++
			lastErr = err
			a.log.Warn("channel feed failed", "channel", ch.ID, "error", err)
			continue
		}
		for _, item := range feed.Items {
			m, ok := a.mention(feed, item, ch)
			if !ok || (!m.PublishedAt.IsZero() && m.PublishedAt.Before(cutoff)) {
				continue
			}
			records = append(records, opportunity.FromYouTube(m))
		}
	}

	if len(a.cfg.Channels) > 0 && failed == len(a.cfg.Channels) {
		return nil, fmt.Errorf("channelfeed: all %d feeds failed: %w", failed, lastErr)
	}
	return records, nil
}

func (a *Adapter) fetchFeed(ctx context.Context, channelID string) (*gofeed.Feed, error) {
	u, err := url.Parse(a.cfg.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("channel_id", channelID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func (a *Adapter) mention(feed *gofeed.Feed, item *gofeed.Item, ch Channel) (opportunity.YouTubeMention, bool) {
	name := sources.ProductHintFromTitle(item.Title)
	if name == "" {
		return opportunity.YouTubeMention{}, false
	}

	channelName := feed.Title
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		channelName = item.Authors[0].Name
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	media := mediaGroup(item)
	return opportunity.YouTubeMention{
		ProductNameHint: name,
		VendorHint:      sources.VendorFromDescription(childValue(media, "description")),
		ChannelID:       firstNonEmpty(extValue(item, "yt", "channelId"), ch.ID),
		ChannelName:     channelName,
		SubscriberCount: ch.Subscribers,
		ViewCount:       viewCount(media),
		PublishedAt:     published,
		VideoID:         extValue(item, "yt", "videoId"),
		VideoTitle:      item.Title,
	}, true
}

func mediaGroup(item *gofeed.Item) *ext.Extension {
	groups := item.Extensions["media"]["group"]
	if len(groups) == 0 {
		return nil
	}
	return &groups[0]
}

func childValue(e *ext.Extension, name string) string {
	if e == nil || len(e.Children[name]) == 0 {
		return ""
	}
	return e.Children[name][0].Value
}

// viewCount reads media:group/media:community/media:statistics@views.
func viewCount(group *ext.Extension) int64 {
	if group == nil || len(group.Children["community"]) == 0 {
		return 0
	}
	stats := group.Children["community"][0].Children["statistics"]
	if len(stats) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(stats[0].Attrs["views"], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func extValue(item *gofeed.Item, ns, name string) string {
	vals := item.Extensions[ns][name]
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0].Value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

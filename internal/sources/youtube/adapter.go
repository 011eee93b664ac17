// Package youtube discovers product mentions through the YouTube Data API:
// search.list finds recent promotional videos, then videos.list and
// channels.list fill in view and subscriber counts.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
	"github.com/ignite/smart-affiliate/internal/sources"
)

// ErrNoCredentials is returned when neither an API key nor an access token is configured.
var ErrNoCredentials = errors.New("youtube: no api key or access token configured")

const (
	defaultMaxResults = 25
	defaultLookback   = 72 * time.Hour
	batchSize         = 50
)

// Config controls the search sweep.
type Config struct {
	APIKey      string
	AccessToken string
	Queries     []string
	MaxResults  int64
	Lookback    time.Duration
	RegionCode  string
}

// Adapter implements sources.Adapter for YouTube search.
type Adapter struct {
	cfg Config
	svc *ytapi.Service
	cb  *gobreaker.CircuitBreaker
	now func() time.Time
	log *logger.Logger
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates the adapter. An access token takes precedence over an API key.
// Extra client options are appended last, so tests can point the client at a
// local server.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Adapter, error) {
	var clientOpts []option.ClientOption
	switch {
	case cfg.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	case cfg.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, ErrNoCredentials
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := ytapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}

	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}

	log := logger.New("sources.youtube")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "youtube-data-api",
		MaxRequests: 2,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var ce *clientError
			return err == nil || errors.As(err, &ce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Adapter{cfg: cfg, svc: svc, cb: cb, now: time.Now, log: log}, nil
}

// Name implements sources.Adapter.
func (a *Adapter) Name() string { return "youtube" }

// Kind implements sources.Adapter.
func (a *Adapter) Kind() opportunity.SourceKind { return opportunity.SourceYouTube }

// BreakerState reports the circuit breaker state for health output.
func (a *Adapter) BreakerState() string { return a.cb.State().String() }

type hit struct {
	videoID      string
	channelID    string
	channelTitle string
	title        string
	description  string
	publishedAt  time.Time
}

// Fetch runs every configured query. Individual query failures are logged;
// the fetch fails only when every query failed.
func (a *Adapter) Fetch(ctx context.Context) ([]opportunity.RawRecord, error) {
	if len(a.cfg.Queries) == 0 {
		return nil, nil
	}

	var hits []hit
	seen := make(map[string]bool)
	var lastErr error
	failed := 0
	for _, q := range a.cfg.Queries {
		found, err := a.search(ctx, q)
		if err != nil {
			failed++
			lastErr = err
			a.log.Warn("search failed", "query", q, "error", err)
			continue
		}
		for _, h := range found {
			if seen[h.videoID] {
				continue
			}
			seen[h.videoID] = true
			hits = append(hits, h)
		}
	}
	if failed == len(a.cfg.Queries) {
		return nil, fmt.Errorf("youtube: all %d queries failed: %w", failed, lastErr)
	}

	views, descriptions, err := a.videoDetails(ctx, hits)
	if err != nil {
		return nil, err
	}
	subscribers, err := a.channelSubscribers(ctx, hits)
	if err != nil {
		return nil, err
	}

	records := make([]opportunity.RawRecord, 0, len(hits))
	for _, h := range hits {
		name := sources.ProductHintFromTitle(h.title)
		if name == "" {
			a.log.Debug("no product hint in title", "video", h.videoID, "title", h.title)
			continue
		}
		desc := h.description
		if full, ok := descriptions[h.videoID]; ok && full != "" {
			desc = full
		}
		records = append(records, opportunity.FromYouTube(opportunity.YouTubeMention{
			ProductNameHint: name,
			VendorHint:      sources.VendorFromDescription(desc),
			ChannelID:       h.channelID,
			ChannelName:     h.channelTitle,
			SubscriberCount: subscribers[h.channelID],
			ViewCount:       views[h.videoID],
			PublishedAt:     h.publishedAt,
			VideoID:         h.videoID,
			VideoTitle:      h.title,
		}))
	}
	return records, nil
}

func (a *Adapter) search(ctx context.Context, query string) ([]hit, error) {
	var resp *ytapi.SearchListResponse
	err := a.execute("search.list", func() error {
		call := a.svc.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			Order("date").
			MaxResults(a.cfg.MaxResults).
			PublishedAfter(a.now().Add(-a.cfg.Lookback).UTC().Format(time.RFC3339)).
			Context(ctx)
		if a.cfg.RegionCode != "" {
			call = call.RegionCode(a.cfg.RegionCode)
		}
		r, err := call.Do()
		resp = r
		return err
	})
	if err != nil {
		return nil, err
	}

	hits := make([]hit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		hits = append(hits, hit{
			videoID:      item.Id.VideoId,
			channelID:    item.Snippet.ChannelId,
			channelTitle: item.Snippet.ChannelTitle,
			title:        item.Snippet.Title,
			description:  item.Snippet.Description,
			publishedAt:  published,
		})
	}
	return hits, nil
}

func (a *Adapter) videoDetails(ctx context.Context, hits []hit) (map[string]int64, map[string]string, error) {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.videoID)
	}

	views := make(map[string]int64, len(ids))
	descriptions := make(map[string]string, len(ids))
	for _, batch := range chunk(ids, batchSize) {
		var resp *ytapi.VideoListResponse
		err := a.execute("videos.list", func() error {
			r, err := a.svc.Videos.List([]string{"snippet", "statistics"}).Id(batch...).Context(ctx).Do()
			resp = r
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		for _, v := range resp.Items {
			if v.Statistics != nil {
				views[v.Id] = int64(v.Statistics.ViewCount)
			}
			if v.Snippet != nil {
				descriptions[v.Id] = v.Snippet.Description
			}
		}
	}
	return views, descriptions, nil
}

func (a *Adapter) channelSubscribers(ctx context.Context, hits []hit) (map[string]int64, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, h := range hits {
		if h.channelID != "" && !seen[h.channelID] {
			seen[h.channelID] = true
			ids = append(ids, h.channelID)
		}
	}

	subs := make(map[string]int64, len(ids))
	for _, batch := range chunk(ids, batchSize) {
		var resp *ytapi.ChannelListResponse
		err := a.execute("channels.list", func() error {
			r, err := a.svc.Channels.List([]string{"statistics"}).Id(batch...).Context(ctx).Do()
			resp = r
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, ch := range resp.Items {
			if ch.Statistics == nil || ch.Statistics.HiddenSubscriberCount {
				continue
			}
			subs[ch.Id] = int64(ch.Statistics.SubscriberCount)
		}
	}
	return subs, nil
}

// execute runs fn through the circuit breaker. Client errors other than 429
// do not count against the breaker.
func (a *Adapter) execute(operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		err := fn()
		var apiErr *googleapi.Error
		if err != nil && errors.As(err, &apiErr) &&
			apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
			return nil, &clientError{err: err}
		}
		return nil, err
	})

	var ce *clientError
	if errors.As(err, &ce) {
		return ce.err
	}
	if err != nil {
		return fmt.Errorf("youtube %s (breaker %s): %w", operation, a.cb.State().String(), err)
	}
	return nil
}

// clientError marks failures that should not trip the breaker.
type clientError struct {
	err error
}

func (e *clientError) Error() string { return e.err.Error() }

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

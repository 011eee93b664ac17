// Package adstransparency discovers advertisers running ads for watched
// products through a Google Ads Transparency Center search API (SerpApi's
// google_ads_transparency_center engine wire format).
package adstransparency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/httpretry"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
	"github.com/ignite/smart-affiliate/internal/sources"
)

// Defaults for the search API and spend heuristics.
const (
	DefaultBaseURL            = "https://serpapi.com/search.json"
	DefaultEngine             = "google_ads_transparency_center"
	DefaultActiveWindow       = 30 * 24 * time.Hour
	DefaultCostPerCreativeDay = 25.0
)

// Config controls the ads sweep. Each query is a product name to look up.
type Config struct {
	APIKey             string
	BaseURL            string
	Engine             string
	Region             string
	Queries            []string
	ActiveWindow       time.Duration
	CostPerCreativeDay float64
}

type creative struct {
	AdvertiserID   string `json:"advertiser_id"`
	Advertiser     string `json:"advertiser"`
	CreativeID     string `json:"ad_creative_id"`
	Format         string `json:"format"`
	TargetDomain   string `json:"target_domain"`
	FirstShown     int64  `json:"first_shown"`
	LastShown      int64  `json:"last_shown"`
	TotalDaysShown int    `json:"total_days_shown"`
}

type searchResponse struct {
	Error       string     `json:"error"`
	AdCreatives []creative `json:"ad_creatives"`
}

// Adapter implements sources.Adapter for ads discovery.
type Adapter struct {
	cfg    Config
	client httpretry.HTTPDoer
	now    func() time.Time
	log    *logger.Logger
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates the adapter. A nil client gets a retrying client.
func New(cfg Config, client httpretry.HTTPDoer) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Engine == "" {
		cfg.Engine = DefaultEngine
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = DefaultActiveWindow
	}
	if cfg.CostPerCreativeDay <= 0 {
		cfg.CostPerCreativeDay = DefaultCostPerCreativeDay
	}
	if client == nil {
		client = httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3)
	}
	return &Adapter{cfg: cfg, client: client, now: time.Now, log: logger.New("sources.adstransparency")}
}

// Name implements sources.Adapter.
func (a *Adapter) Name() string { return "ads-transparency" }

// Kind implements sources.Adapter.
func (a *Adapter) Kind() opportunity.SourceKind { return opportunity.SourceAds }

// Fetch looks up every query and emits one record per (query, advertiser).
func (a *Adapter) Fetch(ctx context.Context) ([]opportunity.RawRecord, error) {
	var records []opportunity.RawRecord
	var lastErr error
	failed := 0

	for _, q := range a.cfg.Queries {
		creatives, err := a.search(ctx, q)
		if err != nil {
			failed++
			lastErr = err
			a.log.Warn("ads search failed", "query", q, "error", err)
			continue
		}
		for _, rec := range a.summarize(q, creatives) {
			records = append(records, opportunity.FromAds(rec))
		}
	}

	if len(a.cfg.Queries) > 0 && failed == len(a.cfg.Queries) {
		return nil, fmt.Errorf("adstransparency: all %d queries failed: %w", failed, lastErr)
	}
	return records, nil
}

func (a *Adapter) search(ctx context.Context, query string) ([]creative, error) {
	params := url.Values{}
	params.Set("engine", a.cfg.Engine)
	params.Set("text", query)
	params.Set("api_key", a.cfg.APIKey)
	if a.cfg.Region != "" {
		params.Set("region", a.cfg.Region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != "" {
		return nil, fmt.Errorf("search api status %d: %s", resp.StatusCode, parsed.Error)
	}
	return parsed.AdCreatives, nil
}

type advertiserStats struct {
	name        string
	domains     map[string]int
	formats     map[string]bool
	active      int
	activeDays  int
	longestDays int
	first       int
}

// summarize groups creatives by advertiser and derives the activity metrics.
func (a *Adapter) summarize(query string, creatives []creative) []opportunity.AdvertiserRecord {
	cutoff := a.now().Add(-a.cfg.ActiveWindow).Unix()
	byAdvertiser := make(map[string]*advertiserStats)

	for i, c := range creatives {
		key := c.AdvertiserID
		if key == "" {
			key = opportunity.NormalizeIdentity(c.Advertiser)
		}
		if key == "" {
			continue
		}
		st, ok := byAdvertiser[key]
		if !ok {
			st = &advertiserStats{name: c.Advertiser, domains: map[string]int{}, formats: map[string]bool{}, first: i}
			byAdvertiser[key] = st
		}
		if d := sources.VendorFromDomain(c.TargetDomain); d != "" {
			st.domains[d]++
		}
		if c.Format != "" {
			st.formats[c.Format] = true
		}
		days := campaignDays(c)
		st.longestDays = max(st.longestDays, days)
		if c.LastShown >= cutoff {
			st.active++
			st.activeDays += min(days, int(a.cfg.ActiveWindow.Hours()/24))
		}
	}

	stats := make([]*advertiserStats, 0, len(byAdvertiser))
	for _, st := range byAdvertiser {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].first < stats[j].first })

	out := make([]opportunity.AdvertiserRecord, 0, len(stats))
	for _, st := range stats {
		out = append(out, opportunity.AdvertiserRecord{
			ProductNameHint:       query,
			VendorHint:            topDomain(st.domains),
			AdvertiserName:        st.name,
			Domain:                topDomain(st.domains),
			TotalActiveProducts:   st.active,
			EstimatedMonthlySpend: float64(st.activeDays) * a.cfg.CostPerCreativeDay,
			CampaignDurationDays:  st.longestDays,
			TargetingComplexity:   targeting(len(st.formats), st.active),
		})
	}
	return out
}

func campaignDays(c creative) int {
	if c.TotalDaysShown > 0 {
		return c.TotalDaysShown
	}
	if c.FirstShown > 0 && c.LastShown >= c.FirstShown {
		return int((c.LastShown-c.FirstShown)/86400) + 1
	}
	return 0
}

// targeting infers complexity from creative format variety and volume.
func targeting(formats, active int) opportunity.TargetingComplexity {
	switch {
	case formats >= 3 || active >= 10:
		return opportunity.TargetingSophisticated
	case formats == 2 || active >= 4:
		return opportunity.TargetingModerate
	default:
		return opportunity.TargetingBasic
	}
}

// topDomain returns the most frequent domain; ties go to the alphabetically first.
func topDomain(domains map[string]int) string {
	best, bestN := "", 0
	for d, n := range domains {
		if n > bestN || (n == bestN && d < best) {
			best, bestN = d, n
		}
	}
	return best
}

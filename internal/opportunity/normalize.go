package opportunity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Defaults applied to every freshly normalized product. Adapters never supply these.
const (
	DefaultPlatform     = "unknown"
	DefaultEstimatedCPA = 45.0
	DefaultImageURL     = "https://placehold.co/600x400?text=Product"

	// SmallExclusiveSubscriberCeiling is the largest subscriber count still
	// classified as a small-exclusive promoting channel.
	SmallExclusiveSubscriberCeiling = 10000
)

// SeenRegistry tracks channel and advertiser keys observed in earlier runs.
type SeenRegistry interface {
	HasSeen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string) error
}

// Normalizer converts source-specific raw records into canonical products.
type Normalizer struct {
	registry SeenRegistry
	newID    func() string
	now      func() time.Time
}

// NormalizerOption customizes a Normalizer.
type NormalizerOption func(*Normalizer)

// WithRegistry injects the seen-channel/advertiser registry.
func WithRegistry(r SeenRegistry) NormalizerOption {
	return func(n *Normalizer) { n.registry = r }
}

// WithIDGenerator overrides product ID generation.
func WithIDGenerator(fn func() string) NormalizerOption {
	return func(n *Normalizer) { n.newID = fn }
}

// WithNormalizerClock overrides the clock used when a record carries no timestamp.
func WithNormalizerClock(fn func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = fn }
}

// NewNormalizer creates a Normalizer. Without a registry, first-sighting counters stay zero.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one raw record. Records without identity fields return a
// *MalformedRecordError and must be dropped by the caller.
func (n *Normalizer) Normalize(ctx context.Context, raw RawRecord) (*DiscoveredProduct, error) {
	switch raw.Kind {
	case SourceYouTube:
		if raw.YouTube == nil {
			return nil, &MalformedRecordError{Kind: raw.Kind, Reason: "missing youtube payload"}
		}
		return n.normalizeYouTube(ctx, *raw.YouTube)
	case SourceAds:
		if raw.Ads == nil {
			return nil, &MalformedRecordError{Kind: raw.Kind, Reason: "missing ads payload"}
		}
		return n.normalizeAds(ctx, *raw.Ads)
	default:
		return nil, &MalformedRecordError{Kind: raw.Kind, Reason: "unknown source kind"}
	}
}

func (n *Normalizer) normalizeYouTube(ctx context.Context, m YouTubeMention) (*DiscoveredProduct, error) {
	name := cleanName(m.ProductNameHint)
	if name == "" {
		return nil, &MalformedRecordError{Kind: SourceYouTube, Reason: "missing product name"}
	}
	vendor := firstNonEmpty(m.VendorHint, m.ChannelName)
	if vendor == "" {
		return nil, &MalformedRecordError{Kind: SourceYouTube, Reason: "missing vendor and channel"}
	}

	observedAt := n.now()
	publishedAt := m.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = observedAt
	}

	channel := PromotingChannel{
		ID:          firstNonEmpty(strings.TrimSpace(m.ChannelID), NormalizeIdentity(m.ChannelName)),
		Name:        strings.TrimSpace(m.ChannelName),
		Subscribers: m.SubscriberCount,
		Type:        ClassifyChannel(m.SubscriberCount),
	}

	views := m.ViewCount
	if views < 0 {
		views = 0
	}

	yt := &YouTubeData{
		TotalMentions:   1,
		TotalViews:      views,
		AverageViews:    float64(views),
		LatestMentionAt: publishedAt,
	}
	if channel.ID != "" {
		yt.Channels = []PromotingChannel{channel}
		if n.firstSighting(ctx, "channel:"+channel.ID) {
			yt.NewChannels = 1
		}
	}

	p := n.base(name, vendor, SourceYouTube, observedAt)
	p.YouTubeData = yt
	return p, nil
}

func (n *Normalizer) normalizeAds(ctx context.Context, a AdvertiserRecord) (*DiscoveredProduct, error) {
	name := cleanName(a.ProductNameHint)
	if name == "" {
		return nil, &MalformedRecordError{Kind: SourceAds, Reason: "missing product name"}
	}
	vendor := firstNonEmpty(a.VendorHint, a.AdvertiserName)
	if vendor == "" {
		return nil, &MalformedRecordError{Kind: SourceAds, Reason: "missing vendor and advertiser"}
	}

	complexity := a.TargetingComplexity
	if _, ok := targetingRanks[complexity]; !ok {
		complexity = TargetingBasic
	}

	ads := &AdsData{
		TotalActiveAds:      max(a.TotalActiveProducts, 0),
		Observations:        1,
		EstimatedSpend:      max(a.EstimatedMonthlySpend, 0),
		AverageCampaignDays: float64(max(a.CampaignDurationDays, 0)),
		TargetingComplexity: complexity,
	}
	advertiser := strings.TrimSpace(a.AdvertiserName)
	if advertiser != "" {
		ads.Advertisers = []Advertiser{{Name: advertiser, Domain: strings.ToLower(strings.TrimSpace(a.Domain))}}
		if n.firstSighting(ctx, "advertiser:"+NormalizeIdentity(advertiser)) {
			ads.NewAdvertisers = 1
		}
	}

	p := n.base(name, vendor, SourceAds, n.now())
	p.AdsData = ads
	return p, nil
}

// base stamps discovery time with the observation time, never the upstream
// publish time, so recency is comparable across sources.
func (n *Normalizer) base(name, vendor string, kind SourceKind, seenAt time.Time) *DiscoveredProduct {
	return &DiscoveredProduct{
		ID:                    n.newID(),
		ProductName:           name,
		Vendor:                vendor,
		Platform:              DefaultPlatform,
		EstimatedCPA:          DefaultEstimatedCPA,
		ImageURL:              DefaultImageURL,
		DiscoveredAt:          seenAt,
		LastSeenAt:            seenAt,
		DiscoverySource:       DiscoverySource(kind),
		DiscoveryFrequency:    1,
		ExclusivityLevel:      LevelPublic,
		ExclusivityIndicators: []string{},
		Recommendations:       []Recommendation{},
	}
}

// firstSighting marks key as seen and reports whether it was new. Registry
// errors are treated as "already seen" so they never fail normalization.
func (n *Normalizer) firstSighting(ctx context.Context, key string) bool {
	if n.registry == nil {
		return false
	}
	seen, err := n.registry.HasSeen(ctx, key)
	if err != nil || seen {
		return false
	}
	if err := n.registry.MarkSeen(ctx, key); err != nil {
		return false
	}
	return true
}

// ClassifyChannel maps a subscriber count to a channel type.
func ClassifyChannel(subscribers int64) ChannelType {
	switch {
	case subscribers <= 0:
		return ChannelUnknown
	case subscribers <= SmallExclusiveSubscriberCeiling:
		return ChannelSmallExclusive
	default:
		return ChannelMainstream
	}
}

func cleanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = cleanName(v); v != "" {
			return v
		}
	}
	return ""
}

package opportunity

import (
	"slices"
	"strings"
	"time"
)

// ========== Discovery Enums ==========

// SourceKind identifies the channel family a raw observation came from.
type SourceKind string

const (
	SourceYouTube SourceKind = "youtube-monitoring"
	SourceAds     SourceKind = "ads-discovery"
)

// DiscoverySource records which channel families have observed a product.
type DiscoverySource string

const (
	DiscoveredViaYouTube DiscoverySource = "youtube-monitoring"
	DiscoveredViaAds     DiscoverySource = "ads-discovery"
	DiscoveredViaBoth    DiscoverySource = "both"
)

// ExclusivityLevel is an ordered tier describing how under-promoted a product looks.
type ExclusivityLevel string

const (
	LevelPublic         ExclusivityLevel = "public"
	LevelSemiExclusive  ExclusivityLevel = "semi-exclusive"
	LevelExclusive      ExclusivityLevel = "exclusive"
	LevelSuperExclusive ExclusivityLevel = "super-exclusive"
)

var levelRanks = map[ExclusivityLevel]int{
	LevelPublic:         0,
	LevelSemiExclusive:  1,
	LevelExclusive:      2,
	LevelSuperExclusive: 3,
}

// Rank returns the tier's position in the ordering. Unknown values rank as public.
func (l ExclusivityLevel) Rank() int {
	return levelRanks[l]
}

// Valid reports whether l is one of the four known tiers.
func (l ExclusivityLevel) Valid() bool {
	_, ok := levelRanks[l]
	return ok
}

// MaxLevel returns the higher of two tiers.
func MaxLevel(a, b ExclusivityLevel) ExclusivityLevel {
	if !a.Valid() {
		a = LevelPublic
	}
	if !b.Valid() {
		b = LevelPublic
	}
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// TargetingComplexity describes how elaborate an advertiser's targeting setup appears.
type TargetingComplexity string

const (
	TargetingBasic         TargetingComplexity = "basic"
	TargetingModerate      TargetingComplexity = "moderate"
	TargetingSophisticated TargetingComplexity = "sophisticated"
)

var targetingRanks = map[TargetingComplexity]int{
	TargetingBasic:         1,
	TargetingModerate:      2,
	TargetingSophisticated: 3,
}

func maxTargeting(a, b TargetingComplexity) TargetingComplexity {
	if targetingRanks[b] > targetingRanks[a] {
		return b
	}
	return a
}

// ChannelType classifies a promoting YouTube channel.
type ChannelType string

const (
	ChannelSmallExclusive ChannelType = "small-exclusive"
	ChannelMainstream     ChannelType = "mainstream"
	ChannelUnknown        ChannelType = "unknown"
)

// Priority tells the operator how urgently a recommendation should be acted on.
type Priority string

const (
	PriorityImmediate   Priority = "immediate"
	PriorityMonitor     Priority = "monitor"
	PriorityInvestigate Priority = "investigate"
)

// ========== Raw Source Records ==========

// YouTubeMention is one video observed promoting a product.
type YouTubeMention struct {
	ProductNameHint string    `json:"productNameHint"`
	VendorHint      string    `json:"vendorHint,omitempty"`
	ChannelID       string    `json:"channelId"`
	ChannelName     string    `json:"channelName"`
	SubscriberCount int64     `json:"subscriberCount"`
	ViewCount       int64     `json:"viewCount"`
	PublishedAt     time.Time `json:"publishedAt"`
	VideoID         string    `json:"videoId,omitempty"`
	VideoTitle      string    `json:"videoTitle,omitempty"`
}

// AdvertiserRecord is one advertiser observed running ads for a product.
type AdvertiserRecord struct {
	ProductNameHint       string              `json:"productNameHint"`
	VendorHint            string              `json:"vendorHint,omitempty"`
	AdvertiserName        string              `json:"advertiserName"`
	Domain                string              `json:"domain"`
	TotalActiveProducts   int                 `json:"totalActiveProducts"`
	EstimatedMonthlySpend float64             `json:"estimatedMonthlySpend"`
	CampaignDurationDays  int                 `json:"campaignDurationDays"`
	TargetingComplexity   TargetingComplexity `json:"targetingComplexity"`
}

// RawRecord carries exactly one source-specific payload into the Normalizer.
type RawRecord struct {
	Kind    SourceKind        `json:"kind"`
	YouTube *YouTubeMention   `json:"youtube,omitempty"`
	Ads     *AdvertiserRecord `json:"ads,omitempty"`
}

// FromYouTube wraps a mention as a raw record.
func FromYouTube(m YouTubeMention) RawRecord {
	return RawRecord{Kind: SourceYouTube, YouTube: &m}
}

// FromAds wraps an advertiser observation as a raw record.
func FromAds(a AdvertiserRecord) RawRecord {
	return RawRecord{Kind: SourceAds, Ads: &a}
}

// ========== Canonical Entity ==========

// PromotingChannel is a channel that has mentioned the product.
type PromotingChannel struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Subscribers int64       `json:"subscribers"`
	Type        ChannelType `json:"type"`
}

// YouTubeData aggregates everything the YouTube channel family has seen for a product.
type YouTubeData struct {
	TotalMentions   int                `json:"totalMentions"`
	TotalViews      int64              `json:"totalViews"`
	AverageViews    float64            `json:"averageViews"`
	Channels        []PromotingChannel `json:"channels"`
	NewChannels     int                `json:"newChannels"`
	LatestMentionAt time.Time          `json:"latestMentionAt"`
}

// ChannelCount returns the number of distinct promoting channels.
func (y *YouTubeData) ChannelCount() int {
	if y == nil {
		return 0
	}
	return len(y.Channels)
}

// Advertiser is an advertiser observed running ads for the product.
type Advertiser struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// AdsData aggregates everything the ads channel family has seen for a product.
type AdsData struct {
	TotalActiveAds      int                 `json:"totalActiveAds"`
	Observations        int                 `json:"observations"`
	EstimatedSpend      float64             `json:"estimatedSpend"`
	AverageCampaignDays float64             `json:"averageCampaignDays"`
	TargetingComplexity TargetingComplexity `json:"targetingComplexity"`
	Advertisers         []Advertiser        `json:"advertisers"`
	NewAdvertisers      int                 `json:"newAdvertisers"`
}

// Recommendation is a prioritized, explainable action for a product.
type Recommendation struct {
	Priority        Priority `json:"priority"`
	Action          string   `json:"action"`
	Reasoning       string   `json:"reasoning"`
	ConfidenceLevel int      `json:"confidenceLevel"`
}

// ScoreSet holds every derived score. It is always computed and applied as a unit.
type ScoreSet struct {
	HotScore         float64 `json:"hotScore"`
	ExclusivityScore float64 `json:"exclusivityScore"`
	CompetitionScore float64 `json:"competitionScore"`
	OpportunityScore float64 `json:"opportunityScore"`
}

// DiscoveredProduct is the canonical record for one real-world product.
type DiscoveredProduct struct {
	ID           string  `json:"id"`
	ProductName  string  `json:"productName"`
	Vendor       string  `json:"vendor"`
	Platform     string  `json:"platform"`
	EstimatedCPA float64 `json:"estimatedCpa"`
	ImageURL     string  `json:"imageUrl"`

	DiscoveredAt       time.Time       `json:"discoveredAt"`
	LastSeenAt         time.Time       `json:"lastSeenAt"`
	DiscoverySource    DiscoverySource `json:"discoverySource"`
	DiscoveryFrequency int             `json:"discoveryFrequency"`

	ExclusivityLevel      ExclusivityLevel `json:"exclusivityLevel"`
	ExclusivityIndicators []string         `json:"exclusivityIndicators"`

	YouTubeData *YouTubeData `json:"youtubeData,omitempty"`
	AdsData     *AdsData     `json:"adsData,omitempty"`

	HotScore         float64 `json:"hotScore"`
	ExclusivityScore float64 `json:"exclusivityScore"`
	CompetitionScore float64 `json:"competitionScore"`
	OpportunityScore float64 `json:"opportunityScore"`

	Recommendations []Recommendation `json:"recommendations"`
}

// Key returns the product's dedupe key.
func (p *DiscoveredProduct) Key() string {
	return DedupeKey(p.ProductName, p.Vendor)
}

// Scores returns the currently applied score set.
func (p *DiscoveredProduct) Scores() ScoreSet {
	return ScoreSet{
		HotScore:         p.HotScore,
		ExclusivityScore: p.ExclusivityScore,
		CompetitionScore: p.CompetitionScore,
		OpportunityScore: p.OpportunityScore,
	}
}

// MentionCount returns total YouTube mentions, zero when YouTube has not observed the product.
func (p *DiscoveredProduct) MentionCount() int {
	if p.YouTubeData == nil {
		return 0
	}
	return p.YouTubeData.TotalMentions
}

// ActiveAdCount returns total active ads, zero when ads discovery has not observed the product.
func (p *DiscoveredProduct) ActiveAdCount() int {
	if p.AdsData == nil {
		return 0
	}
	return p.AdsData.TotalActiveAds
}

// Clone returns a deep copy so merges never alias their inputs.
func (p *DiscoveredProduct) Clone() *DiscoveredProduct {
	if p == nil {
		return nil
	}
	cp := *p
	cp.ExclusivityIndicators = slices.Clone(p.ExclusivityIndicators)
	cp.Recommendations = slices.Clone(p.Recommendations)
	if p.YouTubeData != nil {
		cp.YouTubeData = cloneYouTube(p.YouTubeData)
	}
	if p.AdsData != nil {
		cp.AdsData = cloneAds(p.AdsData)
	}
	return &cp
}

// NormalizeIdentity lowercases, trims and collapses inner whitespace.
func NormalizeIdentity(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// DedupeKey builds the case-insensitive (productName, vendor) key.
func DedupeKey(productName, vendor string) string {
	return NormalizeIdentity(productName) + "|" + NormalizeIdentity(vendor)
}

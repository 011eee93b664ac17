package opportunity

import (
	"slices"
	"sort"
	"time"
)

// Merge folds incoming into existing and returns a new record; neither input is
// modified. A nil existing makes incoming the canonical record.
//
// Frequencies add (a freshly normalized record contributes 1), sub-record counts
// add, averages are recomputed as means weighted by each side's observation
// count, indicators union, and the earlier discoveredAt wins.
func Merge(existing, incoming *DiscoveredProduct) *DiscoveredProduct {
	if incoming == nil {
		return existing.Clone()
	}
	if existing == nil {
		out := incoming.Clone()
		if out.DiscoveryFrequency < 1 {
			out.DiscoveryFrequency = 1
		}
		return out
	}

	first, second := existing, incoming
	if incoming.DiscoveredAt.Before(existing.DiscoveredAt) {
		first, second = incoming, existing
	}

	out := existing.Clone()
	out.DiscoveryFrequency = max(existing.DiscoveryFrequency, 1) + max(incoming.DiscoveryFrequency, 1)
	out.DiscoverySource = mergeSource(existing.DiscoverySource, incoming.DiscoverySource)
	out.DiscoveredAt = first.DiscoveredAt
	out.LastSeenAt = latest(existing.LastSeenAt, incoming.LastSeenAt)

	out.Vendor = preferLonger(first.Vendor, second.Vendor)
	out.Platform = mergePlatform(first.Platform, second.Platform)

	out.ExclusivityLevel = MaxLevel(existing.ExclusivityLevel, incoming.ExclusivityLevel)
	out.ExclusivityIndicators = unionStrings(existing.ExclusivityIndicators, incoming.ExclusivityIndicators)

	out.YouTubeData = mergeYouTube(existing.YouTubeData, incoming.YouTubeData)
	out.AdsData = mergeAds(existing.AdsData, incoming.AdsData)
	return out
}

func mergeSource(a, b DiscoverySource) DiscoverySource {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case a == b:
		return a
	default:
		return DiscoveredViaBoth
	}
}

// preferLonger keeps the longer non-empty spelling; ties go to first (first-seen).
func preferLonger(first, second string) string {
	if len(second) > len(first) {
		return second
	}
	if first == "" {
		return second
	}
	return first
}

// mergePlatform treats the default placeholder as empty so any real platform wins.
func mergePlatform(first, second string) string {
	if first == DefaultPlatform {
		first = ""
	}
	if second == DefaultPlatform {
		second = ""
	}
	if p := preferLonger(first, second); p != "" {
		return p
	}
	return DefaultPlatform
}

func mergeYouTube(a, b *YouTubeData) *YouTubeData {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		return cloneYouTube(b)
	}
	if b == nil {
		return cloneYouTube(a)
	}

	out := &YouTubeData{
		TotalMentions:   a.TotalMentions + b.TotalMentions,
		TotalViews:      a.TotalViews + b.TotalViews,
		AverageViews:    weightedMean(a.AverageViews, a.TotalMentions, b.AverageViews, b.TotalMentions),
		NewChannels:     a.NewChannels + b.NewChannels,
		LatestMentionAt: latest(a.LatestMentionAt, b.LatestMentionAt),
	}

	byID := make(map[string]PromotingChannel, len(a.Channels)+len(b.Channels))
	for _, ch := range append(append([]PromotingChannel(nil), a.Channels...), b.Channels...) {
		prev, ok := byID[ch.ID]
		if !ok {
			byID[ch.ID] = ch
			continue
		}
		if ch.Subscribers > prev.Subscribers {
			prev.Subscribers = ch.Subscribers
			prev.Type = ClassifyChannel(ch.Subscribers)
		}
		if len(ch.Name) > len(prev.Name) {
			prev.Name = ch.Name
		}
		byID[ch.ID] = prev
	}
	out.Channels = make([]PromotingChannel, 0, len(byID))
	for _, ch := range byID {
		out.Channels = append(out.Channels, ch)
	}
	sort.Slice(out.Channels, func(i, j int) bool { return out.Channels[i].ID < out.Channels[j].ID })
	return out
}

func mergeAds(a, b *AdsData) *AdsData {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		return cloneAds(b)
	}
	if b == nil {
		return cloneAds(a)
	}

	out := &AdsData{
		TotalActiveAds:      a.TotalActiveAds + b.TotalActiveAds,
		Observations:        a.Observations + b.Observations,
		EstimatedSpend:      weightedMean(a.EstimatedSpend, a.Observations, b.EstimatedSpend, b.Observations),
		AverageCampaignDays: weightedMean(a.AverageCampaignDays, a.Observations, b.AverageCampaignDays, b.Observations),
		TargetingComplexity: maxTargeting(a.TargetingComplexity, b.TargetingComplexity),
		NewAdvertisers:      a.NewAdvertisers + b.NewAdvertisers,
	}

	byName := make(map[string]Advertiser, len(a.Advertisers)+len(b.Advertisers))
	for _, adv := range append(append([]Advertiser(nil), a.Advertisers...), b.Advertisers...) {
		key := NormalizeIdentity(adv.Name)
		prev, ok := byName[key]
		if !ok || (prev.Domain == "" && adv.Domain != "") {
			byName[key] = adv
		}
	}
	out.Advertisers = make([]Advertiser, 0, len(byName))
	for _, adv := range byName {
		out.Advertisers = append(out.Advertisers, adv)
	}
	sort.Slice(out.Advertisers, func(i, j int) bool {
		return NormalizeIdentity(out.Advertisers[i].Name) < NormalizeIdentity(out.Advertisers[j].Name)
	})
	return out
}

// weightedMean combines two means by their observation counts. A side with no
// observations contributes nothing.
func weightedMean(avgA float64, nA int, avgB float64, nB int) float64 {
	nA, nB = max(nA, 0), max(nB, 0)
	if nA+nB == 0 {
		return 0
	}
	return (avgA*float64(nA) + avgB*float64(nB)) / float64(nA+nB)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func cloneYouTube(y *YouTubeData) *YouTubeData {
	cp := *y
	cp.Channels = slices.Clone(y.Channels)
	return &cp
}

func cloneAds(a *AdsData) *AdsData {
	cp := *a
	cp.Advertisers = slices.Clone(a.Advertisers)
	return &cp
}

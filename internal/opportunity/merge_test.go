package opportunity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalizeAll(t *testing.T, raws ...RawRecord) []*DiscoveredProduct {
	t.Helper()
	n := NewNormalizer(WithIDGenerator(sequentialIDs()), WithNormalizerClock(fixedClock))
	out := make([]*DiscoveredProduct, 0, len(raws))
	for _, raw := range raws {
		p, err := n.Normalize(context.Background(), raw)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestMerge_NilExisting(t *testing.T) {
	in := normalizeAll(t, FromYouTube(glucoMention()))[0]

	out := Merge(nil, in)
	assert.Equal(t, 1, out.DiscoveryFrequency)
	assert.Equal(t, in.ID, out.ID)
	assert.NotSame(t, in, out)
}

func TestMerge_FrequencyCountsObservations(t *testing.T) {
	var merged *DiscoveredProduct
	for i := 1; i <= 7; i++ {
		m := glucoMention()
		m.ChannelID = "UC-" + string(rune('a'+i))
		merged = Merge(merged, normalizeAll(t, FromYouTube(m))[0])
		assert.Equal(t, i, merged.DiscoveryFrequency)
	}
	assert.Equal(t, 7, merged.YouTubeData.TotalMentions)
	assert.Len(t, merged.YouTubeData.Channels, 7)
}

func TestMerge_AcrossSources(t *testing.T) {
	ps := normalizeAll(t, FromYouTube(glucoMention()), FromAds(glucoAds()))
	yt, ads := ps[0], ps[1]

	out := Merge(Merge(nil, yt), ads)

	assert.Equal(t, DiscoveredViaBoth, out.DiscoverySource)
	assert.Equal(t, 2, out.DiscoveryFrequency)
	assert.Equal(t, yt.DiscoveredAt, out.DiscoveredAt, "earlier observation wins")
	assert.Equal(t, ads.DiscoveredAt, out.LastSeenAt)
	assert.Equal(t, yt.ID, out.ID)
	require.NotNil(t, out.YouTubeData)
	require.NotNil(t, out.AdsData)
}

func TestMerge_SameSourceStaysSingle(t *testing.T) {
	ps := normalizeAll(t, FromAds(glucoAds()), FromAds(glucoAds()))
	out := Merge(ps[0], ps[1])
	assert.Equal(t, DiscoveredViaAds, out.DiscoverySource)
}

func TestMerge_WeightedMeans(t *testing.T) {
	a := &DiscoveredProduct{
		ProductName: "X", Vendor: "V", DiscoveryFrequency: 1,
		YouTubeData: &YouTubeData{TotalMentions: 1, TotalViews: 100, AverageViews: 100},
		AdsData:     &AdsData{TotalActiveAds: 1, Observations: 1, EstimatedSpend: 1000, AverageCampaignDays: 10, TargetingComplexity: TargetingBasic},
	}
	b := &DiscoveredProduct{
		ProductName: "X", Vendor: "V", DiscoveryFrequency: 3,
		YouTubeData: &YouTubeData{TotalMentions: 3, TotalViews: 900, AverageViews: 300},
		AdsData:     &AdsData{TotalActiveAds: 4, Observations: 3, EstimatedSpend: 5000, AverageCampaignDays: 30, TargetingComplexity: TargetingModerate},
	}

	out := Merge(a, b)

	assert.Equal(t, 4, out.DiscoveryFrequency)
	assert.Equal(t, 4, out.YouTubeData.TotalMentions)
	assert.Equal(t, int64(1000), out.YouTubeData.TotalViews)
	assert.InDelta(t, 250.0, out.YouTubeData.AverageViews, 1e-9)
	assert.Equal(t, 5, out.AdsData.TotalActiveAds)
	assert.Equal(t, 4, out.AdsData.Observations)
	assert.InDelta(t, 4000.0, out.AdsData.EstimatedSpend, 1e-9)
	assert.InDelta(t, 25.0, out.AdsData.AverageCampaignDays, 1e-9)
	assert.Equal(t, TargetingModerate, out.AdsData.TargetingComplexity)
}

func TestMerge_SpellingTieBreak(t *testing.T) {
	early := &DiscoveredProduct{ProductName: "X", Vendor: "HealthCo", Platform: DefaultPlatform, DiscoveredAt: testNow.Add(-time.Hour)}
	late := &DiscoveredProduct{ProductName: "X", Vendor: "HealthCo Inc", Platform: "ClickBank", DiscoveredAt: testNow}

	out := Merge(late, early)
	assert.Equal(t, "HealthCo Inc", out.Vendor, "longer spelling wins")
	assert.Equal(t, "ClickBank", out.Platform, "placeholder platform never beats a real one")

	sameLenEarly := &DiscoveredProduct{ProductName: "X", Vendor: "ACME", DiscoveredAt: testNow.Add(-time.Hour)}
	sameLenLate := &DiscoveredProduct{ProductName: "X", Vendor: "Acme", DiscoveredAt: testNow}
	assert.Equal(t, "ACME", Merge(sameLenLate, sameLenEarly).Vendor, "equal length goes to first seen")
	assert.Equal(t, "ACME", Merge(sameLenEarly, sameLenLate).Vendor)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	ps := normalizeAll(t, FromYouTube(glucoMention()), FromAds(glucoAds()))
	ps[0].ExclusivityIndicators = []string{"a"}
	before0, before1 := ps[0].Clone(), ps[1].Clone()

	_ = Merge(ps[0], ps[1])

	assert.Equal(t, before0, ps[0])
	assert.Equal(t, before1, ps[1])
}

func TestMerge_ChannelUnionKeepsLargestAudience(t *testing.T) {
	a := &DiscoveredProduct{YouTubeData: &YouTubeData{TotalMentions: 1, Channels: []PromotingChannel{
		{ID: "c1", Name: "Chan", Subscribers: 5000, Type: ChannelSmallExclusive},
	}}}
	b := &DiscoveredProduct{YouTubeData: &YouTubeData{TotalMentions: 1, Channels: []PromotingChannel{
		{ID: "c1", Name: "Channel One", Subscribers: 20000, Type: ChannelMainstream},
		{ID: "c0", Name: "Zero", Subscribers: 0, Type: ChannelUnknown},
	}}}

	out := Merge(a, b)
	require.Len(t, out.YouTubeData.Channels, 2)
	assert.Equal(t, "c0", out.YouTubeData.Channels[0].ID)
	assert.Equal(t, PromotingChannel{ID: "c1", Name: "Channel One", Subscribers: 20000, Type: ChannelMainstream}, out.YouTubeData.Channels[1])
}

func TestMerge_OrderIndependentDerivedState(t *testing.T) {
	yt := glucoMention()
	small := glucoMention()
	small.ChannelID, small.SubscriberCount, small.ViewCount = "UC-small", 4000, 90000
	ads := glucoAds()
	ads.TotalActiveProducts = 6

	raws := []RawRecord{FromYouTube(yt), FromYouTube(small), FromAds(ads)}
	aggr := NewAggregator(WithClock(fixedClock))

	var want *DiscoveredProduct
	for _, order := range permutations(raws) {
		ps := normalizeAll(t, order...)
		var merged *DiscoveredProduct
		for _, p := range ps {
			merged = Merge(merged, p)
		}
		require.NoError(t, aggr.finalize(merged))

		if want == nil {
			want = merged
			continue
		}
		assert.Equal(t, want.Scores(), merged.Scores())
		assert.Equal(t, want.ExclusivityLevel, merged.ExclusivityLevel)
		assert.ElementsMatch(t, want.ExclusivityIndicators, merged.ExclusivityIndicators)
		assert.Equal(t, want.DiscoveryFrequency, merged.DiscoveryFrequency)
		assert.Equal(t, want.YouTubeData.Channels, merged.YouTubeData.Channels)
		assert.InDelta(t, want.YouTubeData.AverageViews, merged.YouTubeData.AverageViews, 1e-9)
	}
}

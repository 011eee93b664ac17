package opportunity

// Thresholds for the exclusivity rules.
const (
	maxChannelsForSemiExclusive   = 2
	maxMentionsForAnomaly         = 3
	minAverageViewsForAnomaly     = 50000
	maxActiveAdsForSemiExclusive  = 3
	minSpendForSuperExclusive     = 10000
	maxActiveAdsForSuperExclusive = 2
)

// ExclusivityRule is one (predicate, tier, indicator) entry of the rule table.
type ExclusivityRule struct {
	Name      string
	Tier      ExclusivityLevel
	Indicator string
	Applies   func(p *DiscoveredProduct) bool
}

// DefaultExclusivityRules is the rule table used by the classifier. Evaluation
// order never changes the result because tiers are folded with MaxLevel.
var DefaultExclusivityRules = []ExclusivityRule{
	{
		Name:      "youtube-few-channels",
		Tier:      LevelSemiExclusive,
		Indicator: "Promoted by 2 or fewer YouTube channels",
		Applies: func(p *DiscoveredProduct) bool {
			return p.YouTubeData != nil && p.YouTubeData.ChannelCount() <= maxChannelsForSemiExclusive
		},
	},
	{
		Name:      "youtube-small-exclusive-channel",
		Tier:      LevelExclusive,
		Indicator: "Promoted by a small exclusive channel",
		Applies: func(p *DiscoveredProduct) bool {
			if p.YouTubeData == nil {
				return false
			}
			for _, ch := range p.YouTubeData.Channels {
				if ch.Type == ChannelSmallExclusive {
					return true
				}
			}
			return false
		},
	},
	{
		Name:      "youtube-few-mentions-high-views",
		Tier:      LevelExclusive,
		Indicator: "Few mentions with high engagement",
		Applies: func(p *DiscoveredProduct) bool {
			if p.YouTubeData == nil {
				return false
			}
			yt := p.YouTubeData
			return yt.TotalMentions > 0 && yt.TotalMentions <= maxMentionsForAnomaly &&
				yt.AverageViews > minAverageViewsForAnomaly
		},
	},
	{
		Name:      "ads-few-active",
		Tier:      LevelSemiExclusive,
		Indicator: "3 or fewer active ads",
		Applies: func(p *DiscoveredProduct) bool {
			return p.AdsData != nil && p.AdsData.TotalActiveAds <= maxActiveAdsForSemiExclusive
		},
	},
	{
		Name:      "ads-sophisticated-targeting",
		Tier:      LevelExclusive,
		Indicator: "Sophisticated ad targeting",
		Applies: func(p *DiscoveredProduct) bool {
			return p.AdsData != nil && p.AdsData.TargetingComplexity == TargetingSophisticated
		},
	},
	{
		Name:      "ads-high-spend-few-ads",
		Tier:      LevelSuperExclusive,
		Indicator: "High spend concentrated in 2 or fewer ads",
		Applies: func(p *DiscoveredProduct) bool {
			return p.AdsData != nil && p.AdsData.EstimatedSpend > minSpendForSuperExclusive &&
				p.AdsData.TotalActiveAds <= maxActiveAdsForSuperExclusive
		},
	},
}

// Classification is the classifier's verdict for one product.
type Classification struct {
	Level      ExclusivityLevel
	Indicators []string
}

// Classifier folds a rule table over a product.
type Classifier struct {
	rules []ExclusivityRule
}

// NewClassifier builds a classifier over rules, or DefaultExclusivityRules when none are given.
func NewClassifier(rules ...ExclusivityRule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultExclusivityRules
	}
	return &Classifier{rules: rules}
}

// Classify evaluates every rule. The product's current level and indicators
// are the starting point, so the result is never lower than what it already had.
func (c *Classifier) Classify(p *DiscoveredProduct) Classification {
	result := Classification{
		Level:      MaxLevel(LevelPublic, p.ExclusivityLevel),
		Indicators: append([]string(nil), p.ExclusivityIndicators...),
	}
	var triggered []string
	for _, rule := range c.rules {
		if !rule.Applies(p) {
			continue
		}
		result.Level = MaxLevel(result.Level, rule.Tier)
		triggered = append(triggered, rule.Indicator)
	}
	result.Indicators = unionStrings(result.Indicators, triggered)
	return result
}

// Apply classifies p and stores the verdict on it.
func (c *Classifier) Apply(p *DiscoveredProduct) {
	verdict := c.Classify(p)
	p.ExclusivityLevel = verdict.Level
	p.ExclusivityIndicators = verdict.Indicators
}

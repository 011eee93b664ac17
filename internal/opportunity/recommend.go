package opportunity

import "fmt"

// Recommendation thresholds.
const (
	LaunchScoreThreshold     = 80.0
	PriorityMonitorFrequency = 3
	launchConfidence         = 95
	researchConfidence       = 85
	monitorConfidence        = 90
)

type recommendationRule struct {
	matches func(p *DiscoveredProduct) bool
	build   func(p *DiscoveredProduct) Recommendation
}

var recommendationRules = []recommendationRule{
	{
		matches: func(p *DiscoveredProduct) bool { return p.OpportunityScore >= LaunchScoreThreshold },
		build: func(p *DiscoveredProduct) Recommendation {
			return Recommendation{
				Priority:        PriorityImmediate,
				Action:          "Launch test campaign immediately",
				Reasoning:       fmt.Sprintf("Opportunity score %.0f is at or above %.0f", p.OpportunityScore, LaunchScoreThreshold),
				ConfidenceLevel: launchConfidence,
			}
		},
	},
	{
		matches: func(p *DiscoveredProduct) bool {
			return p.ExclusivityLevel == LevelExclusive || p.ExclusivityLevel == LevelSuperExclusive
		},
		build: func(p *DiscoveredProduct) Recommendation {
			return Recommendation{
				Priority:        PriorityImmediate,
				Action:          "Research affiliate application process",
				Reasoning:       fmt.Sprintf("Product is %s; access may be restricted", p.ExclusivityLevel),
				ConfidenceLevel: researchConfidence,
			}
		},
	},
	{
		matches: func(p *DiscoveredProduct) bool { return p.DiscoveryFrequency >= PriorityMonitorFrequency },
		build: func(p *DiscoveredProduct) Recommendation {
			return Recommendation{
				Priority:        PriorityMonitor,
				Action:          "Add to priority monitoring list",
				Reasoning:       fmt.Sprintf("Discovered %d times across sources", p.DiscoveryFrequency),
				ConfidenceLevel: monitorConfidence,
			}
		},
	},
}

// Recommend returns every recommendation whose rule matches p. An empty,
// non-nil slice means nothing matched.
func Recommend(p *DiscoveredProduct) []Recommendation {
	out := []Recommendation{}
	for _, rule := range recommendationRules {
		if rule.matches(p) {
			out = append(out, rule.build(p))
		}
	}
	return out
}

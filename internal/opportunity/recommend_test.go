package opportunity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func actions(recs []Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Action)
	}
	return out
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name    string
		product *DiscoveredProduct
		want    []string
	}{
		{
			name:    "nothing matches",
			product: &DiscoveredProduct{OpportunityScore: 40, ExclusivityLevel: LevelSemiExclusive, DiscoveryFrequency: 2},
			want:    []string{},
		},
		{
			name:    "score threshold is inclusive",
			product: &DiscoveredProduct{OpportunityScore: 80, ExclusivityLevel: LevelPublic, DiscoveryFrequency: 1},
			want:    []string{"Launch test campaign immediately"},
		},
		{
			name:    "exclusive product",
			product: &DiscoveredProduct{OpportunityScore: 50, ExclusivityLevel: LevelExclusive, DiscoveryFrequency: 1},
			want:    []string{"Research affiliate application process"},
		},
		{
			name:    "every rule fires",
			product: &DiscoveredProduct{OpportunityScore: 95, ExclusivityLevel: LevelSuperExclusive, DiscoveryFrequency: 3},
			want: []string{
				"Launch test campaign immediately",
				"Research affiliate application process",
				"Add to priority monitoring list",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := Recommend(tt.product)
			assert.NotNil(t, recs)
			assert.ElementsMatch(t, tt.want, actions(recs))
			for _, r := range recs {
				assert.NotEmpty(t, r.Reasoning)
			}
		})
	}
}

func TestRecommend_Confidence(t *testing.T) {
	recs := Recommend(&DiscoveredProduct{OpportunityScore: 90, ExclusivityLevel: LevelExclusive, DiscoveryFrequency: 5})
	got := map[string]Recommendation{}
	for _, r := range recs {
		got[r.Action] = r
	}

	assert.Equal(t, 95, got["Launch test campaign immediately"].ConfidenceLevel)
	assert.Equal(t, PriorityImmediate, got["Launch test campaign immediately"].Priority)
	assert.Equal(t, 85, got["Research affiliate application process"].ConfidenceLevel)
	assert.Equal(t, PriorityImmediate, got["Research affiliate application process"].Priority)
	assert.Equal(t, 90, got["Add to priority monitoring list"].ConfidenceLevel)
	assert.Equal(t, PriorityMonitor, got["Add to priority monitoring list"].Priority)
}

package opportunity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ids(ps []*DiscoveredProduct) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestRank_Empty(t *testing.T) {
	got := Rank(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = Rank([]*DiscoveredProduct{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRank_Order(t *testing.T) {
	early := testNow.Add(-48 * time.Hour)
	products := []*DiscoveredProduct{
		{ID: "low", ProductName: "a", OpportunityScore: 20, DiscoveryFrequency: 9, DiscoveredAt: early},
		{ID: "top", ProductName: "b", OpportunityScore: 90, DiscoveryFrequency: 1, DiscoveredAt: testNow},
		{ID: "tie-freq-high", ProductName: "c", OpportunityScore: 50, DiscoveryFrequency: 4, DiscoveredAt: testNow},
		{ID: "tie-freq-low-late", ProductName: "d", OpportunityScore: 50, DiscoveryFrequency: 2, DiscoveredAt: testNow},
		{ID: "tie-freq-low-early", ProductName: "e", OpportunityScore: 50, DiscoveryFrequency: 2, DiscoveredAt: early},
		{ID: "full-tie-b", ProductName: "g", Vendor: "v", OpportunityScore: 10, DiscoveryFrequency: 1, DiscoveredAt: early},
		{ID: "full-tie-a", ProductName: "f", Vendor: "v", OpportunityScore: 10, DiscoveryFrequency: 1, DiscoveredAt: early},
	}

	want := []string{"top", "tie-freq-high", "tie-freq-low-early", "tie-freq-low-late", "low", "full-tie-a", "full-tie-b"}
	assert.Equal(t, want, ids(Rank(products)))
}

func TestRank_PermutationInvariant(t *testing.T) {
	products := []*DiscoveredProduct{
		{ID: "1", ProductName: "a", OpportunityScore: 60, DiscoveryFrequency: 2, DiscoveredAt: testNow},
		{ID: "2", ProductName: "b", OpportunityScore: 60, DiscoveryFrequency: 2, DiscoveredAt: testNow},
		{ID: "3", ProductName: "c", OpportunityScore: 60, DiscoveryFrequency: 3, DiscoveredAt: testNow},
		{ID: "4", ProductName: "b", OpportunityScore: 60, DiscoveryFrequency: 2, DiscoveredAt: testNow},
		{ID: "5", ProductName: "e", OpportunityScore: 75, DiscoveryFrequency: 1, DiscoveredAt: testNow},
	}

	want := ids(Rank(products))
	for _, perm := range permutations(products) {
		assert.Equal(t, want, ids(Rank(perm)))
	}
}

func TestRank_DoesNotReorderInput(t *testing.T) {
	in := []*DiscoveredProduct{
		{ID: "a", OpportunityScore: 1},
		{ID: "b", OpportunityScore: 2},
	}
	out := Rank(in)
	assert.Equal(t, []string{"b", "a"}, ids(out))
	assert.Equal(t, []string{"a", "b"}, ids(in))
}

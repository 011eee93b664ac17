package opportunity

import "sort"

// Rank returns a new slice ordered by opportunity score descending, then
// discovery frequency descending, then earliest discovery. Dedupe key and ID
// break any remaining tie so every permutation of the same set ranks the same.
func Rank(products []*DiscoveredProduct) []*DiscoveredProduct {
	out := make([]*DiscoveredProduct, 0, len(products))
	for _, p := range products {
		if p != nil {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rankLess(out[i], out[j])
	})
	return out
}

func rankLess(a, b *DiscoveredProduct) bool {
	if a.OpportunityScore != b.OpportunityScore {
		return a.OpportunityScore > b.OpportunityScore
	}
	if a.DiscoveryFrequency != b.DiscoveryFrequency {
		return a.DiscoveryFrequency > b.DiscoveryFrequency
	}
	if !a.DiscoveredAt.Equal(b.DiscoveredAt) {
		return a.DiscoveredAt.Before(b.DiscoveredAt)
	}
	if ka, kb := a.Key(), b.Key(); ka != kb {
		return ka < kb
	}
	return a.ID < b.ID
}

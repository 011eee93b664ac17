package opportunity

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("prod-%03d", n)
	}
}

type mapRegistry struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMapRegistry() *mapRegistry { return &mapRegistry{seen: map[string]bool{}} }

func (r *mapRegistry) HasSeen(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	return r.seen[key], nil
}

func (r *mapRegistry) MarkSeen(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.seen[key] = true
	return nil
}

// permutations returns every ordering of xs.
func permutations[T any](xs []T) [][]T {
	if len(xs) <= 1 {
		return [][]T{append([]T(nil), xs...)}
	}
	var out [][]T
	for i := range xs {
		rest := make([]T, 0, len(xs)-1)
		rest = append(rest, xs[:i]...)
		rest = append(rest, xs[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]T{xs[i]}, p...))
		}
	}
	return out
}

func glucoMention() YouTubeMention {
	return YouTubeMention{
		ProductNameHint: "GlucoShield",
		VendorHint:      "HealthCo",
		ChannelID:       "UC-health-101",
		ChannelName:     "Health Insider",
		SubscriberCount: 250000,
		ViewCount:       80000,
		PublishedAt:     testNow.Add(-3 * time.Hour),
		VideoID:         "vid-1",
	}
}

func glucoAds() AdvertiserRecord {
	return AdvertiserRecord{
		ProductNameHint:       "GlucoShield",
		VendorHint:            "HealthCo",
		AdvertiserName:        "HealthCo Marketing LLC",
		Domain:                "GlucoShield.com",
		TotalActiveProducts:   2,
		EstimatedMonthlySpend: 12000,
		CampaignDurationDays:  45,
		TargetingComplexity:   TargetingSophisticated,
	}
}

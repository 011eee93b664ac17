// Package opportunity turns raw discovery observations into ranked affiliate
// product opportunities.
//
// The pipeline is normalize → merge by (productName, vendor) → classify
// exclusivity → score → recommend → rank. Every stage is deterministic given
// an injected clock, and per-record failures never abort a batch.
package opportunity

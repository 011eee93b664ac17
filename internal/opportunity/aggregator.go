package opportunity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/smart-affiliate/internal/pkg/logger"
)

// ProductStore persists merged products between runs so discovery frequency
// keeps growing across days. Get returns ErrProductNotFound for unknown keys.
type ProductStore interface {
	Get(ctx context.Context, key string) (*DiscoveredProduct, error)
	Put(ctx context.Context, p *DiscoveredProduct) error
}

// SourceResult is the settled outcome of one adapter call. A non-nil Err
// means the source contributed zero observations this run.
type SourceResult struct {
	Source  string
	Kind    SourceKind
	Records []RawRecord
	Err     error
}

// Outcome is the result of one aggregation pass. Products is never nil.
type Outcome struct {
	Products []*DiscoveredProduct
	Dropped  int
}

// Aggregator runs the normalize, merge, classify, score, recommend and rank
// pipeline over a closed batch of source results.
type Aggregator struct {
	normalizer *Normalizer
	classifier *Classifier
	scorer     *Scorer
	store      ProductStore
	log        *logger.Logger
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithNormalizer replaces the default Normalizer.
func WithNormalizer(n *Normalizer) AggregatorOption {
	return func(a *Aggregator) { a.normalizer = n }
}

// WithClassifier replaces the default Classifier.
func WithClassifier(c *Classifier) AggregatorOption {
	return func(a *Aggregator) { a.classifier = c }
}

// WithClock sets the wall clock used for scoring.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.scorer = NewScorer(now) }
}

// WithStore enables cross-run persistence.
func WithStore(s ProductStore) AggregatorOption {
	return func(a *Aggregator) { a.store = s }
}

// NewAggregator creates an aggregator with default components.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		normalizer: NewNormalizer(),
		classifier: NewClassifier(),
		scorer:     NewScorer(nil),
		log:        logger.New("opportunity"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate processes every record from the successful sources. Failed
// sources, malformed records and per-record faults are logged and skipped;
// the returned outcome always holds a (possibly empty) ranked list.
func (a *Aggregator) Aggregate(ctx context.Context, results []SourceResult) Outcome {
	working := make(map[string]*DiscoveredProduct)
	dropped := 0

	for _, res := range results {
		if res.Err != nil {
			a.log.Warn("source unavailable, skipping", "source", res.Source, "error", res.Err)
			continue
		}
		for i, raw := range res.Records {
			if err := a.ingest(ctx, working, raw); err != nil {
				dropped++
				a.log.Warn("record dropped", "source", res.Source, "index", i, "error", err)
			}
		}
	}

	keys := make([]string, 0, len(working))
	for k := range working {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	products := make([]*DiscoveredProduct, 0, len(keys))
	for _, k := range keys {
		p := working[k]
		if err := a.finalize(p); err != nil {
			dropped++
			a.log.Error("product dropped", "key", k, "error", err)
			continue
		}
		if a.store != nil {
			if err := a.store.Put(ctx, p); err != nil {
				a.log.Warn("persist product failed", "key", k, "error", err)
			}
		}
		products = append(products, p)
	}

	return Outcome{Products: Rank(products), Dropped: dropped}
}

// ingest normalizes one record and merges it into the working set.
func (a *Aggregator) ingest(ctx context.Context, working map[string]*DiscoveredProduct, raw RawRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while ingesting %s record: %v", raw.Kind, r)
		}
	}()

	incoming, err := a.normalizer.Normalize(ctx, raw)
	if err != nil {
		return err
	}
	key := incoming.Key()
	existing, ok := working[key]
	if !ok {
		existing = a.loadPersisted(ctx, key)
	}
	working[key] = Merge(existing, incoming)
	return nil
}

func (a *Aggregator) loadPersisted(ctx context.Context, key string) *DiscoveredProduct {
	if a.store == nil {
		return nil
	}
	prior, err := a.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrProductNotFound) {
			a.log.Warn("load persisted product failed", "key", key, "error", err)
		}
		return nil
	}
	return prior
}

// finalize classifies, scores and attaches recommendations.
func (a *Aggregator) finalize(p *DiscoveredProduct) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scoring %s: %v", p.Key(), r)
		}
	}()

	a.classifier.Apply(p)
	if err := a.scorer.Apply(p); err != nil {
		return err
	}
	p.Recommendations = Recommend(p)
	return nil
}

// Package sources defines the discovery adapter contract and collects from
// every adapter concurrently, settling all calls instead of racing them.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
)

// Adapter fetches raw observations from one discovery channel. Adapters own
// their retry policy; the collector owns the overall timeout.
type Adapter interface {
	Name() string
	Kind() opportunity.SourceKind
	Fetch(ctx context.Context) ([]opportunity.RawRecord, error)
}

// Default collection limits.
const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxConcurrency = 4
)

// Collector fans out to adapters with a concurrency limit and per-adapter timeout.
type Collector struct {
	adapters       []Adapter
	timeout        time.Duration
	maxConcurrency int
	log            *logger.Logger
}

// NewCollector creates a collector. Zero timeout or concurrency use the defaults.
func NewCollector(adapters []Adapter, timeout time.Duration, maxConcurrency int) *Collector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Collector{
		adapters:       adapters,
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
		log:            logger.New("sources"),
	}
}

// Adapters returns the configured adapters.
func (c *Collector) Adapters() []Adapter {
	return c.adapters
}

// CollectAll calls every adapter and returns one result per adapter in
// registration order. It never fails: an adapter error, timeout or panic
// becomes a *opportunity.SourceUnavailableError on that adapter's result.
func (c *Collector) CollectAll(ctx context.Context) []opportunity.SourceResult {
	results := make([]opportunity.SourceResult, len(c.adapters))

	var g errgroup.Group
	g.SetLimit(c.maxConcurrency)
	for i, a := range c.adapters {
		g.Go(func() error {
			results[i] = c.collectOne(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Collector) collectOne(ctx context.Context, a Adapter) (res opportunity.SourceResult) {
	res = opportunity.SourceResult{Source: a.Name(), Kind: a.Kind()}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Records = nil
			res.Err = &opportunity.SourceUnavailableError{Source: a.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
		if res.Err != nil {
			c.log.Warn("source unavailable", "source", res.Source, "elapsed", time.Since(start), "error", res.Err)
			return
		}
		c.log.Info("source collected", "source", res.Source, "records", len(res.Records), "elapsed", time.Since(start))
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	records, err := a.Fetch(fetchCtx)
	if err == nil && fetchCtx.Err() != nil {
		err = fetchCtx.Err()
	}
	if err != nil {
		var sue *opportunity.SourceUnavailableError
		if !errors.As(err, &sue) {
			err = &opportunity.SourceUnavailableError{Source: a.Name(), Err: err}
		}
		res.Err = err
		return res
	}
	res.Records = records
	return res
}

package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/distlock"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
)

// Options wires the optional collaborators of a Service.
type Options struct {
	Registry   opportunity.SeenRegistry
	Repository Repository
	Exporter   SnapshotExporter
	History    RunHistory
	// Lock returns a fresh lock instance per run. Defaults to an in-process lock.
	Lock  func() distlock.DistLock
	Clock func() time.Time
}

// Service runs discovery and serves the latest ranked results.
// All public methods are safe for concurrent use.
type Service struct {
	collector Collector
	registry  opportunity.SeenRegistry
	repo      Repository
	exporter  SnapshotExporter
	history   RunHistory
	newLock   func() distlock.DistLock
	now       func() time.Time
	log       *logger.Logger

	running atomic.Bool
	mu      sync.RWMutex
	latest  []*opportunity.DiscoveredProduct
	report  *RunReport
}

// NewService creates a discovery service over collector.
func NewService(collector Collector, opts Options) *Service {
	s := &Service{
		collector: collector,
		registry:  opts.Registry,
		repo:      opts.Repository,
		exporter:  opts.Exporter,
		history:   opts.History,
		newLock:   opts.Lock,
		now:       opts.Clock,
		log:       logger.New("discovery"),
	}
	if s.newLock == nil {
		s.newLock = func() distlock.DistLock { return distlock.NewLocalLock("discovery-run") }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Running reports whether this instance is executing a run.
func (s *Service) Running() bool {
	return s.running.Load()
}

// RunOnce executes a full discovery run. It returns ErrRunInProgress when
// another run holds the lock. Persistence, export and history failures are
// logged and never fail the run.
func (s *Service) RunOnce(ctx context.Context) (*RunReport, error) {
	lock := s.newLock()
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release run lock failed", "error", err)
		}
	}()

	s.running.Store(true)
	defer s.running.Store(false)

	report := &RunReport{RunID: uuid.New().String(), StartedAt: s.now()}
	s.log.Info("run started", "run_id", report.RunID)

	results := s.collector.CollectAll(ctx)
	for _, res := range results {
		st := SourceStatus{Name: res.Source, Kind: res.Kind, Records: len(res.Records)}
		if res.Err != nil {
			st.Error = res.Err.Error()
		}
		report.Sources = append(report.Sources, st)
	}

	out := s.aggregator(true).Aggregate(ctx, results)
	report.Dropped = out.Dropped
	report.Products = len(out.Products)
	report.FinishedAt = s.now()

	if s.exporter != nil {
		uri, err := s.exporter.Export(ctx, report, out.Products)
		if err != nil {
			s.log.Error("snapshot export failed", "run_id", report.RunID, "error", err)
		} else {
			report.SnapshotURI = uri
		}
	}
	if s.history != nil {
		if err := s.history.Record(ctx, report); err != nil {
			s.log.Error("record run history failed", "run_id", report.RunID, "error", err)
		}
	}

	s.mu.Lock()
	s.latest = out.Products
	s.report = report
	s.mu.Unlock()

	s.log.Info("run finished", "run_id", report.RunID, "products", report.Products,
		"dropped", report.Dropped, "elapsed", report.Duration())
	return report, nil
}

// Latest returns the most recent ranked list, filtered. Before the first run
// in this process it falls back to the repository. It never returns nil.
func (s *Service) Latest(ctx context.Context, f ListFilter) ([]*opportunity.DiscoveredProduct, error) {
	s.mu.RLock()
	latest, haveRun := s.latest, s.report != nil
	s.mu.RUnlock()

	if haveRun {
		return f.Apply(latest), nil
	}
	if s.repo == nil {
		return []*opportunity.DiscoveredProduct{}, nil
	}
	products, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list stored products: %w", err)
	}
	if products == nil {
		products = []*opportunity.DiscoveredProduct{}
	}
	return products, nil
}

// Get returns one product from the latest run or the repository.
func (s *Service) Get(ctx context.Context, id string) (*opportunity.DiscoveredProduct, error) {
	s.mu.RLock()
	for _, p := range s.latest {
		if p.ID == id {
			s.mu.RUnlock()
			return p, nil
		}
	}
	s.mu.RUnlock()

	if s.repo == nil {
		return nil, opportunity.ErrProductNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// LatestReport returns the last run's report, or ErrNoRunYet.
func (s *Service) LatestReport() (*RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		return nil, ErrNoRunYet
	}
	return s.report, nil
}

// Score aggregates caller-supplied observations without touching persisted
// state or the seen registry.
func (s *Service) Score(ctx context.Context, mentions []opportunity.YouTubeMention, ads []opportunity.AdvertiserRecord) opportunity.Outcome {
	yt := opportunity.SourceResult{Source: "request", Kind: opportunity.SourceYouTube}
	for _, m := range mentions {
		yt.Records = append(yt.Records, opportunity.FromYouTube(m))
	}
	ad := opportunity.SourceResult{Source: "request", Kind: opportunity.SourceAds}
	for _, a := range ads {
		ad.Records = append(ad.Records, opportunity.FromAds(a))
	}
	return s.aggregator(false).Aggregate(ctx, []opportunity.SourceResult{yt, ad})
}

func (s *Service) aggregator(persistent bool) *opportunity.Aggregator {
	nopts := []opportunity.NormalizerOption{opportunity.WithNormalizerClock(s.now)}
	opts := []opportunity.AggregatorOption{opportunity.WithClock(s.now)}
	if persistent {
		if s.registry != nil {
			nopts = append(nopts, opportunity.WithRegistry(s.registry))
		}
		if s.repo != nil {
			opts = append(opts, opportunity.WithStore(s.repo))
		}
	}
	opts = append(opts, opportunity.WithNormalizer(opportunity.NewNormalizer(nopts...)))
	return opportunity.NewAggregator(opts...)
}

// IsNotFound reports whether err means an unknown product.
func IsNotFound(err error) bool {
	return errors.Is(err, opportunity.ErrProductNotFound)
}

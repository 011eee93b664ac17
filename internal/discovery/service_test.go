package discovery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/distlock"
	"github.com/ignite/smart-affiliate/internal/registry"
	"github.com/ignite/smart-affiliate/internal/repository/memory"
)

var runNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return runNow }

type stubCollector struct {
	results []opportunity.SourceResult
	block   chan struct{}
	entered chan struct{}
}

func (c *stubCollector) CollectAll(ctx context.Context) []opportunity.SourceResult {
	if c.entered != nil {
		close(c.entered)
	}
	if c.block != nil {
		<-c.block
	}
	return c.results
}

type recordingExporter struct {
	mu       sync.Mutex
	products []*opportunity.DiscoveredProduct
	err      error
}

func (e *recordingExporter) Export(_ context.Context, r *discovery.RunReport, products []*opportunity.DiscoveredProduct) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	e.products = products
	return "file:///snapshots/" + r.RunID + ".json", nil
}

type recordingHistory struct {
	mu      sync.Mutex
	reports []*discovery.RunReport
}

func (h *recordingHistory) Record(_ context.Context, r *discovery.RunReport) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, r)
	return nil
}

func lockNamed(name string) func() distlock.DistLock {
	return func() distlock.DistLock { return distlock.NewLocalLock(name) }
}

func mention(name, vendor string, subs int64) opportunity.YouTubeMention {
	return opportunity.YouTubeMention{
		ProductNameHint: name,
		VendorHint:      vendor,
		ChannelID:       "UC-" + name,
		ChannelName:     name + " reviews",
		SubscriberCount: subs,
		ViewCount:       12000,
		PublishedAt:     runNow.Add(-2 * time.Hour),
	}
}

func defaultResults() []opportunity.SourceResult {
	return []opportunity.SourceResult{
		{
			Source: "youtube-data-api", Kind: opportunity.SourceYouTube,
			Records: []opportunity.RawRecord{
				opportunity.FromYouTube(mention("GlucoShield", "healthco.com", 8000)),
				opportunity.FromYouTube(mention("SlimPatch", "slimco.com", 900000)),
			},
		},
		{Source: "ads-transparency", Kind: opportunity.SourceAds, Err: errors.New("quota exceeded")},
	}
}

func TestService_RunOnce(t *testing.T) {
	repo := memory.NewProductRepo()
	exp := &recordingExporter{}
	hist := &recordingHistory{}
	svc := discovery.NewService(&stubCollector{results: defaultResults()}, discovery.Options{
		Registry:   registry.NewMemory(),
		Repository: repo,
		Exporter:   exp,
		History:    hist,
		Lock:       lockNamed("svc-run-once"),
		Clock:      clock,
	})

	_, err := svc.LatestReport()
	assert.ErrorIs(t, err, discovery.ErrNoRunYet)

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Products)
	assert.Zero(t, report.Dropped)
	require.Len(t, report.Sources, 2)
	assert.Equal(t, 2, report.Sources[0].Records)
	assert.Empty(t, report.Sources[0].Error)
	assert.Equal(t, "quota exceeded", report.Sources[1].Error)
	assert.Equal(t, "file:///snapshots/"+report.RunID+".json", report.SnapshotURI)
	assert.False(t, svc.Running())

	assert.Len(t, exp.products, 2)
	require.Len(t, hist.reports, 1)
	assert.Equal(t, report.RunID, hist.reports[0].RunID)

	latest, err := svc.LatestReport()
	require.NoError(t, err)
	assert.Equal(t, report.RunID, latest.RunID)

	products, err := svc.Latest(context.Background(), discovery.ListFilter{})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.GreaterOrEqual(t, products[0].OpportunityScore, products[1].OpportunityScore)

	stored, err := repo.List(context.Background(), discovery.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	got, err := svc.Get(context.Background(), products[0].ID)
	require.NoError(t, err)
	assert.Equal(t, products[0].Key(), got.Key())
}

func TestService_FrequencyGrowsAcrossRuns(t *testing.T) {
	repo := memory.NewProductRepo()
	svc := discovery.NewService(&stubCollector{results: defaultResults()}, discovery.Options{
		Registry:   registry.NewMemory(),
		Repository: repo,
		Lock:       lockNamed("svc-frequency"),
		Clock:      clock,
	})

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	first, err := repo.Get(context.Background(), opportunity.DedupeKey("GlucoShield", "healthco.com"))
	require.NoError(t, err)

	_, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := repo.Get(context.Background(), opportunity.DedupeKey("GlucoShield", "healthco.com"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, first.DiscoveryFrequency)
	assert.Equal(t, 2, second.DiscoveryFrequency)
}

func TestService_ExportFailureDoesNotFailRun(t *testing.T) {
	svc := discovery.NewService(&stubCollector{results: defaultResults()}, discovery.Options{
		Exporter: &recordingExporter{err: errors.New("bucket missing")},
		Lock:     lockNamed("svc-export-failure"),
		Clock:    clock,
	})
	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.SnapshotURI)
	assert.Equal(t, 2, report.Products)
}

func TestService_RunInProgress(t *testing.T) {
	c := &stubCollector{results: defaultResults(), block: make(chan struct{}), entered: make(chan struct{})}
	svc := discovery.NewService(c, discovery.Options{Lock: lockNamed("svc-in-progress"), Clock: clock})

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunOnce(context.Background())
		done <- err
	}()
	<-c.entered
	assert.True(t, svc.Running())

	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, discovery.ErrRunInProgress)

	close(c.block)
	require.NoError(t, <-done)
	assert.False(t, svc.Running())
}

func TestService_LockHeldElsewhere(t *testing.T) {
	held := distlock.NewLocalLock("svc-held-elsewhere")
	ok, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Release(context.Background())

	svc := discovery.NewService(&stubCollector{}, discovery.Options{Lock: lockNamed("svc-held-elsewhere")})
	_, err = svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, discovery.ErrRunInProgress)
}

func TestService_LatestBeforeFirstRun(t *testing.T) {
	ctx := context.Background()

	bare := discovery.NewService(&stubCollector{}, discovery.Options{})
	empty, err := bare.Latest(ctx, discovery.ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = bare.Get(ctx, "anything")
	assert.True(t, discovery.IsNotFound(err))

	repo := memory.NewProductRepo()
	require.NoError(t, repo.Put(ctx, &opportunity.DiscoveredProduct{
		ID: "stored-1", ProductName: "GlucoShield", Vendor: "healthco.com", OpportunityScore: 70,
		ExclusivityLevel: opportunity.LevelExclusive,
	}))
	require.NoError(t, repo.Put(ctx, &opportunity.DiscoveredProduct{
		ID: "stored-2", ProductName: "SlimPatch", Vendor: "slimco.com", OpportunityScore: 20,
		ExclusivityLevel: opportunity.LevelPublic,
	}))

	svc := discovery.NewService(&stubCollector{}, discovery.Options{Repository: repo})
	products, err := svc.Latest(ctx, discovery.ListFilter{MinScore: 50})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "stored-1", products[0].ID)

	got, err := svc.Get(ctx, "stored-2")
	require.NoError(t, err)
	assert.Equal(t, "SlimPatch", got.ProductName)
}

func TestService_LatestAppliesFilter(t *testing.T) {
	svc := discovery.NewService(&stubCollector{results: defaultResults()}, discovery.Options{
		Lock: lockNamed("svc-filter"), Clock: clock,
	})
	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	one, err := svc.Latest(context.Background(), discovery.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, one, 1)

	none, err := svc.Latest(context.Background(), discovery.ListFilter{MinScore: 101})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestService_ScoreIsStateless(t *testing.T) {
	repo := memory.NewProductRepo()
	reg := registry.NewMemory()
	svc := discovery.NewService(&stubCollector{}, discovery.Options{Registry: reg, Repository: repo, Clock: clock})

	out := svc.Score(context.Background(),
		[]opportunity.YouTubeMention{mention("GlucoShield", "healthco.com", 8000)},
		[]opportunity.AdvertiserRecord{{ProductNameHint: "GlucoShield", VendorHint: "healthco.com", AdvertiserName: "HealthCo", Domain: "healthco.com", TotalActiveProducts: 1, CampaignDurationDays: 5, TargetingComplexity: opportunity.TargetingBasic}},
	)
	require.Len(t, out.Products, 1)
	assert.Equal(t, opportunity.DiscoveredViaBoth, out.Products[0].DiscoverySource)
	assert.Equal(t, 2, out.Products[0].DiscoveryFrequency)

	stored, err := repo.List(context.Background(), discovery.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Zero(t, reg.Len())

	_, err = svc.LatestReport()
	assert.ErrorIs(t, err, discovery.ErrNoRunYet)
}

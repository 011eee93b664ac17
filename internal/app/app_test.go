package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/smart-affiliate/internal/config"
	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/registry"
	"github.com/ignite/smart-affiliate/internal/repository/postgres"
	"github.com/ignite/smart-affiliate/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.LocalPath = t.TempDir()
	return cfg
}

func TestBuild_InProcessDefaults(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)
	assert.Empty(t, a.Collector.Adapters())
	assert.IsType(t, &registry.Memory{}, a.registry())

	report, err := a.Service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Products)
	assert.Contains(t, report.SnapshotURI, "file://")

	assert.Same(t, a.Storage, a.Runs)
	runs, err := a.Runs.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
}

func TestBuild_RedisRegistry(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Redis)
	assert.IsType(t, &registry.Redis{}, a.registry())
}

func TestBuild_BadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.URL = "not-a-url"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuild_WarmStartFromSnapshot(t *testing.T) {
	cfg := testConfig(t)
	store, err := storage.New(context.Background(), cfg.Storage)
	require.NoError(t, err)

	report := &discovery.RunReport{RunID: "prior", StartedAt: time.Now().UTC()}
	_, err = store.Export(context.Background(), report, []*opportunity.DiscoveredProduct{
		{ID: "p1", ProductName: "GlucoShield", Vendor: "healthco.com", OpportunityScore: 75, DiscoveryFrequency: 3},
	})
	require.NoError(t, err)

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	products, err := a.Service.Latest(context.Background(), discovery.ListFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, 3, products[0].DiscoveryFrequency)
}

func TestBuildAdapters(t *testing.T) {
	cfg := config.Default()
	cfg.YouTube.Enabled = true // no credentials: skipped
	cfg.AdsTransparency.Enabled = true
	cfg.AdsTransparency.APIKey = "serp-key"
	cfg.ChannelFeeds.Enabled = true
	cfg.ChannelFeeds.Channels = []config.ChannelConfig{{ID: "UC1", Subscribers: 5000}}

	adapters := BuildAdapters(context.Background(), cfg)
	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"channel-feeds", "ads-transparency"}, names)

	cfg.YouTube.APIKey = "yt-key"
	assert.Len(t, BuildAdapters(context.Background(), cfg), 3)
}

func TestBuild_CustomDigestTemplate(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "digest.liquid")
	require.NoError(t, os.WriteFile(path, []byte("{{ count }} products"), 0644))
	cfg.Digest.TemplatePath = path

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	out, err := a.Digest.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "0 products", out)

	cfg.Digest.TemplatePath = filepath.Join(t.TempDir(), "missing.liquid")
	_, err = Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewRunStore_PrefersPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := storage.New(context.Background(), testConfig(t).Storage)
	require.NoError(t, err)

	runs := newRunStore(db, store)
	require.IsType(t, &postgres.RunRepo{}, runs)

	mock.ExpectExec(`INSERT INTO discovery_runs`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, runs.Record(context.Background(), &discovery.RunReport{RunID: "run-1"}))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Same(t, store, newRunStore(nil, store))
}

func TestStartScheduler(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	_, err = StartScheduler(a.Service, config.ScheduleConfig{Cron: "not a cron"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create scheduler")

	s, err := StartScheduler(a.Service, config.ScheduleConfig{Cron: "0 */6 * * *", Timezone: "UTC"})
	require.NoError(t, err)
	defer s.Stop()
	assert.Eventually(t, func() bool { return !s.NextRun().IsZero() }, time.Second, 10*time.Millisecond)
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/smart-affiliate/internal/config"
	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/opportunity"
)

var started = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(context.Background(), config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	return s
}

func testReport(id string, at time.Time) *discovery.RunReport {
	return &discovery.RunReport{
		RunID:      id,
		StartedAt:  at,
		FinishedAt: at.Add(90 * time.Second),
		Sources: []discovery.SourceStatus{
			{Name: "youtube-data-api", Kind: opportunity.SourceYouTube, Records: 12},
			{Name: "ads-transparency", Kind: opportunity.SourceAds, Error: "quota exceeded"},
		},
		Dropped:  1,
		Products: 2,
	}
}

func testProducts() []*opportunity.DiscoveredProduct {
	return []*opportunity.DiscoveredProduct{
		{ID: "p1", ProductName: "GlucoShield", Vendor: "healthco.com", OpportunityScore: 85, ExclusivityLevel: opportunity.LevelSuperExclusive},
		{ID: "p2", ProductName: "SlimPatch", Vendor: "slimco.com", OpportunityScore: 40, ExclusivityLevel: opportunity.LevelPublic},
	}
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Type: "ftp", LocalPath: t.TempDir()})
	assert.Error(t, err)
}

func TestExportLocal(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	uri, err := s.Export(ctx, testReport("run-1", started), testProducts())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))
	assert.True(t, strings.HasSuffix(uri, filepath.FromSlash("snapshots/2026/03/10/run-1.json")))

	_, err = os.Stat(strings.TrimPrefix(uri, "file://"))
	require.NoError(t, err)

	snap, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", snap.Report.RunID)
	require.Len(t, snap.Products, 2)
	assert.Equal(t, "GlucoShield", snap.Products[0].ProductName)
	assert.Equal(t, opportunity.LevelSuperExclusive, snap.Products[0].ExclusivityLevel)
}

func TestExportLocalEmpty(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Export(context.Background(), testReport("run-empty", started), nil)
	require.NoError(t, err)

	snap, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Products)
	assert.Empty(t, snap.Products)
}

func TestRecordAndRecentRunsLocal(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	empty, err := s.RecentRuns(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, s.Record(ctx, testReport(id, started.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
	assert.Equal(t, "quota exceeded", runs[0].Sources[1].Error)
	assert.Equal(t, 90*time.Second, runs[0].Duration())
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ignite/smart-affiliate/internal/config"
	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
)

// ErrNoSnapshot is returned when no snapshot has been exported yet.
var ErrNoSnapshot = errors.New("no snapshot exported")

var (
	_ discovery.SnapshotExporter = (*Storage)(nil)
	_ discovery.RunHistory       = (*Storage)(nil)
)

// Snapshot is the exported document for one discovery run.
type Snapshot struct {
	Report   discovery.RunReport              `json:"report"`
	Products []*opportunity.DiscoveredProduct `json:"products"`
}

// Storage exports ranked snapshots and records run history, either on local
// disk or in S3 and DynamoDB.
type Storage struct {
	config config.StorageConfig
	mu     sync.Mutex
	log    *logger.Logger

	// AWS storage (optional)
	aws *AWSStorage
}

// New creates a Storage instance for the configured backend.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	s := &Storage{config: cfg, log: logger.New("storage")}

	switch cfg.Type {
	case "aws":
		awsStorage, err := NewAWSStorage(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS storage: %w", err)
		}
		s.aws = awsStorage
		if cfg.S3Bucket == "" || cfg.DynamoDBTable == "" {
			if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
				return nil, fmt.Errorf("creating storage directory: %w", err)
			}
		}
	case "local", "":
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	return s, nil
}

// NewWithAWS wraps an existing AWSStorage. Empty bucket or table fall back to local files.
func NewWithAWS(cfg config.StorageConfig, a *AWSStorage) *Storage {
	return &Storage{config: cfg, aws: a, log: logger.New("storage")}
}

func (s *Storage) useS3() bool     { return s.aws != nil && s.aws.bucket != "" }
func (s *Storage) useDynamo() bool { return s.aws != nil && s.aws.tableName != "" }

// Export writes the run snapshot and a "latest" pointer copy, returning the
// snapshot location.
func (s *Storage) Export(ctx context.Context, report *discovery.RunReport, products []*opportunity.DiscoveredProduct) (string, error) {
	if products == nil {
		products = []*opportunity.DiscoveredProduct{}
	}
	snap := Snapshot{Report: *report, Products: products}
	key := snapshotKey(report)

	if s.useS3() {
		if err := s.aws.SaveToS3(ctx, key, snap); err != nil {
			return "", err
		}
		if err := s.aws.SaveToS3(ctx, latestKey, snap); err != nil {
			return "", err
		}
		return s.aws.URI(key), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.saveToFile(key, snap)
	if err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if _, err := s.saveToFile(latestKey, snap); err != nil {
		return "", fmt.Errorf("writing latest snapshot: %w", err)
	}
	return "file://" + path, nil
}

// LatestSnapshot returns the most recently exported snapshot, or ErrNoSnapshot.
func (s *Storage) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if s.useS3() {
		if err := s.aws.GetFromS3(ctx, latestKey, &snap); err != nil {
			if isS3NotFound(err) {
				return nil, ErrNoSnapshot
			}
			return nil, err
		}
		return &snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadFromFile(latestKey, &snap); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("reading latest snapshot: %w", err)
	}
	return &snap, nil
}

// Record stores a run report in the history.
func (s *Storage) Record(ctx context.Context, report *discovery.RunReport) error {
	if s.useDynamo() {
		return s.aws.SaveRunReport(ctx, report)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.saveToFile(filepath.Join("runs", report.RunID), report); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit run reports, newest first.
func (s *Storage) RecentRuns(ctx context.Context, limit int) ([]discovery.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.useDynamo() {
		return s.aws.QueryRunReports(ctx, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Join(s.config.LocalPath, "runs")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []discovery.RunReport{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run history: %w", err)
	}

	reports := make([]discovery.RunReport, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var r discovery.RunReport
		if err := json.Unmarshal(data, &r); err != nil {
			s.log.Warn("skipping unreadable run report", "file", entry.Name(), "error", err)
			continue
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// saveToFile saves data to a JSON file under the local path and returns its absolute path.
func (s *Storage) saveToFile(key string, data interface{}) (string, error) {
	path := filepath.Join(s.config.LocalPath, filepath.FromSlash(key))
	if filepath.Ext(path) != ".json" {
		path += ".json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return "", err
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs, nil
	}
	return path, nil
}

func (s *Storage) loadFromFile(key string, data interface{}) error {
	file, err := os.Open(filepath.Join(s.config.LocalPath, filepath.FromSlash(key)))
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(data)
}

const latestKey = "snapshots/latest.json"

func snapshotKey(r *discovery.RunReport) string {
	return fmt.Sprintf("snapshots/%s/%s.json", r.StartedAt.UTC().Format("2006/01/02"), r.RunID)
}

package discovery

import (
	"context"
	"time"

	"github.com/ignite/smart-affiliate/internal/opportunity"
)

// Repository is the cross-run product store. Implementations must be safe
// for concurrent use.
type Repository interface {
	opportunity.ProductStore

	// GetByID returns a product by its ID, or opportunity.ErrProductNotFound.
	GetByID(ctx context.Context, id string) (*opportunity.DiscoveredProduct, error)

	// List returns stored products matching the filter, ranked.
	List(ctx context.Context, filter ListFilter) ([]*opportunity.DiscoveredProduct, error)
}

// SnapshotExporter writes a ranked run snapshot somewhere durable and returns its location.
type SnapshotExporter interface {
	Export(ctx context.Context, report *RunReport, products []*opportunity.DiscoveredProduct) (string, error)
}

// RunHistory records run reports.
type RunHistory interface {
	Record(ctx context.Context, report *RunReport) error
}

// Collector gathers settled results from all source adapters.
type Collector interface {
	CollectAll(ctx context.Context) []opportunity.SourceResult
}

// ListFilter narrows a ranked product list.
type ListFilter struct {
	Limit    int
	MinScore float64
	Level    opportunity.ExclusivityLevel
}

// Match reports whether p passes the score and level filters.
func (f ListFilter) Match(p *opportunity.DiscoveredProduct) bool {
	if p.OpportunityScore < f.MinScore {
		return false
	}
	return f.Level == "" || p.ExclusivityLevel == f.Level
}

// Apply filters an already ranked slice and truncates it to Limit.
func (f ListFilter) Apply(ranked []*opportunity.DiscoveredProduct) []*opportunity.DiscoveredProduct {
	out := make([]*opportunity.DiscoveredProduct, 0, len(ranked))
	for _, p := range ranked {
		if !f.Match(p) {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// SourceStatus describes one adapter's contribution to a run.
type SourceStatus struct {
	Name    string                 `json:"name" dynamodbav:"name"`
	Kind    opportunity.SourceKind `json:"kind" dynamodbav:"kind"`
	Records int                    `json:"records" dynamodbav:"records"`
	Error   string                 `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// RunReport summarizes a completed run.
type RunReport struct {
	RunID       string         `json:"runId" dynamodbav:"run_id"`
	StartedAt   time.Time      `json:"startedAt" dynamodbav:"started_at"`
	FinishedAt  time.Time      `json:"finishedAt" dynamodbav:"finished_at"`
	Sources     []SourceStatus `json:"sources" dynamodbav:"sources"`
	Dropped     int            `json:"dropped" dynamodbav:"dropped"`
	Products    int            `json:"products" dynamodbav:"products"`
	SnapshotURI string         `json:"snapshotUri,omitempty" dynamodbav:"snapshot_uri,omitempty"`
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

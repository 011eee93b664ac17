package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/smart-affiliate/internal/digest"
	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/opportunity"
	"github.com/ignite/smart-affiliate/internal/pkg/httputil"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
)

// OpportunityService is the discovery surface the handlers depend on.
type OpportunityService interface {
	Latest(ctx context.Context, f discovery.ListFilter) ([]*opportunity.DiscoveredProduct, error)
	Get(ctx context.Context, id string) (*opportunity.DiscoveredProduct, error)
	RunOnce(ctx context.Context) (*discovery.RunReport, error)
	LatestReport() (*discovery.RunReport, error)
	Score(ctx context.Context, mentions []opportunity.YouTubeMention, ads []opportunity.AdvertiserRecord) opportunity.Outcome
	Running() bool
}

// RunLister lists recorded run reports, newest first.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]discovery.RunReport, error)
}

// Handlers contains HTTP handlers for the opportunity API
type Handlers struct {
	svc    OpportunityService
	digest *digest.Renderer
	runs   RunLister
	log    *logger.Logger
}

// NewHandlers creates handlers. runs may be nil.
func NewHandlers(svc OpportunityService, renderer *digest.Renderer, runs RunLister) *Handlers {
	return &Handlers{svc: svc, digest: renderer, runs: runs, log: logger.New("api")}
}

// ScoreRequest is the body of an ad-hoc scoring call.
type ScoreRequest struct {
	YouTube []opportunity.YouTubeMention   `json:"youtube"`
	Ads     []opportunity.AdvertiserRecord `json:"ads"`
}

// ScoreResponse is the ranked result of an ad-hoc scoring call.
type ScoreResponse struct {
	Products []*opportunity.DiscoveredProduct `json:"products"`
	Dropped  int                              `json:"dropped"`
}

// ListOpportunities returns the latest ranked list.
//
//	GET /api/opportunities?limit=&min_score=&level=
func (h *Handlers) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	products, err := h.svc.Latest(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, products)
}

// GetOpportunity returns one product by ID.
//
//	GET /api/opportunities/{id}
func (h *Handlers) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if discovery.IsNotFound(err) {
		httputil.NotFound(w, "opportunity not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, p)
}

// TriggerRun executes a discovery run and returns its report.
//
//	POST /api/opportunities/run
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.RunOnce(r.Context())
	if errors.Is(err, discovery.ErrRunInProgress) {
		httputil.Conflict(w, "run_in_progress", err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, report)
}

// ScoreOpportunities aggregates caller-supplied observations without persisting them.
//
//	POST /api/opportunities/score
func (h *Handlers) ScoreOpportunities(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	out := h.svc.Score(r.Context(), req.YouTube, req.Ads)
	httputil.OK(w, ScoreResponse{Products: out.Products, Dropped: out.Dropped})
}

// Digest renders the top ranked opportunities as plain text.
//
//	GET /api/opportunities/digest?min_score=&level=
func (h *Handlers) Digest(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	if f.Limit == 0 || f.Limit > h.digest.TopN() {
		f.Limit = h.digest.TopN()
	}
	products, err := h.svc.Latest(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	body, err := h.digest.Render(products)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Text(w, http.StatusOK, body)
}

// LatestRun returns the most recent run report from this process.
//
//	GET /api/runs/latest
func (h *Handlers) LatestRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.LatestReport()
	if errors.Is(err, discovery.ErrNoRunYet) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, report)
}

// ListRuns returns recorded run reports, newest first.
//
//	GET /api/runs?limit=
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 20)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if h.runs == nil {
		httputil.OK(w, []discovery.RunReport{})
		return
	}
	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, runs)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (discovery.ListFilter, bool) {
	var f discovery.ListFilter
	var err error
	if f.Limit, err = httputil.QueryInt(r, "limit", 0); err != nil {
		httputil.BadRequest(w, err.Error())
		return f, false
	}
	if f.MinScore, err = httputil.QueryFloat(r, "min_score", 0, 0, opportunity.MaxOpportunityScore); err != nil {
		httputil.BadRequest(w, err.Error())
		return f, false
	}
	if level := r.URL.Query().Get("level"); level != "" {
		f.Level = opportunity.ExclusivityLevel(level)
		if !f.Level.Valid() {
			httputil.BadRequest(w, "level must be one of public, semi-exclusive, exclusive, super-exclusive")
			return f, false
		}
	}
	return f, true
}

// Package digest renders a plain-text summary of the top ranked opportunities
// using Liquid templates.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/osteele/liquid"

	"github.com/ignite/smart-affiliate/internal/opportunity"
)

// DefaultTopN is the number of products rendered when none is configured.
const DefaultTopN = 10

// DefaultTemplate renders a numbered list with recommendations.
const DefaultTemplate = `Smart Affiliate opportunities ({{ generated_at }})
{% if count == 0 %}No opportunities found.
{% else %}{% for p in products %}{{ forloop.index }}. {{ p.name }} ({{ p.vendor }}) {{ p.score | score }} [{{ p.level | level }}] via {{ p.source }}, seen {{ p.frequency }}x
{% for r in p.recommendations %}   - {{ r.priority | upcase }}: {{ r.action }} ({{ r.confidence }}%)
{% endfor %}{% endfor %}{% endif %}`

// Renderer renders digests from a compiled template.
type Renderer struct {
	engine *liquid.Engine
	tpl    *liquid.Template
	topN   int
	now    func() time.Time
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithClock sets the clock used for the generated_at stamp.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// New compiles source (DefaultTemplate when empty) and returns a renderer
// limited to the top topN products.
func New(topN int, source string, opts ...Option) (*Renderer, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if strings.TrimSpace(source) == "" {
		source = DefaultTemplate
	}

	engine := liquid.NewEngine()
	registerFilters(engine)

	tpl, err := engine.ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	r := &Renderer{engine: engine, tpl: tpl, topN: topN, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// TopN returns the configured product limit.
func (r *Renderer) TopN() int { return r.topN }

// Render renders the first TopN products of an already ranked list.
func (r *Renderer) Render(ranked []*opportunity.DiscoveredProduct) (string, error) {
	if len(ranked) > r.topN {
		ranked = ranked[:r.topN]
	}
	items := make([]map[string]interface{}, 0, len(ranked))
	for _, p := range ranked {
		items = append(items, bindProduct(p))
	}

	out, err := r.tpl.RenderString(liquid.Bindings{
		"generated_at": r.now().UTC().Format(time.RFC3339),
		"count":        len(items),
		"products":     items,
	})
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return out, nil
}

func bindProduct(p *opportunity.DiscoveredProduct) map[string]interface{} {
	recs := make([]map[string]interface{}, 0, len(p.Recommendations))
	for _, rec := range p.Recommendations {
		recs = append(recs, map[string]interface{}{
			"priority":   string(rec.Priority),
			"action":     rec.Action,
			"reasoning":  rec.Reasoning,
			"confidence": rec.ConfidenceLevel,
		})
	}
	return map[string]interface{}{
		"id":              p.ID,
		"name":            p.ProductName,
		"vendor":          p.Vendor,
		"score":           p.OpportunityScore,
		"hot":             p.HotScore,
		"exclusivity":     p.ExclusivityScore,
		"competition":     p.CompetitionScore,
		"level":           string(p.ExclusivityLevel),
		"indicators":      p.ExclusivityIndicators,
		"source":          string(p.DiscoverySource),
		"frequency":       p.DiscoveryFrequency,
		"mentions":        p.MentionCount(),
		"active_ads":      p.ActiveAdCount(),
		"recommendations": recs,
	}
}

var levelLabels = map[string]string{
	string(opportunity.LevelPublic):         "Public",
	string(opportunity.LevelSemiExclusive):  "Semi-exclusive",
	string(opportunity.LevelExclusive):      "Exclusive",
	string(opportunity.LevelSuperExclusive): "SUPER-EXCLUSIVE",
}

func registerFilters(engine *liquid.Engine) {
	// {{ p.score | score }} -> "85/100"
	engine.RegisterFilter("score", func(v float64) string {
		return fmt.Sprintf("%.0f/100", v)
	})

	// {{ p.level | level }} -> display label
	engine.RegisterFilter("level", func(s string) string {
		if label, ok := levelLabels[s]; ok {
			return label
		}
		return s
	})
}

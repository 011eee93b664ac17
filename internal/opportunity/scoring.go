package opportunity

import (
	"math"
	"time"
)

// Scoring weights.
const (
	HotScorePerDiscovery = 5.0
	HotScoreFrequencyCap = 25.0
	RecencyBonus         = 15.0
	RecencyWindow        = 24 * time.Hour

	// GoldCompetitionScore rewards YouTube buzz without matching ad saturation.
	GoldCompetitionScore      = 30.0
	ContestedCompetitionScore = 15.0
	AdSaturationThreshold     = 5

	MaxOpportunityScore = 100.0
)

// ExclusivityScores is the fixed tier lookup table.
var ExclusivityScores = map[ExclusivityLevel]float64{
	LevelPublic:         5,
	LevelSemiExclusive:  15,
	LevelExclusive:      25,
	LevelSuperExclusive: 30,
}

// Scorer computes derived scores. The clock is injected so identical input
// always yields identical output.
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a scorer; a nil clock defaults to time.Now.
func NewScorer(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

// Score computes the full score set for p without modifying it.
func (s *Scorer) Score(p *DiscoveredProduct) ScoreSet {
	return s.scoreAt(p, s.now())
}

func (s *Scorer) scoreAt(p *DiscoveredProduct, now time.Time) ScoreSet {
	hot := math.Min(HotScoreFrequencyCap, float64(max(p.DiscoveryFrequency, 0))*HotScorePerDiscovery)
	if !p.DiscoveredAt.IsZero() && now.Sub(p.DiscoveredAt) < RecencyWindow {
		hot += RecencyBonus
	}

	exclusivity := ExclusivityScores[MaxLevel(LevelPublic, p.ExclusivityLevel)]

	var competition float64
	if p.MentionCount() > 0 {
		if p.ActiveAdCount() < AdSaturationThreshold {
			competition = GoldCompetitionScore
		} else {
			competition = ContestedCompetitionScore
		}
	}

	return ScoreSet{
		HotScore:         hot,
		ExclusivityScore: exclusivity,
		CompetitionScore: competition,
		OpportunityScore: combine(hot, exclusivity, competition),
	}
}

// Apply recomputes and stores every score on p in one assignment, then
// verifies the combination invariant.
func (s *Scorer) Apply(p *DiscoveredProduct) error {
	set := s.Score(p)
	p.HotScore, p.ExclusivityScore, p.CompetitionScore, p.OpportunityScore =
		set.HotScore, set.ExclusivityScore, set.CompetitionScore, set.OpportunityScore
	return CheckScores(p)
}

// CheckScores verifies that p's applied scores are bounded and consistent.
func CheckScores(p *DiscoveredProduct) error {
	set := p.Scores()
	if set.HotScore < 0 || set.ExclusivityScore < 0 || set.CompetitionScore < 0 ||
		set.OpportunityScore != combine(set.HotScore, set.ExclusivityScore, set.CompetitionScore) {
		return &ScoringInconsistencyError{ProductID: p.ID, Scores: set}
	}
	return nil
}

func combine(hot, exclusivity, competition float64) float64 {
	total := math.Round(hot + exclusivity + competition)
	return math.Max(0, math.Min(MaxOpportunityScore, total))
}

package opportunity

import (
	"errors"
	"fmt"
)

// Sentinel errors for the opportunity core.
var (
	ErrMalformedRecord   = errors.New("malformed record")
	ErrProductNotFound   = errors.New("product not found")
	ErrSourceUnavailable = errors.New("source unavailable")
)

// MalformedRecordError reports a raw record that lacks identity fields.
type MalformedRecordError struct {
	Kind   SourceKind
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record: %s", e.Kind, e.Reason)
}

// Is lets errors.Is match ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// SourceUnavailableError reports an adapter that failed or timed out.
// The aggregation treats it as zero observations from that source.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrSourceUnavailable.
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// ScoringInconsistencyError is raised when an applied score set breaks the
// opportunity = min(100, hot + exclusivity + competition) invariant.
type ScoringInconsistencyError struct {
	ProductID string
	Scores    ScoreSet
}

func (e *ScoringInconsistencyError) Error() string {
	return fmt.Sprintf("inconsistent scores for product %s: hot=%.2f exclusivity=%.2f competition=%.2f opportunity=%.2f",
		e.ProductID, e.Scores.HotScore, e.Scores.ExclusivityScore, e.Scores.CompetitionScore, e.Scores.OpportunityScore)
}

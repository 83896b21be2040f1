// Package progression implements the Job Readiness rule engine: given the
// module results recorded for a student against a product's module list, it
// decides what completion tier and star level the student holds.
//
// The engine is pure: it performs no I/O, holds no state between calls and
// always yields the same output for the same input. All reads and writes
// around it belong to the submission Service.
package progression

import (
	"errors"
	"fmt"
	"math"

	pkgerrors "github.com/pkg/errors"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
)

var (
	// ErrNoAssessmentModules is returned for a degenerate product with zero
	// assessment modules: an empty mean is undefined, so the condition is
	// surfaced as a core.ConfigurationError instead of silently defaulting
	// to a tier.
	ErrNoAssessmentModules = core.NewConfigurationError("product has no assessment modules")

	// ErrMissingResults is returned when the supplied result set does not
	// cover every assessment module. Callers must pass a StatusNotStarted
	// placeholder for untouched modules; omission is rejected rather than
	// guessed at.
	ErrMissingResults = errors.New("result set does not cover every assessment module")

	errInvalidBoundaries = errors.New("tier boundaries must satisfy 0 < silver <= gold <= 100")
)

// TierBoundaries are the cut points applied to the rounded mean assessment
// score m: m < SilverMin is Bronze, m < GoldMin is Silver, the rest is Gold.
type TierBoundaries struct {
	SilverMin int
	GoldMin   int
}

var DefaultTierBoundaries = TierBoundaries{SilverMin: 60, GoldMin: 85}

func (b TierBoundaries) Validate() error {
	if b.SilverMin <= 0 || b.SilverMin > b.GoldMin || b.GoldMin > 100 {
		return errInvalidBoundaries
	}
	return nil
}

// BoundariesFromConfig builds TierBoundaries from the app config.
func BoundariesFromConfig(conf *core.Config) TierBoundaries {
	return TierBoundaries{
		SilverMin: conf.JobReadiness.SilverMinScore,
		GoldMin:   conf.JobReadiness.GoldMinScore,
	}
}

// Engine computes tiers and star levels. Safe for concurrent use.
type Engine struct {
	boundaries TierBoundaries
}

func NewEngine(boundaries TierBoundaries) (*Engine, error) {
	if err := boundaries.Validate(); err != nil {
		return nil, err
	}
	return &Engine{boundaries: boundaries}, nil
}

// EvaluateTier decides the tier held by a student given the latest result per
// assessment module of a product.
//
// modules may contain modules of any type; only assessment modules take part.
// results referencing modules absent from the list are ignored (a module
// removed from the product after the student started it must not poison the
// computation). Every assessment module must be covered by exactly one
// result; results for untouched modules are StatusNotStarted placeholders,
// never omitted.
//
// While any assessment is not completed the outcome is TierNone with
// AllComplete false and no score aggregation. Once all are completed the
// arithmetic mean of the scores is computed in floating point, rounded
// half-up to the nearest integer and bucketed by the configured boundaries.
// A completed result that was never graded counts as 0.
func (e *Engine) EvaluateTier(modules []product.Module, results []ModuleResult) (TierOutcome, error) {
	assessments := make([]product.Module, 0, len(modules))
	for _, mod := range modules {
		if mod.Type == product.ModuleTypeAssessment {
			assessments = append(assessments, mod)
		}
	}
	if len(assessments) == 0 {
		return TierOutcome{}, ErrNoAssessmentModules
	}

	byModule := make(map[string]ModuleResult, len(results))
	for _, res := range results {
		byModule[res.ModuleID] = res // stale entries are filtered out below
	}

	outcome := TierOutcome{Tier: TierNone, TotalCount: len(assessments)}

	var scoreSum int
	for _, mod := range assessments {
		res, ok := byModule[mod.ID]
		if !ok {
			return TierOutcome{}, pkgerrors.Wrap(ErrMissingResults, fmt.Sprintf("module %q", mod.ID))
		}
		if res.Status != StatusCompleted {
			continue
		}
		outcome.CompletedCount++
		if res.Score != nil {
			scoreSum += *res.Score
		}
	}

	if outcome.CompletedCount < outcome.TotalCount {
		return outcome, nil
	}

	mean := float64(scoreSum) / float64(outcome.TotalCount)
	m := int(math.Floor(mean + 0.5)) // round half-up

	outcome.AllComplete = true
	outcome.AverageScore = &m
	switch {
	case m < e.boundaries.SilverMin:
		outcome.Tier = TierBronze
	case m < e.boundaries.GoldMin:
		outcome.Tier = TierSilver
	default:
		outcome.Tier = TierGold
	}
	return outcome, nil
}

// EvaluateStarLevel counts the contiguous satisfied categories from the start
// of StarPath. A gap stops the count: a student does not hold star 3 while
// the star 2 category is incomplete, even if the star 3 category happens to
// be complete. This models a linear unlock path, not independent flags.
func (e *Engine) EvaluateStarLevel(flags map[ModuleCategory]bool) StarLevel {
	var level StarLevel
	for _, cat := range StarPath {
		if !flags[cat] {
			break
		}
		level++
	}
	return level
}

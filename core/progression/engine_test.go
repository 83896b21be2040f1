package progression

import (
	"math/rand"
	"testing"

	pkgerrors "github.com/pkg/errors"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
)

func intPtr(i int) *int { return &i }

func assessment(id string) product.Module {
	return product.Module{ID: id, ProductID: "prod1", Name: "Assessment " + id, Type: product.ModuleTypeAssessment}
}

func course(id string) product.Module {
	return product.Module{ID: id, ProductID: "prod1", Name: "Course " + id, Type: product.ModuleTypeCourse}
}

func completed(modID string, score int) ModuleResult {
	return ModuleResult{StudentID: "std1", ModuleID: modID, Status: StatusCompleted, Score: intPtr(score)}
}

func notStarted(modID string) ModuleResult {
	return ModuleResult{StudentID: "std1", ModuleID: modID, Status: StatusNotStarted}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(DefaultTierBoundaries)
	if err != nil {
		t.Fatalf("NewEngine() failed, %v", err)
	}
	return eng
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name       string
		boundaries TierBoundaries
		wantErr    bool
	}{
		{name: "default", boundaries: DefaultTierBoundaries},
		{name: "custom", boundaries: TierBoundaries{SilverMin: 50, GoldMin: 90}},
		{name: "silver equals gold", boundaries: TierBoundaries{SilverMin: 75, GoldMin: 75}},
		{name: "zero silver", boundaries: TierBoundaries{SilverMin: 0, GoldMin: 85}, wantErr: true},
		{name: "silver above gold", boundaries: TierBoundaries{SilverMin: 90, GoldMin: 85}, wantErr: true},
		{name: "gold above 100", boundaries: TierBoundaries{SilverMin: 60, GoldMin: 101}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.boundaries)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEngine() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_EvaluateTier(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name    string
		modules []product.Module
		results []ModuleResult
		want    TierOutcome
		wantErr error
	}{
		{
			name:    "no assessment modules",
			modules: []product.Module{course("c1"), course("c2")},
			wantErr: ErrNoAssessmentModules,
		},
		{
			name:    "empty product",
			modules: nil,
			wantErr: ErrNoAssessmentModules,
		},
		{
			name:    "missing placeholder result",
			modules: []product.Module{assessment("a1"), assessment("a2")},
			results: []ModuleResult{completed("a1", 90)},
			wantErr: ErrMissingResults,
		},
		{
			name:    "not started",
			modules: []product.Module{assessment("a1"), assessment("a2")},
			results: []ModuleResult{notStarted("a1"), notStarted("a2")},
			want:    TierOutcome{Tier: TierNone, TotalCount: 2},
		},
		{
			name:    "partially completed",
			modules: []product.Module{assessment("a1"), assessment("a2"), assessment("a3")},
			results: []ModuleResult{completed("a1", 70), completed("a2", 80), notStarted("a3")},
			want:    TierOutcome{Tier: TierNone, CompletedCount: 2, TotalCount: 3},
		},
		{
			name:    "in progress is not completed",
			modules: []product.Module{assessment("a1")},
			results: []ModuleResult{{StudentID: "std1", ModuleID: "a1", Status: StatusInProgress, Score: intPtr(100)}},
			want:    TierOutcome{Tier: TierNone, TotalCount: 1},
		},
		{
			name:    "all completed lands silver",
			modules: []product.Module{assessment("a1"), assessment("a2"), assessment("a3")},
			results: []ModuleResult{completed("a1", 70), completed("a2", 80), completed("a3", 90)},
			want:    TierOutcome{Tier: TierSilver, AllComplete: true, CompletedCount: 3, TotalCount: 3, AverageScore: intPtr(80)},
		},
		{
			name:    "just below silver boundary",
			modules: []product.Module{assessment("a1")},
			results: []ModuleResult{completed("a1", 59)},
			want:    TierOutcome{Tier: TierBronze, AllComplete: true, CompletedCount: 1, TotalCount: 1, AverageScore: intPtr(59)},
		},
		{
			name:    "exactly silver boundary",
			modules: []product.Module{assessment("a1")},
			results: []ModuleResult{completed("a1", 60)},
			want:    TierOutcome{Tier: TierSilver, AllComplete: true, CompletedCount: 1, TotalCount: 1, AverageScore: intPtr(60)},
		},
		{
			name:    "just below gold boundary",
			modules: []product.Module{assessment("a1")},
			results: []ModuleResult{completed("a1", 84)},
			want:    TierOutcome{Tier: TierSilver, AllComplete: true, CompletedCount: 1, TotalCount: 1, AverageScore: intPtr(84)},
		},
		{
			name:    "exactly gold boundary",
			modules: []product.Module{assessment("a1")},
			results: []ModuleResult{completed("a1", 85)},
			want:    TierOutcome{Tier: TierGold, AllComplete: true, CompletedCount: 1, TotalCount: 1, AverageScore: intPtr(85)},
		},
		{
			name:    "half mean rounds up to gold",
			modules: []product.Module{assessment("a1"), assessment("a2")},
			results: []ModuleResult{completed("a1", 84), completed("a2", 85)},
			want:    TierOutcome{Tier: TierGold, AllComplete: true, CompletedCount: 2, TotalCount: 2, AverageScore: intPtr(85)},
		},
		{
			name:    "half mean rounds up to silver",
			modules: []product.Module{assessment("a1"), assessment("a2")},
			results: []ModuleResult{completed("a1", 59), completed("a2", 60)},
			want:    TierOutcome{Tier: TierSilver, AllComplete: true, CompletedCount: 2, TotalCount: 2, AverageScore: intPtr(60)},
		},
		{
			name:    "below half mean rounds down",
			modules: []product.Module{assessment("a1"), assessment("a2"), assessment("a3")},
			results: []ModuleResult{completed("a1", 59), completed("a2", 59), completed("a3", 60)},
			want:    TierOutcome{Tier: TierBronze, AllComplete: true, CompletedCount: 3, TotalCount: 3, AverageScore: intPtr(59)},
		},
		{
			name:    "completed without score counts as zero",
			modules: []product.Module{assessment("a1"), assessment("a2")},
			results: []ModuleResult{completed("a1", 100), {StudentID: "std1", ModuleID: "a2", Status: StatusCompleted}},
			want:    TierOutcome{Tier: TierBronze, AllComplete: true, CompletedCount: 2, TotalCount: 2, AverageScore: intPtr(50)},
		},
		{
			name:    "non-assessment modules do not dilute the mean",
			modules: []product.Module{assessment("a1"), course("c1"), course("c2")},
			results: []ModuleResult{completed("a1", 90), completed("c1", 10), notStarted("c2")},
			want:    TierOutcome{Tier: TierGold, AllComplete: true, CompletedCount: 1, TotalCount: 1, AverageScore: intPtr(90)},
		},
		{
			name:    "stale result for removed module is ignored",
			modules: []product.Module{assessment("a1")},
			results: []ModuleResult{completed("a1", 90), completed("gone", 10)},
			want:    TierOutcome{Tier: TierGold, AllComplete: true, CompletedCount: 1, TotalCount: 1, AverageScore: intPtr(90)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eng.EvaluateTier(tt.modules, tt.results)
			if tt.wantErr != nil {
				if pkgerrors.Cause(err) != tt.wantErr {
					t.Fatalf("EvaluateTier() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EvaluateTier() failed, %v", err)
			}
			assertOutcome(t, got, tt.want)
		})
	}
}

func TestEngine_EvaluateTier_ConfigurationError(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.EvaluateTier([]product.Module{course("c1")}, nil)
	if pkgerrors.Cause(err) != ErrNoAssessmentModules {
		t.Fatalf("EvaluateTier() error = %v, want %v", err, ErrNoAssessmentModules)
	}
	// operators must be able to tell broken product setup from other failures
	if !core.IsConfigurationError(err) {
		t.Errorf("IsConfigurationError() = false for %v", err)
	}
}

func assertOutcome(t *testing.T, got, want TierOutcome) {
	t.Helper()
	if got.Tier != want.Tier {
		t.Errorf("Tier = %v, want %v", got.Tier, want.Tier)
	}
	if got.AllComplete != want.AllComplete {
		t.Errorf("AllComplete = %v, want %v", got.AllComplete, want.AllComplete)
	}
	if got.CompletedCount != want.CompletedCount {
		t.Errorf("CompletedCount = %v, want %v", got.CompletedCount, want.CompletedCount)
	}
	if got.TotalCount != want.TotalCount {
		t.Errorf("TotalCount = %v, want %v", got.TotalCount, want.TotalCount)
	}
	switch {
	case want.AverageScore == nil:
		if got.AverageScore != nil {
			t.Errorf("AverageScore = %d, want nil", *got.AverageScore)
		}
	case got.AverageScore == nil:
		t.Errorf("AverageScore = nil, want %d", *want.AverageScore)
	case *got.AverageScore != *want.AverageScore:
		t.Errorf("AverageScore = %d, want %d", *got.AverageScore, *want.AverageScore)
	}
}

// the outcome must not depend on the order modules or results arrive in
func TestEngine_EvaluateTier_permutationInvariance(t *testing.T) {
	eng := newTestEngine(t)

	modules := []product.Module{assessment("a1"), assessment("a2"), assessment("a3"), course("c1")}
	results := []ModuleResult{completed("a1", 55), completed("a2", 70), completed("a3", 85), completed("c1", 5)}
	want := TierOutcome{Tier: TierSilver, AllComplete: true, CompletedCount: 3, TotalCount: 3, AverageScore: intPtr(70)}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(modules), func(a, b int) { modules[a], modules[b] = modules[b], modules[a] })
		rng.Shuffle(len(results), func(a, b int) { results[a], results[b] = results[b], results[a] })

		got, err := eng.EvaluateTier(modules, results)
		if err != nil {
			t.Fatalf("EvaluateTier() failed, %v", err)
		}
		assertOutcome(t, got, want)
	}
}

func TestEngine_EvaluateTier_idempotent(t *testing.T) {
	eng := newTestEngine(t)

	modules := []product.Module{assessment("a1"), assessment("a2")}
	results := []ModuleResult{completed("a1", 61), completed("a2", 62)}

	first, err := eng.EvaluateTier(modules, results)
	if err != nil {
		t.Fatalf("EvaluateTier() failed, %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := eng.EvaluateTier(modules, results)
		if err != nil {
			t.Fatalf("EvaluateTier() failed, %v", err)
		}
		assertOutcome(t, got, first)
	}
}

func TestEngine_EvaluateTier_customBoundaries(t *testing.T) {
	eng, err := NewEngine(TierBoundaries{SilverMin: 50, GoldMin: 90})
	if err != nil {
		t.Fatalf("NewEngine() failed, %v", err)
	}

	tests := []struct {
		name  string
		score int
		want  Tier
	}{
		{name: "below silver", score: 49, want: TierBronze},
		{name: "at silver", score: 50, want: TierSilver},
		{name: "below gold", score: 89, want: TierSilver},
		{name: "at gold", score: 90, want: TierGold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eng.EvaluateTier([]product.Module{assessment("a1")}, []ModuleResult{completed("a1", tt.score)})
			if err != nil {
				t.Fatalf("EvaluateTier() failed, %v", err)
			}
			if got.Tier != tt.want {
				t.Errorf("Tier = %v, want %v", got.Tier, tt.want)
			}
		})
	}
}

func TestEngine_EvaluateStarLevel(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name  string
		flags map[ModuleCategory]bool
		want  StarLevel
	}{
		{name: "nothing satisfied", flags: nil, want: 0},
		{
			name:  "first category only",
			flags: map[ModuleCategory]bool{CategoryInitialAssessments: true},
			want:  1,
		},
		{
			name: "gap stops the count",
			flags: map[ModuleCategory]bool{
				CategoryInitialAssessments: true,
				CategoryExpertSessions:     true, // unreachable while courses are incomplete
			},
			want: 1,
		},
		{
			name: "later categories alone grant nothing",
			flags: map[ModuleCategory]bool{
				CategoryProject:   true,
				CategoryInterview: true,
			},
			want: 0,
		},
		{
			name: "three in a row",
			flags: map[ModuleCategory]bool{
				CategoryInitialAssessments: true,
				CategoryCoursesWithQuizzes: true,
				CategoryExpertSessions:     true,
			},
			want: 3,
		},
		{
			name: "all satisfied",
			flags: map[ModuleCategory]bool{
				CategoryInitialAssessments: true,
				CategoryCoursesWithQuizzes: true,
				CategoryExpertSessions:     true,
				CategoryProject:            true,
				CategoryInterview:          true,
			},
			want: MaxStarLevel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eng.EvaluateStarLevel(tt.flags); got != tt.want {
				t.Errorf("EvaluateStarLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

package progression

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cultusedu/cultus/core"
)

// Tier is the coarse Job Readiness proficiency bucket. TierNone is a first
// class value meaning "no tier computed yet" - it is deliberately distinct
// from TierBronze so that "no tier" can never be confused with "lowest tier".
type Tier string

const (
	TierNone   Tier = "none"
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

var AllTiers = []Tier{TierNone, TierBronze, TierSilver, TierGold}

func (t Tier) Valid() bool {
	for _, tier := range AllTiers {
		if t == tier {
			return true
		}
	}
	return false
}

func (t Tier) String() string { return string(t) }

// ModuleStatus is the student's standing on a single module.
type ModuleStatus string

const (
	StatusNotStarted ModuleStatus = "not_started"
	StatusInProgress ModuleStatus = "in_progress"
	StatusCompleted  ModuleStatus = "completed"
)

var AllStatuses = []ModuleStatus{StatusNotStarted, StatusInProgress, StatusCompleted}

func (s ModuleStatus) Valid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s ModuleStatus) String() string { return string(s) }

// ModuleResult is the latest recorded outcome for a (student, module) pair.
// It is owned by the submission flow; the engine only reads it.
type ModuleResult struct {
	StudentID   string       `json:"student_id"`
	ModuleID    string       `json:"module_id"`
	Status      ModuleStatus `json:"status"`
	Score       *int         `json:"score"`        // 0-100, nil until graded
	CompletedAt time.Time    `json:"completed_at"` // UTC; zero unless completed
	UpdatedAt   time.Time    `json:"updated_at"`   // UTC
}

// NewSubmission contains information needed to record a module result.
type NewSubmission struct {
	StudentID string       `json:"student_id" validate:"required"`
	ModuleID  string       `json:"module_id" validate:"required"`
	Status    ModuleStatus `json:"status" validate:"required,modulestatus"`
	Score     *int         `json:"score" validate:"omitempty,min=0,max=100"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.ModuleID = core.CleanString(ns.ModuleID)
	return validate.Struct(ns)
}

// NewEnrollment contains information needed to enroll a student in a product.
type NewEnrollment struct {
	StudentID      string `json:"student_id" validate:"required"`
	BackgroundType string `json:"background_type"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.StudentID = core.CleanString(ne.StudentID)
	ne.BackgroundType = core.CleanString(ne.BackgroundType, true /* lower */)
	return validate.Struct(ne)
}

// StarLevel is the sequential Job Readiness milestone, 0-5.
type StarLevel int

const MaxStarLevel StarLevel = 5

// ModuleCategory groups a product's modules for the star-level unlock path.
type ModuleCategory string

const (
	CategoryInitialAssessments ModuleCategory = "initial_assessments"
	CategoryCoursesWithQuizzes ModuleCategory = "courses_with_quizzes"
	CategoryExpertSessions     ModuleCategory = "expert_sessions"
	CategoryProject            ModuleCategory = "project"
	CategoryInterview          ModuleCategory = "interview"
)

// StarPath is the fixed unlock order. Star level N is reachable only once
// every category before N is satisfied.
var StarPath = [MaxStarLevel]ModuleCategory{
	CategoryInitialAssessments,
	CategoryCoursesWithQuizzes,
	CategoryExpertSessions,
	CategoryProject,
	CategoryInterview,
}

// TierOutcome is the engine's verdict on a student's assessment results.
// AverageScore is the rounded mean of all assessment scores and is nil
// unless AllComplete.
type TierOutcome struct {
	Tier           Tier `json:"tier"`
	AllComplete    bool `json:"all_complete"`
	CompletedCount int  `json:"completed_count"`
	TotalCount     int  `json:"total_count"`
	AverageScore   *int `json:"average_score"`
}

// State is the single source of truth for a student's Job Readiness standing
// in a product. It is created at TierNone/0 on enrollment and only ever
// mutated with the engine's outputs; display surfaces re-derive their views
// from it instead of caching independently.
type State struct {
	StudentID      string    `json:"student_id"`
	ProductID      string    `json:"product_id"`
	Tier           Tier      `json:"tier"`
	StarLevel      StarLevel `json:"star_level"`
	BackgroundType string    `json:"background_type"` // consumed by content selection, opaque to tier math
	Version        int       `json:"-"`               // optimistic concurrency counter
	CreatedAt      time.Time `json:"created_at"`      // UTC
	UpdatedAt      time.Time `json:"updated_at"`      // UTC
}

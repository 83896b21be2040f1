package progression

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
	"github.com/cultusedu/cultus/core/user"
)

var (
	// errors
	ErrResultNotFound  = errors.New("module result not found")
	ErrStateNotFound   = errors.New("progression state not found")
	ErrNotEnrolled     = errors.New("student is not enrolled in this product")
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this product")
	// ErrStateConflict signals that the state row changed under a writer.
	// Repositories return it from UpdateStateCAS; the service retries.
	ErrStateConflict = errors.New("progression state was concurrently modified")

	// ErrRetriesExhausted is returned once casMaxAttempts conflicting writes
	// have been retried without success.
	ErrRetriesExhausted = errors.New("progression state update retries exhausted")
)

// casMaxAttempts bounds the re-read/re-evaluate loop on write conflicts.
const casMaxAttempts = 3

type (
	Repository interface {
		// GetLatestResults returns the latest result per module recorded for
		// the student against any module of the product, stale ones included.
		GetLatestResults(ctx context.Context, studentID, productID string, exec ...core.DBExecutor) ([]ModuleResult, error)
		UpsertResult(ctx context.Context, res ModuleResult, exec ...core.DBExecutor) (ModuleResult, error)

		GetState(ctx context.Context, studentID, productID string, exec ...core.DBExecutor) (State, error)
		CreateState(ctx context.Context, st State, exec ...core.DBExecutor) (State, error)
		// UpdateStateCAS persists st only if the stored version still equals
		// expectedVersion, bumping Version by one; otherwise ErrStateConflict.
		UpdateStateCAS(ctx context.Context, st State, expectedVersion int, exec ...core.DBExecutor) (State, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		prodSvc *product.Service
		usrSvc  user.Service
		mailSvc core.EmailService
		engine  *Engine
		logger  core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	prodSvc *product.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
	engine *Engine,
	logger core.Logger,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		prodSvc: prodSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		engine:  engine,
		logger:  logger,
	}
}

// Enroll creates the TierNone/0-star state for a student in a product.
// States are never deleted here; account deletion cascades in the database.
func (svc *Service) Enroll(ctx context.Context, studentID, productID, backgroundType string) (State, error) {
	if _, err := svc.usrSvc.GetByID(ctx, studentID); err != nil {
		return State{}, err
	}
	if _, err := svc.prodSvc.GetByID(ctx, productID); err != nil {
		return State{}, err
	}

	now := time.Now().UTC()
	st := State{
		StudentID:      studentID,
		ProductID:      productID,
		Tier:           TierNone,
		StarLevel:      0,
		BackgroundType: backgroundType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateState(ctx, st)
}

// SubmissionOutcome is what the submission flow hands back for persistence
// confirmation and display.
type SubmissionOutcome struct {
	Result      ModuleResult `json:"result"`
	TierOutcome TierOutcome  `json:"tier_outcome"`
	StarLevel   StarLevel    `json:"star_level"`
	State       State        `json:"state"`

	previousTier Tier // for first-earned notifications
}

// RecordSubmission stores the latest result for (student, module) and
// re-evaluates the student's tier and star level, persisting result and
// state in one transaction so a crash cannot leave them inconsistent beyond
// a retry cycle.
//
// Concurrent submissions for the same student are serialized through a
// compare-and-set on State.Version: a stale evaluation can never overwrite a
// newer state, which plain last-writer-wins on timestamps would allow. On a
// conflict everything is re-read and re-evaluated; the engine being pure
// makes the retry safe.
func (svc *Service) RecordSubmission(ctx context.Context, ns NewSubmission) (SubmissionOutcome, error) {
	mod, err := svc.prodSvc.GetModule(ctx, ns.ModuleID)
	if err != nil {
		return SubmissionOutcome{}, err
	}
	modules, err := svc.prodSvc.Modules(ctx, mod.ProductID)
	if err != nil {
		return SubmissionOutcome{}, err
	}

	res := ModuleResult{
		StudentID: ns.StudentID,
		ModuleID:  ns.ModuleID,
		Status:    ns.Status,
		Score:     ns.Score,
		UpdatedAt: time.Now().UTC(),
	}
	if ns.Status == StatusCompleted {
		res.CompletedAt = res.UpdatedAt
	}

	var outcome SubmissionOutcome
	for attempt := 1; ; attempt++ {
		outcome, err = svc.applySubmission(ctx, mod.ProductID, modules, res)
		if err == nil {
			break
		}
		if pkgerrors.Cause(err) != ErrStateConflict {
			return SubmissionOutcome{}, err
		}
		if attempt >= casMaxAttempts {
			return SubmissionOutcome{}, pkgerrors.Wrap(ErrRetriesExhausted, err.Error())
		}
	}

	svc.notifyTierChange(ctx, outcome)
	return outcome, nil
}

// applySubmission runs one write attempt: upsert the result, re-derive tier
// and star from all stored results, CAS the state. All inside a transaction.
func (svc *Service) applySubmission(ctx context.Context, productID string, modules []product.Module, res ModuleResult) (SubmissionOutcome, error) {
	prevState, err := svc.repo.GetState(ctx, res.StudentID, productID)
	if err != nil {
		if err == ErrStateNotFound {
			return SubmissionOutcome{}, ErrNotEnrolled
		}
		return SubmissionOutcome{}, err
	}

	tx, err := svc.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return SubmissionOutcome{}, pkgerrors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	saved, err := svc.repo.UpsertResult(ctx, res, tx)
	if err != nil {
		return SubmissionOutcome{}, pkgerrors.Wrap(err, "upserting module result")
	}

	results, err := svc.repo.GetLatestResults(ctx, res.StudentID, productID, tx)
	if err != nil {
		return SubmissionOutcome{}, pkgerrors.Wrap(err, "reading module results")
	}

	tierOutcome, star, err := svc.evaluate(modules, results)
	if err != nil {
		return SubmissionOutcome{}, err
	}

	newState := prevState
	newState.StarLevel = star
	newState.UpdatedAt = time.Now().UTC()
	// A computed TierNone never silently reverts an earned tier (eg. after an
	// assessment module was added to a completed product); only an explicit
	// admin reset may do that.
	if tierOutcome.Tier != TierNone || prevState.Tier == TierNone {
		newState.Tier = tierOutcome.Tier
	}

	newState, err = svc.repo.UpdateStateCAS(ctx, newState, prevState.Version, tx)
	if err != nil {
		return SubmissionOutcome{}, err
	}
	if err = tx.Commit(); err != nil {
		return SubmissionOutcome{}, pkgerrors.Wrap(err, "committing submission")
	}

	outcome := SubmissionOutcome{
		Result:      saved,
		TierOutcome: tierOutcome,
		StarLevel:   star,
		State:       newState,
	}
	// carry the previous tier so notifyTierChange can detect a transition
	outcome.previousTier = prevState.Tier
	return outcome, nil
}

// Recompute re-derives tier and star from stored results without recording a
// new submission; the engine's purity makes it idempotent. Used by the admin
// CLI and after module administration changes.
func (svc *Service) Recompute(ctx context.Context, studentID, productID string) (SubmissionOutcome, error) {
	modules, err := svc.prodSvc.Modules(ctx, productID)
	if err != nil {
		return SubmissionOutcome{}, err
	}

	var outcome SubmissionOutcome
	for attempt := 1; ; attempt++ {
		outcome, err = svc.applyRecompute(ctx, studentID, productID, modules)
		if err == nil {
			break
		}
		if pkgerrors.Cause(err) != ErrStateConflict {
			return SubmissionOutcome{}, err
		}
		if attempt >= casMaxAttempts {
			return SubmissionOutcome{}, pkgerrors.Wrap(ErrRetriesExhausted, err.Error())
		}
	}

	svc.notifyTierChange(ctx, outcome)
	return outcome, nil
}

func (svc *Service) applyRecompute(ctx context.Context, studentID, productID string, modules []product.Module) (SubmissionOutcome, error) {
	prevState, err := svc.repo.GetState(ctx, studentID, productID)
	if err != nil {
		if err == ErrStateNotFound {
			return SubmissionOutcome{}, ErrNotEnrolled
		}
		return SubmissionOutcome{}, err
	}

	results, err := svc.repo.GetLatestResults(ctx, studentID, productID)
	if err != nil {
		return SubmissionOutcome{}, pkgerrors.Wrap(err, "reading module results")
	}

	tierOutcome, star, err := svc.evaluate(modules, results)
	if err != nil {
		return SubmissionOutcome{}, err
	}

	newState := prevState
	newState.StarLevel = star
	newState.UpdatedAt = time.Now().UTC()
	if tierOutcome.Tier != TierNone || prevState.Tier == TierNone {
		newState.Tier = tierOutcome.Tier
	}

	newState, err = svc.repo.UpdateStateCAS(ctx, newState, prevState.Version)
	if err != nil {
		return SubmissionOutcome{}, err
	}

	outcome := SubmissionOutcome{
		TierOutcome: tierOutcome,
		StarLevel:   star,
		State:       newState,
	}
	outcome.previousTier = prevState.Tier
	return outcome, nil
}

// evaluate runs the engine over the stored results, synthesizing
// StatusNotStarted placeholders for modules without a recorded row so that
// the engine's coverage precondition holds.
func (svc *Service) evaluate(modules []product.Module, results []ModuleResult) (TierOutcome, StarLevel, error) {
	results = withPlaceholders(modules, results)

	tierOutcome, err := svc.engine.EvaluateTier(modules, results)
	if err != nil {
		return TierOutcome{}, 0, err
	}
	star := svc.engine.EvaluateStarLevel(categoryFlags(modules, results))
	return tierOutcome, star, nil
}

// withPlaceholders adds a StatusNotStarted result for every module the
// student has no stored row for yet.
func withPlaceholders(modules []product.Module, results []ModuleResult) []ModuleResult {
	covered := make(map[string]bool, len(results))
	for _, res := range results {
		covered[res.ModuleID] = true
	}
	for _, mod := range modules {
		if !covered[mod.ID] {
			results = append(results, ModuleResult{ModuleID: mod.ID, Status: StatusNotStarted})
		}
	}
	return results
}

// categoryFlags folds per-module completion into one boolean per star-path
// category. A category with no modules in the product stays false: the
// linear unlock path simply stops there.
func categoryFlags(modules []product.Module, results []ModuleResult) map[ModuleCategory]bool {
	byModule := make(map[string]ModuleResult, len(results))
	for _, res := range results {
		byModule[res.ModuleID] = res
	}

	counts := make(map[ModuleCategory]int)
	completed := make(map[ModuleCategory]int)
	for _, mod := range modules {
		cat, ok := categoryForType(mod.Type)
		if !ok {
			continue
		}
		counts[cat]++
		if res, ok := byModule[mod.ID]; ok && res.Status == StatusCompleted {
			completed[cat]++
		}
	}

	flags := make(map[ModuleCategory]bool, len(StarPath))
	for _, cat := range StarPath {
		flags[cat] = counts[cat] > 0 && completed[cat] == counts[cat]
	}
	return flags
}

func categoryForType(t product.ModuleType) (ModuleCategory, bool) {
	switch t {
	case product.ModuleTypeAssessment:
		return CategoryInitialAssessments, true
	case product.ModuleTypeCourse:
		return CategoryCoursesWithQuizzes, true
	case product.ModuleTypeExpertSession:
		return CategoryExpertSessions, true
	case product.ModuleTypeProject:
		return CategoryProject, true
	case product.ModuleTypeInterview:
		return CategoryInterview, true
	}
	return "", false
}

// notifyTierChange mails the student when a tier is first earned.
func (svc *Service) notifyTierChange(ctx context.Context, outcome SubmissionOutcome) {
	if outcome.previousTier != TierNone || outcome.State.Tier == TierNone {
		return
	}

	usr, err := svc.usrSvc.GetByID(ctx, outcome.State.StudentID)
	if err != nil {
		svc.logger.Error("looking up student for tier notification: "+err.Error(), err)
		return
	}
	if usr.Email == "" {
		return
	}
	prod, err := svc.prodSvc.GetByID(ctx, outcome.State.ProductID)
	if err != nil {
		svc.logger.Error("looking up product for tier notification: "+err.Error(), err)
		return
	}

	var avg int
	if outcome.TierOutcome.AverageScore != nil {
		avg = *outcome.TierOutcome.AverageScore
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("You reached the %s tier!", outcome.State.Tier),
		TemplateName: "tier_achieved",
		TemplateData: struct {
			Name         string
			ProductName  string
			Tier         Tier
			AverageScore int
		}{usr.Name, prod.Name, outcome.State.Tier, avg},
	})
}

// ProgressView is the display projection of a student's standing in a
// product, always derived from stored state and results.
type ProgressView struct {
	State     State                   `json:"state"`
	Tier      TierOutcome             `json:"tier_outcome"`
	StarLevel StarLevel               `json:"star_level"`
	Modules   []ModuleProgress        `json:"modules"`
	Unlocked  map[ModuleCategory]bool `json:"categories"`
}

type ModuleProgress struct {
	Module product.Module `json:"module"`
	Result ModuleResult   `json:"result"`
}

// Progress assembles the full progress view for a student in a product.
func (svc *Service) Progress(ctx context.Context, studentID, productID string) (ProgressView, error) {
	st, err := svc.repo.GetState(ctx, studentID, productID)
	if err != nil {
		if err == ErrStateNotFound {
			return ProgressView{}, ErrNotEnrolled
		}
		return ProgressView{}, err
	}

	modules, err := svc.prodSvc.Modules(ctx, productID)
	if err != nil {
		return ProgressView{}, err
	}
	results, err := svc.repo.GetLatestResults(ctx, studentID, productID)
	if err != nil {
		return ProgressView{}, err
	}
	results = withPlaceholders(modules, results)

	tierOutcome, err := svc.engine.EvaluateTier(modules, results)
	if err != nil {
		return ProgressView{}, err
	}

	byModule := make(map[string]ModuleResult, len(results))
	for _, res := range results {
		byModule[res.ModuleID] = res
	}
	rows := make([]ModuleProgress, 0, len(modules))
	for _, mod := range modules {
		rows = append(rows, ModuleProgress{Module: mod, Result: byModule[mod.ID]})
	}

	flags := categoryFlags(modules, results)
	return ProgressView{
		State:     st,
		Tier:      tierOutcome,
		StarLevel: svc.engine.EvaluateStarLevel(flags),
		Modules:   rows,
		Unlocked:  flags,
	}, nil
}

package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/progression"
)

type resultRow struct {
	StudentID   string    `db:"student_id"`
	ModuleID    string    `db:"module_id"`
	ProductID   string    `db:"product_id"`
	Status      string    `db:"status"`
	Score       null.Int  `db:"score"`
	CompletedAt null.Time `db:"completed_at"`
	UpdatedAt   null.Time `db:"updated_at"`
}

func (r resultRow) unpack() progression.ModuleResult {
	return progression.ModuleResult{
		StudentID:   r.StudentID,
		ModuleID:    r.ModuleID,
		Status:      progression.ModuleStatus(r.Status),
		Score:       r.Score.Ptr(),
		CompletedAt: r.CompletedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

type stateRow struct {
	StudentID      string    `db:"student_id"`
	ProductID      string    `db:"product_id"`
	Tier           string    `db:"tier"`
	StarLevel      int       `db:"star_level"`
	BackgroundType string    `db:"background_type"`
	Version        int       `db:"version"`
	CreatedAt      null.Time `db:"created_at"`
	UpdatedAt      null.Time `db:"updated_at"`
}

func (r stateRow) unpack() progression.State {
	return progression.State{
		StudentID:      r.StudentID,
		ProductID:      r.ProductID,
		Tier:           progression.Tier(r.Tier),
		StarLevel:      progression.StarLevel(r.StarLevel),
		BackgroundType: r.BackgroundType,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
	}
}

const (
	resultColumns = `student_id, module_id, product_id, status, score, completed_at, updated_at`
	stateColumns  = `student_id, product_id, tier, star_level, background_type, version, created_at, updated_at`
)

type progressionRepository struct {
	exec core.DBExecutor
}

var _ progression.Repository = (*progressionRepository)(nil) // interface compliance check

func NewProgressionRepository(exec core.DBExecutor) *progressionRepository {
	return &progressionRepository{exec: exec}
}

func (repo progressionRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo progressionRepository) GetLatestResults(ctx context.Context, studentID, productID string, exec ...core.DBExecutor) ([]progression.ModuleResult, error) {
	var rows []resultRow
	query := `SELECT ` + resultColumns + ` FROM module_result
		WHERE student_id = $1 AND product_id = $2`
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, studentID, productID); err != nil {
		return nil, errors.Wrap(err, "querying module results")
	}
	results := make([]progression.ModuleResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.unpack())
	}
	return results, nil
}

func (repo progressionRepository) UpsertResult(ctx context.Context, res progression.ModuleResult, exec ...core.DBExecutor) (progression.ModuleResult, error) {
	row := resultRow{
		StudentID:   res.StudentID,
		ModuleID:    res.ModuleID,
		Status:      res.Status.String(),
		Score:       null.IntFromPtr(res.Score),
		CompletedAt: null.NewTime(res.CompletedAt.UTC(), !res.CompletedAt.IsZero()),
		UpdatedAt:   null.NewTime(res.UpdatedAt.UTC(), !res.UpdatedAt.IsZero()),
	}

	// product_id is resolved once at write time so the row survives a later
	// module removal
	exe := repo.getExec(exec)
	query := `INSERT INTO module_result (` + resultColumns + `)
		VALUES ($1, $2, (SELECT product_id FROM module WHERE id = $2), $3, $4, $5, $6)
		ON CONFLICT (student_id, module_id) DO UPDATE SET
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + resultColumns
	err := exe.GetContext(ctx, &row, query,
		row.StudentID, row.ModuleID, row.Status, row.Score, row.CompletedAt, row.UpdatedAt)
	if err != nil {
		return progression.ModuleResult{}, errors.Wrap(err, "upserting module result")
	}
	return row.unpack(), nil
}

func (repo progressionRepository) GetState(ctx context.Context, studentID, productID string, exec ...core.DBExecutor) (progression.State, error) {
	var row stateRow
	query := `SELECT ` + stateColumns + ` FROM progression_state
		WHERE student_id = $1 AND product_id = $2`
	if err := repo.getExec(exec).GetContext(ctx, &row, query, studentID, productID); err != nil {
		if err == sql.ErrNoRows {
			return progression.State{}, progression.ErrStateNotFound
		}
		return progression.State{}, errors.Wrap(err, "finding progression state")
	}
	return row.unpack(), nil
}

func (repo progressionRepository) CreateState(ctx context.Context, st progression.State, exec ...core.DBExecutor) (progression.State, error) {
	row := stateRow{
		StudentID:      st.StudentID,
		ProductID:      st.ProductID,
		Tier:           st.Tier.String(),
		StarLevel:      int(st.StarLevel),
		BackgroundType: st.BackgroundType,
		Version:        1,
		CreatedAt:      null.NewTime(st.CreatedAt.UTC(), !st.CreatedAt.IsZero()),
		UpdatedAt:      null.NewTime(st.UpdatedAt.UTC(), !st.UpdatedAt.IsZero()),
	}

	exe := repo.getExec(exec)
	query := `INSERT INTO progression_state (` + stateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, product_id) DO NOTHING
		RETURNING ` + stateColumns
	err := exe.GetContext(ctx, &row, query,
		row.StudentID, row.ProductID, row.Tier, row.StarLevel, row.BackgroundType,
		row.Version, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows { // conflict: DO NOTHING returns no row
			return progression.State{}, progression.ErrAlreadyEnrolled
		}
		return progression.State{}, errors.Wrap(err, "inserting progression state")
	}
	return row.unpack(), nil
}

func (repo progressionRepository) UpdateStateCAS(ctx context.Context, st progression.State, expectedVersion int, exec ...core.DBExecutor) (progression.State, error) {
	row := stateRow{
		StudentID:      st.StudentID,
		ProductID:      st.ProductID,
		Tier:           st.Tier.String(),
		StarLevel:      int(st.StarLevel),
		BackgroundType: st.BackgroundType,
		UpdatedAt:      null.NewTime(st.UpdatedAt.UTC(), !st.UpdatedAt.IsZero()),
	}

	exe := repo.getExec(exec)
	query := `UPDATE progression_state SET
			tier = $3,
			star_level = $4,
			background_type = $5,
			version = version + 1,
			updated_at = $6
		WHERE student_id = $1 AND product_id = $2 AND version = $7
		RETURNING ` + stateColumns
	err := exe.GetContext(ctx, &row, query,
		row.StudentID, row.ProductID, row.Tier, row.StarLevel, row.BackgroundType,
		row.UpdatedAt, expectedVersion)
	if err == nil {
		return row.unpack(), nil
	}
	if err != sql.ErrNoRows {
		return progression.State{}, errors.Wrap(err, "updating progression state")
	}

	// no row updated: either the version moved or the state never existed
	if _, err = repo.GetState(ctx, st.StudentID, st.ProductID, exec...); err != nil {
		return progression.State{}, err
	}
	return progression.State{}, progression.ErrStateConflict
}

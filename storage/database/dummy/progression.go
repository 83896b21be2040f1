package dummydb

import (
	"context"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/progression"
)

type progressionRepository struct {
	results *resultTable
	states  *stateTable
	modules *moduleTable
}

var _ progression.Repository = (*progressionRepository)(nil) // interface compliance check

func NewProgressionRepository(db *DB) progression.Repository {
	return &progressionRepository{results: db.result, states: db.state, modules: db.module}
}

func (repo *progressionRepository) GetLatestResults(ctx context.Context, studentID, productID string, exec ...core.DBExecutor) ([]progression.ModuleResult, error) {
	repo.results.RLock()
	defer repo.results.RUnlock()

	var results []progression.ModuleResult
	for key, row := range repo.results.table {
		if key.studentID == studentID && row.productID == productID {
			results = append(results, row.ModuleResult)
		}
	}
	return results, nil
}

func (repo *progressionRepository) UpsertResult(ctx context.Context, res progression.ModuleResult, exec ...core.DBExecutor) (progression.ModuleResult, error) {
	// the product is resolved once at write time so the row survives a later
	// module removal
	repo.modules.RLock()
	var productID string
	if mod, ok := repo.modules.table[res.ModuleID]; ok {
		productID = mod.ProductID
	}
	repo.modules.RUnlock()

	repo.results.Lock()
	defer repo.results.Unlock()

	key := resultKey{studentID: res.StudentID, moduleID: res.ModuleID}
	row := &resultRow{ModuleResult: res, productID: productID}
	if orig, ok := repo.results.table[key]; ok && productID == "" {
		row.productID = orig.productID
	}
	repo.results.table[key] = row
	return res, nil
}

func (repo *progressionRepository) GetState(ctx context.Context, studentID, productID string, exec ...core.DBExecutor) (progression.State, error) {
	repo.states.RLock()
	defer repo.states.RUnlock()

	if st, ok := repo.states.table[stateKey{studentID: studentID, productID: productID}]; ok {
		return *st, nil
	}
	return progression.State{}, progression.ErrStateNotFound
}

func (repo *progressionRepository) CreateState(ctx context.Context, st progression.State, exec ...core.DBExecutor) (progression.State, error) {
	repo.states.Lock()
	defer repo.states.Unlock()

	key := stateKey{studentID: st.StudentID, productID: st.ProductID}
	if _, ok := repo.states.table[key]; ok {
		return progression.State{}, progression.ErrAlreadyEnrolled
	}
	st.Version = 1
	repo.states.table[key] = &st
	return st, nil
}

func (repo *progressionRepository) UpdateStateCAS(ctx context.Context, st progression.State, expectedVersion int, exec ...core.DBExecutor) (progression.State, error) {
	repo.states.Lock()
	defer repo.states.Unlock()

	key := stateKey{studentID: st.StudentID, productID: st.ProductID}
	orig, ok := repo.states.table[key]
	if !ok {
		return progression.State{}, progression.ErrStateNotFound
	}
	if orig.Version != expectedVersion {
		return progression.State{}, progression.ErrStateConflict
	}
	st.Version = expectedVersion + 1
	repo.states.table[key] = &st
	return st, nil
}

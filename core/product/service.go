package product

import (
	"context"
	"errors"
	"time"

	"github.com/cultusedu/cultus/core"
)

var (
	// errors
	ErrNotFound       = errors.New("product not found")
	ErrModuleNotFound = errors.New("module not found")
)

type (
	Repository interface {
		CreateProduct(ctx context.Context, prod Product, exec ...core.DBExecutor) (Product, error)
		QueryProducts(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Product, error)
		GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (Product, error)
		UpdateProduct(ctx context.Context, prod Product, exec ...core.DBExecutor) (Product, error)

		CreateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (Module, error)
		// QueryModules returns a product's modules ordered by sequence.
		QueryModules(ctx context.Context, productID string, exec ...core.DBExecutor) ([]Module, error)
		UpdateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, np NewProduct) (Product, error) {
	now := time.Now().UTC()
	active := true
	prod := Product{
		Name:        np.Name,
		Description: np.Description,
		IsActive:    &active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateProduct(ctx, prod)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Product, error) {
	return svc.repo.QueryProducts(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Product, error) {
	return svc.repo.GetProduct(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateProduct) (Product, error) {
	prod := Product{
		ID:          id,
		Name:        up.Name,
		Description: up.Description,
		IsActive:    up.IsActive,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateProduct(ctx, prod)
}

func (svc *Service) AddModule(ctx context.Context, productID string, nm NewModule) (Module, error) {
	if _, err := svc.repo.GetProduct(ctx, productID); err != nil {
		return Module{}, err
	}
	now := time.Now().UTC()
	mod := Module{
		ProductID: productID,
		Name:      nm.Name,
		Type:      nm.Type,
		Sequence:  nm.Sequence,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateModule(ctx, mod)
}

func (svc *Service) GetModule(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

// Modules returns all of a product's modules ordered by sequence.
func (svc *Service) Modules(ctx context.Context, productID string) ([]Module, error) {
	return svc.repo.QueryModules(ctx, productID)
}

// AssessmentModules returns a product's assessment-type modules ordered by
// sequence. Sequence is display ordering only; it never gates progression.
func (svc *Service) AssessmentModules(ctx context.Context, productID string) ([]Module, error) {
	mods, err := svc.repo.QueryModules(ctx, productID)
	if err != nil {
		return nil, err
	}
	assessments := make([]Module, 0, len(mods))
	for _, mod := range mods {
		if mod.Type == ModuleTypeAssessment {
			assessments = append(assessments, mod)
		}
	}
	return assessments, nil
}

func (svc *Service) UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error) {
	orig, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}

	mod := Module{
		ID:        id,
		ProductID: orig.ProductID,
		Name:      um.Name,
		Type:      um.Type,
		Sequence:  orig.Sequence,
		UpdatedAt: time.Now().UTC(),
	}
	if um.Sequence != nil {
		mod.Sequence = *um.Sequence
	}
	return svc.repo.UpdateModule(ctx, mod)
}

func (svc *Service) DeleteModules(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteModulesByID(ctx, ids)
	return err
}

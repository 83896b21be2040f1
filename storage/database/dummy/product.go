package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
)

type productRepository struct {
	products *productTable
	modules  *moduleTable
}

var _ product.Repository = (*productRepository)(nil) // interface compliance check

func NewProductRepository(db *DB) product.Repository {
	return &productRepository{products: db.product, modules: db.module}
}

func (repo *productRepository) CreateProduct(ctx context.Context, prod product.Product, exec ...core.DBExecutor) (product.Product, error) {
	repo.products.Lock()
	defer repo.products.Unlock()

	prod.ID = uuid.New().String()
	repo.products.table[prod.ID] = &prod
	return prod, nil
}

func (repo *productRepository) QueryProducts(ctx context.Context, filter *product.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]product.Product, error) {
	repo.products.RLock()
	defer repo.products.RUnlock()

	products := make([]product.Product, 0, len(repo.products.table))
	for _, prod := range repo.products.table {
		if filter != nil {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(prod.Name), search) &&
					!strings.Contains(strings.ToLower(prod.Description), search) {
					continue
				}
			}
			if filter.IsActive != nil {
				if prod.IsActive == nil || *prod.IsActive != *filter.IsActive {
					continue
				}
			}
		}
		products = append(products, *prod)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (repo *productRepository) GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (product.Product, error) {
	repo.products.RLock()
	defer repo.products.RUnlock()

	if prod, ok := repo.products.table[id]; ok {
		return *prod, nil
	}
	return product.Product{}, product.ErrNotFound
}

func (repo *productRepository) UpdateProduct(ctx context.Context, prod product.Product, exec ...core.DBExecutor) (product.Product, error) {
	repo.products.Lock()
	defer repo.products.Unlock()

	orig, ok := repo.products.table[prod.ID]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	if prod.Name != "" {
		orig.Name = prod.Name
	}
	if prod.Description != "" {
		orig.Description = prod.Description
	}
	if prod.IsActive != nil {
		orig.IsActive = prod.IsActive
	}
	orig.UpdatedAt = prod.UpdatedAt
	return *orig, nil
}

func (repo *productRepository) CreateModule(ctx context.Context, mod product.Module, exec ...core.DBExecutor) (product.Module, error) {
	repo.modules.Lock()
	defer repo.modules.Unlock()

	mod.ID = uuid.New().String()
	repo.modules.table[mod.ID] = &mod
	return mod, nil
}

func (repo *productRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (product.Module, error) {
	repo.modules.RLock()
	defer repo.modules.RUnlock()

	if mod, ok := repo.modules.table[id]; ok {
		return *mod, nil
	}
	return product.Module{}, product.ErrModuleNotFound
}

func (repo *productRepository) QueryModules(ctx context.Context, productID string, exec ...core.DBExecutor) ([]product.Module, error) {
	repo.modules.RLock()
	defer repo.modules.RUnlock()

	var modules []product.Module
	for _, mod := range repo.modules.table {
		if mod.ProductID == productID {
			modules = append(modules, *mod)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Sequence != modules[j].Sequence {
			return modules[i].Sequence < modules[j].Sequence
		}
		return modules[i].ID < modules[j].ID
	})
	return modules, nil
}

func (repo *productRepository) UpdateModule(ctx context.Context, mod product.Module, exec ...core.DBExecutor) (product.Module, error) {
	repo.modules.Lock()
	defer repo.modules.Unlock()

	orig, ok := repo.modules.table[mod.ID]
	if !ok {
		return product.Module{}, product.ErrModuleNotFound
	}
	if mod.Name != "" {
		orig.Name = mod.Name
	}
	if mod.Type != "" {
		orig.Type = mod.Type
	}
	orig.Sequence = mod.Sequence
	orig.UpdatedAt = mod.UpdatedAt
	return *orig, nil
}

func (repo *productRepository) DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.modules.Lock()
	defer repo.modules.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.modules.table[id]; ok {
			delete(repo.modules.table, id)
			n++
		}
	}
	return n, nil
}

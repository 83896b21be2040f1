package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
)

type productRow struct {
	ID          string      `db:"id"`
	Name        null.String `db:"name"`
	Description null.String `db:"description"`
	IsActive    null.Bool   `db:"is_active"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (r productRow) unpack() product.Product {
	return product.Product{
		ID:          r.ID,
		Name:        r.Name.String,
		Description: r.Description.String,
		IsActive:    r.IsActive.Ptr(),
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// packProduct treats empty fields as unset, for the COALESCE update path.
func packProduct(prod product.Product) productRow {
	return productRow{
		ID:          prod.ID,
		Name:        null.NewString(prod.Name, prod.Name != ""),
		Description: null.NewString(prod.Description, prod.Description != ""),
		IsActive:    null.BoolFromPtr(prod.IsActive),
		CreatedAt:   null.NewTime(prod.CreatedAt.UTC(), !prod.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(prod.UpdatedAt.UTC(), !prod.UpdatedAt.IsZero()),
	}
}

// packProductForInsert binds the description as a value even when empty; the
// column is NOT NULL and the INSERT names it, so unset would become SQL NULL
// instead of the column default.
func packProductForInsert(prod product.Product) productRow {
	row := packProduct(prod)
	row.Description = null.StringFrom(prod.Description)
	return row
}

type moduleRow struct {
	ID        string      `db:"id"`
	ProductID string      `db:"product_id"`
	Name      null.String `db:"name"`
	Type      string      `db:"type"`
	Sequence  int         `db:"sequence"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

func (r moduleRow) unpack() product.Module {
	return product.Module{
		ID:        r.ID,
		ProductID: r.ProductID,
		Name:      r.Name.String,
		Type:      product.ModuleType(r.Type),
		Sequence:  r.Sequence,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

const (
	productColumns = `id, name, description, is_active, created_at, updated_at`
	moduleColumns  = `id, product_id, name, type, sequence, created_at, updated_at`
)

type productRepository struct {
	exec core.DBExecutor
}

var _ product.Repository = (*productRepository)(nil) // interface compliance check

func NewProductRepository(exec core.DBExecutor) *productRepository {
	return &productRepository{exec: exec}
}

func (repo productRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo productRepository) CreateProduct(ctx context.Context, prod product.Product, exec ...core.DBExecutor) (product.Product, error) {
	prod.ID = uuid.New().String()
	row := packProductForInsert(prod)

	exe := repo.getExec(exec)
	query := `INSERT INTO product (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + productColumns
	err := exe.GetContext(ctx, &row, query,
		row.ID, row.Name, row.Description, row.IsActive, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return product.Product{}, errors.Wrap(err, "inserting product")
	}
	return row.unpack(), nil
}

func (repo productRepository) QueryProducts(ctx context.Context, filter *product.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]product.Product, error) {
	exe := repo.getExec(exec)

	query := `SELECT ` + productColumns + ` FROM product`
	var conds []string
	var args []interface{}
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, `(name ILIKE ? OR description ILIKE ?)`)
			args = append(args, val, val)
		}
		if filter.IsActive != nil {
			conds = append(conds, `is_active = ?`)
			args = append(args, *filter.IsActive)
		}
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += orderClause(ordering, `name ASC`)

	var rows []productRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying products")
	}
	products := make([]product.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.unpack())
	}
	return products, nil
}

func (repo productRepository) GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (product.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return product.Product{}, product.ErrNotFound
	}

	var row productRow
	query := `SELECT ` + productColumns + ` FROM product WHERE id = $1`
	if err := repo.getExec(exec).GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return product.Product{}, product.ErrNotFound
		}
		return product.Product{}, errors.Wrap(err, "finding product")
	}
	return row.unpack(), nil
}

func (repo productRepository) UpdateProduct(ctx context.Context, prod product.Product, exec ...core.DBExecutor) (product.Product, error) {
	row := packProduct(prod)

	// unset fields keep their stored value
	exe := repo.getExec(exec)
	query := `UPDATE product SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			is_active = COALESCE($4, is_active),
			updated_at = COALESCE($5, updated_at)
		WHERE id = $1
		RETURNING ` + productColumns
	err := exe.GetContext(ctx, &row, query, row.ID, row.Name, row.Description, row.IsActive, row.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return product.Product{}, product.ErrNotFound
		}
		return product.Product{}, errors.Wrap(err, "updating product")
	}
	return row.unpack(), nil
}

func (repo productRepository) CreateModule(ctx context.Context, mod product.Module, exec ...core.DBExecutor) (product.Module, error) {
	mod.ID = uuid.New().String()
	row := moduleRow{
		ID:        mod.ID,
		ProductID: mod.ProductID,
		Name:      null.NewString(mod.Name, mod.Name != ""),
		Type:      mod.Type.String(),
		Sequence:  mod.Sequence,
		CreatedAt: null.NewTime(mod.CreatedAt.UTC(), !mod.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(mod.UpdatedAt.UTC(), !mod.UpdatedAt.IsZero()),
	}

	exe := repo.getExec(exec)
	query := `INSERT INTO module (` + moduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + moduleColumns
	err := exe.GetContext(ctx, &row, query,
		row.ID, row.ProductID, row.Name, row.Type, row.Sequence, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return product.Module{}, errors.Wrap(err, "inserting module")
	}
	return row.unpack(), nil
}

func (repo productRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (product.Module, error) {
	if _, err := uuid.Parse(id); err != nil {
		return product.Module{}, product.ErrModuleNotFound
	}

	var row moduleRow
	query := `SELECT ` + moduleColumns + ` FROM module WHERE id = $1`
	if err := repo.getExec(exec).GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return product.Module{}, product.ErrModuleNotFound
		}
		return product.Module{}, errors.Wrap(err, "finding module")
	}
	return row.unpack(), nil
}

func (repo productRepository) QueryModules(ctx context.Context, productID string, exec ...core.DBExecutor) ([]product.Module, error) {
	var rows []moduleRow
	query := `SELECT ` + moduleColumns + ` FROM module WHERE product_id = $1 ORDER BY sequence, created_at`
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, productID); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	modules := make([]product.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, row.unpack())
	}
	return modules, nil
}

func (repo productRepository) UpdateModule(ctx context.Context, mod product.Module, exec ...core.DBExecutor) (product.Module, error) {
	row := moduleRow{
		ID:        mod.ID,
		Name:      null.NewString(mod.Name, mod.Name != ""),
		Type:      mod.Type.String(),
		Sequence:  mod.Sequence,
		UpdatedAt: null.NewTime(mod.UpdatedAt.UTC(), !mod.UpdatedAt.IsZero()),
	}

	// a module cannot move to another product
	exe := repo.getExec(exec)
	query := `UPDATE module SET
			name = COALESCE($2, name),
			type = $3,
			sequence = $4,
			updated_at = COALESCE($5, updated_at)
		WHERE id = $1
		RETURNING ` + moduleColumns
	err := exe.GetContext(ctx, &row, query, row.ID, row.Name, row.Type, row.Sequence, row.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return product.Module{}, product.ErrModuleNotFound
		}
		return product.Module{}, errors.Wrap(err, "updating module")
	}
	return row.unpack(), nil
}

func (repo productRepository) DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	exe := repo.getExec(exec)

	query, args, err := sqlxIn(`DELETE FROM module WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting modules")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting modules")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting modules")
	}
	return int(cnt), nil
}

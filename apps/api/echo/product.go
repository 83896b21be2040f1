package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cultusedu/cultus/core/product"
)

type productApi struct {
	svc      *product.Service
	validate *validator.Validate
}

func registerProductAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *product.Service, validate *validator.Validate) {
	api := productApi{
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/products", jwt)
	pg.POST("", api.create, adminMiddleware())
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, adminMiddleware())
	pg.POST("/:id/modules", api.addModule, adminMiddleware())
	pg.GET("/:id/modules", api.queryModules)

	mg := g.Group("/modules", jwt, adminMiddleware())
	mg.PUT("/:id", api.updateModule)
	mg.DELETE("/:id", api.destroyModule)
}

// Handlers

func (api *productApi) create(ctx echo.Context) error {
	var data product.NewProduct
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProduct")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prod, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating product")
	}

	return ctx.JSON(http.StatusCreated, prod)
}

func (api *productApi) query(ctx echo.Context) error {
	filter := new(product.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []product.Product{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	products, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying products")
	}
	if products == nil {
		products = []product.Product{}
	}
	return ctx.JSON(http.StatusOK, products)
}

func (api *productApi) retrieve(ctx echo.Context) error {
	prod, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding product by ID")
	}
	return ctx.JSON(http.StatusOK, prod)
}

func (api *productApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	orig, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding product by ID")
	}

	var data product.UpdateProduct
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProduct")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}

	prod, err := api.svc.Update(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating product")
	}

	return ctx.JSON(http.StatusOK, prod)
}

func (api *productApi) addModule(ctx echo.Context) error {
	var data product.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.AddModule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding module")
	}

	return ctx.JSON(http.StatusCreated, mod)
}

func (api *productApi) queryModules(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	if _, err := api.svc.GetByID(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding product by ID")
	}

	modules, err := api.svc.Modules(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if modules == nil {
		modules = []product.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *productApi) updateModule(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	orig, err := api.svc.GetModule(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding module by ID")
	}

	var data product.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}

	mod, err := api.svc.UpdateModule(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}

	return ctx.JSON(http.StatusOK, mod)
}

func (api *productApi) destroyModule(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	if _, err := api.svc.GetModule(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding module by ID")
	}

	if err := api.svc.DeleteModules(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

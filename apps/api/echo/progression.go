package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cultusedu/cultus/core/progression"
)

type progressionApi struct {
	svc      *progression.Service
	validate *validator.Validate
}

func registerProgressionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *progression.Service, validate *validator.Validate) {
	api := progressionApi{
		svc:      svc,
		validate: validate,
	}

	g.POST("/products/:id/enroll", api.enroll, jwt, staffMiddleware())
	g.POST("/submissions", api.submit, jwt)

	sg := g.Group("/students/:id/products/:pid", jwt, selfOrStaffMiddleware())
	sg.GET("/progress", api.progress)
	sg.POST("/recompute", api.recompute, adminMiddleware())
}

// Handlers

func (api *progressionApi) enroll(ctx echo.Context) error {
	var data progression.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.Enroll(ctx.Request().Context(), data.StudentID, ctx.Param("id"), data.BackgroundType)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}

	return ctx.JSON(http.StatusCreated, st)
}

func (api *progressionApi) submit(ctx echo.Context) error {
	var data progression.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// students may only submit for themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsAdmin || claims.IsStaff) && claims.Subject != data.StudentID {
		return errHttpForbidden
	}

	outcome, err := api.svc.RecordSubmission(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording submission")
	}

	return ctx.JSON(http.StatusOK, outcome)
}

func (api *progressionApi) progress(ctx echo.Context) error {
	view, err := api.svc.Progress(ctx.Request().Context(), ctx.Param("id"), ctx.Param("pid"))
	if err != nil {
		return errors.Wrap(err, "assembling progress view")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *progressionApi) recompute(ctx echo.Context) error {
	outcome, err := api.svc.Recompute(ctx.Request().Context(), ctx.Param("id"), ctx.Param("pid"))
	if err != nil {
		return errors.Wrap(err, "recomputing progression")
	}
	return ctx.JSON(http.StatusOK, outcome)
}

// selfOrStaffMiddleware restricts student detail routes to the student
// themselves, staff or admins. Other students get a 404 so the route does
// not leak enrollment existence.
func selfOrStaffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || claims.IsStaff || claims.Subject == ctx.Param("id") {
				return next(ctx)
			}
			return errHttpNotFound
		}
	}
}

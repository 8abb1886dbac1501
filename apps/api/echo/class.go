package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/class"
)

type classApi struct {
	svc      *class.Service
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, deps ServerDeps) {
	api := classApi{svc: deps.ClassSvc, validate: deps.Validate}

	g.GET("", api.list)
	g.POST("", api.create)
	g.GET("/classmates", api.classmates)
	g.GET("/buddies", api.buddies)
	g.POST("/:id/archive", api.archive)
	g.POST("/:id/restore", api.restore)
}

func (api *classApi) list(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	uc, err := api.svc.ListForUser(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	return ctx.JSON(http.StatusOK, uc)
}

func (api *classApi) create(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data class.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) archive(ctx echo.Context) error {
	return api.setArchived(ctx, true)
}

func (api *classApi) restore(ctx echo.Context) error {
	return api.setArchived(ctx, false)
}

func (api *classApi) setArchived(ctx echo.Context, archived bool) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var cls class.Class
	if archived {
		cls, err = api.svc.Archive(ctx.Request().Context(), usr, id)
	} else {
		cls, err = api.svc.Restore(ctx.Request().Context(), usr, id)
	}
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) classmates(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	cms, err := api.svc.Classmates(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing classmates")
	}
	return ctx.JSON(http.StatusOK, cms)
}

func (api *classApi) buddies(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	buddies, err := api.svc.StudyBuddies(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing study buddies")
	}
	return ctx.JSON(http.StatusOK, buddies)
}

package echoapi

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/resource"
)

const uploadFormField = "file"

type resourceApi struct {
	svc      *resource.Service
	validate *validator.Validate
}

func registerResourceAPI(g *echo.Group, deps ServerDeps) {
	api := resourceApi{svc: deps.ResourceSvc, validate: deps.Validate}

	g.GET("", api.list)
	g.POST("", api.upload)
	g.POST("/links", api.shareLink)
	g.GET("/classes/:class_id", api.forClass)
	g.GET("/:id/download", api.download)
	g.POST("/:id/like", api.like)
	g.DELETE("/:id", api.delete)
}

func (api *resourceApi) list(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var filter resource.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}

	resources, err := api.svc.List(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing resources")
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *resourceApi) upload(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data resource.NewUpload
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUpload")
	}
	fh, err := ctx.FormFile(uploadFormField)
	if err != nil {
		if err == http.ErrMissingFile {
			return resource.ErrNoFileSelected
		}
		return errors.Wrap(err, "reading uploaded file")
	}
	data.Filename = fh.Filename
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	res, err := api.svc.Upload(ctx.Request().Context(), usr, data, file)
	if err != nil {
		return errors.Wrap(err, "uploading resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resourceApi) shareLink(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data resource.NewLink
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLink")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.ShareLink(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "sharing link")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resourceApi) forClass(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	classID, err := intParam(ctx, "class_id")
	if err != nil {
		return err
	}
	resources, err := api.svc.ForClass(ctx.Request().Context(), usr, classID)
	if err != nil {
		return errors.Wrap(err, "listing class resources")
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *resourceApi) download(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	res, file, err := api.svc.Download(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "downloading resource")
	}
	defer file.Close()

	contentType := mime.TypeByExtension("." + res.Type)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.Filename))
	return ctx.Stream(http.StatusOK, contentType, file)
}

func (api *resourceApi) like(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	res, err := api.svc.Like(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "liking resource")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resourceApi) delete(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/notification"
)

type (
	notificationApi struct {
		svc      *notification.Service
		validate *validator.Validate
	}

	MarkReadResponse struct {
		Updated int `json:"updated"`
	}
)

func registerNotificationAPI(g *echo.Group, deps ServerDeps) {
	api := notificationApi{svc: deps.NotificationSvc, validate: deps.Validate}

	g.GET("", api.unread)
	g.POST("/mark-read", api.markRead)
}

func (api *notificationApi) unread(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	notifs, err := api.svc.Unread(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data notification.MarkRead
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRead")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), usr, data.IDs...)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, MarkReadResponse{Updated: n})
}

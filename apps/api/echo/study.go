package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/studygroup"
)

type studyApi struct {
	svc      *studygroup.Service
	validate *validator.Validate
}

func registerStudyAPI(g *echo.Group, deps ServerDeps) {
	api := studyApi{svc: deps.StudyGroupSvc, validate: deps.Validate}

	g.GET("/classes/:class_id/groups", api.groups)
	g.POST("/classes/:class_id/groups", api.createGroup)
	g.POST("/groups/:id/join", api.join)
	g.POST("/groups/:id/leave", api.leave)
	g.GET("/groups/:id/meetings", api.meetings)
	g.POST("/groups/:id/meetings", api.scheduleMeeting)
	g.POST("/meetings/:id/attend", api.attend)
}

func (api *studyApi) groups(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	classID, err := intParam(ctx, "class_id")
	if err != nil {
		return err
	}
	groups, err := api.svc.ListForClass(ctx.Request().Context(), usr, classID)
	if err != nil {
		return errors.Wrap(err, "listing study groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *studyApi) createGroup(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	classID, err := intParam(ctx, "class_id")
	if err != nil {
		return err
	}
	var data studygroup.NewGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), usr, classID, data)
	if err != nil {
		return errors.Wrap(err, "creating study group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *studyApi) join(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	grp, err := api.svc.Join(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "joining study group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *studyApi) leave(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Leave(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "leaving study group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studyApi) meetings(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	meetings, err := api.svc.Meetings(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "listing meetings")
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *studyApi) scheduleMeeting(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data studygroup.NewMeeting
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeeting")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mtg, err := api.svc.ScheduleMeeting(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "scheduling meeting")
	}
	return ctx.JSON(http.StatusCreated, mtg)
}

func (api *studyApi) attend(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	mtg, err := api.svc.Attend(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "attending meeting")
	}
	return ctx.JSON(http.StatusOK, mtg)
}

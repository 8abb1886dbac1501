package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/canvas"
	"github.com/trezcool/campusmate/core/event"
)

type (
	calendarApi struct {
		svc       *event.Service
		canvasSvc *canvas.Service
		validate  *validator.Validate
	}

	CanvasURLRequest struct {
		URL string `json:"url"`
	}

	StudentScheduleResponse struct {
		StudentID int   `json:"student_id"`
		ClassID   int   `json:"class_id"`
		EventIDs  []int `json:"event_ids"`
	}
)

func registerCalendarAPI(g *echo.Group, deps ServerDeps) {
	api := calendarApi{svc: deps.EventSvc, canvasSvc: deps.CanvasSvc, validate: deps.Validate}

	g.GET("/events", api.feed)
	g.POST("/events", api.addEvent)
	g.PUT("/events/:id/status", api.updateStatus)
	g.DELETE("/events/:id", api.deleteEvent)
	g.POST("/schedule", api.schedule)
	g.POST("/smart-schedule", api.smartSchedule)
	g.GET("/students/:student_id/classes/:class_id", api.studentSchedule)
	g.GET("/export.ics", api.exportICS)
	g.POST("/canvas/import", api.canvasImport)
	g.POST("/canvas/url", api.canvasURL)
}

func (api *calendarApi) feed(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	items, err := api.svc.Feed(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "loading calendar feed")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *calendarApi) addEvent(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data event.NewEvent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	evt, err := api.svc.Add(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "adding event")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *calendarApi) updateStatus(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data event.UpdateStatus
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	evt, err := api.svc.UpdateStatus(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating event status")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *calendarApi) deleteEvent(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *calendarApi) schedule(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data event.ScheduleRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sessions, err := api.svc.GenerateSchedule(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "generating schedule")
	}
	return ctx.JSON(http.StatusCreated, sessions)
}

func (api *calendarApi) smartSchedule(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	sessions, err := api.svc.GenerateSmartSchedule(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "generating smart schedule")
	}
	return ctx.JSON(http.StatusCreated, sessions)
}

func (api *calendarApi) studentSchedule(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	studentID, err := intParam(ctx, "student_id")
	if err != nil {
		return err
	}
	classID, err := intParam(ctx, "class_id")
	if err != nil {
		return err
	}

	ids, err := api.svc.StudentSchedule(ctx.Request().Context(), usr, studentID, classID)
	if err != nil {
		return errors.Wrap(err, "loading student schedule")
	}
	return ctx.JSON(http.StatusOK, StudentScheduleResponse{StudentID: studentID, ClassID: classID, EventIDs: ids})
}

func (api *calendarApi) exportICS(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = api.svc.ExportICS(ctx.Request().Context(), usr, &buf); err != nil {
		return errors.Wrap(err, "exporting calendar")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="campusmate.ics"`)
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func (api *calendarApi) canvasImport(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data CanvasURLRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CanvasURLRequest")
	}

	res, err := api.canvasSvc.Import(ctx.Request().Context(), usr, data.URL)
	if err != nil {
		return errors.Wrap(err, "importing canvas calendar")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *calendarApi) canvasURL(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data CanvasURLRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CanvasURLRequest")
	}

	usr, err = api.canvasSvc.SaveURL(ctx.Request().Context(), usr, data.URL)
	if err != nil {
		return errors.Wrap(err, "saving canvas url")
	}
	return ctx.JSON(http.StatusOK, usr)
}

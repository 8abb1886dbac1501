package echoapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/message"
	"github.com/trezcool/campusmate/core/user"
	"github.com/trezcool/campusmate/services/realtime"
)

// frame types sent by clients
const frameSendMessage = "send_message"

type websocketApi struct {
	hub        *realtime.Hub
	messageSvc *message.Service
	logger     core.Logger
	validate   *validator.Validate
}

func registerWebsocketAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := websocketApi{
		hub:        deps.Hub,
		messageSvc: deps.MessageSvc,
		logger:     deps.Logger,
		validate:   deps.Validate,
	}
	api.hub.HandleFunc(frameSendMessage, api.sendMessage)
	api.hub.OnConnect(api.pushUnreadCount)

	g.GET("/ws", api.serve, jwt, userMiddleware(deps.UserSvc))
}

func (api *websocketApi) serve(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.hub.ServeWS(ctx.Response(), ctx.Request(), usr); err != nil {
		// the upgrader already answered the client
		api.logger.Warn(fmt.Sprintf("websocket: %v", err), err, usr)
	}
	return nil
}

func (api *websocketApi) sendMessage(ctx context.Context, usr user.User, payload json.RawMessage) error {
	var data message.NewMessage
	if err := json.Unmarshal(payload, &data); err != nil {
		return core.NewValidationError(errors.Wrap(err, "invalid payload"))
	}
	if err := data.Validate(api.validate); err != nil {
		return core.NewValidationError(err)
	}
	_, err := api.messageSvc.Send(ctx, usr, data)
	return err
}

func (api *websocketApi) pushUnreadCount(ctx context.Context, usr user.User) {
	count, err := api.messageSvc.UnreadCount(ctx, usr)
	if err != nil {
		api.logger.Warn(fmt.Sprintf("websocket: counting unread messages: %v", err), err, usr)
		return
	}
	api.hub.Publish(usr.ID, core.RealtimeEvent{Type: core.EventUpdateUnread, Payload: UnreadCountResponse{Count: count}})
}

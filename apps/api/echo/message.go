package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/message"
)

type (
	messageApi struct {
		svc      *message.Service
		validate *validator.Validate
	}

	UnreadCountResponse struct {
		Count int `json:"count"`
	}
)

func registerMessageAPI(g *echo.Group, deps ServerDeps) {
	api := messageApi{svc: deps.MessageSvc, validate: deps.Validate}

	g.GET("", api.conversations)
	g.POST("", api.send)
	g.GET("/unread-count", api.unreadCount)
	g.GET("/friends", api.friends)
	g.POST("/friends/:friend_id", api.addFriend)
	g.POST("/mark-read/:sender_id", api.markRead)
	g.POST("/connect/:peer_id", api.connect)
	g.POST("/accept/:request_id", api.accept)
	g.GET("/:peer_id", api.conversation)
}

func (api *messageApi) conversations(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	convs, err := api.svc.Conversations(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing conversations")
	}
	return ctx.JSON(http.StatusOK, convs)
}

func (api *messageApi) conversation(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	peerID, err := intParam(ctx, "peer_id")
	if err != nil {
		return err
	}
	msgs, err := api.svc.Conversation(ctx.Request().Context(), usr, peerID)
	if err != nil {
		return errors.Wrap(err, "loading conversation")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) send(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data message.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.Send(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	senderID, err := intParam(ctx, "sender_id")
	if err != nil {
		return err
	}
	if err = api.svc.MarkRead(ctx.Request().Context(), usr, senderID); err != nil {
		return errors.Wrap(err, "marking messages read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Messages marked as read."})
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.UnreadCount(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, UnreadCountResponse{Count: count})
}

func (api *messageApi) connect(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	peerID, err := intParam(ctx, "peer_id")
	if err != nil {
		return err
	}
	req, err := api.svc.Connect(ctx.Request().Context(), usr, peerID)
	if err != nil {
		return errors.Wrap(err, "sending connection request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *messageApi) accept(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	reqID, err := intParam(ctx, "request_id")
	if err != nil {
		return err
	}
	req, err := api.svc.Accept(ctx.Request().Context(), usr, reqID)
	if err != nil {
		return errors.Wrap(err, "accepting connection request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *messageApi) friends(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	peers, err := api.svc.Friends(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing friends")
	}
	return ctx.JSON(http.StatusOK, peers)
}

func (api *messageApi) addFriend(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	friendID, err := intParam(ctx, "friend_id")
	if err != nil {
		return err
	}
	peer, err := api.svc.AddFriend(ctx.Request().Context(), usr, friendID)
	if err != nil {
		return errors.Wrap(err, "adding friend")
	}
	return ctx.JSON(http.StatusCreated, peer)
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core/messaging"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
)

type messagingApi struct {
	svc      messaging.Service
	notifSvc notification.Service
	validate *validator.Validate
}

func registerMessagingAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := messagingApi{svc: deps.MessagingSvc, notifSvc: deps.NotificationSvc, validate: deps.Validate}

	mg := g.Group("/messages", authed)
	mg.GET("/recipients", api.recipients)
	mg.GET("/unread-count", api.unreadMessages)
	mg.GET("/conversations", api.conversations)
	mg.POST("/conversations", api.createConversation)
	mg.GET("/conversations/:id", api.conversation)
	mg.POST("/conversations/:id/messages", api.sendMessage)

	ng := g.Group("/notifications", authed)
	ng.GET("", api.notifications)
	ng.GET("/unread-count", api.unreadNotifications)
	ng.PUT("/read-all", api.markAllRead)
	ng.PUT("/:id/read", api.markRead)
	ng.DELETE("/:id", api.deleteNotification)
}

func (api *messagingApi) recipients(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	recipients, err := api.svc.ValidRecipients(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "listing recipients")
	}
	if recipients == nil {
		recipients = []messaging.Recipient{}
	}
	return ctx.JSON(http.StatusOK, recipients)
}

func (api *messagingApi) unreadMessages(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.UnreadCount(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *messagingApi) conversations(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	convs, err := api.svc.Conversations(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "listing conversations")
	}
	if convs == nil {
		convs = []messaging.ConversationSummary{}
	}
	return ctx.JSON(http.StatusOK, convs)
}

func (api *messagingApi) createConversation(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data messaging.NewConversation
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	conv, err := api.svc.CreateOrContinue(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating conversation")
	}
	return ctx.JSON(http.StatusCreated, conv)
}

func (api *messagingApi) conversation(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	conv, err := api.svc.Conversation(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting conversation")
	}
	return ctx.JSON(http.StatusOK, conv)
}

func (api *messagingApi) sendMessage(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data messaging.NewMessage
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	msg, err := api.svc.SendMessage(rctx, usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messagingApi) notifications(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var filter notification.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []notification.Notification{})
	}
	notifs, err := api.notifSvc.Query(rctx, usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *messagingApi) unreadNotifications(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	n, err := api.notifSvc.UnreadCount(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *messagingApi) markRead(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.notifSvc.MarkRead(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *messagingApi) markAllRead(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.notifSvc.MarkAllRead(rctx, usr); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *messagingApi) deleteNotification(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.notifSvc.Delete(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type CountResponse struct {
	Count int `json:"count"`
}

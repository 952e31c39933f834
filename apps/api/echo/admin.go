package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/broadcast"
	"github.com/theepangnani/emai-dev-03-sub000/core/inspiration"
)

type adminApi struct {
	auditSvc       audit.Service
	broadcastSvc   broadcast.Service
	inspirationSvc inspiration.Service
	validate       *validator.Validate
}

func registerAdminAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := adminApi{
		auditSvc:       deps.AuditSvc,
		broadcastSvc:   deps.BroadcastSvc,
		inspirationSvc: deps.InspirationSvc,
		validate:       deps.Validate,
	}

	g.GET("/inspiration", api.randomInspiration, authed)

	ag := g.Group("/admin", authed, adminMiddleware())
	ag.GET("/audit-logs", api.auditLogs)
	ag.GET("/broadcasts", api.broadcasts)
	ag.POST("/broadcasts", api.sendBroadcast)
	ag.GET("/inspirations", api.inspirations)
	ag.POST("/inspirations", api.createInspiration)
	ag.PUT("/inspirations/:id", api.updateInspiration)
	ag.DELETE("/inspirations/:id", api.deleteInspiration)
}

func (api *adminApi) auditLogs(ctx echo.Context) error {
	var filter audit.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []audit.Entry{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	entries, err := api.auditSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying audit log")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *adminApi) broadcasts(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	list, err := api.broadcastSvc.List(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "listing broadcasts")
	}
	if list == nil {
		list = []broadcast.Broadcast{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *adminApi) sendBroadcast(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data broadcast.NewBroadcast
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	b, err := api.broadcastSvc.Send(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "sending broadcast")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *adminApi) randomInspiration(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	m, err := api.inspirationSvc.Random(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "getting inspiration message")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) inspirations(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var filter inspiration.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []inspiration.Message{})
	}
	msgs, err := api.inspirationSvc.Query(rctx, usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying inspiration messages")
	}
	if msgs == nil {
		msgs = []inspiration.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *adminApi) createInspiration(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data inspiration.NewMessage
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	m, err := api.inspirationSvc.Create(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating inspiration message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *adminApi) updateInspiration(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data inspiration.UpdateMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMessage")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	m, err := api.inspirationSvc.Update(rctx, usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating inspiration message")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) deleteInspiration(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.inspirationSvc.Delete(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting inspiration message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

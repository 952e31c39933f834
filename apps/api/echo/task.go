package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core/task"
)

type taskApi struct {
	svc      task.Service
	validate *validator.Validate
}

func registerTaskAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := taskApi{svc: deps.TaskSvc, validate: deps.Validate}

	tg := g.Group("/tasks", authed)
	tg.GET("", api.query)
	tg.POST("", api.create)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.PUT("/:id/completion", api.setCompleted)
	tg.POST("/:id/archive", api.archive)
	tg.POST("/:id/restore", api.restore)
	tg.DELETE("/:id", api.destroy)
}

func (api *taskApi) query(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	filter := new(task.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []task.Task{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tasks, err := api.svc.Query(rctx, usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) create(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data task.NewTask
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	t, err := api.svc.Create(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.Get(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data task.UpdateTask
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	t, err := api.svc.Update(rctx, usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) setCompleted(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data CompletionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompletionRequest")
	}
	t, err := api.svc.SetCompleted(rctx, usr, ctx.Param("id"), data.Completed)
	if err != nil {
		return errors.Wrap(err, "setting task completion")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) archive(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.Archive(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "archiving task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) restore(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.Restore(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "restoring task")
	}
	return ctx.JSON(http.StatusOK, t)
}

// destroy deletes an archived task for good.
func (api *taskApi) destroy(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.PermanentlyDelete(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type CompletionRequest struct {
	Completed bool `json:"completed"`
}

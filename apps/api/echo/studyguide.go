package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core/search"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
)

type studyApi struct {
	svc       studyguide.Service
	searchSvc search.Service
	validate  *validator.Validate
}

func registerStudyAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := studyApi{svc: deps.StudyGuideSvc, searchSvc: deps.SearchSvc, validate: deps.Validate}

	sg := g.Group("/study-guides", authed)
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.POST("/generate", api.generate)
	sg.GET("/:id", api.retrieve)
	sg.DELETE("/:id", api.destroy)

	g.GET("/search", api.search, authed)
}

func (api *studyApi) query(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	filter := new(studyguide.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []studyguide.Guide{})
	}
	guides, err := api.svc.List(rctx, usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing study guides")
	}
	if guides == nil {
		guides = []studyguide.Guide{}
	}
	return ctx.JSON(http.StatusOK, guides)
}

func (api *studyApi) create(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data studyguide.NewGuide
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	g, err := api.svc.Create(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating study guide")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *studyApi) generate(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data studyguide.GenerateRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	g, err := api.svc.Generate(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "generating study guide")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *studyApi) retrieve(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	g, err := api.svc.Get(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting study guide")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *studyApi) destroy(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting study guide")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studyApi) search(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var q search.Query
	if err = bindAndValidate(ctx, api.validate, &q); err != nil {
		return err
	}
	res, err := api.searchSvc.Search(rctx, usr, q)
	if err != nil {
		return errors.Wrap(err, "searching")
	}
	return ctx.JSON(http.StatusOK, res)
}

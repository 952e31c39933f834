package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core/course"
)

type courseApi struct {
	svc      course.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := courseApi{svc: deps.CourseSvc, validate: deps.Validate}

	cg := g.Group("/courses", authed)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/default", api.defaultCourse)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)

	cg.GET("/:id/students", api.roster)
	cg.POST("/:id/students", api.addStudent)
	cg.DELETE("/:id/students/:studentId", api.removeStudent)
	cg.POST("/:id/enroll", api.enroll)
	cg.DELETE("/:id/enroll", api.unenroll)

	cg.GET("/:id/assignments", api.assignments)
	cg.POST("/:id/assignments", api.createAssignment)
	g.DELETE("/assignments/:id", api.destroyAssignment, authed)

	cg.GET("/:id/contents", api.contents)
	cc := g.Group("/course-contents", authed)
	cc.POST("", api.createContent)
	cc.GET("/:id", api.retrieveContent)
	cc.DELETE("/:id", api.destroyContent)
}

func (api *courseApi) query(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	filter := new(course.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.List(rctx, usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data course.NewCourse
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c, err := api.svc.Create(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) defaultCourse(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.DefaultCourse(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "getting default course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.Get(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateCourse
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c, err := api.svc.Update(rctx, usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) roster(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.Roster(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing course roster")
	}
	if entries == nil {
		entries = []course.RosterEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *courseApi) addStudent(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data AddStudentRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	entry, err := api.svc.AddStudent(rctx, usr, ctx.Param("id"), data.Email)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *courseApi) removeStudent(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveStudent(rctx, usr, ctx.Param("id"), ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Enroll(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Unenroll(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) assignments(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.svc.Assignments(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if assignments == nil {
		assignments = []course.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *courseApi) createAssignment(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data course.NewAssignment
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	a, err := api.svc.CreateAssignment(rctx, usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *courseApi) destroyAssignment(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAssignment(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) contents(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	contents, err := api.svc.Contents(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing course contents")
	}
	if contents == nil {
		contents = []course.Content{}
	}
	return ctx.JSON(http.StatusOK, contents)
}

func (api *courseApi) createContent(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data course.NewContent
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c, err := api.svc.CreateContent(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course content")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieveContent(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetContent(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course content")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroyContent(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteContent(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type AddStudentRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *AddStudentRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

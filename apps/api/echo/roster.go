package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core/access"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type rosterApi struct {
	svc       roster.Service
	inviteSvc invite.Service
	access    *access.Resolver
	validate  *validator.Validate
}

func registerRosterAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := rosterApi{
		svc:       deps.RosterSvc,
		inviteSvc: deps.InviteSvc,
		access:    deps.Access,
		validate:  deps.Validate,
	}

	cg := g.Group("/children", authed, roleMiddleware(user.RoleParent))
	cg.GET("", api.children)
	cg.POST("", api.linkChild)
	cg.DELETE("/:studentId", api.unlinkChild)
	cg.GET("/:studentId/teachers", api.teacherLinks)
	cg.POST("/teachers", api.linkTeacher)
	cg.DELETE("/teachers/:id", api.unlinkTeacher)

	sg := g.Group("/students/me", authed, roleMiddleware(user.RoleStudent))
	sg.GET("", api.studentProfile)
	sg.PUT("", api.updateStudentProfile)
	sg.GET("/parents", api.parents)
}

// ChildResponse is a linked child with the courses visible through them.
type ChildResponse struct {
	roster.Child
	Courses []course.Course `json:"courses"`
}

func (api *rosterApi) children(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	children, err := api.svc.Children(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "listing children")
	}
	resp := make([]ChildResponse, 0, len(children))
	for _, child := range children {
		courses, err := api.access.VisibleCourses(rctx, asStudent(child.User))
		if err != nil {
			return errors.Wrap(err, "listing child courses")
		}
		if courses == nil {
			courses = []course.Course{}
		}
		resp = append(resp, ChildResponse{Child: child, Courses: courses})
	}
	return ctx.JSON(http.StatusOK, resp)
}

// asStudent views usr through the student role, whatever their active role.
func asStudent(usr user.User) user.User {
	usr.ActiveRole = user.RoleStudent
	return usr
}

func (api *rosterApi) linkChild(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data LinkChildRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkChildRequest")
	}
	if err = data.LinkChild.Validate(api.validate); err != nil {
		return err
	}

	child, err := api.svc.LinkChild(rctx, usr, data.LinkChild)
	if err == nil {
		return ctx.JSON(http.StatusCreated, child)
	}
	if errors.Cause(err) != roster.ErrStudentNotFound || !data.Invite {
		return errors.Wrap(err, "linking child")
	}

	// unknown student: invite them, the link is made on acceptance
	inv, err := api.inviteSvc.Create(rctx, usr, invite.NewInvite{
		Email:        data.StudentEmail,
		Role:         user.RoleStudent,
		Relationship: data.Relationship,
	})
	if err != nil {
		return errors.Wrap(err, "inviting child")
	}
	return ctx.JSON(http.StatusAccepted, inv)
}

func (api *rosterApi) unlinkChild(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.UnlinkChild(rctx, usr, ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "unlinking child")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *rosterApi) teacherLinks(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	links, err := api.svc.TeacherLinks(rctx, usr, ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "listing teacher links")
	}
	if links == nil {
		links = []roster.TeacherLink{}
	}
	return ctx.JSON(http.StatusOK, links)
}

func (api *rosterApi) linkTeacher(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data roster.LinkTeacher
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	link, err := api.svc.LinkTeacher(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "linking teacher")
	}
	return ctx.JSON(http.StatusCreated, link)
}

func (api *rosterApi) unlinkTeacher(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.UnlinkTeacher(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unlinking teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *rosterApi) studentProfile(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.EnsureStudentProfile(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "getting student profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *rosterApi) updateStudentProfile(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data roster.UpdateStudentProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudentProfile")
	}
	p, err := api.svc.UpdateStudentProfile(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "updating student profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *rosterApi) parents(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.EnsureStudentProfile(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "getting student profile")
	}
	parents, err := api.svc.Parents(rctx, p.ID)
	if err != nil {
		return errors.Wrap(err, "listing parents")
	}
	if parents == nil {
		parents = []user.User{}
	}
	return ctx.JSON(http.StatusOK, parents)
}

type LinkChildRequest struct {
	roster.LinkChild
	// Invite creates a student invite when no student account uses the email.
	Invite bool `json:"invite"`
}

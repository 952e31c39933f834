package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type inviteApi struct {
	conf     *core.Config
	svc      invite.Service
	validate *validator.Validate
}

func registerInviteAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := inviteApi{conf: deps.Conf, svc: deps.InviteSvc, validate: deps.Validate}

	ig := g.Group("/invites")

	// un-authed endpoints
	ig.GET("/token/:token", api.retrieveByToken)
	ig.POST("/token/:token/accept", api.accept)

	ig.GET("", api.query, authed)
	ig.POST("", api.create, authed)
	ig.POST("/:id/resend", api.resend, authed)
}

func (api *inviteApi) create(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var data invite.NewInvite
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	inv, err := api.svc.Create(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating invite")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *inviteApi) query(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var filter invite.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []invite.Invite{})
	}
	invites, err := api.svc.QuerySent(rctx, usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying invites")
	}
	if invites == nil {
		invites = []invite.Invite{}
	}
	return ctx.JSON(http.StatusOK, invites)
}

func (api *inviteApi) resend(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	inv, err := api.svc.Resend(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "resending invite")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *inviteApi) retrieveByToken(ctx echo.Context) error {
	inv, err := api.svc.GetByToken(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "getting invite")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *inviteApi) accept(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	token := ctx.Param("token")

	var data AcceptInviteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcceptInviteRequest")
	}
	inv, err := api.svc.GetByToken(rctx, token)
	if err != nil {
		return errors.Wrap(err, "getting invite")
	}

	// the password policy is checked against the invited email
	nu := user.NewUser{
		Name:            data.Name,
		Email:           inv.Email,
		Password:        data.Password,
		PasswordConfirm: data.PasswordConfirm,
		Roles:           []user.Role{inv.Role},
	}
	if err = nu.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Accept(rctx, token, nu)
	if err != nil {
		return errors.Wrap(err, "accepting invite")
	}
	token, err = GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, User: &usr})
}

type AcceptInviteRequest struct {
	Name            string `json:"name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

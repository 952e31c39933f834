package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

const oauthStateTTL = 10 * time.Minute

// GoogleAuth runs the google consent round trip. A nil GoogleAuth disables it.
type GoogleAuth interface {
	Enabled() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

type communicationApi struct {
	conf    *core.Config
	svc     communication.Service
	userSvc user.Service
	google  GoogleAuth
}

func registerCommunicationAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := communicationApi{conf: deps.Conf, svc: deps.CommunicationSvc, userSvc: deps.UserSvc, google: deps.Google}

	cg := g.Group("/communications", authed)
	cg.GET("", api.query)
	cg.PUT("/:id/read", api.markRead)
	cg.POST("/sync", api.sync)

	gg := g.Group("/google")
	gg.GET("/callback", api.googleCallback)
	gg.GET("/connect", api.googleConnect, authed)
	gg.DELETE("/connect", api.googleDisconnect, authed)
}

func (api *communicationApi) query(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}

	var filter communication.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []communication.Record{})
	}
	records, err := api.svc.Query(rctx, usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying communications")
	}
	if records == nil {
		records = []communication.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *communicationApi) markRead(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.MarkRead(rctx, usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking communication read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *communicationApi) sync(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.SyncUser(rctx, usr)
	if err != nil {
		return errors.Wrap(err, "syncing communications")
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *communicationApi) enabled() bool {
	return api.google != nil && api.google.Enabled()
}

func (api *communicationApi) googleConnect(ctx echo.Context) error {
	if !api.enabled() {
		return errGoogleDisabled
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	now := time.Now()
	state, err := GenerateToken(api.conf, &stateClaims{jwt.StandardClaims{
		Subject:   usr.ID,
		Audience:  stateAudience,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(oauthStateTTL).Unix(),
	}})
	if err != nil {
		return errors.Wrap(err, "generating oauth state")
	}
	return ctx.JSON(http.StatusOK, URLResponse{URL: api.google.AuthCodeURL(state)})
}

// googleCallback ends the consent round trip started by googleConnect and sends the browser back to the frontend.
func (api *communicationApi) googleCallback(ctx echo.Context) error {
	if !api.enabled() {
		return errGoogleDisabled
	}
	rctx := ctx.Request().Context()

	userID, err := parseStateToken(api.conf, ctx.QueryParam("state"))
	if err != nil {
		return err
	}
	usr, err := api.userSvc.GetByID(rctx, userID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	code := ctx.QueryParam("code")
	if code == "" {
		return ctx.Redirect(http.StatusFound, api.conf.FrontendBaseURL+"/settings?google=denied")
	}
	token, err := api.google.Exchange(rctx, code)
	if err != nil {
		return errors.Wrap(err, "exchanging oauth code")
	}
	if _, err = api.userSvc.SetGoogleToken(rctx, usr, token); err != nil {
		return errors.Wrap(err, "saving google token")
	}
	return ctx.Redirect(http.StatusFound, api.conf.FrontendBaseURL+"/settings?google=connected")
}

func (api *communicationApi) googleDisconnect(ctx echo.Context) error {
	rctx, usr, err := handlerCtx(ctx)
	if err != nil {
		return err
	}
	if _, err = api.userSvc.SetGoogleToken(rctx, usr, ""); err != nil {
		return errors.Wrap(err, "clearing google token")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type URLResponse struct {
	URL string `json:"url"`
}

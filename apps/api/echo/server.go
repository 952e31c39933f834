package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/access"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/broadcast"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/inspiration"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/messaging"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/search"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc          user.Service
		RosterSvc        roster.Service
		CourseSvc        course.Service
		TaskSvc          task.Service
		MessagingSvc     messaging.Service
		NotificationSvc  notification.Service
		InviteSvc        invite.Service
		AuditSvc         audit.Service
		BroadcastSvc     broadcast.Service
		InspirationSvc   inspiration.Service
		CommunicationSvc communication.Service
		StudyGuideSvc    studyguide.Service
		SearchSvc        search.Service
		Access           *access.Resolver

		// Google is optional
		Google GoogleAuth
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		deps     *Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps Deps) Server {
	s := &server{
		deps:     &deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = conf.TestMode
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(jwtConfig(conf))
	usr := userMiddleware(s.deps.UserSvc)
	authed := func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwt(usr(next))
	}

	registerUserAPI(api, authed, s.deps)
	registerRosterAPI(api, authed, s.deps)
	registerCourseAPI(api, authed, s.deps)
	registerTaskAPI(api, authed, s.deps)
	registerMessagingAPI(api, authed, s.deps)
	registerInviteAPI(api, authed, s.deps)
	registerAdminAPI(api, authed, s.deps)
	registerCommunicationAPI(api, authed, s.deps)
	registerStudyAPI(api, authed, s.deps)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

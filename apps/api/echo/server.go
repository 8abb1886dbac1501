package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/canvas"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/event"
	"github.com/trezcool/campusmate/core/message"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/core/resource"
	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/studygroup"
	"github.com/trezcool/campusmate/core/user"
	"github.com/trezcool/campusmate/services/realtime"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Hub        *realtime.Hub

		UserSvc         *user.Service
		ClassSvc        *class.Service
		EventSvc        *event.Service
		CanvasSvc       *canvas.Service
		MessageSvc      *message.Service
		NotificationSvc *notification.Service
		ResourceSvc     *resource.Service
		StudyGroupSvc   *studygroup.Service
		RewardSvc       *reward.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) (*Server, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.Hub, "Hub"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.ClassSvc, "ClassSvc"),
		vala.IsNotNil(deps.EventSvc, "EventSvc"),
		vala.IsNotNil(deps.CanvasSvc, "CanvasSvc"),
		vala.IsNotNil(deps.MessageSvc, "MessageSvc"),
		vala.IsNotNil(deps.NotificationSvc, "NotificationSvc"),
		vala.IsNotNil(deps.ResourceSvc, "ResourceSvc"),
		vala.IsNotNil(deps.StudyGroupSvc, "StudyGroupSvc"),
		vala.IsNotNil(deps.RewardSvc, "RewardSvc"),
	).Check(); err != nil {
		return nil, err
	}

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	conf := s.deps.Conf
	configureAuth(conf)

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{conf.FrontendBaseURL},
		AllowCredentials: true,
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	authed := []echo.MiddlewareFunc{jwt, userMiddleware(s.deps.UserSvc)}

	registerUserAPI(v1, jwt, s.deps)
	registerClassAPI(v1.Group("/classes", authed...), s.deps)
	registerCalendarAPI(v1.Group("/calendar", authed...), s.deps)
	registerMessageAPI(v1.Group("/messages", authed...), s.deps)
	registerNotificationAPI(v1.Group("/notifications", authed...), s.deps)
	registerResourceAPI(v1.Group("/resources", authed...), s.deps)
	registerStudyAPI(v1.Group("/study", authed...), s.deps)
	registerRewardAPI(v1.Group("/rewards", authed...), s.deps)
	registerWebsocketAPI(v1, middleware.JWTWithConfig(wsJWTConfig), s.deps)
}

// Start listens on the configured address. Errors other than a closed server are sent to Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// Shutdown closes the websocket connections then stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Hub.Close()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to CampusMate API!")
}

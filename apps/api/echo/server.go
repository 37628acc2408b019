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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/dashboard"
	"github.com/classhub/lms/core/progress"
	"github.com/classhub/lms/core/user"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        *user.Service
		ClassSvc       *class.Service
		ProgressSvc    *progress.Service
		Sessions       *progress.SessionManager
		DashboardSvc   *dashboard.Service
		DisableReqLogs bool
	}

	Server struct {
		opts     Options
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}

	// apiBase holds what every group of handlers needs.
	apiBase struct {
		auth     *authenticator
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = core.NewNopLogger()
	}
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		auth:     newAuthenticator(opts.Conf, opts.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(requestLogger(s.opts.Logger))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	base := apiBase{auth: s.auth, validate: s.opts.Validate, logger: s.opts.Logger}
	v1 := s.app.Group("/v1")
	jwt := s.auth.middleware()
	limit := rateLimitMiddleware(conf.Server.LoginRatePerMinute, conf.Server.LoginBurst)

	registerUserAPI(v1, jwt, limit, userApi{apiBase: base, svc: s.opts.UserSvc})
	registerClassAPI(v1, jwt, classApi{apiBase: base, svc: s.opts.ClassSvc})
	registerProgressAPI(v1, jwt, progressApi{
		apiBase:  base,
		svc:      s.opts.ProgressSvc,
		classes:  s.opts.ClassSvc,
		sessions: s.opts.Sessions,
	})
	registerDashboardAPI(v1, jwt, dashboardApi{
		apiBase: base,
		svc:     s.opts.DashboardSvc,
		classes: s.opts.ClassSvc,
	})
}

// Start listens on the configured address. Listening errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

// Shutdown stops the listener gracefully, then checkpoints the live playback sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	if err := s.app.Shutdown(ctx); err != nil {
		return err
	}
	if s.opts.Sessions != nil {
		return s.opts.Sessions.Close(ctx)
	}
	return nil
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to ClassHub API!")
}

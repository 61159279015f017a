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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/ratelimit"
)

// ServerDeps holds everything the API needs.
type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	// LoginRateLimitStore counts login attempts; an in-process store is used when nil.
	LoginRateLimitStore middleware.RateLimiterStore
	// HealthCheck reports whether the storage is ready; optional.
	HealthCheck func(ctx context.Context) error

	UserSvc       *user.Service
	AcademicSvc   *academic.Service
	PeopleSvc     *people.Service
	AttendanceSvc *attendance.Service
	ExamSvc       *exam.Service
	PaymentSvc    *payment.Service
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	auth     *authenticator
	registry *prometheus.Registry
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		registry: prometheus.NewRegistry(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(newMetrics(s.registry).middleware())
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.GET("/", s.home)

	api := s.app.Group("/api")
	api.GET("/health", s.health)

	jwt := s.auth.middleware()
	acc := access{peopleSvc: s.deps.PeopleSvc}

	loginStore := s.deps.LoginRateLimitStore
	if loginStore == nil {
		loginStore = ratelimit.NewStore(nil, conf.Server.LoginRateLimit)
	}

	registerAuthAPI(api, jwt, rateLimit(loginStore), s.auth, s.deps.UserSvc, s.deps.Validate)
	registerAcademicAPI(api, jwt, s.deps.AcademicSvc, s.deps.Validate)
	registerPeopleAPI(api, jwt, acc, s.deps.PeopleSvc, s.deps.Validate)
	registerAttendanceAPI(api, jwt, acc, s.deps.AttendanceSvc, s.deps.Validate)
	registerExamAPI(api, jwt, acc, s.deps.ExamSvc, s.deps.Validate)
	registerPaymentAPI(api, jwt, acc, s.deps.PaymentSvc, s.deps.Validate)
}

// Start listens on the configured address until Shutdown; failures are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops the server gracefully, waiting for in-flight requests until `ctx` is done.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// MetricsHandler serves the Prometheus metrics of this server.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ok(ctx, "Welcome to "+s.deps.Conf.AppName+" API!", echo.Map{"build": s.deps.Conf.Build})
}

func (s *Server) health(ctx echo.Context) error {
	if s.deps.HealthCheck != nil {
		if err := s.deps.HealthCheck(ctx.Request().Context()); err != nil {
			s.deps.Logger.Error("health check failed", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database not ready")
		}
	}
	return ok(ctx, "ok", echo.Map{"status": "ok"})
}

package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type (
	// Deps are the dependencies of the Server. DB is only used by the health check and may be nil.
	Deps struct {
		dig.In

		Conf          *core.Config
		Logger        core.Logger
		DB            core.DB `optional:"true"`
		Validate      *validator.Validate
		Translator    ut.Translator
		AttendanceSvc attendance.ServiceInterface
	}

	Server struct {
		app      *echo.Echo
		conf     *core.Config
		logger   core.Logger
		db       core.DB
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps Deps) *Server {
	s := &Server{
		app:      echo.New(),
		conf:     deps.Conf,
		logger:   deps.Logger,
		db:       deps.DB,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps Deps) {
	conf := s.conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, deps.Translator, s.signalShutdown)
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  conf.Server.AllowedOrigins,
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)

	registerAttendanceAPI(s.app, attendanceApi{
		svc:       deps.AttendanceSvc,
		validate:  deps.Validate,
		conf:      conf,
		uploadMax: bodyLimit(conf.Upload),
	})
}

// bodyLimit allows a full batch of maximum-size files, plus some room for the multipart envelope.
func bodyLimit(conf core.UploadConfig) string {
	const envelope = 1 << 20
	limit := int64(conf.MaxFiles)*conf.MaxFileSize + envelope
	return fmt.Sprintf("%dK", limit/1024+1)
}

// Start starts listening; errors other than a graceful shutdown are sent to Errors().
func (s *Server) Start() {
	s.logger.Info(fmt.Sprintf("API listening on %s", s.conf.Server.Addr))
	if err := s.app.Start(s.conf.Server.Addr); err != nil && err != http.ErrServerClosed {
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

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, fmt.Sprintf("Welcome to %s API!", s.conf.AppName))
}

func (s *Server) health(ctx echo.Context) error {
	if s.db != nil {
		if err := s.db.PingContext(ctx.Request().Context()); err != nil {
			s.logger.Error("health check failed", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator"
	orchestratorUsecase "github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator/usecase"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	maxHeaderBytes = 1 << 20
	ctxTimeout     = 5
)

type Server struct {
	echo           *echo.Echo
	cfg            *config.Config
	orchestratorUC orchestrator.UseCase
	logger         logger.Logger
}

func NewServer(cfg *config.Config, orchestratorUC orchestrator.UseCase, logger logger.Logger) *Server {
	return &Server{
		echo:           echo.New(),
		cfg:            cfg,
		orchestratorUC: orchestratorUC,
		logger:         logger,
	}
}

func (s *Server) Run() error {
	driveCtx, stopDrives := context.WithCancel(context.Background())
	defer stopDrives()
	background := orchestratorUsecase.NewBackgroundDriver(driveCtx, s.orchestratorUC, s.cfg.Worker.WorkerCount, s.logger)

	if err := s.MapHandlers(s.echo, background); err != nil {
		return err
	}
	s.echo.HideBanner = true
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Recover())

	server := &http.Server{
		Addr:           s.cfg.Server.Port,
		ReadTimeout:    time.Second * time.Duration(s.cfg.Server.ReadTimeout),
		WriteTimeout:   time.Second * time.Duration(s.cfg.Server.WriteTimeout),
		MaxHeaderBytes: maxHeaderBytes,
	}
	go func() {
		s.logger.Infof("Server is listening on PORT: %s", s.cfg.Server.Port)
		if err := s.echo.StartServer(server); err != nil && err != http.ErrServerClosed {
			s.logger.Fatalf("error starting Server: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit

	ctx, shutdown := context.WithTimeout(context.Background(), time.Second*ctxTimeout)
	defer shutdown()
	s.logger.Infof("shutting down server")
	err := s.echo.Shutdown(ctx)

	// In-flight drives stop at their next wait; their jobs resume on a later trigger.
	stopDrives()
	background.Wait()
	return err
}

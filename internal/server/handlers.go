package server

import (
	"net/http"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/middleware"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator"
	orchestratorHttp "github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator/delivery/http"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) MapHandlers(e *echo.Echo, dispatcher orchestrator.Dispatcher) error {
	orchestratorHandlers := orchestratorHttp.NewOrchestratorHandler(s.orchestratorUC, dispatcher, s.logger)

	mw := middleware.NewMiddlewareManager(s.cfg, []string{"*"}, s.logger)
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: mw.Origins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		MaxAge:       300,
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	notificationGroup := v1.Group("/notifications")
	jobGroup := v1.Group("/jobs")

	orchestratorHttp.MapNotificationRoutes(notificationGroup, orchestratorHandlers)
	orchestratorHttp.MapJobRoutes(jobGroup, orchestratorHandlers, mw)
	health.GET("", func(c echo.Context) error {
		s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
		return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
	})
	return nil
}

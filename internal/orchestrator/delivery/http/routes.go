package http

import (
	"github.com/amankumarsingh77/dubbing-pipeline/internal/middleware"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator"
	"github.com/labstack/echo/v4"
)

func MapNotificationRoutes(notificationGroup *echo.Group, h orchestrator.Handler) {
	notificationGroup.POST("", h.HandleNotification())
}

func MapJobRoutes(jobGroup *echo.Group, h orchestrator.Handler, mw *middleware.MiddlewareManager) {
	jobGroup.Use(mw.AuthJWTMiddleware())
	jobGroup.GET("", h.ListJobs())
	jobGroup.GET("/:job_id", h.GetJobStatus())
	jobGroup.POST("/:job_id/retry", h.RetryJob())
}

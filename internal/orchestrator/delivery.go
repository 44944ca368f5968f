package orchestrator

import "github.com/labstack/echo/v4"

type Handler interface {
	HandleNotification() echo.HandlerFunc
	GetJobStatus() echo.HandlerFunc
	ListJobs() echo.HandlerFunc
	RetryJob() echo.HandlerFunc
}

package http

import (
	"io"
	"net/http"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
	"github.com/labstack/echo/v4"
)

const maxNotificationBytes = 1 << 20

type orchestratorHandler struct {
	orchestratorUC orchestrator.UseCase
	dispatcher     orchestrator.Dispatcher
	logger         logger.Logger
}

func NewOrchestratorHandler(orchestratorUC orchestrator.UseCase, dispatcher orchestrator.Dispatcher, log logger.Logger) orchestrator.Handler {
	return &orchestratorHandler{
		orchestratorUC: orchestratorUC,
		dispatcher:     dispatcher,
		logger:         log,
	}
}

type acceptedResponse struct {
	JobIDs []string `json:"job_ids"`
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(utils.ErrorStatus(err), map[string]string{"error": err.Error()})
}

// HandleNotification accepts an upload notification and drives the resulting
// jobs in the background.
func (h *orchestratorHandler) HandleNotification() echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBytes))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		}
		n, err := models.ParseNotification(body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		}

		jobs, err := h.orchestratorUC.Accept(c.Request().Context(), n)
		if err != nil {
			h.logger.Errorf("HandleNotification RequestID: %s, ERROR: %v", utils.GetRequestID(c), err)
			return errorJSON(c, err)
		}

		resp := acceptedResponse{JobIDs: make([]string, 0, len(jobs))}
		for _, job := range jobs {
			resp.JobIDs = append(resp.JobIDs, job.JobID)
			h.dispatcher.Dispatch(job.JobID)
		}
		return c.JSON(http.StatusAccepted, resp)
	}
}

func (h *orchestratorHandler) GetJobStatus() echo.HandlerFunc {
	return func(c echo.Context) error {
		jobID := c.Param("job_id")
		if jobID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid job id"})
		}
		view, err := h.orchestratorUC.GetJobStatus(c.Request().Context(), jobID)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func (h *orchestratorHandler) ListJobs() echo.HandlerFunc {
	return func(c echo.Context) error {
		pagination, err := utils.GetPaginationFromCtx(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		jobs, err := h.orchestratorUC.ListJobs(c.Request().Context(), c.QueryParam("env"), pagination)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, jobs)
	}
}

// RetryJob restarts a job's failed stages, then drives it in the background.
func (h *orchestratorHandler) RetryJob() echo.HandlerFunc {
	return func(c echo.Context) error {
		jobID := c.Param("job_id")
		view, err := h.orchestratorUC.RetryJob(c.Request().Context(), jobID)
		if err != nil {
			h.logger.Errorf("RetryJob RequestID: %s, ERROR: %v", utils.GetRequestID(c), err)
			return errorJSON(c, err)
		}
		h.logger.Infof("RetryJob RequestID: %s, job %s requested by %v", utils.GetRequestID(c), jobID, c.Get("operator"))
		h.dispatcher.Dispatch(jobID)
		return c.JSON(http.StatusAccepted, view)
	}
}

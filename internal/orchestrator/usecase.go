package orchestrator

import (
	"context"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
)

type UseCase interface {
	Accept(ctx context.Context, n *models.Notification) ([]*models.Job, error)
	HandleNotification(ctx context.Context, n *models.Notification) ([]*models.JobStatusView, error)
	Drive(ctx context.Context, jobID string) (*models.JobStatusView, error)
	GetJobStatus(ctx context.Context, jobID string) (*models.JobStatusView, error)
	ListJobs(ctx context.Context, environment string, pagination *utils.Pagination) (*models.JobList, error)
	// RetryJob restarts the job's failed stages that have attempts left and
	// returns the refreshed status. The caller drives the job afterwards.
	RetryJob(ctx context.Context, jobID string) (*models.JobStatusView, error)
}

// JobDriver runs jobs forward; pipeline.Engine implements it.
type JobDriver interface {
	Drive(ctx context.Context, jobID string) (*models.JobStatusView, error)
	Status(ctx context.Context, jobID string) (*models.JobStatusView, error)
	Retry(ctx context.Context, jobID string) ([]models.StageName, error)
}

// ObjectInspector reads input object metadata.
type ObjectInspector interface {
	Head(ctx context.Context, loc models.Locator) (*models.ObjectInfo, error)
}

// Dispatcher runs jobs in the background of a request.
type Dispatcher interface {
	Dispatch(jobID string)
}

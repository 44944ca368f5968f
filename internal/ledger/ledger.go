package ledger

import (
	"context"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
)

// Ledger is the durable job and stage record. SaveStageTransition is a
// compare-and-swap on (From, ExpectedVersion); a lost race yields apperrors.ErrConflict.
type Ledger interface {
	CreateJob(ctx context.Context, job *models.Job) (bool, error)
	Load(ctx context.Context, jobID string) (*models.JobRecord, error)
	SaveStageTransition(ctx context.Context, jobID string, t *models.StageTransition) (*models.StageRecord, error)
	ListJobs(ctx context.Context, environment string, pq *utils.Pagination) (*models.JobList, error)
}

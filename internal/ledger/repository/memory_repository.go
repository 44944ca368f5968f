package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/ledger"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
)

type memoryRepository struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	stages map[string]map[models.StageName]*models.StageRecord
}

func NewMemoryLedger() ledger.Ledger {
	return &memoryRepository{
		jobs:   make(map[string]*models.Job),
		stages: make(map[string]map[models.StageName]*models.StageRecord),
	}
}

func (m *memoryRepository) CreateJob(_ context.Context, job *models.Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.JobID]; ok {
		return false, nil
	}
	stored := *job
	stored.TargetLanguages = append([]string(nil), job.TargetLanguages...)
	m.jobs[job.JobID] = &stored

	records := make(map[models.StageName]*models.StageRecord)
	for _, s := range job.Stages() {
		records[s] = models.NewPendingStage(job.JobID, s, job.CreatedAt)
	}
	m.stages[job.JobID] = records
	return true, nil
}

func (m *memoryRepository) Load(_ context.Context, jobID string) (*models.JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, apperrors.Classifyf(apperrors.ErrNotFound, "job %s", jobID)
	}
	jobCopy := *job
	jobCopy.TargetLanguages = append([]string(nil), job.TargetLanguages...)
	rec := &models.JobRecord{Job: &jobCopy, Stages: make(map[models.StageName]*models.StageRecord)}
	for name, st := range m.stages[jobID] {
		stCopy := *st
		rec.Stages[name] = &stCopy
	}
	return rec, nil
}

func (m *memoryRepository) SaveStageTransition(_ context.Context, jobID string, t *models.StageTransition) (*models.StageRecord, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.stages[jobID][t.Stage]
	if !ok {
		return nil, apperrors.Classifyf(apperrors.ErrNotFound, "stage %s of job %s", t.Stage, jobID)
	}
	if current.Status != t.From || current.Version != t.ExpectedVersion {
		return nil, apperrors.Classifyf(apperrors.ErrConflict, "stage %s is %s@%d, expected %s@%d",
			t.Stage, current.Status, current.Version, t.From, t.ExpectedVersion)
	}
	next := t.Apply(current)
	m.stages[jobID][t.Stage] = next
	out := *next
	return &out, nil
}

func (m *memoryRepository) ListJobs(_ context.Context, environment string, pq *utils.Pagination) (*models.JobList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*models.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if environment == "" || j.Environment == environment {
			all = append(all, j)
		}
	}
	sort.Slice(all, func(i, k int) bool {
		if all[i].CreatedAt.Equal(all[k].CreatedAt) {
			return all[i].JobID < all[k].JobID
		}
		return all[i].CreatedAt.After(all[k].CreatedAt)
	})

	start := pq.GetOffset()
	if start > len(all) {
		start = len(all)
	}
	end := start + pq.GetLimit()
	if end > len(all) {
		end = len(all)
	}
	summaries := make([]*models.JobSummary, 0, end-start)
	for _, j := range all[start:end] {
		summaries = append(summaries, summarize(j))
	}
	return newJobList(summaries, len(all), pq), nil
}

func summarize(j *models.Job) *models.JobSummary {
	return &models.JobSummary{
		JobID:           j.JobID,
		Environment:     j.Environment,
		SourceLocator:   j.SourceLocator.String(),
		TargetLanguages: j.TargetLanguages,
		CreatedAt:       j.CreatedAt,
	}
}

func newJobList(jobs []*models.JobSummary, total int, pq *utils.Pagination) *models.JobList {
	return &models.JobList{
		Jobs:       jobs,
		TotalCount: total,
		TotalPages: utils.GetTotalPages(total, pq.GetLimit()),
		Page:       pq.Page,
		PageSize:   pq.GetLimit(),
		HasMore:    utils.GetHasMore(pq.Page, total, pq.GetLimit()),
	}
}

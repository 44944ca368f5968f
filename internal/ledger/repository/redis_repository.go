package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/ledger"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
	"github.com/go-redis/redis/v8"
	pkgerrors "github.com/pkg/errors"
)

const (
	redisJobPrefix      = "ledger:job:"
	redisStagePrefix    = "ledger:stage:"
	redisAllJobsIndex   = "ledger:jobs"
	redisEnvIndexPrefix = "ledger:jobs:env:"
)

type redisRepository struct {
	redisClient *redis.Client
}

func NewRedisLedger(redisClient *redis.Client) ledger.Ledger {
	return &redisRepository{redisClient: redisClient}
}

func jobKey(jobID string) string {
	return redisJobPrefix + jobID
}

// Each stage has its own key so that WATCH only trips on writes to that stage.
func stageKey(jobID string, stage models.StageName) string {
	return fmt.Sprintf("%s%s:%s", redisStagePrefix, jobID, stage)
}

func (r *redisRepository) CreateJob(ctx context.Context, job *models.Job) (bool, error) {
	jobData, err := json.Marshal(job)
	if err != nil {
		return false, pkgerrors.Wrap(err, "encode job")
	}
	key := jobKey(job.JobID)
	created := false

	err = r.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, jobData, 0)
			for _, stage := range job.Stages() {
				stData, err := json.Marshal(models.NewPendingStage(job.JobID, stage, job.CreatedAt))
				if err != nil {
					return err
				}
				pipe.Set(ctx, stageKey(job.JobID, stage), stData, 0)
			}
			member := &redis.Z{Score: float64(job.CreatedAt.UnixMilli()), Member: job.JobID}
			pipe.ZAdd(ctx, redisAllJobsIndex, member)
			pipe.ZAdd(ctx, redisEnvIndexPrefix+job.Environment, member)
			return nil
		})
		if err == nil {
			created = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrapf(err, "create job %s", job.JobID)
	}
	return created, nil
}

func (r *redisRepository) loadJob(ctx context.Context, jobID string) (*models.Job, error) {
	data, err := r.redisClient.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.Classifyf(apperrors.ErrNotFound, "job %s", jobID)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "get job %s", jobID)
	}
	job := &models.Job{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, pkgerrors.Wrapf(err, "decode job %s", jobID)
	}
	return job, nil
}

func (r *redisRepository) Load(ctx context.Context, jobID string) (*models.JobRecord, error) {
	job, err := r.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	stages := job.Stages()
	keys := make([]string, len(stages))
	for i, s := range stages {
		keys[i] = stageKey(jobID, s)
	}
	values, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "get stages of job %s", jobID)
	}

	rec := &models.JobRecord{Job: job, Stages: make(map[models.StageName]*models.StageRecord, len(stages))}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		st := &models.StageRecord{}
		if err := json.Unmarshal([]byte(raw), st); err != nil {
			return nil, pkgerrors.Wrapf(err, "decode stage %s", stages[i])
		}
		rec.Stages[st.Stage] = st
	}
	return rec, nil
}

func (r *redisRepository) SaveStageTransition(ctx context.Context, jobID string, t *models.StageTransition) (*models.StageRecord, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	key := stageKey(jobID, t.Stage)
	var next *models.StageRecord

	err := r.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperrors.Classifyf(apperrors.ErrNotFound, "stage %s of job %s", t.Stage, jobID)
		}
		if err != nil {
			return err
		}
		current := &models.StageRecord{}
		if err := json.Unmarshal(data, current); err != nil {
			return pkgerrors.Wrapf(err, "decode stage %s", t.Stage)
		}
		if current.Status != t.From || current.Version != t.ExpectedVersion {
			return apperrors.Classifyf(apperrors.ErrConflict, "stage %s is %s@%d, expected %s@%d",
				t.Stage, current.Status, current.Version, t.From, t.ExpectedVersion)
		}

		next = t.Apply(current)
		nextData, err := json.Marshal(next)
		if err != nil {
			return pkgerrors.Wrap(err, "encode stage")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, nextData, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, apperrors.Classifyf(apperrors.ErrConflict, "stage %s of job %s changed concurrently", t.Stage, jobID)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrapf(err, "update stage %s of job %s", t.Stage, jobID)
	}
	return next, nil
}

func (r *redisRepository) ListJobs(ctx context.Context, environment string, pq *utils.Pagination) (*models.JobList, error) {
	index := redisAllJobsIndex
	if environment != "" {
		index = redisEnvIndexPrefix + environment
	}
	total, err := r.redisClient.ZCard(ctx, index).Result()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "count jobs")
	}
	start := int64(pq.GetOffset())
	ids, err := r.redisClient.ZRevRange(ctx, index, start, start+int64(pq.GetLimit())-1).Result()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list jobs")
	}

	summaries := make([]*models.JobSummary, 0, len(ids))
	for _, id := range ids {
		job, err := r.loadJob(ctx, id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(job))
	}
	return newJobList(summaries, int(total), pq), nil
}

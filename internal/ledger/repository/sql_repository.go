package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/ledger"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
)

type jobRow struct {
	JobID           string `db:"job_id"`
	Environment     string `db:"environment"`
	SourceBucket    string `db:"source_bucket"`
	SourceKey       string `db:"source_key"`
	Fingerprint     string `db:"fingerprint"`
	BaseName        string `db:"base_name"`
	TargetLanguages string `db:"target_languages"`
	CreatedAt       int64  `db:"created_at"`
}

func (r *jobRow) toModel() (*models.Job, error) {
	var langs []string
	if err := json.Unmarshal([]byte(r.TargetLanguages), &langs); err != nil {
		return nil, pkgerrors.Wrapf(err, "decode target languages of job %s", r.JobID)
	}
	return &models.Job{
		JobID:           r.JobID,
		Environment:     r.Environment,
		SourceLocator:   models.Locator{Bucket: r.SourceBucket, Key: r.SourceKey},
		Fingerprint:     r.Fingerprint,
		BaseName:        r.BaseName,
		TargetLanguages: langs,
		CreatedAt:       time.Unix(0, r.CreatedAt).UTC(),
	}, nil
}

type stageRow struct {
	JobID           string `db:"job_id"`
	Stage           string `db:"stage"`
	Status          string `db:"status"`
	Attempts        int    `db:"attempts"`
	LastError       string `db:"last_error"`
	ErrorKind       string `db:"error_kind"`
	ResultLocator   string `db:"result_locator"`
	OperationHandle string `db:"operation_handle"`
	Version         int64  `db:"version"`
	UpdatedAt       int64  `db:"updated_at"`
}

func (r *stageRow) toModel() *models.StageRecord {
	return &models.StageRecord{
		JobID:           r.JobID,
		Stage:           models.StageName(r.Stage),
		Status:          models.StageStatus(r.Status),
		Attempts:        r.Attempts,
		LastError:       r.LastError,
		ErrorKind:       r.ErrorKind,
		ResultLocator:   r.ResultLocator,
		OperationHandle: r.OperationHandle,
		Version:         r.Version,
		UpdatedAt:       time.Unix(0, r.UpdatedAt).UTC(),
	}
}

type sqlRepository struct {
	db *sqlx.DB
}

// NewSQLLedger works with any sqlx driver whose dialect accepts the shared
// schema; Postgres (pgx) and SQLite (modernc) are the supported ones.
func NewSQLLedger(db *sqlx.DB) ledger.Ledger {
	return &sqlRepository{db: db}
}

// Migrate creates the ledger tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.Wrap(err, "migrate ledger schema")
		}
	}
	return nil
}

func (s *sqlRepository) CreateJob(ctx context.Context, job *models.Job) (bool, error) {
	langs, err := json.Marshal(job.TargetLanguages)
	if err != nil {
		return false, pkgerrors.Wrap(err, "encode target languages")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, pkgerrors.Wrap(err, "begin create job")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.db.Rebind(insertJobQuery),
		job.JobID, job.Environment, job.SourceLocator.Bucket, job.SourceLocator.Key,
		job.Fingerprint, job.BaseName, string(langs), job.CreatedAt.UnixNano(),
	)
	if err != nil {
		return false, pkgerrors.Wrapf(err, "insert job %s", job.JobID)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.Wrap(err, "rows affected")
	}
	if inserted == 0 {
		return false, nil
	}

	stageQuery := s.db.Rebind(insertStageQuery)
	for _, stage := range job.Stages() {
		if _, err := tx.ExecContext(ctx, stageQuery, job.JobID, string(stage), string(models.StageStatusPending), job.CreatedAt.UnixNano()); err != nil {
			return false, pkgerrors.Wrapf(err, "insert stage %s of job %s", stage, job.JobID)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, pkgerrors.Wrapf(err, "commit job %s", job.JobID)
	}
	return true, nil
}

func (s *sqlRepository) Load(ctx context.Context, jobID string) (*models.JobRecord, error) {
	row := &jobRow{}
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(getJobQuery), jobID).StructScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Classifyf(apperrors.ErrNotFound, "job %s", jobID)
		}
		return nil, pkgerrors.Wrapf(err, "load job %s", jobID)
	}
	job, err := row.toModel()
	if err != nil {
		return nil, err
	}

	var stages []stageRow
	if err := s.db.SelectContext(ctx, &stages, s.db.Rebind(getStagesQuery), jobID); err != nil {
		return nil, pkgerrors.Wrapf(err, "load stages of job %s", jobID)
	}
	rec := &models.JobRecord{Job: job, Stages: make(map[models.StageName]*models.StageRecord, len(stages))}
	for i := range stages {
		st := stages[i].toModel()
		rec.Stages[st.Stage] = st
	}
	return rec, nil
}

func (s *sqlRepository) SaveStageTransition(ctx context.Context, jobID string, t *models.StageTransition) (*models.StageRecord, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(casStageQuery),
		string(t.To), t.Attempts, t.LastError, t.ErrorKind, t.ResultLocator, t.OperationHandle, t.At.UnixNano(),
		jobID, string(t.Stage), string(t.From), t.ExpectedVersion,
	)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "update stage %s of job %s", t.Stage, jobID)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "rows affected")
	}

	current, err := s.getStage(ctx, jobID, t.Stage)
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, apperrors.Classifyf(apperrors.ErrConflict, "stage %s is %s@%d, expected %s@%d",
			t.Stage, current.Status, current.Version, t.From, t.ExpectedVersion)
	}
	return current, nil
}

func (s *sqlRepository) getStage(ctx context.Context, jobID string, stage models.StageName) (*models.StageRecord, error) {
	row := &stageRow{}
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(getStageQuery), jobID, string(stage)).StructScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Classifyf(apperrors.ErrNotFound, "stage %s of job %s", stage, jobID)
		}
		return nil, pkgerrors.Wrapf(err, "load stage %s of job %s", stage, jobID)
	}
	return row.toModel(), nil
}

func (s *sqlRepository) ListJobs(ctx context.Context, environment string, pq *utils.Pagination) (*models.JobList, error) {
	var (
		total int
		rows  []jobRow
		err   error
	)
	if environment == "" {
		err = s.db.GetContext(ctx, &total, s.db.Rebind(countJobsQuery))
		if err == nil {
			err = s.db.SelectContext(ctx, &rows, s.db.Rebind(listJobsQuery), pq.GetLimit(), pq.GetOffset())
		}
	} else {
		err = s.db.GetContext(ctx, &total, s.db.Rebind(countJobsByEnvQuery), environment)
		if err == nil {
			err = s.db.SelectContext(ctx, &rows, s.db.Rebind(listJobsByEnvQuery), environment, pq.GetLimit(), pq.GetOffset())
		}
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list jobs")
	}

	summaries := make([]*models.JobSummary, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(job))
	}
	return newJobList(summaries, total, pq), nil
}

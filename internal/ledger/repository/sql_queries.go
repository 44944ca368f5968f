package repository

// Queries use "?" placeholders and are rebound per driver by sqlx.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		environment TEXT NOT NULL,
		source_bucket TEXT NOT NULL,
		source_key TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		base_name TEXT NOT NULL,
		target_languages TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stage_records (
		job_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		result_locator TEXT NOT NULL DEFAULT '',
		operation_handle TEXT NOT NULL DEFAULT '',
		version BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (job_id, stage)
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_environment_created_idx ON jobs (environment, created_at)`,
}

const (
	insertJobQuery = `INSERT INTO jobs (job_id, environment, source_bucket, source_key, fingerprint, base_name, target_languages, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`

	insertStageQuery = `INSERT INTO stage_records (job_id, stage, status, attempts, last_error, error_kind, result_locator, operation_handle, version, updated_at)
		VALUES (?, ?, ?, 0, '', '', '', '', 0, ?)
		ON CONFLICT (job_id, stage) DO NOTHING`

	getJobQuery = `SELECT job_id, environment, source_bucket, source_key, fingerprint, base_name, target_languages, created_at
		FROM jobs WHERE job_id = ?`

	getStagesQuery = `SELECT job_id, stage, status, attempts, last_error, error_kind, result_locator, operation_handle, version, updated_at
		FROM stage_records WHERE job_id = ?`

	getStageQuery = `SELECT job_id, stage, status, attempts, last_error, error_kind, result_locator, operation_handle, version, updated_at
		FROM stage_records WHERE job_id = ? AND stage = ?`

	casStageQuery = `UPDATE stage_records
		SET status = ?, attempts = ?, last_error = ?, error_kind = ?, result_locator = ?, operation_handle = ?, version = version + 1, updated_at = ?
		WHERE job_id = ? AND stage = ? AND status = ? AND version = ?`

	listJobsQuery = `SELECT job_id, environment, source_bucket, source_key, fingerprint, base_name, target_languages, created_at
		FROM jobs ORDER BY created_at DESC, job_id ASC LIMIT ? OFFSET ?`

	listJobsByEnvQuery = `SELECT job_id, environment, source_bucket, source_key, fingerprint, base_name, target_languages, created_at
		FROM jobs WHERE environment = ? ORDER BY created_at DESC, job_id ASC LIMIT ? OFFSET ?`

	countJobsQuery = `SELECT COUNT(*) FROM jobs`

	countJobsByEnvQuery = `SELECT COUNT(*) FROM jobs WHERE environment = ?`
)

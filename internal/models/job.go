package models

import (
	"time"
)

type Job struct {
	JobID           string    `json:"job_id" db:"job_id" redis:"job_id" validate:"required"`
	Environment     string    `json:"environment" db:"environment" redis:"environment" validate:"required"`
	SourceLocator   Locator   `json:"source_locator" db:"-" redis:"-" validate:"required"`
	Fingerprint     string    `json:"fingerprint" db:"fingerprint" redis:"fingerprint" validate:"omitempty"`
	BaseName        string    `json:"base_name" db:"base_name" redis:"base_name" validate:"required"`
	TargetLanguages []string  `json:"target_languages" db:"-" redis:"-" validate:"required,min=1,dive,required"`
	CreatedAt       time.Time `json:"created_at" db:"-" redis:"-" validate:"omitempty"`
}

// Stages lists every stage of the job in dependency order: transcribe first, then the
// translate/synthesize pair of each language in TargetLanguages order.
func (j *Job) Stages() []StageName {
	stages := make([]StageName, 0, 1+2*len(j.TargetLanguages))
	stages = append(stages, StageTranscribe)
	for _, lang := range j.TargetLanguages {
		stages = append(stages, TranslateStage(lang), SynthesizeStage(lang))
	}
	return stages
}

type JobRecord struct {
	Job    *Job                       `json:"job"`
	Stages map[StageName]*StageRecord `json:"stages"`
}

func (r *JobRecord) Stage(name StageName) *StageRecord {
	if r == nil || r.Stages == nil {
		return nil
	}
	return r.Stages[name]
}

type JobSummary struct {
	JobID           string    `json:"job_id"`
	Environment     string    `json:"environment"`
	SourceLocator   string    `json:"source_locator"`
	TargetLanguages []string  `json:"target_languages"`
	CreatedAt       time.Time `json:"created_at"`
}

type JobList struct {
	Jobs       []*JobSummary `json:"jobs"`
	TotalCount int           `json:"total_count"`
	TotalPages int           `json:"total_pages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	HasMore    bool          `json:"has_more"`
}

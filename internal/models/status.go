package models

import (
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
)

type JobStatus string

const (
	JobStatusSucceeded          JobStatus = "succeeded"
	JobStatusPartiallySucceeded JobStatus = "partially_succeeded"
	JobStatusFailed             JobStatus = "failed"
	JobStatusInFlight           JobStatus = "in_flight"
)

type LanguageStatus struct {
	Language   string      `json:"language"`
	Status     JobStatus   `json:"status"`
	Translate  StageStatus `json:"translate"`
	Synthesize StageStatus `json:"synthesize"`
}

type JobStatusView struct {
	JobID            string           `json:"job_id"`
	Environment      string           `json:"environment"`
	SourceLocator    string           `json:"source_locator"`
	Status           JobStatus        `json:"status"`
	Languages        []LanguageStatus `json:"languages"`
	Stages           []*StageRecord   `json:"stages"`
	FailedLanguages  []string         `json:"failed_languages,omitempty"`
	SkippedLanguages []string         `json:"skipped_languages,omitempty"`
}

// IsTerminal reports whether no further work can happen on the stage.
func (r *StageRecord) IsTerminal(maxAttempts int) bool {
	switch r.Status {
	case StageStatusSucceeded, StageStatusSkipped:
		return true
	case StageStatusFailed:
		return r.IsTerminallyFailed(maxAttempts)
	default:
		return false
	}
}

func (r *StageRecord) IsTerminallyFailed(maxAttempts int) bool {
	if r.Status != StageStatusFailed {
		return false
	}
	return !apperrors.RetriableKind(r.ErrorKind) || r.Attempts >= maxAttempts
}

// BuildStatusView projects ledger state into the operator-facing status.
func BuildStatusView(rec *JobRecord, maxAttempts int) *JobStatusView {
	job := rec.Job
	view := &JobStatusView{
		JobID:         job.JobID,
		Environment:   job.Environment,
		SourceLocator: job.SourceLocator.String(),
		Languages:     make([]LanguageStatus, 0, len(job.TargetLanguages)),
	}
	for _, name := range job.Stages() {
		if st := rec.Stage(name); st != nil {
			view.Stages = append(view.Stages, st)
		}
	}

	transcribe := rec.Stage(StageTranscribe)
	if transcribe == nil {
		view.Status = JobStatusInFlight
		return view
	}

	allSucceeded := transcribe.Status == StageStatusSucceeded
	anyInFlight := !transcribe.IsTerminal(maxAttempts)
	for _, lang := range job.TargetLanguages {
		ls := languageStatus(rec, lang, maxAttempts)
		view.Languages = append(view.Languages, ls)
		switch ls.Status {
		case JobStatusFailed:
			view.FailedLanguages = append(view.FailedLanguages, lang)
		case jobStatusSkipped:
			view.SkippedLanguages = append(view.SkippedLanguages, lang)
		case JobStatusInFlight:
			anyInFlight = true
		}
		if ls.Status != JobStatusSucceeded {
			allSucceeded = false
		}
	}

	switch {
	case transcribe.IsTerminallyFailed(maxAttempts):
		view.Status = JobStatusFailed
	case allSucceeded:
		view.Status = JobStatusSucceeded
	case anyInFlight:
		view.Status = JobStatusInFlight
	default:
		view.Status = JobStatusPartiallySucceeded
	}
	return view
}

const jobStatusSkipped JobStatus = "skipped"

func languageStatus(rec *JobRecord, lang string, maxAttempts int) LanguageStatus {
	ls := LanguageStatus{Language: lang, Status: JobStatusInFlight}
	tr, sy := rec.Stage(TranslateStage(lang)), rec.Stage(SynthesizeStage(lang))
	if tr == nil || sy == nil {
		return ls
	}
	ls.Translate, ls.Synthesize = tr.Status, sy.Status

	switch {
	case tr.Status == StageStatusSucceeded && sy.Status == StageStatusSucceeded:
		ls.Status = JobStatusSucceeded
	case tr.IsTerminallyFailed(maxAttempts) || sy.IsTerminallyFailed(maxAttempts):
		ls.Status = JobStatusFailed
	case tr.Status == StageStatusSkipped:
		ls.Status = jobStatusSkipped
	}
	return ls
}

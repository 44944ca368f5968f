package models

import (
	"fmt"
	"strings"
	"time"
)

type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusInFlight  StageStatus = "in_flight"
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

type StageKind string

const (
	StageKindTranscribe StageKind = "transcribe"
	StageKindTranslate  StageKind = "translate"
	StageKindSynthesize StageKind = "synthesize"
)

// StageName is "transcribe", "translate:<lang>" or "synthesize:<lang>".
type StageName string

const StageTranscribe StageName = StageName(StageKindTranscribe)

func TranslateStage(lang string) StageName {
	return StageName(fmt.Sprintf("%s:%s", StageKindTranslate, lang))
}

func SynthesizeStage(lang string) StageName {
	return StageName(fmt.Sprintf("%s:%s", StageKindSynthesize, lang))
}

func (s StageName) Kind() StageKind {
	kind, _, _ := strings.Cut(string(s), ":")
	return StageKind(kind)
}

func (s StageName) Language() string {
	_, lang, _ := strings.Cut(string(s), ":")
	return lang
}

type StageRecord struct {
	JobID           string      `json:"job_id" db:"job_id" redis:"job_id"`
	Stage           StageName   `json:"stage" db:"stage" redis:"stage"`
	Status          StageStatus `json:"status" db:"status" redis:"status"`
	Attempts        int         `json:"attempts" db:"attempts" redis:"attempts"`
	LastError       string      `json:"last_error,omitempty" db:"last_error" redis:"last_error"`
	ErrorKind       string      `json:"error_kind,omitempty" db:"error_kind" redis:"error_kind"`
	ResultLocator   string      `json:"result_locator,omitempty" db:"result_locator" redis:"result_locator"`
	OperationHandle string      `json:"operation_handle,omitempty" db:"operation_handle" redis:"operation_handle"`
	Version         int64       `json:"version" db:"version" redis:"version"`
	UpdatedAt       time.Time   `json:"updated_at" db:"-" redis:"updated_at"`
}

func NewPendingStage(jobID string, stage StageName, at time.Time) *StageRecord {
	return &StageRecord{
		JobID:     jobID,
		Stage:     stage,
		Status:    StageStatusPending,
		UpdatedAt: at,
	}
}

// StageTransition is a compare-and-swap request: it applies only while the stored record
// still has status From and version ExpectedVersion.
type StageTransition struct {
	Stage           StageName
	From            StageStatus
	To              StageStatus
	ExpectedVersion int64
	Attempts        int
	LastError       string
	ErrorKind       string
	ResultLocator   string
	OperationHandle string
	At              time.Time
	// Rearm marks an operator retry putting a Skipped stage back to Pending.
	// No other path may leave Skipped.
	Rearm bool
}

var allowedTransitions = map[StageStatus][]StageStatus{
	StageStatusPending:  {StageStatusInFlight, StageStatusSkipped},
	StageStatusInFlight: {StageStatusInFlight, StageStatusSucceeded, StageStatusFailed},
	StageStatusFailed:   {StageStatusInFlight},
}

func CanTransition(from, to StageStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Validate checks the transition shape before it reaches a store.
func (t *StageTransition) Validate() error {
	if t.Rearm {
		if t.From != StageStatusSkipped || t.To != StageStatusPending {
			return fmt.Errorf("illegal rearm transition %s -> %s", t.From, t.To)
		}
		return nil
	}
	if !CanTransition(t.From, t.To) {
		return fmt.Errorf("illegal stage transition %s -> %s", t.From, t.To)
	}
	if (t.To == StageStatusSucceeded) != (t.ResultLocator != "") {
		return fmt.Errorf("result locator must be set exactly when stage succeeds")
	}
	return nil
}

// Apply returns the record that results from applying t to r.
func (t *StageTransition) Apply(r *StageRecord) *StageRecord {
	next := *r
	next.Status = t.To
	next.Attempts = t.Attempts
	next.LastError = t.LastError
	next.ErrorKind = t.ErrorKind
	next.ResultLocator = t.ResultLocator
	next.OperationHandle = t.OperationHandle
	next.Version = r.Version + 1
	next.UpdatedAt = t.At
	return &next
}

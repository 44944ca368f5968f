package adapters

import (
	"context"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
)

// OperationHandle identifies a submitted external operation. Handles are opaque
// strings so they can be persisted in the ledger.
type OperationHandle string

type PollState string

const (
	PollPending   PollState = "pending"
	PollSucceeded PollState = "succeeded"
	PollFailed    PollState = "failed"
)

type PollResult struct {
	State PollState
	Data  []byte
	Cause error
}

func Pending() PollResult {
	return PollResult{State: PollPending}
}

func Succeeded(data []byte) PollResult {
	return PollResult{State: PollSucceeded, Data: data}
}

func Failed(cause error) PollResult {
	return PollResult{State: PollFailed, Cause: cause}
}

// Input is the union of what the three stage kinds need. Transcription reads
// Source, translation reads Text and the languages, synthesis reads Text,
// TargetLanguage and Voice.
type Input struct {
	JobID          string
	Stage          models.StageName
	Attempt        int
	Environment    string
	Source         models.Locator
	Text           string
	SourceLanguage string
	TargetLanguage string
	Voice          string
}

// Adapter is the uniform submit/poll contract over an external service.
// Submit errors are classified as apperrors.ErrAdapterUnavailable, ErrThrottled
// or ErrInvalidInput. Poll never blocks and returns apperrors.ErrUnknownOperation
// for handles it cannot resolve.
type Adapter interface {
	Submit(ctx context.Context, in Input) (OperationHandle, error)
	Poll(ctx context.Context, handle OperationHandle) (PollResult, error)
}

// Set groups the adapter used for each stage kind.
type Set struct {
	Transcription Adapter
	Translation   Adapter
	Synthesis     Adapter
}

func (s *Set) For(kind models.StageKind) Adapter {
	switch kind {
	case models.StageKindTranscribe:
		return s.Transcription
	case models.StageKindTranslate:
		return s.Translation
	case models.StageKindSynthesize:
		return s.Synthesis
	default:
		return nil
	}
}

// ArtifactReader is the read side of the artifact store that adapters needing
// source bytes depend on.
type ArtifactReader interface {
	Get(ctx context.Context, loc models.Locator) ([]byte, error)
}

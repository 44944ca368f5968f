package adapters

import (
	"context"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/metrics"
)

type instrumented struct {
	kind string
	next Adapter
}

// Instrument records call counts and latency for every Submit and Poll.
func Instrument(kind models.StageKind, next Adapter) Adapter {
	return &instrumented{kind: string(kind), next: next}
}

func (i *instrumented) Submit(ctx context.Context, in Input) (OperationHandle, error) {
	start := time.Now()
	handle, err := i.next.Submit(ctx, in)
	metrics.ObserveAdapterCall(i.kind, "submit", outcome(err), start)
	return handle, err
}

func (i *instrumented) Poll(ctx context.Context, handle OperationHandle) (PollResult, error) {
	start := time.Now()
	res, err := i.next.Poll(ctx, handle)
	label := outcome(err)
	if err == nil {
		label = string(res.State)
	}
	metrics.ObserveAdapterCall(i.kind, "poll", label, start)
	return res, err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.KindOf(err)
}

// InstrumentSet wraps every adapter in the set.
func InstrumentSet(s *Set) *Set {
	return &Set{
		Transcription: Instrument(models.StageKindTranscribe, s.Transcription),
		Translation:   Instrument(models.StageKindTranslate, s.Translation),
		Synthesis:     Instrument(models.StageKindSynthesize, s.Synthesis),
	}
}

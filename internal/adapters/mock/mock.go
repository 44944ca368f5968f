package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/google/uuid"
)

type operation struct {
	kind  models.StageKind
	in    adapters.Input
	polls int
}

// Service is a deterministic in-process stand-in for the three AI services. It
// is used in local runs and tests.
type Service struct {
	// FailLanguages makes translation and synthesis fail for the listed
	// languages with FailWith.
	FailLanguages map[string]bool
	FailWith      error
	// FailFirst makes the first N polls per kind fail with FailWith before
	// results are produced.
	FailFirst map[models.StageKind]int
	// PollsUntilDone is how many polls report pending before a result.
	PollsUntilDone int

	hold    atomic.Bool
	submits sync.Map
	pollsN  sync.Map

	mu       sync.Mutex
	ops      map[adapters.OperationHandle]*operation
	failures map[models.StageKind]int
}

func NewService() *Service {
	return &Service{
		FailLanguages: map[string]bool{},
		FailWith:      apperrors.ErrInvalidInput,
		FailFirst:     map[models.StageKind]int{},
		ops:           make(map[adapters.OperationHandle]*operation),
		failures:      make(map[models.StageKind]int),
	}
}

// Hold keeps every poll pending until released.
func (s *Service) Hold(on bool) {
	s.hold.Store(on)
}

// Forget drops every in-flight operation, as a restarted provider would.
func (s *Service) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = make(map[adapters.OperationHandle]*operation)
}

func (s *Service) Submits(kind models.StageKind) int64 {
	return counter(&s.submits, kind).Load()
}

func (s *Service) Polls(kind models.StageKind) int64 {
	return counter(&s.pollsN, kind).Load()
}

func counter(m *sync.Map, kind models.StageKind) *atomic.Int64 {
	v, _ := m.LoadOrStore(kind, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Set exposes the service as the adapter for every stage kind.
func (s *Service) Set() *adapters.Set {
	return &adapters.Set{
		Transcription: &kindAdapter{svc: s, kind: models.StageKindTranscribe},
		Translation:   &kindAdapter{svc: s, kind: models.StageKindTranslate},
		Synthesis:     &kindAdapter{svc: s, kind: models.StageKindSynthesize},
	}
}

type kindAdapter struct {
	svc  *Service
	kind models.StageKind
}

func (a *kindAdapter) Submit(_ context.Context, in adapters.Input) (adapters.OperationHandle, error) {
	counter(&a.svc.submits, a.kind).Add(1)
	switch a.kind {
	case models.StageKindTranscribe:
		if in.Source.Key == "" {
			return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "missing source")
		}
	case models.StageKindSynthesize:
		if in.Voice == "" {
			return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "no voice for language %q", in.TargetLanguage)
		}
	}
	handle := adapters.OperationHandle(fmt.Sprintf("mock-%s:%s", a.kind, uuid.NewString()))
	a.svc.mu.Lock()
	a.svc.ops[handle] = &operation{kind: a.kind, in: in}
	a.svc.mu.Unlock()
	return handle, nil
}

func (a *kindAdapter) Poll(_ context.Context, handle adapters.OperationHandle) (adapters.PollResult, error) {
	counter(&a.svc.pollsN, a.kind).Add(1)
	s := a.svc
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[handle]
	if !ok {
		return adapters.PollResult{}, apperrors.Classifyf(apperrors.ErrUnknownOperation, "%s", handle)
	}
	if s.hold.Load() {
		return adapters.Pending(), nil
	}
	op.polls++
	if op.polls <= s.PollsUntilDone {
		return adapters.Pending(), nil
	}
	if s.failures[a.kind] < s.FailFirst[a.kind] {
		s.failures[a.kind]++
		return adapters.Failed(s.FailWith), nil
	}
	if a.kind != models.StageKindTranscribe && s.FailLanguages[op.in.TargetLanguage] {
		return adapters.Failed(apperrors.Classifyf(s.FailWith, "%s rejected for %s", a.kind, op.in.TargetLanguage)), nil
	}
	return adapters.Succeeded(result(a.kind, op.in)), nil
}

func result(kind models.StageKind, in adapters.Input) []byte {
	switch kind {
	case models.StageKindTranscribe:
		return []byte("transcript of " + in.Source.Key)
	case models.StageKindTranslate:
		return []byte(fmt.Sprintf("[%s] %s", in.TargetLanguage, in.Text))
	default:
		return []byte(fmt.Sprintf("AUDIO(%s,%s):%s", in.TargetLanguage, in.Voice, strings.TrimSpace(in.Text)))
	}
}

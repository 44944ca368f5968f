package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/ledger"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/metrics"
	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
)

// ArtifactStore is the part of the artifact gateway the engine needs.
type ArtifactStore interface {
	Put(ctx context.Context, loc models.Locator, data []byte, contentType string) error
	Get(ctx context.Context, loc models.Locator) ([]byte, error)
}

// Engine advances a job's stages through the ledger. It holds no per-job state;
// every Drive call coordinates with concurrent callers only through ledger CAS.
type Engine struct {
	cfg          *config.PipelineConfig
	outputBucket string
	ledger       ledger.Ledger
	store        ArtifactStore
	adapters     *adapters.Set
	logger       logger.Logger
	now          func() time.Time
}

func NewEngine(cfg *config.PipelineConfig, outputBucket string, l ledger.Ledger, store ArtifactStore, set *adapters.Set, log logger.Logger) *Engine {
	return &Engine{
		cfg:          cfg,
		outputBucket: outputBucket,
		ledger:       l,
		store:        store,
		adapters:     set,
		logger:       log,
		now:          time.Now,
	}
}

func (e *Engine) ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Drive works the job until every stage is terminal or the poll budget runs
// out, then returns the job's status. Running out of budget is not an error:
// the job stays in flight and a later Drive resumes it.
func (e *Engine) Drive(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	rec, err := e.ledger.Load(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.ms(e.cfg.PollBudgetMs))
	defer cancel()

	r := &run{
		engine:  e,
		job:     rec.Job,
		owner:   uuid.NewString(),
		ctx:     ctx,
		waitCtx: waitCtx,
	}
	e.logger.Debugf("Drive - job %s picked up by invocation %s", jobID, r.owner)

	driveErr := r.drive()

	view, err := e.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	metrics.IncreaseJobOutcome(view.Environment, string(view.Status))
	if driveErr != nil {
		return view, driveErr
	}
	return view, nil
}

// Retry restarts every Failed stage that still has attempts left, whatever its
// error kind, and puts the stages skipped behind it back to Pending. Attempts
// keep accumulating, so maxAttempts still bounds the job. It returns the names
// of the stages it restarted; a later Drive carries them to completion.
func (e *Engine) Retry(ctx context.Context, jobID string) ([]models.StageName, error) {
	rec, err := e.ledger.Load(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	r := &run{
		engine:  e,
		job:     rec.Job,
		owner:   uuid.NewString(),
		ctx:     ctx,
		waitCtx: ctx,
	}

	var restarted []models.StageName
	for _, name := range rec.Job.Stages() {
		st := rec.Stage(name)
		if st == nil || st.Status != models.StageStatusFailed || st.Attempts >= e.cfg.MaxAttempts {
			continue
		}
		claimed, err := r.start(st)
		if errors.Is(err, apperrors.ErrConflict) {
			e.logger.Infof("Retry - %s/%s moved underneath the retry, leaving it", jobID, name)
			continue
		}
		if err != nil {
			return restarted, err
		}
		if !claimed {
			continue
		}
		if now, err := r.load(name); err == nil && now.Status == models.StageStatusFailed {
			e.logger.Warnf("Retry - %s/%s failed again on submit: %s", jobID, name, now.LastError)
			continue
		}
		restarted = append(restarted, name)
		if err := r.rearmDownstream(name); err != nil {
			return restarted, err
		}
	}
	e.logger.Infof("Retry - job %s restarted %d stage(s)", jobID, len(restarted))
	return restarted, nil
}

// Status projects the ledger record without doing any work.
func (e *Engine) Status(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	rec, err := e.ledger.Load(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return models.BuildStatusView(rec, e.cfg.MaxAttempts), nil
}

type run struct {
	engine  *Engine
	job     *models.Job
	owner   string
	ctx     context.Context
	waitCtx context.Context
}

func (r *run) drive() error {
	transcribe, err := r.driveStage(models.StageTranscribe)
	if err != nil {
		return err
	}
	if transcribe.IsTerminallyFailed(r.engine.cfg.MaxAttempts) {
		for _, s := range r.job.Stages()[1:] {
			if err := r.skip(models.StageTranscribe, s); err != nil {
				return err
			}
		}
		return nil
	}
	if transcribe.Status != models.StageStatusSucceeded {
		return nil
	}

	workers := r.engine.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	errChan := make(chan error, 1)

	for _, lang := range r.job.TargetLanguages {
		sem <- struct{}{}
		wg.Add(1)

		go func(lang string) {
			defer func() {
				<-sem
				wg.Done()
			}()

			if err := r.driveLanguage(lang); err != nil {
				select {
				case errChan <- fmt.Errorf("language %s: %w", lang, err):
				default:
				}
			}
		}(lang)
	}

	wg.Wait()
	close(errChan)
	return <-errChan
}

func (r *run) driveLanguage(lang string) error {
	translate, err := r.driveStage(models.TranslateStage(lang))
	if err != nil {
		return err
	}
	if translate.IsTerminallyFailed(r.engine.cfg.MaxAttempts) {
		return r.skip(models.TranslateStage(lang), models.SynthesizeStage(lang))
	}
	if translate.Status != models.StageStatusSucceeded {
		return nil
	}
	_, err = r.driveStage(models.SynthesizeStage(lang))
	return err
}

// driveStage loops until the stage is terminal or the budget is spent and
// returns the last record it saw.
func (r *run) driveStage(stage models.StageName) (*models.StageRecord, error) {
	interval := r.engine.ms(r.engine.cfg.PollIntervalMs)
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10})
	defer ticker.Stop()

	for {
		st, err := r.load(stage)
		if err != nil {
			return nil, err
		}
		if st.IsTerminal(r.engine.cfg.MaxAttempts) {
			return st, nil
		}

		progressed, err := r.advance(st)
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			r.engine.logger.Debugf("driveStage - %s/%s changed underneath invocation %s", r.job.JobID, stage, r.owner)
			continue
		case err != nil:
			return st, err
		case progressed:
			continue
		}

		select {
		case <-r.waitCtx.Done():
			return st, nil
		case <-ticker.C:
		}
	}
}

func (r *run) load(stage models.StageName) (*models.StageRecord, error) {
	rec, err := r.engine.ledger.Load(r.ctx, r.job.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", r.job.JobID, err)
	}
	st := rec.Stage(stage)
	if st == nil {
		return nil, apperrors.Classifyf(apperrors.ErrNotFound, "stage %s of job %s", stage, r.job.JobID)
	}
	return st, nil
}

// advance performs at most one step on a non-terminal stage. It reports whether
// the ledger moved so the caller can skip the wait.
func (r *run) advance(st *models.StageRecord) (bool, error) {
	switch st.Status {
	case models.StageStatusPending:
		return r.start(st)
	case models.StageStatusFailed:
		delay := retryDelay(r.engine.ms(r.engine.cfg.BackoffBaseMs), r.engine.ms(r.engine.cfg.BackoffMaxMs), st.Attempts)
		if r.engine.now().Before(st.UpdatedAt.Add(delay)) {
			return false, nil
		}
		return r.start(st)
	case models.StageStatusInFlight:
		if st.OperationHandle == "" {
			return r.reclaimIfStale(st)
		}
		return r.poll(st)
	default:
		return false, nil
	}
}

func (r *run) input(stage models.StageName) (adapters.Input, bool, error) {
	cfg := r.engine.cfg
	in := adapters.Input{
		JobID:          r.job.JobID,
		Stage:          stage,
		Environment:    r.job.Environment,
		Source:         r.job.SourceLocator,
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: stage.Language(),
	}

	var dep models.StageName
	switch stage.Kind() {
	case models.StageKindTranscribe:
		return in, true, nil
	case models.StageKindTranslate:
		dep = models.StageTranscribe
	case models.StageKindSynthesize:
		dep = models.TranslateStage(stage.Language())
		in.Voice, _ = cfg.VoiceFor(stage.Language())
	}

	loc, _, err := artifacts.StageLocator(r.engine.outputBucket, r.job, dep)
	if err != nil {
		return in, false, err
	}
	text, err := r.engine.store.Get(r.ctx, loc)
	if errors.Is(err, apperrors.ErrNotFound) {
		return in, false, nil
	}
	if err != nil {
		r.engine.logger.Warnf("input - reading %s for %s/%s: %v", loc, r.job.JobID, stage, err)
		return in, false, nil
	}
	in.Text = string(text)
	return in, true, nil
}

// start claims the stage with a CAS into InFlight and submits a new attempt.
func (r *run) start(st *models.StageRecord) (bool, error) {
	in, ready, err := r.input(st.Stage)
	if err != nil || !ready {
		return false, err
	}

	attempt := st.Attempts + 1
	claimed, err := r.save(&models.StageTransition{
		Stage:           st.Stage,
		From:            st.Status,
		To:              models.StageStatusInFlight,
		ExpectedVersion: st.Version,
		Attempts:        attempt,
	})
	if err != nil {
		return false, err
	}

	in.Attempt = attempt
	adapter := r.engine.adapters.For(st.Stage.Kind())
	handle, err := adapter.Submit(r.ctx, in)
	if err != nil {
		r.engine.logger.Warnf("start - submit %s/%s attempt %d: %v", r.job.JobID, st.Stage, attempt, err)
		_, err = r.save(failure(claimed, err))
		return true, err
	}

	_, err = r.save(&models.StageTransition{
		Stage:           st.Stage,
		From:            models.StageStatusInFlight,
		To:              models.StageStatusInFlight,
		ExpectedVersion: claimed.Version,
		Attempts:        attempt,
		OperationHandle: string(handle),
	})
	return true, err
}

func (r *run) reclaimIfStale(st *models.StageRecord) (bool, error) {
	if r.engine.now().Sub(st.UpdatedAt) < r.engine.ms(r.engine.cfg.LeaseMs) {
		return false, nil
	}
	r.engine.logger.Infof("reclaimIfStale - %s/%s idle since %s, resubmitting", r.job.JobID, st.Stage, st.UpdatedAt.Format(time.RFC3339))
	return r.start(st)
}

func (r *run) poll(st *models.StageRecord) (bool, error) {
	adapter := r.engine.adapters.For(st.Stage.Kind())
	res, err := adapter.Poll(r.ctx, adapters.OperationHandle(st.OperationHandle))
	if errors.Is(err, apperrors.ErrUnknownOperation) {
		return r.reclaimIfStale(st)
	}
	if err != nil {
		r.engine.logger.Warnf("poll - %s/%s: %v", r.job.JobID, st.Stage, err)
		return false, nil
	}

	switch res.State {
	case adapters.PollSucceeded:
		return r.commit(st, res.Data)
	case adapters.PollFailed:
		r.engine.logger.Warnf("poll - %s/%s attempt %d failed: %v", r.job.JobID, st.Stage, st.Attempts, res.Cause)
		_, err := r.save(failure(st, res.Cause))
		return true, err
	default:
		return false, nil
	}
}

// commit writes the result to its deterministic locator before recording
// success, so a Succeeded stage always points at a readable artifact.
func (r *run) commit(st *models.StageRecord, data []byte) (bool, error) {
	loc, contentType, err := artifacts.StageLocator(r.engine.outputBucket, r.job, st.Stage)
	if err != nil {
		return false, err
	}
	if err := r.engine.store.Put(r.ctx, loc, data, contentType); err != nil {
		if !errors.Is(err, apperrors.ErrArtifactConflict) {
			r.engine.logger.Warnf("commit - writing %s: %v", loc, err)
			return false, nil
		}
		r.engine.logger.Warnf("commit - %s already written by another attempt, keeping it", loc)
	}

	_, err = r.save(&models.StageTransition{
		Stage:           st.Stage,
		From:            models.StageStatusInFlight,
		To:              models.StageStatusSucceeded,
		ExpectedVersion: st.Version,
		Attempts:        st.Attempts,
		ResultLocator:   loc.String(),
		OperationHandle: st.OperationHandle,
	})
	return true, err
}

func failure(st *models.StageRecord, cause error) *models.StageTransition {
	kind := apperrors.KindOf(cause)
	if kind == apperrors.KindUnknown || kind == "" {
		kind = apperrors.KindAdapterUnavailable
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &models.StageTransition{
		Stage:           st.Stage,
		From:            models.StageStatusInFlight,
		To:              models.StageStatusFailed,
		ExpectedVersion: st.Version,
		Attempts:        st.Attempts,
		LastError:       msg,
		ErrorKind:       kind,
	}
}

// skip marks a stage Skipped if it never started and its upstream is still
// terminally failed. The upstream check keeps a drive that loaded stale state
// from undoing an operator retry.
func (r *run) skip(upstream, stage models.StageName) error {
	for {
		rec, err := r.engine.ledger.Load(r.ctx, r.job.JobID)
		if err != nil {
			return fmt.Errorf("failed to load job %s: %w", r.job.JobID, err)
		}
		up, st := rec.Stage(upstream), rec.Stage(stage)
		if up == nil || st == nil {
			return apperrors.Classifyf(apperrors.ErrNotFound, "stage %s of job %s", stage, r.job.JobID)
		}
		if !up.IsTerminallyFailed(r.engine.cfg.MaxAttempts) || st.Status != models.StageStatusPending {
			return nil
		}
		_, err = r.save(&models.StageTransition{
			Stage:           stage,
			From:            models.StageStatusPending,
			To:              models.StageStatusSkipped,
			ExpectedVersion: st.Version,
		})
		if !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
	}
}

// rearmDownstream returns the Skipped stages that depend on stage to Pending.
func (r *run) rearmDownstream(stage models.StageName) error {
	var downstream []models.StageName
	switch stage.Kind() {
	case models.StageKindTranscribe:
		downstream = r.job.Stages()[1:]
	case models.StageKindTranslate:
		downstream = []models.StageName{models.SynthesizeStage(stage.Language())}
	}
	for _, name := range downstream {
		for {
			st, err := r.load(name)
			if err != nil {
				return err
			}
			if st.Status != models.StageStatusSkipped {
				break
			}
			_, err = r.save(&models.StageTransition{
				Stage:           name,
				From:            models.StageStatusSkipped,
				To:              models.StageStatusPending,
				ExpectedVersion: st.Version,
				Attempts:        st.Attempts,
				Rearm:           true,
			})
			if err == nil {
				break
			}
			if !errors.Is(err, apperrors.ErrConflict) {
				return err
			}
		}
	}
	return nil
}

func (r *run) save(t *models.StageTransition) (*models.StageRecord, error) {
	t.At = r.engine.now()
	saved, err := r.engine.ledger.SaveStageTransition(r.ctx, r.job.JobID, t)
	if err != nil {
		return nil, err
	}
	metrics.IncreaseStageTransition(string(t.Stage.Kind()), string(t.To))
	r.engine.logger.Debugf("save - %s/%s %s -> %s (v%d)", r.job.JobID, t.Stage, t.From, t.To, saved.Version)
	return saved, nil
}

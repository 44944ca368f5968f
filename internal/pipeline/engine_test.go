package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters/mock"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts"
	artifactsRepo "github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts/repository"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/jobkey"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/ledger"
	ledgerRepo "github.com/amankumarsingh77/dubbing-pipeline/internal/ledger/repository"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/pipeline"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outputBucket = "media-out"

type fixture struct {
	cfg     *config.PipelineConfig
	ledger  ledger.Ledger
	store   *artifactsRepo.MemoryRepository
	gateway *artifacts.Gateway
	svc     *mock.Service
	engine  *pipeline.Engine
}

func newFixture(t *testing.T, mutate func(*config.PipelineConfig)) *fixture {
	t.Helper()
	cfg := &config.PipelineConfig{
		InputPrefix:            "audio_inputs",
		TargetLanguages:        []string{"es", "fr"},
		VoiceMapping:           map[string]string{"es": "Lucia", "fr": "Celine", "de": "Vicki"},
		DefaultEnvironment:     "prod",
		KnownEnvironments:      []string{"beta", "prod"},
		SourceLanguage:         "en",
		TranscribeLanguageCode: "en-US",
		MaxAttempts:            3,
		PollBudgetMs:           3000,
		PollIntervalMs:         2,
		BackoffBaseMs:          1,
		BackoffMaxMs:           4,
		LeaseMs:                60000,
		WorkerCount:            2,
	}
	if mutate != nil {
		mutate(cfg)
	}
	f := &fixture{
		cfg:    cfg,
		ledger: ledgerRepo.NewMemoryLedger(),
		store:  artifactsRepo.NewMemoryRepository(),
		svc:    mock.NewService(),
	}
	f.gateway = artifacts.NewGateway(f.store, logger.NewNop())
	f.engine = pipeline.NewEngine(cfg, outputBucket, f.ledger, f.gateway, f.svc.Set(), logger.NewNop())
	return f
}

func (f *fixture) createJob(t *testing.T, ev models.ArtifactEvent) *models.Job {
	t.Helper()
	job, err := jobkey.NewResolver(f.cfg).Resolve(ev, nil)
	require.NoError(t, err)
	created, err := f.ledger.CreateJob(context.Background(), job)
	require.NoError(t, err)
	require.True(t, created)
	return job
}

func talkEvent() models.ArtifactEvent {
	return models.ArtifactEvent{
		Bucket:    "media-in",
		Key:       "audio_inputs/talk.mp3",
		EventType: models.EventObjectCreated,
		ETag:      "etag-1",
	}
}

func (f *fixture) stage(t *testing.T, jobID string, name models.StageName) *models.StageRecord {
	t.Helper()
	rec, err := f.ledger.Load(context.Background(), jobID)
	require.NoError(t, err)
	st := rec.Stage(name)
	require.NotNil(t, st)
	return st
}

func TestDriveWritesLayoutForEnvironment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ev := talkEvent()
	ev.Environment = "beta"
	ev.TargetLanguages = []string{"es"}
	job := f.createJob(t, ev)

	view, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, view.Status)

	ctx := context.Background()
	transcript, err := f.gateway.Get(ctx, models.Locator{Bucket: outputBucket, Key: "beta/transcripts/" + job.JobID + ".txt"})
	require.NoError(t, err)
	assert.Equal(t, "transcript of audio_inputs/talk.mp3", string(transcript))

	translation, err := f.gateway.Get(ctx, models.Locator{Bucket: outputBucket, Key: "beta/translations/" + job.JobID + "_es.txt"})
	require.NoError(t, err)
	assert.Equal(t, "[es] transcript of audio_inputs/talk.mp3", string(translation))

	audio, err := f.gateway.Get(ctx, models.Locator{Bucket: outputBucket, Key: "beta/audio_outputs/" + job.JobID + "_es.mp3"})
	require.NoError(t, err)
	assert.Equal(t, "AUDIO(es,Lucia):[es] transcript of audio_inputs/talk.mp3", string(audio))
	assert.Equal(t, 3, f.store.Len())

	st := f.stage(t, job.JobID, models.SynthesizeStage("es"))
	assert.Equal(t, "s3://media-out/beta/audio_outputs/"+job.JobID+"_es.mp3", st.ResultLocator)
	assert.Equal(t, 1, st.Attempts)
}

func TestDriveIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	job := f.createJob(t, talkEvent())

	first, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusSucceeded, first.Status)

	before := f.artifacts(t, job)
	require.Len(t, before, 5)
	polls := map[models.StageKind]int64{}
	for _, kind := range []models.StageKind{models.StageKindTranscribe, models.StageKindTranslate, models.StageKindSynthesize} {
		polls[kind] = f.svc.Polls(kind)
	}

	second, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, second.Status)

	assert.EqualValues(t, 1, f.svc.Submits(models.StageKindTranscribe))
	assert.EqualValues(t, 2, f.svc.Submits(models.StageKindTranslate))
	assert.EqualValues(t, 2, f.svc.Submits(models.StageKindSynthesize))
	for kind, n := range polls {
		assert.Equal(t, n, f.svc.Polls(kind), kind)
	}
	assert.Equal(t, 5, f.store.Len())
	assert.Equal(t, before, f.artifacts(t, job))
}

// artifacts reads back the bytes behind every succeeded stage, keyed by locator.
func (f *fixture) artifacts(t *testing.T, job *models.Job) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, name := range job.Stages() {
		st := f.stage(t, job.JobID, name)
		if st.Status != models.StageStatusSucceeded {
			continue
		}
		loc, err := models.ParseLocator(st.ResultLocator)
		require.NoError(t, err)
		data, err := f.gateway.Get(context.Background(), loc)
		require.NoError(t, err)
		out[st.ResultLocator] = string(data)
	}
	return out
}

func TestDriveIsolatesLanguageFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.svc.FailLanguages["fr"] = true
	job := f.createJob(t, talkEvent())

	view, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPartiallySucceeded, view.Status)
	assert.Equal(t, []string{"fr"}, view.FailedLanguages)

	assert.Equal(t, models.StageStatusSucceeded, f.stage(t, job.JobID, models.SynthesizeStage("es")).Status)
	fr := f.stage(t, job.JobID, models.TranslateStage("fr"))
	assert.Equal(t, models.StageStatusFailed, fr.Status)
	assert.Equal(t, apperrors.KindInvalidInput, fr.ErrorKind)
	assert.Equal(t, 1, fr.Attempts)
	assert.Equal(t, models.StageStatusSkipped, f.stage(t, job.JobID, models.SynthesizeStage("fr")).Status)
	assert.EqualValues(t, 1, f.svc.Submits(models.StageKindSynthesize))
}

func TestConcurrentDrivesSubmitOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	job := f.createJob(t, talkEvent())

	var wg sync.WaitGroup
	views := make([]*models.JobStatusView, 4)
	errs := make([]error, len(views))
	for i := range views {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = f.engine.Drive(context.Background(), job.JobID)
		}(i)
	}
	wg.Wait()

	for i := range views {
		require.NoError(t, errs[i])
		assert.Equal(t, models.JobStatusSucceeded, views[i].Status)
	}
	assert.EqualValues(t, 1, f.svc.Submits(models.StageKindTranscribe))
	assert.EqualValues(t, 2, f.svc.Submits(models.StageKindTranslate))
	assert.EqualValues(t, 2, f.svc.Submits(models.StageKindSynthesize))
	for _, name := range job.Stages() {
		st := f.stage(t, job.JobID, name)
		assert.Equal(t, 1, st.Attempts, name)
		// pending -> in_flight -> in_flight(handle) -> succeeded
		assert.EqualValues(t, 3, st.Version, name)
	}
}

func TestDriveResumesAfterBudget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *config.PipelineConfig) { c.PollBudgetMs = 30 })
	job := f.createJob(t, talkEvent())

	f.svc.Hold(true)
	view, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInFlight, view.Status)
	st := f.stage(t, job.JobID, models.StageTranscribe)
	assert.Equal(t, models.StageStatusInFlight, st.Status)
	assert.NotEmpty(t, st.OperationHandle)

	f.svc.Hold(false)
	f.cfg.PollBudgetMs = 3000
	view, err = f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, view.Status)
	assert.EqualValues(t, 1, f.svc.Submits(models.StageKindTranscribe))
}

func TestDriveReclaimsStaleLease(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *config.PipelineConfig) {
		c.PollBudgetMs = 20
		c.LeaseMs = 10
	})
	job := f.createJob(t, talkEvent())

	f.svc.Hold(true)
	_, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)

	f.svc.Forget()
	f.svc.Hold(false)
	f.cfg.PollBudgetMs = 3000
	view, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, view.Status)
	assert.EqualValues(t, 2, f.svc.Submits(models.StageKindTranscribe))
	assert.Equal(t, 2, f.stage(t, job.JobID, models.StageTranscribe).Attempts)
}

func TestDriveRetriesThrottledStage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *config.PipelineConfig) { c.TargetLanguages = []string{"es"} })
	f.svc.FailWith = apperrors.ErrThrottled
	f.svc.FailFirst[models.StageKindTranslate] = 1
	job := f.createJob(t, talkEvent())

	view, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, view.Status)

	st := f.stage(t, job.JobID, models.TranslateStage("es"))
	assert.Equal(t, 2, st.Attempts)
	assert.Empty(t, st.ErrorKind)
	assert.EqualValues(t, 2, f.svc.Submits(models.StageKindTranslate))
}

func TestDriveSkipsAfterTerminalTranscription(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *config.PipelineConfig) { c.MaxAttempts = 2 })
	f.svc.FailWith = apperrors.ErrAdapterUnavailable
	f.svc.FailFirst[models.StageKindTranscribe] = 10
	job := f.createJob(t, talkEvent())

	view, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, view.Status)
	assert.ElementsMatch(t, []string{"es", "fr"}, view.SkippedLanguages)
	assert.EqualValues(t, 2, f.svc.Submits(models.StageKindTranscribe))
	assert.Zero(t, f.svc.Submits(models.StageKindTranslate))

	for _, name := range job.Stages()[1:] {
		assert.Equal(t, models.StageStatusSkipped, f.stage(t, job.JobID, name).Status, name)
	}
}

func TestDriveUnknownJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := f.engine.Drive(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRetryRestartsFailedLanguage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.svc.FailLanguages["fr"] = true
	job := f.createJob(t, talkEvent())

	view, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPartiallySucceeded, view.Status)
	require.Equal(t, models.StageStatusSkipped, f.stage(t, job.JobID, models.SynthesizeStage("fr")).Status)

	delete(f.svc.FailLanguages, "fr")
	restarted, err := f.engine.Retry(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, []models.StageName{models.TranslateStage("fr")}, restarted)
	assert.Equal(t, models.StageStatusInFlight, f.stage(t, job.JobID, models.TranslateStage("fr")).Status)
	assert.Equal(t, models.StageStatusPending, f.stage(t, job.JobID, models.SynthesizeStage("fr")).Status)

	view, err = f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, view.Status)

	fr := f.stage(t, job.JobID, models.TranslateStage("fr"))
	assert.Equal(t, 2, fr.Attempts)
	assert.Empty(t, fr.ErrorKind)
	assert.Equal(t, 1, f.stage(t, job.JobID, models.SynthesizeStage("fr")).Attempts)
	assert.Equal(t, 1, f.stage(t, job.JobID, models.TranslateStage("es")).Attempts)
	assert.EqualValues(t, 3, f.svc.Submits(models.StageKindTranslate))
}

func TestRetryRearmsEverythingBehindTranscription(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.svc.FailFirst[models.StageKindTranscribe] = 1
	job := f.createJob(t, talkEvent())

	view, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFailed, view.Status)

	restarted, err := f.engine.Retry(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, []models.StageName{models.StageTranscribe}, restarted)
	for _, name := range job.Stages()[1:] {
		assert.Equal(t, models.StageStatusPending, f.stage(t, job.JobID, name).Status, name)
	}

	view, err = f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, view.Status)
	assert.Equal(t, 2, f.stage(t, job.JobID, models.StageTranscribe).Attempts)
}

func TestRetryLeavesExhaustedStages(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *config.PipelineConfig) { c.MaxAttempts = 1 })
	f.svc.FailLanguages["fr"] = true
	job := f.createJob(t, talkEvent())

	_, err := f.engine.Drive(context.Background(), job.JobID)
	require.NoError(t, err)

	delete(f.svc.FailLanguages, "fr")
	restarted, err := f.engine.Retry(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Empty(t, restarted)
	assert.Equal(t, models.StageStatusFailed, f.stage(t, job.JobID, models.TranslateStage("fr")).Status)
	assert.Equal(t, models.StageStatusSkipped, f.stage(t, job.JobID, models.SynthesizeStage("fr")).Status)
}

package repository

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/ledger"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/db/sqlite"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return NewSQLLedger(db)
}

func newRedisLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedger(client)
}

var backends = map[string]func(t *testing.T) ledger.Ledger{
	"memory": func(*testing.T) ledger.Ledger { return NewMemoryLedger() },
	"sqlite": newSQLiteLedger,
	"redis":  newRedisLedger,
}

func sampleJob(id, env string, created time.Time) *models.Job {
	return &models.Job{
		JobID:           id,
		Environment:     env,
		SourceLocator:   models.Locator{Bucket: "media-in", Key: "audio_inputs/talk.mp3"},
		Fingerprint:     "etag-1",
		BaseName:        "talk",
		TargetLanguages: []string{"es", "fr"},
		CreatedAt:       created.UTC(),
	}
}

func TestLedgerCreateAndLoad(t *testing.T) {
	t.Parallel()
	for name, newLedger := range backends {
		newLedger := newLedger
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			l := newLedger(t)

			_, err := l.Load(ctx, "missing")
			assert.ErrorIs(t, err, apperrors.ErrNotFound)

			job := sampleJob("job-1", "beta", time.Unix(1700000000, 0))
			created, err := l.CreateJob(ctx, job)
			require.NoError(t, err)
			assert.True(t, created)

			created, err = l.CreateJob(ctx, job)
			require.NoError(t, err)
			assert.False(t, created)

			rec, err := l.Load(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, job.JobID, rec.Job.JobID)
			assert.Equal(t, job.SourceLocator, rec.Job.SourceLocator)
			assert.Equal(t, []string{"es", "fr"}, rec.Job.TargetLanguages)
			assert.True(t, job.CreatedAt.Equal(rec.Job.CreatedAt))
			require.Len(t, rec.Stages, 5)
			for _, st := range rec.Stages {
				assert.Equal(t, models.StageStatusPending, st.Status)
				assert.Zero(t, st.Version)
				assert.Empty(t, st.ResultLocator)
			}
		})
	}
}

func TestLedgerCompareAndSwap(t *testing.T) {
	t.Parallel()
	for name, newLedger := range backends {
		newLedger := newLedger
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			l := newLedger(t)
			_, err := l.CreateJob(ctx, sampleJob("job-2", "prod", time.Now()))
			require.NoError(t, err)

			now := time.Now()
			st, err := l.SaveStageTransition(ctx, "job-2", &models.StageTransition{
				Stage: models.StageTranscribe, From: models.StageStatusPending, To: models.StageStatusInFlight,
				ExpectedVersion: 0, Attempts: 1, At: now,
			})
			require.NoError(t, err)
			assert.Equal(t, models.StageStatusInFlight, st.Status)
			assert.EqualValues(t, 1, st.Version)
			assert.Equal(t, 1, st.Attempts)

			_, err = l.SaveStageTransition(ctx, "job-2", &models.StageTransition{
				Stage: models.StageTranscribe, From: models.StageStatusPending, To: models.StageStatusInFlight,
				ExpectedVersion: 0, Attempts: 1, At: now,
			})
			assert.ErrorIs(t, err, apperrors.ErrConflict)

			_, err = l.SaveStageTransition(ctx, "job-2", &models.StageTransition{
				Stage: models.StageTranscribe, From: models.StageStatusInFlight, To: models.StageStatusSucceeded,
				ExpectedVersion: 1, Attempts: 1, At: now,
			})
			require.Error(t, err, "succeeded without locator must be rejected")

			st, err = l.SaveStageTransition(ctx, "job-2", &models.StageTransition{
				Stage: models.StageTranscribe, From: models.StageStatusInFlight, To: models.StageStatusSucceeded,
				ExpectedVersion: 1, Attempts: 1, ResultLocator: "prod/transcripts/job-2.txt", At: now,
			})
			require.NoError(t, err)
			assert.Equal(t, "prod/transcripts/job-2.txt", st.ResultLocator)

			_, err = l.SaveStageTransition(ctx, "job-2", &models.StageTransition{
				Stage: models.StageTranscribe, From: models.StageStatusSucceeded, To: models.StageStatusInFlight,
				ExpectedVersion: 2, Attempts: 2, At: now,
			})
			assert.Error(t, err)

			_, err = l.SaveStageTransition(ctx, "job-2", &models.StageTransition{
				Stage: models.StageName("translate:xx"), From: models.StageStatusPending, To: models.StageStatusInFlight, At: now,
			})
			assert.ErrorIs(t, err, apperrors.ErrNotFound)

			rec, err := l.Load(ctx, "job-2")
			require.NoError(t, err)
			assert.Equal(t, models.StageStatusSucceeded, rec.Stage(models.StageTranscribe).Status)
		})
	}
}

func TestLedgerRearmsSkippedStageOnlyWhenFlagged(t *testing.T) {
	t.Parallel()
	for name, newLedger := range backends {
		newLedger := newLedger
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			l := newLedger(t)
			_, err := l.CreateJob(ctx, sampleJob("job-4", "prod", time.Now()))
			require.NoError(t, err)

			stage := models.SynthesizeStage("es")
			st, err := l.SaveStageTransition(ctx, "job-4", &models.StageTransition{
				Stage: stage, From: models.StageStatusPending, To: models.StageStatusSkipped, At: time.Now(),
			})
			require.NoError(t, err)

			_, err = l.SaveStageTransition(ctx, "job-4", &models.StageTransition{
				Stage: stage, From: models.StageStatusSkipped, To: models.StageStatusPending,
				ExpectedVersion: st.Version, At: time.Now(),
			})
			require.Error(t, err)

			st, err = l.SaveStageTransition(ctx, "job-4", &models.StageTransition{
				Stage: stage, From: models.StageStatusSkipped, To: models.StageStatusPending,
				ExpectedVersion: st.Version, Rearm: true, At: time.Now(),
			})
			require.NoError(t, err)
			assert.Equal(t, models.StageStatusPending, st.Status)
			assert.EqualValues(t, 2, st.Version)
		})
	}
}

func TestLedgerConcurrentTransitionHasSingleWinner(t *testing.T) {
	t.Parallel()
	for name, newLedger := range backends {
		newLedger := newLedger
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			l := newLedger(t)
			_, err := l.CreateJob(ctx, sampleJob("job-3", "prod", time.Now()))
			require.NoError(t, err)

			var wins, conflicts int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := l.SaveStageTransition(ctx, "job-3", &models.StageTransition{
						Stage: models.TranslateStage("es"), From: models.StageStatusPending, To: models.StageStatusInFlight,
						ExpectedVersion: 0, Attempts: 1, At: time.Now(),
					})
					switch {
					case err == nil:
						atomic.AddInt32(&wins, 1)
					case apperrors.KindOf(err) == apperrors.KindConflict:
						atomic.AddInt32(&conflicts, 1)
					}
				}()
			}
			wg.Wait()
			assert.EqualValues(t, 1, wins)
			assert.EqualValues(t, 7, conflicts)
		})
	}
}

func TestLedgerListJobs(t *testing.T) {
	t.Parallel()
	for name, newLedger := range backends {
		newLedger := newLedger
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			l := newLedger(t)
			base := time.Unix(1700000000, 0)
			for i, env := range []string{"beta", "prod", "beta"} {
				job := sampleJob(string(rune('a'+i)), env, base.Add(time.Duration(i)*time.Minute))
				_, err := l.CreateJob(ctx, job)
				require.NoError(t, err)
			}

			list, err := l.ListJobs(ctx, "beta", utils.NewPagination(1, 10))
			require.NoError(t, err)
			assert.Equal(t, 2, list.TotalCount)
			require.Len(t, list.Jobs, 2)
			assert.Equal(t, "c", list.Jobs[0].JobID)
			assert.Equal(t, "a", list.Jobs[1].JobID)

			page, err := l.ListJobs(ctx, "", utils.NewPagination(2, 2))
			require.NoError(t, err)
			assert.Equal(t, 3, page.TotalCount)
			require.Len(t, page.Jobs, 1)
			assert.Equal(t, "a", page.Jobs[0].JobID)
			assert.False(t, page.HasMore)
		})
	}
}

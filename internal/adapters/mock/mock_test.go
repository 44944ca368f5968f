package mock

import (
	"context"
	"testing"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceResults(t *testing.T) {
	t.Parallel()

	svc := NewService()
	set := svc.Set()
	ctx := context.Background()

	h, err := set.Transcription.Submit(ctx, adapters.Input{Source: models.Locator{Key: "audio_inputs/talk.mp3"}})
	require.NoError(t, err)
	res, err := set.Transcription.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "transcript of audio_inputs/talk.mp3", string(res.Data))

	h, err = set.Translation.Submit(ctx, adapters.Input{Text: "hi", TargetLanguage: "es"})
	require.NoError(t, err)
	res, err = set.Translation.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "[es] hi", string(res.Data))

	h, err = set.Synthesis.Submit(ctx, adapters.Input{Text: "[es] hi", TargetLanguage: "es", Voice: "Lucia"})
	require.NoError(t, err)
	res, err = set.Synthesis.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "AUDIO(es,Lucia):[es] hi", string(res.Data))

	assert.EqualValues(t, 1, svc.Submits(models.StageKindTranslate))
	assert.EqualValues(t, 1, svc.Polls(models.StageKindSynthesize))
}

func TestServiceHoldAndFailures(t *testing.T) {
	t.Parallel()

	svc := NewService()
	svc.FailLanguages["fr"] = true
	set := svc.Set()
	ctx := context.Background()

	svc.Hold(true)
	h, err := set.Translation.Submit(ctx, adapters.Input{Text: "hi", TargetLanguage: "fr"})
	require.NoError(t, err)
	res, err := set.Translation.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, adapters.PollPending, res.State)

	svc.Hold(false)
	res, err = set.Translation.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, adapters.PollFailed, res.State)
	assert.ErrorIs(t, res.Cause, apperrors.ErrInvalidInput)

	svc.Forget()
	_, err = set.Translation.Poll(ctx, h)
	assert.ErrorIs(t, err, apperrors.ErrUnknownOperation)

	_, err = set.Synthesis.Submit(ctx, adapters.Input{Text: "x", TargetLanguage: "ja"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

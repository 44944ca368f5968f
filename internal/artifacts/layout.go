package artifacts

import (
	"fmt"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
)

const (
	ContentTypeText  = "text/plain; charset=utf-8"
	ContentTypeAudio = "audio/mpeg"
	ContentTypeJSON  = "application/json"
)

func TranscriptLocator(bucket, env, jobID string) models.Locator {
	return models.Locator{Bucket: bucket, Key: fmt.Sprintf("%s/transcripts/%s.txt", env, jobID)}
}

func TranslationLocator(bucket, env, jobID, lang string) models.Locator {
	return models.Locator{Bucket: bucket, Key: fmt.Sprintf("%s/translations/%s_%s.txt", env, jobID, lang)}
}

func SynthesisLocator(bucket, env, jobID, lang string) models.Locator {
	return models.Locator{Bucket: bucket, Key: fmt.Sprintf("%s/audio_outputs/%s_%s.mp3", env, jobID, lang)}
}

// RawTranscriptKey is where a job-based transcription service drops its JSON result.
func RawTranscriptKey(env, name string) string {
	return fmt.Sprintf("%s/transcripts/%s.json", env, name)
}

// StageLocator returns the output locator and content type of a stage.
func StageLocator(bucket string, job *models.Job, stage models.StageName) (models.Locator, string, error) {
	switch stage.Kind() {
	case models.StageKindTranscribe:
		return TranscriptLocator(bucket, job.Environment, job.JobID), ContentTypeText, nil
	case models.StageKindTranslate:
		return TranslationLocator(bucket, job.Environment, job.JobID, stage.Language()), ContentTypeText, nil
	case models.StageKindSynthesize:
		return SynthesisLocator(bucket, job.Environment, job.JobID, stage.Language()), ContentTypeAudio, nil
	default:
		return models.Locator{}, "", fmt.Errorf("unknown stage %q", stage)
	}
}

package awsai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
)

type TranscribeAPI interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

type transcriptDocument struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// Transcriber drives Amazon Transcribe batch jobs. The service writes its JSON
// result into the output bucket, which Poll reads back through the artifact store.
type Transcriber struct {
	client       TranscribeAPI
	reader       adapters.ArtifactReader
	outputBucket string
	languageCode string
}

func NewTranscriber(client TranscribeAPI, reader adapters.ArtifactReader, outputBucket, languageCode string) *Transcriber {
	return &Transcriber{
		client:       client,
		reader:       reader,
		outputBucket: outputBucket,
		languageCode: languageCode,
	}
}

// jobName is scoped to the attempt so a retry after a failed service job does
// not collide with the old one.
func jobName(jobID string, attempt int) string {
	return fmt.Sprintf("%s-a%d", jobID, attempt)
}

// The handle carries the environment so Poll can find the raw output.
func encodeHandle(env, name string) adapters.OperationHandle {
	return adapters.OperationHandle(env + "/" + name)
}

func decodeHandle(h adapters.OperationHandle) (env, name string, ok bool) {
	env, name, ok = strings.Cut(string(h), "/")
	return env, name, ok && env != "" && name != ""
}

func (t *Transcriber) Submit(ctx context.Context, in adapters.Input) (adapters.OperationHandle, error) {
	if in.Source.Bucket == "" || in.Source.Key == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "transcription source %q has no bucket", in.Source)
	}
	name := jobName(in.JobID, in.Attempt)
	_, err := t.client.StartTranscriptionJob(ctx, &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(name),
		LanguageCode:         types.LanguageCode(t.languageCode),
		MediaFormat:          types.MediaFormatMp3,
		Media:                &types.Media{MediaFileUri: aws.String(in.Source.String())},
		OutputBucketName:     aws.String(t.outputBucket),
		OutputKey:            aws.String(artifacts.RawTranscriptKey(in.Environment, name)),
	})
	if err != nil {
		var conflict *types.ConflictException
		if !errors.As(err, &conflict) {
			return "", classify(err)
		}
	}
	return encodeHandle(in.Environment, name), nil
}

func (t *Transcriber) Poll(ctx context.Context, handle adapters.OperationHandle) (adapters.PollResult, error) {
	env, name, ok := decodeHandle(handle)
	if !ok {
		return adapters.PollResult{}, apperrors.Classifyf(apperrors.ErrUnknownOperation, "%s", handle)
	}
	out, err := t.client.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(name),
	})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return adapters.PollResult{}, apperrors.Classify(apperrors.ErrUnknownOperation, err)
		}
		return adapters.PollResult{}, classify(err)
	}
	job := out.TranscriptionJob
	if job == nil {
		return adapters.Pending(), nil
	}

	switch job.TranscriptionJobStatus {
	case types.TranscriptionJobStatusCompleted:
		raw, err := t.reader.Get(ctx, models.Locator{Bucket: t.outputBucket, Key: artifacts.RawTranscriptKey(env, name)})
		if err != nil {
			return adapters.PollResult{}, apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
		}
		text, err := parseTranscript(raw)
		if err != nil {
			return adapters.Failed(err), nil
		}
		return adapters.Succeeded([]byte(text)), nil
	case types.TranscriptionJobStatusFailed:
		return adapters.Failed(apperrors.Classifyf(apperrors.ErrInvalidInput,
			"transcription job %s failed: %s", name, aws.ToString(job.FailureReason))), nil
	default:
		return adapters.Pending(), nil
	}
}

func parseTranscript(raw []byte) (string, error) {
	var doc transcriptDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", apperrors.Classify(apperrors.ErrInvalidInput, fmt.Errorf("failed to decode transcript: %w", err))
	}
	if len(doc.Results.Transcripts) == 0 {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "transcript has no results")
	}
	return doc.Results.Transcripts[0].Transcript, nil
}

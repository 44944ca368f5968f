package awsai

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Synthesizer renders speech with Amazon Polly as MP3.
type Synthesizer struct {
	client PollyAPI
	runner *adapters.AsyncRunner
}

func NewSynthesizer(client PollyAPI, timeout time.Duration) *Synthesizer {
	return &Synthesizer{client: client, runner: adapters.NewAsyncRunner("polly", timeout)}
}

func (s *Synthesizer) Submit(_ context.Context, in adapters.Input) (adapters.OperationHandle, error) {
	if strings.TrimSpace(in.Text) == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "synthesis text is empty")
	}
	if in.Voice == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "no voice for language %q", in.TargetLanguage)
	}
	params := &polly.SynthesizeSpeechInput{
		Text:         aws.String(in.Text),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(in.Voice),
	}
	return s.runner.Start(func(ctx context.Context) ([]byte, error) {
		out, err := s.client.SynthesizeSpeech(ctx, params)
		if err != nil {
			return nil, classify(err)
		}
		defer out.AudioStream.Close()
		audio, err := io.ReadAll(out.AudioStream)
		if err != nil {
			return nil, apperrors.Classify(apperrors.ErrAdapterUnavailable, fmt.Errorf("failed to read audio stream: %w", err))
		}
		return audio, nil
	}), nil
}

func (s *Synthesizer) Poll(_ context.Context, handle adapters.OperationHandle) (adapters.PollResult, error) {
	return s.runner.Poll(handle)
}

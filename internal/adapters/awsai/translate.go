package awsai

import (
	"context"
	"strings"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/translate"
)

type TranslateAPI interface {
	TranslateText(ctx context.Context, params *translate.TranslateTextInput, optFns ...func(*translate.Options)) (*translate.TranslateTextOutput, error)
}

// Translator wraps the synchronous TranslateText call.
type Translator struct {
	client TranslateAPI
	runner *adapters.AsyncRunner
}

func NewTranslator(client TranslateAPI, timeout time.Duration) *Translator {
	return &Translator{client: client, runner: adapters.NewAsyncRunner("translate", timeout)}
}

func (t *Translator) Submit(_ context.Context, in adapters.Input) (adapters.OperationHandle, error) {
	if strings.TrimSpace(in.Text) == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "translation text is empty")
	}
	if in.TargetLanguage == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "translation has no target language")
	}
	params := &translate.TranslateTextInput{
		Text:               aws.String(in.Text),
		SourceLanguageCode: aws.String(in.SourceLanguage),
		TargetLanguageCode: aws.String(in.TargetLanguage),
	}
	return t.runner.Start(func(ctx context.Context) ([]byte, error) {
		out, err := t.client.TranslateText(ctx, params)
		if err != nil {
			return nil, classify(err)
		}
		return []byte(aws.ToString(out.TranslatedText)), nil
	}), nil
}

func (t *Translator) Poll(_ context.Context, handle adapters.OperationHandle) (adapters.PollResult, error) {
	return t.runner.Poll(handle)
}

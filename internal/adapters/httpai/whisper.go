package httpai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
)

const (
	transcriptionsPath = "/v1/audio/transcriptions"

	formFieldFile     = "file"
	formFieldModel    = "model"
	formFieldLanguage = "language"
)

type whisperResponse struct {
	Text string `json:"text"`
}

// WhisperTranscriber sends source audio to a Whisper-compatible transcription
// endpoint.
type WhisperTranscriber struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	language   string
	source     adapters.ArtifactReader
	runner     *adapters.AsyncRunner
}

func NewWhisperTranscriber(baseURL, apiKey, model, language string, timeout time.Duration, source adapters.ArtifactReader) *WhisperTranscriber {
	return &WhisperTranscriber{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		language:   language,
		source:     source,
		runner:     adapters.NewAsyncRunner("whisper", timeout),
	}
}

func (w *WhisperTranscriber) Submit(ctx context.Context, in adapters.Input) (adapters.OperationHandle, error) {
	if in.Source.Key == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "transcription needs a source locator")
	}
	audio, err := w.source.Get(ctx, in.Source)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return "", apperrors.Classify(apperrors.ErrInvalidInput, err)
		}
		return "", apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
	}
	name := path.Base(in.Source.Key)
	return w.runner.Start(func(ctx context.Context) ([]byte, error) {
		text, err := w.transcribe(ctx, name, audio)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	}), nil
}

func (w *WhisperTranscriber) Poll(_ context.Context, handle adapters.OperationHandle) (adapters.PollResult, error) {
	return w.runner.Poll(handle)
}

func (w *WhisperTranscriber) transcribe(ctx context.Context, fileName string, audio []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, fileName)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err = part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to copy file data: %w", err)
	}
	if err = writer.WriteField(formFieldModel, w.model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if w.language != "" {
		if err = writer.WriteField(formFieldLanguage, w.language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err = writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+transcriptionsPath, &buf)
	if err != nil {
		return "", apperrors.Classify(apperrors.ErrInvalidInput, err)
	}
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}
	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.Classify(apperrors.ErrAdapterUnavailable, fmt.Errorf("failed to decode response: %w", err))
	}
	return out.Text, nil
}

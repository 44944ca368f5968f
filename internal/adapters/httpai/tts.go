package httpai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
)

const (
	ttsPath    = "/tts"
	healthPath = "/health"
)

type ttsRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
	Format   string `json:"format"`
}

// TTSSynthesizer calls a standalone HTTP text-to-speech service that answers
// with raw audio bytes.
type TTSSynthesizer struct {
	httpClient *http.Client
	baseURL    string
	runner     *adapters.AsyncRunner
}

func NewTTSSynthesizer(baseURL string, timeout time.Duration) *TTSSynthesizer {
	return &TTSSynthesizer{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		runner:     adapters.NewAsyncRunner("tts", timeout),
	}
}

func (s *TTSSynthesizer) Submit(_ context.Context, in adapters.Input) (adapters.OperationHandle, error) {
	if strings.TrimSpace(in.Text) == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "synthesis text is empty")
	}
	if in.Voice == "" {
		return "", apperrors.Classifyf(apperrors.ErrInvalidInput, "no voice for language %q", in.TargetLanguage)
	}
	req := ttsRequest{Text: in.Text, Voice: in.Voice, Language: in.TargetLanguage, Format: "mp3"}
	return s.runner.Start(func(ctx context.Context) ([]byte, error) {
		return s.generate(ctx, req)
	}), nil
}

func (s *TTSSynthesizer) Poll(_ context.Context, handle adapters.OperationHandle) (adapters.PollResult, error) {
	return s.runner.Poll(handle)
}

func (s *TTSSynthesizer) generate(ctx context.Context, body ttsRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Classify(apperrors.ErrInvalidInput, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+ttsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Classify(apperrors.ErrInvalidInput, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Classify(apperrors.ErrAdapterUnavailable, fmt.Errorf("failed to read audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, apperrors.Classifyf(apperrors.ErrAdapterUnavailable, "service returned empty audio")
	}
	return audio, nil
}

// HealthCheck reports whether the service answers its health endpoint.
func (s *TTSSynthesizer) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

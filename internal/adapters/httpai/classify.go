package httpai

import (
	"fmt"
	"io"
	"net/http"

	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
)

const maxErrorBody = 4096

// statusError classifies a non-2xx response: 429 throttles, other 4xx reject the
// input, 5xx means the service is unavailable.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.Classify(apperrors.ErrThrottled, err)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperrors.Classify(apperrors.ErrInvalidInput, err)
	default:
		return apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
	}
}

package awsai

import (
	"context"
	"errors"

	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/aws/smithy-go"
)

var throttlingCodes = map[string]struct{}{
	"ThrottlingException":                    {},
	"Throttling":                             {},
	"TooManyRequestsException":               {},
	"LimitExceededException":                 {},
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"ServiceQuotaExceededException":          {},
}

// classify maps an AWS SDK error onto the adapter error taxonomy. Anything that
// is not clearly the caller's fault is treated as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
	}
	if _, ok := throttlingCodes[apiErr.ErrorCode()]; ok {
		return apperrors.Classify(apperrors.ErrThrottled, err)
	}
	if apiErr.ErrorFault() == smithy.FaultClient {
		return apperrors.Classify(apperrors.ErrInvalidInput, err)
	}
	return apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
}

package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArtifact    = errors.New("invalid artifact")
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrThrottled          = errors.New("throttled")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrArtifactConflict   = errors.New("artifact already exists with different content")
	ErrUnknownOperation   = errors.New("unknown operation handle")
)

const (
	KindInvalidArtifact    = "invalid_artifact"
	KindAdapterUnavailable = "adapter_unavailable"
	KindThrottled          = "throttled"
	KindInvalidInput       = "invalid_input"
	KindConflict           = "conflict"
	KindNotFound           = "not_found"
	KindUnknown            = "unknown"
)

type classified struct {
	kind  error
	cause error
}

func (c *classified) Error() string {
	if c.cause == nil {
		return c.kind.Error()
	}
	return fmt.Sprintf("%s: %v", c.kind, c.cause)
}

func (c *classified) Is(target error) bool {
	return target == c.kind
}

func (c *classified) Unwrap() error {
	return c.cause
}

// Classify tags cause with one of the package sentinels so that errors.Is(err, kind) holds
// while the original cause stays reachable through errors.Unwrap.
func Classify(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return &classified{kind: kind, cause: cause}
}

func Classifyf(kind error, format string, args ...interface{}) error {
	return Classify(kind, fmt.Errorf(format, args...))
}

func IsRetriable(err error) bool {
	return errors.Is(err, ErrAdapterUnavailable) || errors.Is(err, ErrThrottled)
}

func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrThrottled):
		return KindThrottled
	case errors.Is(err, ErrAdapterUnavailable):
		return KindAdapterUnavailable
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidArtifact):
		return KindInvalidArtifact
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// RetriableKind reports whether a failure recorded under kind may be retried.
func RetriableKind(kind string) bool {
	return kind == KindThrottled || kind == KindAdapterUnavailable
}

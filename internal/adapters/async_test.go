package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, r *AsyncRunner, h OperationHandle) PollResult {
	t.Helper()
	var res PollResult
	require.Eventually(t, func() bool {
		var err error
		res, err = r.Poll(h)
		require.NoError(t, err)
		return res.State != PollPending
	}, time.Second, 5*time.Millisecond)
	return res
}

func TestAsyncRunnerSuccess(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	r := NewAsyncRunner("translate", time.Second)
	h := r.Start(func(ctx context.Context) ([]byte, error) {
		<-release
		return []byte("hola"), nil
	})

	res, err := r.Poll(h)
	require.NoError(t, err)
	assert.Equal(t, PollPending, res.State)

	close(release)
	res = waitDone(t, r, h)
	assert.Equal(t, PollSucceeded, res.State)
	assert.Equal(t, "hola", string(res.Data))
}

func TestAsyncRunnerFailureKeepsClassification(t *testing.T) {
	t.Parallel()

	r := NewAsyncRunner("synthesize", time.Second)
	h := r.Start(func(ctx context.Context) ([]byte, error) {
		return nil, apperrors.Classify(apperrors.ErrInvalidInput, errors.New("bad voice"))
	})
	res := waitDone(t, r, h)
	assert.Equal(t, PollFailed, res.State)
	assert.ErrorIs(t, res.Cause, apperrors.ErrInvalidInput)
}

func TestAsyncRunnerTimeoutIsRetriable(t *testing.T) {
	t.Parallel()

	r := NewAsyncRunner("synthesize", 10*time.Millisecond)
	h := r.Start(func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	res := waitDone(t, r, h)
	assert.Equal(t, PollFailed, res.State)
	assert.True(t, apperrors.IsRetriable(res.Cause))
}

func TestAsyncRunnerUnknownHandle(t *testing.T) {
	t.Parallel()

	_, err := NewAsyncRunner("x", 0).Poll("x:nope")
	assert.ErrorIs(t, err, apperrors.ErrUnknownOperation)
}

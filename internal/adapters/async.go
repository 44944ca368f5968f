package adapters

import (
	"context"
	"sync"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/google/uuid"
)

const defaultRetention = 30 * time.Minute

// CallFunc performs one synchronous request. Its error must already be classified.
type CallFunc func(ctx context.Context) ([]byte, error)

type asyncOp struct {
	done     bool
	data     []byte
	err      error
	finished time.Time
}

// AsyncRunner gives request/response services the submit/poll shape: Start runs the
// call in a goroutine and Poll reports its outcome. Operations live only in this
// process; finished ones are kept for the retention window.
type AsyncRunner struct {
	name      string
	timeout   time.Duration
	retention time.Duration
	mu        sync.Mutex
	ops       map[OperationHandle]*asyncOp
}

func NewAsyncRunner(name string, timeout time.Duration) *AsyncRunner {
	return &AsyncRunner{
		name:      name,
		timeout:   timeout,
		retention: defaultRetention,
		ops:       make(map[OperationHandle]*asyncOp),
	}
}

// Start launches call detached from the caller's context; the operation outlives
// the invocation that submitted it.
func (r *AsyncRunner) Start(call CallFunc) OperationHandle {
	handle := OperationHandle(r.name + ":" + uuid.NewString())
	op := &asyncOp{}

	r.mu.Lock()
	r.evictLocked(time.Now())
	r.ops[handle] = op
	r.mu.Unlock()

	go func() {
		ctx := context.Background()
		var cancel context.CancelFunc
		if r.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		data, err := call(ctx)
		if err != nil && ctx.Err() != nil {
			err = apperrors.Classify(apperrors.ErrAdapterUnavailable, err)
		}

		r.mu.Lock()
		op.done, op.data, op.err, op.finished = true, data, err, time.Now()
		r.mu.Unlock()
	}()
	return handle
}

func (r *AsyncRunner) Poll(handle OperationHandle) (PollResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[handle]
	if !ok {
		return PollResult{}, apperrors.Classifyf(apperrors.ErrUnknownOperation, "%s", handle)
	}
	if !op.done {
		return Pending(), nil
	}
	if op.err != nil {
		return Failed(op.err), nil
	}
	return Succeeded(op.data), nil
}

func (r *AsyncRunner) evictLocked(now time.Time) {
	for h, op := range r.ops {
		if op.done && now.Sub(op.finished) > r.retention {
			delete(r.ops, h)
		}
	}
}

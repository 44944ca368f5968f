package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
)

const (
	cpuCheckInterval = 2 * time.Second
	errorBackoff     = time.Second
)

// ErrSourceClosed is returned by a Source that will not yield more messages.
var ErrSourceClosed = errors.New("trigger source closed")

// Message is one inbound trigger payload.
type Message struct {
	Data []byte
	// Reply answers the sender when the transport supports it; nil otherwise.
	Reply func(data []byte) error
}

// Source yields trigger messages. Next blocks until a message arrives or ctx ends.
type Source interface {
	Next(ctx context.Context) (*Message, error)
	Close() error
}

// Worker pulls notifications from a Source with WorkerCount consumers and
// drives each to completion or to the poll budget.
type Worker struct {
	logger logger.Logger
	source Source
	uc     orchestrator.UseCase
	cfg    *config.Config
	wg     sync.WaitGroup
}

func NewWorker(cfg *config.Config, logger logger.Logger, source Source, uc orchestrator.UseCase) *Worker {
	return &Worker{
		logger: logger,
		source: source,
		uc:     uc,
		cfg:    cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting worker")
	count := w.cfg.Worker.WorkerCount
	if count < 1 {
		count = 1
	}
	for range count {
		w.wg.Add(1)
		go w.consume(ctx)
	}
}

// Wait blocks until every consumer has returned, then closes the source.
func (w *Worker) Wait() error {
	w.wg.Wait()
	return w.source.Close()
}

func (w *Worker) consume(ctx context.Context) {
	defer w.wg.Done()
	for ctx.Err() == nil {
		if err := utils.WaitForCPU(ctx, w.cfg.Worker.MaxCPUUsage, cpuCheckInterval); err != nil {
			return
		}
		msg, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSourceClosed) {
				return
			}
			w.logger.Errorf("consume - Next error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}
		if msg == nil {
			continue
		}
		w.handleMessage(ctx, msg)
	}
}

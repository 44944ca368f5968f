package usecase

import (
	"context"
	"sync"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
)

// BackgroundDriver drives jobs outside the request that accepted them, with at
// most limit drives running at once.
type BackgroundDriver struct {
	ctx    context.Context
	uc     orchestrator.UseCase
	sem    chan struct{}
	wg     sync.WaitGroup
	logger logger.Logger
}

func NewBackgroundDriver(ctx context.Context, uc orchestrator.UseCase, limit int, log logger.Logger) *BackgroundDriver {
	if limit < 1 {
		limit = 1
	}
	return &BackgroundDriver{ctx: ctx, uc: uc, sem: make(chan struct{}, limit), logger: log}
}

func (b *BackgroundDriver) Dispatch(jobID string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case b.sem <- struct{}{}:
		case <-b.ctx.Done():
			return
		}
		defer func() { <-b.sem }()

		view, err := b.uc.Drive(b.ctx, jobID)
		if err != nil {
			b.logger.Errorf("Dispatch - Drive %s error: %v", jobID, err)
			return
		}
		b.logger.Infof("Dispatch - job %s is %s", jobID, view.Status)
	}()
}

// Wait blocks until every dispatched drive has returned.
func (b *BackgroundDriver) Wait() {
	b.wg.Wait()
}

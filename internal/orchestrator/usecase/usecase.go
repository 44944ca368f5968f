package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/jobkey"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/ledger"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/metrics"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
)

const (
	dispositionAccepted  = "accepted"
	dispositionDuplicate = "duplicate"
	dispositionIgnored   = "ignored"
	dispositionRejected  = "rejected"
)

type orchestratorUC struct {
	resolver  *jobkey.Resolver
	ledger    ledger.Ledger
	inspector orchestrator.ObjectInspector
	driver    orchestrator.JobDriver
	logger    logger.Logger
}

func NewOrchestratorUseCase(
	resolver *jobkey.Resolver,
	l ledger.Ledger,
	inspector orchestrator.ObjectInspector,
	driver orchestrator.JobDriver,
	log logger.Logger,
) orchestrator.UseCase {
	return &orchestratorUC{
		resolver:  resolver,
		ledger:    l,
		inspector: inspector,
		driver:    driver,
		logger:    log,
	}
}

// Accept turns a notification into ledger jobs. Events that are not input
// uploads are logged and dropped without touching the ledger.
func (o *orchestratorUC) Accept(ctx context.Context, n *models.Notification) ([]*models.Job, error) {
	if n == nil {
		return nil, apperrors.Classifyf(apperrors.ErrInvalidArtifact, "empty notification")
	}
	events, err := n.Events()
	if err != nil {
		o.logger.Errorf("Accept - Events error: %v", err)
		return nil, apperrors.Classify(apperrors.ErrInvalidArtifact, err)
	}

	jobs := make([]*models.Job, 0, len(events))
	for _, ev := range events {
		job, err := o.acceptEvent(ctx, ev)
		if err != nil {
			return jobs, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (o *orchestratorUC) acceptEvent(ctx context.Context, ev models.ArtifactEvent) (*models.Job, error) {
	if ev.EventType != models.EventObjectCreated {
		o.logger.Infof("Accept - ignoring %s event for %s", ev.EventType, ev.Locator())
		metrics.IncreaseNotification(dispositionIgnored)
		return nil, nil
	}
	if !o.resolver.Matches(ev.Key) {
		o.logger.Infof("Accept - ignoring %s: not an input artifact", ev.Locator())
		metrics.IncreaseNotification(dispositionIgnored)
		return nil, nil
	}

	info, err := o.inspector.Head(ctx, ev.Locator())
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			o.logger.Errorf("Accept - Head error: %v", err)
			return nil, err
		}
		o.logger.Warnf("Accept - %s not visible yet, resolving from the event alone", ev.Locator())
		info = nil
	}

	job, err := o.resolver.Resolve(ev, info)
	if err != nil {
		o.logger.Warnf("Accept - Resolve %s: %v", ev.Locator(), err)
		metrics.IncreaseNotification(dispositionRejected)
		return nil, nil
	}
	if err = utils.ValidateStruct(ctx, job); err != nil {
		o.logger.Errorf("Accept - ValidateStruct error: %v", err)
		metrics.IncreaseNotification(dispositionRejected)
		return nil, nil
	}
	if missing := o.resolver.MissingVoices(job); len(missing) > 0 {
		o.logger.Warnf("Accept - job %s has no voice for %v; those languages will fail synthesis", job.JobID, missing)
	}

	created, err := o.ledger.CreateJob(ctx, job)
	if err != nil {
		o.logger.Errorf("Accept - CreateJob error: %v", err)
		return nil, fmt.Errorf("failed to create job %s: %w", job.JobID, err)
	}
	if created {
		o.logger.Infof("Accept - job %s created for %s in %s", job.JobID, job.SourceLocator, job.Environment)
		metrics.IncreaseNotification(dispositionAccepted)
	} else {
		o.logger.Infof("Accept - job %s already exists", job.JobID)
		metrics.IncreaseNotification(dispositionDuplicate)
	}
	return job, nil
}

func (o *orchestratorUC) HandleNotification(ctx context.Context, n *models.Notification) ([]*models.JobStatusView, error) {
	jobs, err := o.Accept(ctx, n)
	if err != nil {
		return nil, err
	}
	views := make([]*models.JobStatusView, 0, len(jobs))
	for _, job := range jobs {
		view, err := o.driver.Drive(ctx, job.JobID)
		if err != nil {
			o.logger.Errorf("HandleNotification - Drive %s error: %v", job.JobID, err)
			return views, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (o *orchestratorUC) Drive(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	return o.driver.Drive(ctx, jobID)
}

func (o *orchestratorUC) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	view, err := o.driver.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (o *orchestratorUC) ListJobs(ctx context.Context, environment string, pagination *utils.Pagination) (*models.JobList, error) {
	list, err := o.ledger.ListJobs(ctx, environment, pagination)
	if err != nil {
		o.logger.Errorf("ListJobs - ledger error: %v", err)
		return nil, err
	}
	return list, nil
}

// RetryJob moves failed stages with attempts left back in flight, whatever
// their error kind, and reopens the stages skipped behind them.
func (o *orchestratorUC) RetryJob(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	if _, err := o.driver.Status(ctx, jobID); err != nil {
		return nil, err
	}
	restarted, err := o.driver.Retry(ctx, jobID)
	if err != nil {
		o.logger.Errorf("RetryJob - Retry %s error: %v", jobID, err)
		return nil, err
	}
	o.logger.Infof("RetryJob - job %s restarted %v", jobID, restarted)
	return o.driver.Status(ctx, jobID)
}

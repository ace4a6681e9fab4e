package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/vault-doc-analyzer/internal/core/ports"
)

// JobService queues analysis requests for the worker and runs them there,
// tracking the pending/extracting/classifying/completed/failed lifecycle.
type JobService struct {
	repo     ports.JobRepository
	queue    ports.MessageQueue
	analyzer ports.DocumentAnalyzer
	logger   *slog.Logger
}

func NewJobService(
	repo ports.JobRepository,
	queue ports.MessageQueue,
	analyzer ports.DocumentAnalyzer,
	logger *slog.Logger,
) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		repo:     repo,
		queue:    queue,
		analyzer: analyzer,
		logger:   logger,
	}
}

func (s *JobService) Enqueue(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalysisJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.AnalysisJob{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Request:   req,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create analysis job: %w", err)
	}
	if err := s.queue.PublishAnalysisRequested(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish analysis job: %w", err)
	}
	return job, nil
}

func (s *JobService) GetByID(ctx context.Context, userID, jobID string) (*domain.AnalysisJob, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	// Jobs of other users are indistinguishable from missing ones.
	if job.UserID != userID {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get analysis job", fmt.Errorf("job %s", jobID))
	}
	return job, nil
}

func (s *JobService) ProcessByID(ctx context.Context, jobID string) error {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch analysis job: %w", err)
	}

	runCtx := domain.WithProgress(ctx, func(status domain.JobStatus) {
		if updErr := s.repo.UpdateStatus(ctx, job.ID, status, ""); updErr != nil {
			s.logger.Warn("update job status failed", "job_id", job.ID, "status", status, "error", updErr)
		}
	})

	report, err := s.analyzer.Analyze(runCtx, job.Request)
	if err != nil {
		if failErr := s.repo.UpdateStatus(ctx, job.ID, domain.JobFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := s.repo.SaveReport(ctx, job.ID, report); err != nil {
		if failErr := s.repo.UpdateStatus(ctx, job.ID, domain.JobFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save analysis report: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, job.ID, domain.JobCompleted, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}

package ports

import (
	"context"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

// DocumentAnalyzer is the inbound contract for the synchronous analysis
// pipeline.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalyzeReport, error)
}

// JobScheduler enqueues asynchronous analysis jobs and exposes their state.
type JobScheduler interface {
	Enqueue(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalysisJob, error)
	GetByID(ctx context.Context, userID, jobID string) (*domain.AnalysisJob, error)
}

// JobProcessor is the inbound contract for the worker side of async analysis.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

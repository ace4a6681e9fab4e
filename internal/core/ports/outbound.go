package ports

import (
	"context"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

// ObjectStore holds document bytes, including the pipeline's temporary
// staging objects.
type ObjectStore interface {
	Put(ctx context.Context, key, mimeType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// OcrEngine extracts text and structured fields from a stored document.
type OcrEngine interface {
	Analyze(ctx context.Context, storageKey, mimeType, fileName string) (domain.OcrResult, error)
}

// PhotoDetector discriminates casual photos from documents.
type PhotoDetector interface {
	Detect(ctx context.Context, documentURL, mimeType string) (domain.PhotoDetection, error)
}

// Classifier is the primary document classifier plus the pass-2 escalation
// re-classifier.
type Classifier interface {
	Classify(ctx context.Context, req domain.ClassificationRequest) (*domain.AnalysisResult, error)
	Reclassify(ctx context.Context, req domain.ReclassificationRequest) (domain.Classification, error)
	Configured() bool
}

// Embedder builds vectors for gold-set indexing and comparison.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GoldSetIndex compares document text against the reference example corpus.
type GoldSetIndex interface {
	Compare(ctx context.Context, text, aiCategory, vaultID string) (*domain.SimilarityResult, error)
}

// FolderRepository reads a vault's folder tree.
type FolderRepository interface {
	ListByVault(ctx context.Context, vc domain.VaultContext, vaultID string) ([]domain.Folder, error)
}

// JobRepository persists asynchronous analysis jobs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.AnalysisJob) error
	GetByID(ctx context.Context, jobID string) (*domain.AnalysisJob, error)
	UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMessage string) error
	SaveReport(ctx context.Context, jobID string, report *domain.AnalyzeReport) error
}

// MessageQueue publishes/consumes analysis job events.
type MessageQueue interface {
	PublishAnalysisRequested(ctx context.Context, jobID string) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, string) error) error
	Close()
}

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/vault-doc-analyzer/internal/config"
	"github.com/kirillkom/vault-doc-analyzer/internal/core/ports"
	"github.com/kirillkom/vault-doc-analyzer/internal/core/usecase"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/goldset/qdrant"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/llm/openai"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/ocr/localpdf"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/ocr/textract"
	natsqueue "github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/storage/s3store"
	"github.com/kirillkom/vault-doc-analyzer/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Analyzer ports.DocumentAnalyzer
	Jobs     *usecase.JobService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	folderRepo := postgres.NewFolderRepository(db)
	if err := folderRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure folders schema: %w", err)
	}
	jobRepo := postgres.NewJobRepository(db)
	if err := jobRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure jobs schema: %w", err)
	}

	guard := resilience.NewGuard(resilience.DefaultConfig())

	llmClient := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel)
	classifier := openai.NewClassifier(llmClient)
	photoDetector := openai.NewPhotoDetector(llmClient)
	embedder := openai.NewEmbedder(llmClient)

	goldSet := qdrant.NewIndex(cfg.QdrantURL, cfg.QdrantCollection, embedder, guard)
	if cfg.GoldSetSeedPath != "" {
		seedCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		seeded, err := goldSet.SeedFromFile(seedCtx, cfg.GoldSetSeedPath)
		cancel()
		if err != nil {
			// The similarity signal is optional; an unseeded gold set only
			// removes it from the blend.
			logger.Warn("gold set seeding failed", slog.Any("error", err))
		} else if seeded > 0 {
			logger.Info("gold set seeded", slog.Int("examples", seeded))
		}
	}

	var store ports.ObjectStore
	var ocr ports.OcrEngine
	switch cfg.Mode {
	case config.ModeMock:
		local, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init local object storage: %w", err)
		}
		store = local
		ocr = localpdf.New(local, logger)
	default:
		s3, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		store = s3
		engine, err := textract.New(ctx, cfg.AWSRegion, cfg.S3Bucket, logger)
		if err != nil {
			return nil, fmt.Errorf("init textract: %w", err)
		}
		ocr = engine
	}

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject, logger, natsqueue.Options{Guard: guard})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	analyzer := usecase.NewAnalyzeDocumentUseCase(
		usecase.PipelineConfig{
			OCREnabled:               cfg.OCREnabled,
			PhotoConfidenceThreshold: cfg.PhotoConfidenceThreshold,
			SimilarityMinTextLen:     cfg.SimilarityMinTextLen,
			AutoFileThreshold:        cfg.AutoFileThreshold,
			EscalationThreshold:      cfg.EscalationThreshold,
			MaxCandidates:            cfg.MaxCandidates,
		},
		store, ocr, photoDetector, classifier, goldSet, folderRepo, logger,
	)
	jobs := usecase.NewJobService(jobRepo, queue, analyzer, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Analyzer: analyzer,
		Jobs:     jobs,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

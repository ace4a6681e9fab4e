package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/vault-doc-analyzer/internal/core/ports"
)

// PipelineConfig carries every threshold the pipeline branches on, so the
// whole flow is testable without ambient configuration.
type PipelineConfig struct {
	OCREnabled               bool
	PhotoConfidenceThreshold float64
	SimilarityMinTextLen     int
	AutoFileThreshold        float64
	EscalationThreshold      float64
	MaxCandidates            int
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		OCREnabled:               true,
		PhotoConfidenceThreshold: 0.80,
		SimilarityMinTextLen:     50,
		AutoFileThreshold:        0.85,
		EscalationThreshold:      0.70,
		MaxCandidates:            3,
	}
}

func (c PipelineConfig) normalize() PipelineConfig {
	def := DefaultPipelineConfig()
	out := c
	if out.PhotoConfidenceThreshold <= 0 || out.PhotoConfidenceThreshold > 1 {
		out.PhotoConfidenceThreshold = def.PhotoConfidenceThreshold
	}
	if out.SimilarityMinTextLen <= 0 {
		out.SimilarityMinTextLen = def.SimilarityMinTextLen
	}
	if out.AutoFileThreshold <= 0 || out.AutoFileThreshold > 1 {
		out.AutoFileThreshold = def.AutoFileThreshold
	}
	if out.EscalationThreshold <= 0 || out.EscalationThreshold > 1 {
		out.EscalationThreshold = def.EscalationThreshold
	}
	if out.MaxCandidates <= 0 {
		out.MaxCandidates = def.MaxCandidates
	}
	return out
}

// AnalyzeDocumentUseCase runs the five-stage classification pipeline:
// input resolution, photo discrimination, OCR extraction, primary
// classification and confidence gating with optional pass-2 escalation.
// Control flows strictly forward; every invocation is fully isolated.
type AnalyzeDocumentUseCase struct {
	cfg        PipelineConfig
	store      ports.ObjectStore
	ocr        ports.OcrEngine
	photo      ports.PhotoDetector
	classifier ports.Classifier
	goldSet    ports.GoldSetIndex
	folders    ports.FolderRepository
	logger     *slog.Logger
}

func NewAnalyzeDocumentUseCase(
	cfg PipelineConfig,
	store ports.ObjectStore,
	ocr ports.OcrEngine,
	photo ports.PhotoDetector,
	classifier ports.Classifier,
	goldSet ports.GoldSetIndex,
	folders ports.FolderRepository,
	logger *slog.Logger,
) *AnalyzeDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeDocumentUseCase{
		cfg:        cfg.normalize(),
		store:      store,
		ocr:        ocr,
		photo:      photo,
		classifier: classifier,
		goldSet:    goldSet,
		folders:    folders,
		logger:     logger,
	}
}

func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalyzeReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !uc.classifier.Configured() {
		return nil, domain.WrapError(domain.ErrNotConfigured, "analyze document",
			fmt.Errorf("classifier credentials are not set"))
	}

	start := time.Now()

	handle, err := uc.resolveInput(ctx, req)
	if err != nil {
		return nil, err
	}
	// Temp staging objects are released no matter how the pipeline exits,
	// including context cancellation.
	defer uc.releaseInput(ctx, handle)

	if photoReport := uc.detectPhoto(ctx, req, handle, start); photoReport != nil {
		return photoReport, nil
	}

	ocr := uc.extractText(ctx, req, handle)

	var identity *domain.IdentityFields
	var expense *domain.ExpenseFields
	if ocr != nil {
		identity, expense = extractStructuredFields(*ocr)
	}

	folders, err := uc.listFolders(ctx, req)
	if err != nil {
		return nil, err
	}

	domain.NotifyProgress(ctx, domain.JobClassifying)
	result, err := uc.classifier.Classify(ctx, domain.ClassificationRequest{
		DocumentURL:     handle.documentURL,
		FileName:        req.FileName,
		MimeType:        req.MimeType,
		VaultContext:    req.VaultContext,
		OcrText:         ocrText(ocr),
		IdentityFields:  identity,
		ExpenseFields:   expense,
		ExistingFolders: folders,
	})
	if err != nil {
		return nil, fmt.Errorf("primary classification: %w", err)
	}

	mergeOcrMetadata(result, identity, expense, ocrText(ocr))

	var gate *qualityGateResult
	if ocr != nil {
		g := applyQualityGate(result.Classification.Confidence, *ocr, result.Classification.Category, result.ExtractedMetadata)
		gate = &g
		if gate.WasLimited {
			uc.logger.Info("ocr quality gate applied",
				"original", result.Classification.Confidence,
				"capped", gate.CappedConfidence,
				"quality", gate.Assessment.Quality,
				"reasons", gate.Assessment.Reasons)
		}
		result.Classification.Confidence = gate.CappedConfidence
	}

	similarity := uc.compareGoldSet(ctx, req, ocr, result.Classification.Category)

	var multi *domain.MultiSignalResult
	if gate != nil {
		m := combineSignals(signalInput{
			Quality:      gate.Assessment,
			Similarity:   similarity,
			AIConfidence: result.Classification.Confidence,
			AICategory:   result.Classification.Category,
		}, uc.cfg)
		multi = &m
		result.Classification.Confidence = multi.FinalConfidence
	}

	pass2Used := uc.escalateIfNeeded(ctx, req, handle, ocr, gate, similarity, multi, result)

	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	report := &domain.AnalyzeReport{
		Success:      true,
		Result:       result,
		TextractUsed: ocr != nil && ocr.Text != "",
		PageCount:    pageCount(ocr),
		MultiSignal:  multi,
		Embeddings:   similarity,
		Pass2Used:    pass2Used,
	}
	if gate != nil {
		report.OcrQuality = &domain.OcrQualityReport{
			Quality:           gate.Assessment.Quality,
			OcrConfidence:     gate.Assessment.OcrConfidence,
			HasRequiredFields: gate.Assessment.HasRequiredFields,
			WasLimited:        gate.WasLimited,
		}
	}
	return report, nil
}

// documentHandle is the resolved, dereferenceable document location.
type documentHandle struct {
	// storageKey addresses the bytes in object storage for OCR; empty when
	// the document is reachable only through documentURL.
	storageKey string
	// tempKey is the staged object to delete after the run, if any.
	tempKey     string
	documentURL string
}

func (uc *AnalyzeDocumentUseCase) resolveInput(ctx context.Context, req domain.AnalyzeRequest) (documentHandle, error) {
	ocrEligible := uc.cfg.OCREnabled && canOcrProcess(req.MimeType, req.FileName)

	if req.FileBase64 != "" && ocrEligible {
		data, err := base64.StdEncoding.DecodeString(req.FileBase64)
		if err != nil {
			return documentHandle{}, domain.WrapError(domain.ErrInvalidInput, "decode inline file", err)
		}
		tempKey := tempStorageKey(req.UserID, req.MimeType)
		if err := uc.store.Put(ctx, tempKey, req.MimeType, data); err != nil {
			return documentHandle{}, fmt.Errorf("stage inline file: %w", err)
		}
		uc.logger.Debug("staged inline file", "key", tempKey, "bytes", len(data))
		return documentHandle{
			storageKey:  tempKey,
			tempKey:     tempKey,
			documentURL: dataURL(req.MimeType, req.FileBase64),
		}, nil
	}

	if req.StorageKey != "" {
		url, err := uc.store.PresignGet(ctx, req.StorageKey)
		if err != nil {
			return documentHandle{}, fmt.Errorf("presign document: %w", err)
		}
		return documentHandle{storageKey: req.StorageKey, documentURL: url}, nil
	}

	// Inline bytes for a type OCR cannot process: the classifier works from
	// the data URL alone.
	return documentHandle{documentURL: dataURL(req.MimeType, req.FileBase64)}, nil
}

func (uc *AnalyzeDocumentUseCase) releaseInput(ctx context.Context, handle documentHandle) {
	if handle.tempKey == "" {
		return
	}
	// Deletion must run even when the request context is already done.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := uc.store.Delete(cleanupCtx, handle.tempKey); err != nil {
		// Orphans are reclaimed by the bucket lifecycle policy.
		uc.logger.Error("delete temp object failed", "key", handle.tempKey, "error", err)
	}
}

// detectPhoto returns a complete report when a high-confidence photo
// short-circuits the pipeline, nil otherwise.
func (uc *AnalyzeDocumentUseCase) detectPhoto(ctx context.Context, req domain.AnalyzeRequest, handle documentHandle, start time.Time) *domain.AnalyzeReport {
	if !isImageMime(req.MimeType) {
		return nil
	}

	detection, err := uc.photo.Detect(ctx, handle.documentURL, req.MimeType)
	if err != nil {
		uc.logger.Warn("photo detection failed, continuing with classification", "error", err)
		return nil
	}
	if !detection.IsPhoto || detection.Confidence < uc.cfg.PhotoConfidenceThreshold {
		uc.logger.Debug("photo detection inconclusive",
			"is_photo", detection.IsPhoto, "confidence", detection.Confidence)
		return nil
	}

	uc.logger.Info("photo detected, routing to needs_review",
		"subtype", detection.Subtype, "confidence", detection.Confidence)

	return &domain.AnalyzeReport{
		Success: true,
		Result: &domain.AnalysisResult{
			Classification: domain.Classification{
				Category:   "needs_review",
				Subtype:    "photo",
				Confidence: detection.Confidence,
			},
			SuggestedFilename: req.FileName,
			FolderSuggestion: domain.FolderSuggestion{
				MatchedExistingFolder: nil,
				PathSegments:          []string{"Quick Store", "Photos"},
				Confidence:            detection.Confidence,
			},
			ExtractedMetadata: domain.ExtractedMetadata{RawText: detection.Description},
			ProcessingTimeMs:  time.Since(start).Milliseconds(),
		},
		TextractUsed: false,
		PageCount:    1,
		IsPhoto:      true,
		PhotoDetection: &domain.PhotoReport{
			IsPhoto:       true,
			PhotoSubtype:  detection.Subtype,
			Confidence:    detection.Confidence,
			Description:   detection.Description,
			SuggestedTags: photoSuggestedTags(detection.Subtype),
		},
	}
}

// extractText runs OCR when enabled and the type is processable. A nil
// return means OCR was never attempted; a non-nil zero-text result means it
// was attempted and degraded.
func (uc *AnalyzeDocumentUseCase) extractText(ctx context.Context, req domain.AnalyzeRequest, handle documentHandle) *domain.OcrResult {
	if !uc.cfg.OCREnabled || !canOcrProcess(req.MimeType, req.FileName) || handle.storageKey == "" {
		return nil
	}

	domain.NotifyProgress(ctx, domain.JobExtracting)
	result, err := uc.ocr.Analyze(ctx, handle.storageKey, req.MimeType, req.FileName)
	if err != nil {
		// OCR is best-effort: classification degrades to the classifier's
		// own document understanding.
		uc.logger.Warn("ocr failed, continuing without extracted text", "error", err)
		return &domain.OcrResult{PageCount: 1}
	}
	if result.PageCount < 1 {
		result.PageCount = 1
	}
	uc.logger.Debug("ocr complete",
		"chars", len(result.Text), "confidence", result.Confidence, "pages", result.PageCount)
	return &result
}

func (uc *AnalyzeDocumentUseCase) listFolders(ctx context.Context, req domain.AnalyzeRequest) ([]domain.FolderInfo, error) {
	folders, err := uc.folders.ListByVault(ctx, req.VaultContext, req.VaultID())
	if err != nil {
		return nil, fmt.Errorf("list vault folders: %w", err)
	}
	infos, err := domain.MaterializeFolderPaths(folders)
	if err != nil {
		return nil, err
	}
	return infos, nil
}

func (uc *AnalyzeDocumentUseCase) compareGoldSet(ctx context.Context, req domain.AnalyzeRequest, ocr *domain.OcrResult, aiCategory string) *domain.SimilarityResult {
	if ocr == nil || len(ocr.Text) <= uc.cfg.SimilarityMinTextLen {
		return nil
	}
	similarity, err := uc.goldSet.Compare(ctx, ocr.Text, aiCategory, req.VaultID())
	if err != nil {
		uc.logger.Warn("gold set comparison failed, continuing without similarity signal", "error", err)
		return nil
	}
	return similarity
}

func (uc *AnalyzeDocumentUseCase) escalateIfNeeded(
	ctx context.Context,
	req domain.AnalyzeRequest,
	handle documentHandle,
	ocr *domain.OcrResult,
	gate *qualityGateResult,
	similarity *domain.SimilarityResult,
	multi *domain.MultiSignalResult,
	result *domain.AnalysisResult,
) bool {
	if multi == nil || ocr == nil || ocr.Text == "" {
		return false
	}

	input := escalationInput{
		Confidence:      multi.FinalConfidence,
		SimilarityScore: 0.5,
		ModelAgreement:  true,
		OcrQuality:      domain.OcrQualityMedium,
	}
	if similarity != nil {
		input.SimilarityScore = similarity.Similarity
		input.ModelAgreement = similarity.AgreesWithAI
	}
	if gate != nil {
		input.OcrQuality = gate.Assessment.Quality
	}

	decision := shouldEscalate(input, uc.cfg)
	if !decision.ShouldEscalate {
		return false
	}
	uc.logger.Info("escalating to pass 2", "reason", decision.Reason)

	candidates := topCandidates(result.Classification, similarity, uc.cfg.MaxCandidates)
	reclassified, err := uc.classifier.Reclassify(ctx, domain.ReclassificationRequest{
		DocumentURL: handle.documentURL,
		FileName:    req.FileName,
		MimeType:    req.MimeType,
		OcrText:     ocr.Text,
		Candidates:  candidates,
	})
	if err != nil {
		// Pass-1 results stand when pass 2 fails.
		uc.logger.Warn("pass 2 failed, keeping pass 1 result", "error", err)
		return false
	}

	result.Classification.Category = reclassified.Category
	result.Classification.Subtype = reclassified.Subtype
	result.Classification.Confidence = reclassified.Confidence
	return true
}

var imageMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/tiff": true,
	"image/gif":  true,
}

func isImageMime(mimeType string) bool {
	return imageMimeTypes[strings.ToLower(mimeType)]
}

func isPdf(mimeType, fileName string) bool {
	return strings.EqualFold(mimeType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(fileName), ".pdf")
}

func canOcrProcess(mimeType, fileName string) bool {
	return isImageMime(mimeType) || isPdf(mimeType, fileName)
}

func tempStorageKey(userID, mimeType string) string {
	ext := "bin"
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		ext = sub
	}
	return fmt.Sprintf("temp/ocr/%s/%s.%s", userID, uuid.NewString(), ext)
}

func dataURL(mimeType, fileBase64 string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, fileBase64)
}

func ocrText(ocr *domain.OcrResult) string {
	if ocr == nil {
		return ""
	}
	return ocr.Text
}

func pageCount(ocr *domain.OcrResult) int {
	if ocr == nil || ocr.PageCount < 1 {
		return 1
	}
	return ocr.PageCount
}

var photoTagsBySubtype = map[string][]string{
	"selfie":     {"photo", "people"},
	"people":     {"photo", "people"},
	"pet":        {"photo", "pets"},
	"landscape":  {"photo", "travel"},
	"screenshot": {"photo", "screenshot"},
	"food":       {"photo", "food"},
}

func photoSuggestedTags(subtype string) []string {
	if tags, ok := photoTagsBySubtype[strings.ToLower(subtype)]; ok {
		return tags
	}
	return []string{"photo"}
}

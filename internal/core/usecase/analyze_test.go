package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

type storeFake struct {
	putKeys    []string
	deleteKeys []string
	putErr     error
	presignErr error
	deleteErr  error
}

func (f *storeFake) Put(_ context.Context, key, _ string, _ []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.putKeys = append(f.putKeys, key)
	return nil
}

func (f *storeFake) Get(context.Context, string) ([]byte, error) { return nil, nil }

func (f *storeFake) PresignGet(_ context.Context, key string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://signed.example/" + key, nil
}

func (f *storeFake) Delete(_ context.Context, key string) error {
	f.deleteKeys = append(f.deleteKeys, key)
	return f.deleteErr
}

type ocrFake struct {
	result domain.OcrResult
	err    error
	calls  int
}

func (f *ocrFake) Analyze(context.Context, string, string, string) (domain.OcrResult, error) {
	f.calls++
	if f.err != nil {
		return domain.OcrResult{}, f.err
	}
	return f.result, nil
}

type photoFake struct {
	detection domain.PhotoDetection
	err       error
	calls     int
}

func (f *photoFake) Detect(context.Context, string, string) (domain.PhotoDetection, error) {
	f.calls++
	if f.err != nil {
		return domain.PhotoDetection{}, f.err
	}
	return f.detection, nil
}

type pipelineClassifierFake struct {
	unconfigured bool
	result       domain.AnalysisResult
	classifyErr  error

	reclassified  domain.Classification
	reclassifyErr error

	classifyCalls   int
	reclassifyCalls int
	lastClassify    domain.ClassificationRequest
	lastReclassify  domain.ReclassificationRequest
}

func (f *pipelineClassifierFake) Configured() bool { return !f.unconfigured }

func (f *pipelineClassifierFake) Classify(_ context.Context, req domain.ClassificationRequest) (*domain.AnalysisResult, error) {
	f.classifyCalls++
	f.lastClassify = req
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	copyResult := f.result
	return &copyResult, nil
}

func (f *pipelineClassifierFake) Reclassify(_ context.Context, req domain.ReclassificationRequest) (domain.Classification, error) {
	f.reclassifyCalls++
	f.lastReclassify = req
	if f.reclassifyErr != nil {
		return domain.Classification{}, f.reclassifyErr
	}
	return f.reclassified, nil
}

type goldSetFake struct {
	result *domain.SimilarityResult
	err    error
	calls  int
}

func (f *goldSetFake) Compare(context.Context, string, string, string) (*domain.SimilarityResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type folderRepoFake struct {
	folders []domain.Folder
	err     error
}

func (f *folderRepoFake) ListByVault(context.Context, domain.VaultContext, string) ([]domain.Folder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.folders, nil
}

type pipelineFixture struct {
	store      *storeFake
	ocr        *ocrFake
	photo      *photoFake
	classifier *pipelineClassifierFake
	goldSet    *goldSetFake
	folders    *folderRepoFake
	uc         *AnalyzeDocumentUseCase
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		store: &storeFake{},
		ocr: &ocrFake{result: domain.OcrResult{
			Text:       strings.Repeat("invoice line ", 10),
			Confidence: 0.92,
			PageCount:  1,
			Fields: []domain.OcrField{
				{Type: "VENDOR_NAME", Value: "Acme Power", Confidence: 0.95},
				{Type: "TOTAL", Value: "$120.00", Confidence: 0.93},
			},
		}},
		photo: &photoFake{detection: domain.PhotoDetection{IsPhoto: false}},
		classifier: &pipelineClassifierFake{
			result: domain.AnalysisResult{
				Classification:    domain.Classification{Category: "expense", Subtype: "utility_bill", Confidence: 0.92},
				SuggestedFilename: "acme-power-bill.pdf",
				FolderSuggestion: domain.FolderSuggestion{
					PathSegments: []string{"Bills", "Utilities"},
					Confidence:   0.9,
				},
			},
			reclassified: domain.Classification{Category: "financial", Subtype: "statement", Confidence: 0.82},
		},
		goldSet: &goldSetFake{result: &domain.SimilarityResult{
			MatchedCategory:  "expense",
			Similarity:       0.88,
			ExamplesCompared: 5,
			AgreesWithAI:     true,
		}},
		folders: &folderRepoFake{folders: []domain.Folder{
			{ID: "f1", Name: "Bills"},
			{ID: "f2", Name: "Utilities", ParentID: "f1"},
		}},
	}
	f.uc = NewAnalyzeDocumentUseCase(
		DefaultPipelineConfig(),
		f.store, f.ocr, f.photo, f.classifier, f.goldSet, f.folders, nil,
	)
	return f
}

func pdfRequest() domain.AnalyzeRequest {
	return domain.AnalyzeRequest{
		StorageKey:      "uploads/u-1/bill.pdf",
		FileName:        "bill.pdf",
		MimeType:        "application/pdf",
		VaultContext:    domain.VaultPersonal,
		PersonalVaultID: "vault-1",
		UserID:          "u-1",
	}
}

func imageRequest() domain.AnalyzeRequest {
	req := pdfRequest()
	req.StorageKey = "uploads/u-1/pic.jpg"
	req.FileName = "pic.jpg"
	req.MimeType = "image/jpeg"
	return req
}

func TestAnalyzeRejectsInvalidRequest(t *testing.T) {
	f := newPipelineFixture()
	req := pdfRequest()
	req.FileName = ""

	_, err := f.uc.Analyze(context.Background(), req)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.classifier.classifyCalls != 0 {
		t.Error("classifier must not run on invalid input")
	}
}

func TestAnalyzeFailsFastWhenClassifierUnconfigured(t *testing.T) {
	f := newPipelineFixture()
	f.classifier.unconfigured = true

	_, err := f.uc.Analyze(context.Background(), pdfRequest())
	if !domain.IsKind(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if f.ocr.calls != 0 || f.photo.calls != 0 {
		t.Error("no stage may run without a configured classifier")
	}
}

func TestAnalyzePhotoShortCircuit(t *testing.T) {
	f := newPipelineFixture()
	f.photo.detection = domain.PhotoDetection{
		IsPhoto:     true,
		Subtype:     "pet",
		Confidence:  0.93,
		Description: "a dog on a couch",
	}

	report, err := f.uc.Analyze(context.Background(), imageRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if !report.IsPhoto || report.PhotoDetection == nil {
		t.Fatal("expected photo short-circuit report")
	}
	if report.Result.Classification.Category != "needs_review" || report.Result.Classification.Subtype != "photo" {
		t.Errorf("classification = %+v", report.Result.Classification)
	}
	if got := report.Result.FolderSuggestion.PathSegments; len(got) != 2 || got[0] != "Quick Store" || got[1] != "Photos" {
		t.Errorf("folder segments = %v", got)
	}
	if report.TextractUsed {
		t.Error("photo path must not report OCR usage")
	}
	if len(report.PhotoDetection.SuggestedTags) == 0 {
		t.Error("expected suggested tags")
	}
	if f.classifier.classifyCalls != 0 || f.ocr.calls != 0 {
		t.Error("photo short-circuit must skip OCR and classification")
	}
}

func TestAnalyzeLowConfidencePhotoContinuesPipeline(t *testing.T) {
	f := newPipelineFixture()
	f.photo.detection = domain.PhotoDetection{IsPhoto: true, Subtype: "screenshot", Confidence: 0.7}

	report, err := f.uc.Analyze(context.Background(), imageRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.IsPhoto {
		t.Error("below-threshold photo must not short-circuit")
	}
	if f.classifier.classifyCalls != 1 {
		t.Errorf("classifier calls = %d", f.classifier.classifyCalls)
	}
}

func TestAnalyzePhotoDetectorFailureIsNonFatal(t *testing.T) {
	f := newPipelineFixture()
	f.photo.err = errors.New("vision model down")

	report, err := f.uc.Analyze(context.Background(), imageRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.IsPhoto {
		t.Error("failed detection must not mark the document as photo")
	}
	if f.classifier.classifyCalls != 1 {
		t.Error("pipeline must continue after detector failure")
	}
}

func TestAnalyzeOcrFailureDegradesGracefully(t *testing.T) {
	f := newPipelineFixture()
	f.ocr.err = errors.New("ocr service unavailable")

	report, err := f.uc.Analyze(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if !report.Success {
		t.Error("degraded run must still succeed")
	}
	if report.TextractUsed {
		t.Error("TextractUsed must be false when extraction failed")
	}
	if report.OcrQuality == nil || report.OcrQuality.Quality != domain.OcrQualityLow {
		t.Fatalf("ocr quality = %+v", report.OcrQuality)
	}
	// An attempted-but-failed extraction caps confidence like any other
	// low-quality result.
	if report.Result.Classification.Confidence > lowQualityCap {
		t.Errorf("confidence %.2f above low-quality cap", report.Result.Classification.Confidence)
	}
	if f.goldSet.calls != 0 {
		t.Error("no text means no similarity comparison")
	}
}

func TestAnalyzeCleanHighConfidenceDocumentAutoFiles(t *testing.T) {
	f := newPipelineFixture()

	report, err := f.uc.Analyze(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.MultiSignal == nil {
		t.Fatal("expected multi-signal block")
	}
	// 0.5*0.92 + 0.2*0.92 + 0.3*0.88 = 0.908
	if got := report.MultiSignal.FinalConfidence; got < 0.90 || got > 0.92 {
		t.Errorf("final confidence = %.3f", got)
	}
	if !report.MultiSignal.CanAutoFile {
		t.Errorf("expected auto-file, blocked: %s", report.MultiSignal.AutoFileBlockReason)
	}
	if report.Pass2Used {
		t.Error("high-confidence run must not escalate")
	}
	if !report.TextractUsed {
		t.Error("expected TextractUsed")
	}
	if report.Embeddings == nil || report.Embeddings.ExamplesCompared != 5 {
		t.Errorf("embeddings = %+v", report.Embeddings)
	}
	if report.Result.Classification.Confidence != report.MultiSignal.FinalConfidence {
		t.Error("final confidence must be written back to the classification")
	}
}

func TestAnalyzeLowOcrQualityCapsAndEscalates(t *testing.T) {
	f := newPipelineFixture()
	f.ocr.result.Confidence = 0.30
	f.goldSet.result = &domain.SimilarityResult{
		MatchedCategory:  "expense",
		Similarity:       0.62,
		ExamplesCompared: 4,
		AgreesWithAI:     true,
	}

	report, err := f.uc.Analyze(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.OcrQuality == nil || report.OcrQuality.Quality != domain.OcrQualityLow {
		t.Fatalf("ocr quality = %+v", report.OcrQuality)
	}
	if !report.OcrQuality.WasLimited {
		t.Error("expected gate to cap the classifier confidence")
	}
	if !report.Pass2Used {
		t.Fatal("expected pass-2 escalation")
	}
	if f.classifier.reclassifyCalls != 1 {
		t.Fatalf("reclassify calls = %d", f.classifier.reclassifyCalls)
	}
	// Pass 2 overwrites only category, subtype and confidence.
	if report.Result.Classification.Category != "financial" {
		t.Errorf("category = %q", report.Result.Classification.Category)
	}
	if report.Result.SuggestedFilename != "acme-power-bill.pdf" {
		t.Errorf("pass 2 must not touch the suggested filename, got %q", report.Result.SuggestedFilename)
	}
	if report.MultiSignal.CanAutoFile {
		t.Error("low-quality run must not auto-file")
	}
}

func TestAnalyzePass2FailureKeepsPass1Result(t *testing.T) {
	f := newPipelineFixture()
	f.ocr.result.Confidence = 0.30
	f.classifier.reclassifyErr = errors.New("model overloaded")

	report, err := f.uc.Analyze(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.Pass2Used {
		t.Error("failed pass 2 must not be reported as used")
	}
	if report.Result.Classification.Category != "expense" {
		t.Errorf("pass-1 category must stand, got %q", report.Result.Classification.Category)
	}
}

func TestAnalyzeSkipsSimilarityForShortText(t *testing.T) {
	f := newPipelineFixture()
	f.ocr.result.Text = "short scrap"
	f.ocr.result.Fields = nil

	report, err := f.uc.Analyze(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if f.goldSet.calls != 0 {
		t.Error("similarity must be skipped for short text")
	}
	if report.Embeddings != nil {
		t.Errorf("embeddings = %+v", report.Embeddings)
	}
	if report.MultiSignal == nil {
		t.Fatal("multi-signal must still run from AI and OCR signals")
	}
	if _, ok := report.MultiSignal.Signals["similarity"]; ok {
		t.Error("similarity signal must be absent, not zero")
	}
}

func TestAnalyzeSimilarityFailureIsNonFatal(t *testing.T) {
	f := newPipelineFixture()
	f.goldSet.err = errors.New("vector store down")

	report, err := f.uc.Analyze(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.Embeddings != nil {
		t.Error("failed comparison must not produce an embeddings block")
	}
	if report.MultiSignal == nil {
		t.Fatal("expected multi-signal block without similarity")
	}
}

func TestAnalyzeStagesAndCleansUpInlineFile(t *testing.T) {
	f := newPipelineFixture()
	req := pdfRequest()
	req.StorageKey = ""
	req.FileBase64 = "JVBERi0xLjQK" // "%PDF-1.4\n"

	_, err := f.uc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(f.store.putKeys) != 1 {
		t.Fatalf("put calls = %d", len(f.store.putKeys))
	}
	key := f.store.putKeys[0]
	if !strings.HasPrefix(key, "temp/ocr/u-1/") {
		t.Errorf("temp key = %q", key)
	}
	if len(f.store.deleteKeys) != 1 || f.store.deleteKeys[0] != key {
		t.Errorf("delete calls = %v", f.store.deleteKeys)
	}
}

func TestAnalyzeCleansUpTempObjectOnClassifierFailure(t *testing.T) {
	f := newPipelineFixture()
	f.classifier.classifyErr = errors.New("model down")
	req := pdfRequest()
	req.StorageKey = ""
	req.FileBase64 = "JVBERi0xLjQK"

	_, err := f.uc.Analyze(context.Background(), req)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.store.deleteKeys) != 1 {
		t.Fatalf("delete calls = %v, want exactly one", f.store.deleteKeys)
	}
}

func TestAnalyzeDoesNotDeleteCallerOwnedObjects(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.uc.Analyze(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(f.store.deleteKeys) != 0 {
		t.Errorf("caller-provided key must not be deleted, got %v", f.store.deleteKeys)
	}
}

func TestAnalyzeOcrMetadataFillsGapsOnly(t *testing.T) {
	f := newPipelineFixture()
	f.classifier.result.ExtractedMetadata = domain.ExtractedMetadata{Vendor: "Classifier Vendor"}
	f.ocr.result.Fields = []domain.OcrField{
		{Type: "VENDOR_NAME", Value: "OCR Vendor", Confidence: 0.9},
		{Type: "TOTAL", Value: "$99.00", Confidence: 0.9},
		{Type: "FULL_NAME", Value: "Jane Roe", Confidence: 0.9},
		{Type: "EXPIRATION_DATE", Value: "06/30/2027", Confidence: 0.9},
	}

	report, err := f.uc.Analyze(context.Background(), pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	meta := report.Result.ExtractedMetadata
	if meta.Vendor != "Classifier Vendor" {
		t.Errorf("vendor = %q, OCR must not overwrite", meta.Vendor)
	}
	if meta.Amount != "$99.00" {
		t.Errorf("amount = %q, OCR must fill the gap", meta.Amount)
	}
	if meta.PersonName != "Jane Roe" {
		t.Errorf("person name = %q", meta.PersonName)
	}
	if report.Result.ExpirationDate == nil || *report.Result.ExpirationDate != "2027-06-30" {
		t.Errorf("expiration = %v", report.Result.ExpirationDate)
	}
	if report.Result.ExpirationConfidence != ocrExpirationConfidence {
		t.Errorf("expiration confidence = %v", report.Result.ExpirationConfidence)
	}
}

func TestAnalyzePropagatesFolderCycle(t *testing.T) {
	f := newPipelineFixture()
	f.folders.folders = []domain.Folder{
		{ID: "a", Name: "A", ParentID: "b"},
		{ID: "b", Name: "B", ParentID: "a"},
	}

	_, err := f.uc.Analyze(context.Background(), pdfRequest())
	if !domain.IsKind(err, domain.ErrFolderCycle) {
		t.Fatalf("expected ErrFolderCycle, got %v", err)
	}
}

func TestAnalyzeReportsProgressStages(t *testing.T) {
	f := newPipelineFixture()

	var stages []domain.JobStatus
	ctx := domain.WithProgress(context.Background(), func(status domain.JobStatus) {
		stages = append(stages, status)
	})

	_, err := f.uc.Analyze(ctx, pdfRequest())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(stages) != 2 || stages[0] != domain.JobExtracting || stages[1] != domain.JobClassifying {
		t.Errorf("stages = %v", stages)
	}
}

package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

// Confidence caps per OCR quality tier. The gate only ever revises the
// classifier's confidence downward: a document cannot be rated more
// confidently classified than its evidence quality supports.
const (
	lowQualityCap       = 0.50
	mediumQualityCap    = 0.75
	missingRequiredCap  = 0.65
	highTierThreshold   = 0.80
	mediumTierThreshold = 0.50
)

type qualityGateResult struct {
	CappedConfidence float64
	WasLimited       bool
	Assessment       domain.QualityAssessment
}

// applyQualityGate derives the quality assessment from the OCR result and
// the category's required-field set, then caps the classifier confidence.
// Callers invoke it only when OCR was actually attempted.
func applyQualityGate(aiConfidence float64, ocr domain.OcrResult, category string, meta domain.ExtractedMetadata) qualityGateResult {
	assessment := assessOcrQuality(ocr, category, meta)

	limit := 1.0
	switch assessment.Quality {
	case domain.OcrQualityLow:
		limit = lowQualityCap
	case domain.OcrQualityMedium:
		limit = mediumQualityCap
	}
	if !assessment.HasRequiredFields && missingRequiredCap < limit {
		limit = missingRequiredCap
	}

	capped := aiConfidence
	if capped > limit {
		capped = limit
	}

	return qualityGateResult{
		CappedConfidence: capped,
		WasLimited:       capped < aiConfidence,
		Assessment:       assessment,
	}
}

func assessOcrQuality(ocr domain.OcrResult, category string, meta domain.ExtractedMetadata) domain.QualityAssessment {
	var reasons []string

	quality := domain.OcrQualityHigh
	switch {
	case ocr.Text == "":
		quality = domain.OcrQualityLow
		reasons = append(reasons, "no text extracted")
	case ocr.Confidence < mediumTierThreshold:
		quality = domain.OcrQualityLow
		reasons = append(reasons, fmt.Sprintf("ocr confidence %.2f below %.2f", ocr.Confidence, mediumTierThreshold))
	case ocr.Confidence < highTierThreshold:
		quality = domain.OcrQualityMedium
		reasons = append(reasons, fmt.Sprintf("ocr confidence %.2f below %.2f", ocr.Confidence, highTierThreshold))
	}

	hasRequired := hasRequiredFields(category, meta)
	if !hasRequired {
		reasons = append(reasons, fmt.Sprintf("missing required fields for category %q", category))
	}

	return domain.QualityAssessment{
		Quality:           quality,
		OcrConfidence:     ocr.Confidence,
		HasRequiredFields: hasRequired,
		Reasons:           reasons,
	}
}

// hasRequiredFields checks the category-specific evidence the extraction
// should have produced. Categories without a required set always pass.
func hasRequiredFields(category string, meta domain.ExtractedMetadata) bool {
	switch strings.ToLower(category) {
	case "identity":
		return meta.PersonName != "" || meta.DocumentNumber != ""
	case "expense", "invoice", "financial":
		return meta.Vendor != "" || meta.Amount != ""
	default:
		return true
	}
}

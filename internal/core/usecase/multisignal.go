package usecase

import (
	"fmt"
	"math"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

// Signal weights for the combined confidence. When the similarity signal is
// absent the remaining weights are renormalized over AI and OCR alone.
const (
	aiSignalWeight         = 0.5
	ocrSignalWeight        = 0.2
	similaritySignalWeight = 0.3
)

type signalInput struct {
	Quality      domain.QualityAssessment
	Similarity   *domain.SimilarityResult
	AIConfidence float64
	AICategory   string
}

// combineSignals blends OCR quality, optional gold-set similarity and the
// (already gate-capped) classifier confidence into the final score that
// drives auto-filing and escalation. Runs only when the quality gate ran.
func combineSignals(in signalInput, cfg PipelineConfig) domain.MultiSignalResult {
	signals := map[string]float64{
		"ai":  in.AIConfidence,
		"ocr": in.Quality.OcrConfidence,
	}

	var final float64
	if in.Similarity != nil {
		signals["similarity"] = in.Similarity.Similarity
		final = aiSignalWeight*in.AIConfidence +
			ocrSignalWeight*in.Quality.OcrConfidence +
			similaritySignalWeight*in.Similarity.Similarity
	} else {
		total := aiSignalWeight + ocrSignalWeight
		final = (aiSignalWeight*in.AIConfidence + ocrSignalWeight*in.Quality.OcrConfidence) / total
	}
	final = clamp01(final)

	canAutoFile := true
	blockReason := ""
	switch {
	case final < cfg.AutoFileThreshold:
		canAutoFile = false
		blockReason = fmt.Sprintf("confidence %.2f below auto-file threshold %.2f", final, cfg.AutoFileThreshold)
	case in.Quality.Quality == domain.OcrQualityLow:
		canAutoFile = false
		blockReason = "ocr quality too low for automatic filing"
	case !in.Quality.HasRequiredFields:
		canAutoFile = false
		blockReason = "required metadata fields missing"
	case in.Similarity != nil && !in.Similarity.AgreesWithAI:
		canAutoFile = false
		blockReason = fmt.Sprintf("reference set matched %q instead of %q", in.Similarity.MatchedCategory, in.AICategory)
	}

	return domain.MultiSignalResult{
		FinalConfidence:     final,
		Signals:             signals,
		CanAutoFile:         canAutoFile,
		AutoFileBlockReason: blockReason,
		WasAdjusted:         math.Abs(final-in.AIConfidence) > 0.001,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

func highQuality(ocrConfidence float64) domain.QualityAssessment {
	return domain.QualityAssessment{
		Quality:           domain.OcrQualityHigh,
		OcrConfidence:     ocrConfidence,
		HasRequiredFields: true,
	}
}

func TestCombineSignalsWithSimilarity(t *testing.T) {
	got := combineSignals(signalInput{
		Quality: highQuality(0.92),
		Similarity: &domain.SimilarityResult{
			MatchedCategory: "expense",
			Similarity:      0.88,
			AgreesWithAI:    true,
		},
		AIConfidence: 0.92,
		AICategory:   "expense",
	}, DefaultPipelineConfig())

	want := 0.5*0.92 + 0.2*0.92 + 0.3*0.88
	if math.Abs(got.FinalConfidence-want) > 0.0001 {
		t.Errorf("final = %.4f, want %.4f", got.FinalConfidence, want)
	}
	if !got.CanAutoFile {
		t.Errorf("expected auto-file, blocked: %s", got.AutoFileBlockReason)
	}
	if len(got.Signals) != 3 {
		t.Errorf("signals = %v", got.Signals)
	}
}

func TestCombineSignalsRenormalizesWithoutSimilarity(t *testing.T) {
	got := combineSignals(signalInput{
		Quality:      highQuality(0.9),
		AIConfidence: 0.9,
		AICategory:   "expense",
	}, DefaultPipelineConfig())

	want := (0.5*0.9 + 0.2*0.9) / (0.5 + 0.2)
	if math.Abs(got.FinalConfidence-want) > 0.0001 {
		t.Errorf("final = %.4f, want %.4f", got.FinalConfidence, want)
	}
	if _, ok := got.Signals["similarity"]; ok {
		t.Error("absent similarity must not appear in the signal map")
	}
}

func TestCombineSignalsAutoFileBlocks(t *testing.T) {
	cfg := DefaultPipelineConfig()

	t.Run("below threshold", func(t *testing.T) {
		got := combineSignals(signalInput{Quality: highQuality(0.6), AIConfidence: 0.6}, cfg)
		if got.CanAutoFile {
			t.Error("expected block")
		}
	})

	t.Run("low quality", func(t *testing.T) {
		quality := domain.QualityAssessment{
			Quality:           domain.OcrQualityLow,
			OcrConfidence:     0.95,
			HasRequiredFields: true,
		}
		got := combineSignals(signalInput{
			Quality:      quality,
			Similarity:   &domain.SimilarityResult{Similarity: 0.95, AgreesWithAI: true},
			AIConfidence: 0.95,
		}, cfg)
		if got.CanAutoFile {
			t.Error("low quality must block even at high confidence")
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		quality := highQuality(0.95)
		quality.HasRequiredFields = false
		got := combineSignals(signalInput{
			Quality:      quality,
			Similarity:   &domain.SimilarityResult{Similarity: 0.95, AgreesWithAI: true},
			AIConfidence: 0.95,
		}, cfg)
		if got.CanAutoFile {
			t.Error("missing required fields must block")
		}
	})

	t.Run("reference disagreement", func(t *testing.T) {
		got := combineSignals(signalInput{
			Quality: highQuality(0.95),
			Similarity: &domain.SimilarityResult{
				MatchedCategory: "medical",
				Similarity:      0.95,
				AgreesWithAI:    false,
			},
			AIConfidence: 0.95,
			AICategory:   "expense",
		}, cfg)
		if got.CanAutoFile {
			t.Error("disagreement must block")
		}
	})
}

func TestCombineSignalsWasAdjusted(t *testing.T) {
	same := combineSignals(signalInput{Quality: highQuality(0.9), AIConfidence: 0.9}, DefaultPipelineConfig())
	if same.WasAdjusted {
		t.Error("equal signals must not count as adjusted")
	}

	moved := combineSignals(signalInput{Quality: highQuality(0.4), AIConfidence: 0.9}, DefaultPipelineConfig())
	if !moved.WasAdjusted {
		t.Error("blended score differs from AI score, must be adjusted")
	}
}

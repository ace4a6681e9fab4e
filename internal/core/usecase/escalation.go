package usecase

import (
	"fmt"
	"sort"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

// nearEqualMargin is how close the similarity match's score must come to the
// final confidence for a disagreement to count as a near-equal alternative.
const nearEqualMargin = 0.10

type escalationInput struct {
	Confidence      float64
	SimilarityScore float64
	ModelAgreement  bool
	OcrQuality      domain.OcrQualityTier
}

// shouldEscalate decides whether the document needs the more expensive
// pass-2 classification. Callers fill defaults for missing signals:
// similarity 0.5, agreement true, quality medium.
func shouldEscalate(in escalationInput, cfg PipelineConfig) domain.EscalationDecision {
	if in.Confidence < cfg.EscalationThreshold {
		return domain.EscalationDecision{
			ShouldEscalate: true,
			Reason:         fmt.Sprintf("confidence %.2f below escalation threshold %.2f", in.Confidence, cfg.EscalationThreshold),
		}
	}
	if in.OcrQuality == domain.OcrQualityLow {
		return domain.EscalationDecision{
			ShouldEscalate: true,
			Reason:         "ocr quality is low",
		}
	}
	if !in.ModelAgreement && in.SimilarityScore >= in.Confidence-nearEqualMargin {
		return domain.EscalationDecision{
			ShouldEscalate: true,
			Reason: fmt.Sprintf("classifier disagrees with reference match at near-equal score %.2f vs %.2f",
				in.SimilarityScore, in.Confidence),
		}
	}
	return domain.EscalationDecision{ShouldEscalate: false, Reason: "confidence and signals within bounds"}
}

// topCandidates ranks the current category against the similarity-matched
// alternative and returns at most max candidates for the pass-2 prompt.
func topCandidates(current domain.Classification, similarity *domain.SimilarityResult, max int) []domain.CategoryCandidate {
	candidates := []domain.CategoryCandidate{
		{Category: current.Category, Score: current.Confidence},
	}
	if similarity != nil && similarity.MatchedCategory != "" && similarity.MatchedCategory != current.Category {
		candidates = append(candidates, domain.CategoryCandidate{
			Category: similarity.MatchedCategory,
			Score:    similarity.Similarity,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Configured() bool {
	return c.client.Configured()
}

// classificationPayload mirrors the JSON contract the prompt demands.
type classificationPayload struct {
	Category             string                   `json:"category"`
	Subtype              string                   `json:"subtype"`
	Confidence           float64                  `json:"confidence"`
	SuggestedFilename    string                   `json:"suggestedFilename"`
	FolderPath           []string                 `json:"folderPath"`
	FolderConfidence     float64                  `json:"folderConfidence"`
	ExtractedMetadata    domain.ExtractedMetadata `json:"extractedMetadata"`
	ExpirationDate       string                   `json:"expirationDate"`
	ExpirationConfidence float64                  `json:"expirationConfidence"`
	DueDate              string                   `json:"dueDate"`
	DueDateConfidence    float64                  `json:"dueDateConfidence"`
}

func (c *Classifier) Classify(ctx context.Context, req domain.ClassificationRequest) (*domain.AnalysisResult, error) {
	respText, err := c.client.chatJSON(ctx, "classify", []message{
		visionUserMessage(buildClassificationPrompt(req), req.DocumentURL, req.MimeType),
	})
	if err != nil {
		return nil, err
	}

	var payload classificationPayload
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &payload); err != nil {
		return nil, fmt.Errorf("parse classification json: %w", err)
	}

	result := &domain.AnalysisResult{
		Classification: domain.Classification{
			Category:   payload.Category,
			Subtype:    payload.Subtype,
			Confidence: clamp01(payload.Confidence),
		},
		SuggestedFilename: payload.SuggestedFilename,
		FolderSuggestion: domain.FolderSuggestion{
			MatchedExistingFolder: matchExistingFolder(payload.FolderPath, req.ExistingFolders),
			PathSegments:          payload.FolderPath,
			Confidence:            clamp01(payload.FolderConfidence),
		},
		ExtractedMetadata: payload.ExtractedMetadata,
	}
	if result.SuggestedFilename == "" {
		result.SuggestedFilename = req.FileName
	}
	if len(result.FolderSuggestion.PathSegments) == 0 {
		result.FolderSuggestion.PathSegments = []string{"Quick Store"}
	}

	// Dates the model could not express in a parseable form are dropped
	// rather than stored raw.
	if normalized, ok := domain.NormalizeDate(payload.ExpirationDate); ok {
		result.ExpirationDate = &normalized
		result.ExpirationConfidence = clamp01(payload.ExpirationConfidence)
	}
	if normalized, ok := domain.NormalizeDate(payload.DueDate); ok {
		result.DueDate = &normalized
		result.DueDateConfidence = clamp01(payload.DueDateConfidence)
	}
	if normalized, ok := domain.NormalizeDate(result.ExtractedMetadata.DocumentDate); ok {
		result.ExtractedMetadata.DocumentDate = normalized
	} else {
		result.ExtractedMetadata.DocumentDate = ""
	}

	return result, nil
}

func (c *Classifier) Reclassify(ctx context.Context, req domain.ReclassificationRequest) (domain.Classification, error) {
	respText, err := c.client.chatJSON(ctx, "reclassify", []message{
		visionUserMessage(buildReclassificationPrompt(req), req.DocumentURL, req.MimeType),
	})
	if err != nil {
		return domain.Classification{}, err
	}

	var result domain.Classification
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.Classification{}, fmt.Errorf("parse reclassification json: %w", err)
	}
	result.Confidence = clamp01(result.Confidence)
	return result, nil
}

// matchExistingFolder resolves a suggested path to a real folder so the
// caller can file into it instead of creating a duplicate tree. Exact path
// match wins; a unique leaf-name match is accepted as a fallback.
func matchExistingFolder(segments []string, folders []domain.FolderInfo) *domain.FolderInfo {
	if len(segments) == 0 {
		return nil
	}
	want := strings.ToLower(strings.Join(segments, "/"))
	for i := range folders {
		if strings.ToLower(folders[i].Path) == want {
			return &folders[i]
		}
	}

	leaf := strings.ToLower(segments[len(segments)-1])
	var match *domain.FolderInfo
	for i := range folders {
		if strings.ToLower(folders[i].Name) == leaf {
			if match != nil {
				return nil
			}
			match = &folders[i]
		}
	}
	return match
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package domain

import (
	"errors"
	"fmt"
)

type VaultContext string

const (
	VaultPersonal     VaultContext = "personal"
	VaultOrganization VaultContext = "organization"
)

// AnalyzeRequest is the inbound payload for a single document analysis.
// Exactly one of StorageKey/FileBase64 must carry the document bytes.
type AnalyzeRequest struct {
	StorageKey      string       `json:"s3Key,omitempty"`
	FileBase64      string       `json:"fileBase64,omitempty"`
	FileName        string       `json:"fileName"`
	MimeType        string       `json:"mimeType"`
	VaultContext    VaultContext `json:"vaultContext"`
	PersonalVaultID string       `json:"personalVaultId,omitempty"`
	OrganizationID  string       `json:"organizationId,omitempty"`

	// UserID comes from the caller identity header, never from the body.
	UserID string `json:"-"`
}

func (r AnalyzeRequest) Validate() error {
	if r.FileName == "" || r.MimeType == "" {
		return WrapError(ErrInvalidInput, "validate request", errors.New("fileName and mimeType are required"))
	}
	if r.StorageKey == "" && r.FileBase64 == "" {
		return WrapError(ErrInvalidInput, "validate request", errors.New("either s3Key or fileBase64 is required"))
	}
	switch r.VaultContext {
	case VaultPersonal:
		if r.PersonalVaultID == "" {
			return WrapError(ErrInvalidInput, "validate request", errors.New("personalVaultId is required for personal vault context"))
		}
	case VaultOrganization:
		if r.OrganizationID == "" {
			return WrapError(ErrInvalidInput, "validate request", errors.New("organizationId is required for organization vault context"))
		}
	default:
		return WrapError(ErrInvalidInput, "validate request",
			fmt.Errorf("vaultContext must be %q or %q", VaultPersonal, VaultOrganization))
	}
	return nil
}

// VaultID returns the identifier matching the declared vault context.
func (r AnalyzeRequest) VaultID() string {
	if r.VaultContext == VaultOrganization {
		return r.OrganizationID
	}
	return r.PersonalVaultID
}

type Classification struct {
	Category   string  `json:"category"`
	Subtype    string  `json:"subtype"`
	Confidence float64 `json:"confidence"`
}

type FolderSuggestion struct {
	MatchedExistingFolder *FolderInfo `json:"matchedExistingFolder"`
	PathSegments          []string    `json:"pathSegments"`
	Confidence            float64     `json:"confidence"`
}

// ExtractedMetadata is a closed record of optional fields rather than an open
// map, so the fill-gaps-only merge stays exhaustive.
type ExtractedMetadata struct {
	DocumentDate   string `json:"documentDate,omitempty"`
	PersonName     string `json:"personName,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	DocumentNumber string `json:"documentNumber,omitempty"`
	Vendor         string `json:"vendor,omitempty"`
	Amount         string `json:"amount,omitempty"`
	AccountNumber  string `json:"accountNumber,omitempty"`
	Institution    string `json:"institution,omitempty"`
	InvoiceNumber  string `json:"invoiceNumber,omitempty"`
	RawText        string `json:"rawText,omitempty"`
}

// AnalysisResult is owned by a single pipeline invocation. It is mutated in
// place by the OCR metadata merge, the quality gate cap, the multi-signal
// overwrite and the pass-2 overwrite, in that order.
type AnalysisResult struct {
	Classification       Classification    `json:"classification"`
	SuggestedFilename    string            `json:"suggestedFilename"`
	FolderSuggestion     FolderSuggestion  `json:"folderSuggestion"`
	ExtractedMetadata    ExtractedMetadata `json:"extractedMetadata"`
	ExpirationDate       *string           `json:"expirationDate"`
	ExpirationConfidence float64           `json:"expirationConfidence"`
	DueDate              *string           `json:"dueDate"`
	DueDateConfidence    float64           `json:"dueDateConfidence"`
	ProcessingTimeMs     int64             `json:"processingTimeMs"`
}

type PhotoDetection struct {
	IsPhoto     bool    `json:"isPhoto"`
	Subtype     string  `json:"photoSubtype"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

type OcrQualityTier string

const (
	OcrQualityLow    OcrQualityTier = "low"
	OcrQualityMedium OcrQualityTier = "medium"
	OcrQualityHigh   OcrQualityTier = "high"
)

// QualityAssessment is derived once from the OCR result and the
// category-specific required field set; immutable afterwards.
type QualityAssessment struct {
	Quality           OcrQualityTier `json:"quality"`
	OcrConfidence     float64        `json:"ocrConfidence"`
	HasRequiredFields bool           `json:"hasRequiredFields"`
	Reasons           []string       `json:"reasons,omitempty"`
}

type SimilarityResult struct {
	MatchedCategory  string  `json:"matchedCategory"`
	Similarity       float64 `json:"similarity"`
	ExamplesCompared int     `json:"examplesCompared"`
	AgreesWithAI     bool    `json:"agreesWithAI"`
}

type MultiSignalResult struct {
	FinalConfidence     float64            `json:"finalConfidence"`
	Signals             map[string]float64 `json:"signals"`
	CanAutoFile         bool               `json:"canAutoFile"`
	AutoFileBlockReason string             `json:"autoFileBlockReason,omitempty"`
	WasAdjusted         bool               `json:"wasAdjusted"`
}

type EscalationDecision struct {
	ShouldEscalate bool   `json:"shouldEscalate"`
	Reason         string `json:"reason"`
}

type CategoryCandidate struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// ClassificationRequest is the primary classifier input.
type ClassificationRequest struct {
	DocumentURL     string
	FileName        string
	MimeType        string
	VaultContext    VaultContext
	OcrText         string
	IdentityFields  *IdentityFields
	ExpenseFields   *ExpenseFields
	ExistingFolders []FolderInfo
}

// ReclassificationRequest carries the richer pass-2 prompt inputs.
type ReclassificationRequest struct {
	DocumentURL string
	FileName    string
	MimeType    string
	OcrText     string
	Candidates  []CategoryCandidate
}

type OcrQualityReport struct {
	Quality           OcrQualityTier `json:"quality"`
	OcrConfidence     float64        `json:"ocrConfidence"`
	HasRequiredFields bool           `json:"hasRequiredFields"`
	WasLimited        bool           `json:"wasLimited"`
}

type PhotoReport struct {
	IsPhoto       bool     `json:"isPhoto"`
	PhotoSubtype  string   `json:"photoSubtype"`
	Confidence    float64  `json:"confidence"`
	Description   string   `json:"description"`
	SuggestedTags []string `json:"suggestedTags,omitempty"`
}

// AnalyzeReport is the response envelope for one pipeline invocation.
// The photo short-circuit path fills IsPhoto/PhotoDetection and leaves the
// gating blocks nil; the full path does the opposite.
type AnalyzeReport struct {
	Success        bool               `json:"success"`
	Result         *AnalysisResult    `json:"result"`
	TextractUsed   bool               `json:"textractUsed"`
	PageCount      int                `json:"pageCount"`
	IsPhoto        bool               `json:"isPhoto,omitempty"`
	PhotoDetection *PhotoReport       `json:"photoDetection,omitempty"`
	OcrQuality     *OcrQualityReport  `json:"ocrQuality,omitempty"`
	MultiSignal    *MultiSignalResult `json:"multiSignal,omitempty"`
	Embeddings     *SimilarityResult  `json:"embeddings,omitempty"`
	Pass2Used      bool               `json:"pass2Used"`
}

package openai

import (
	"fmt"
	"strings"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

const maxPromptText = 4000

func buildClassificationPrompt(req domain.ClassificationRequest) string {
	var b strings.Builder

	b.WriteString(`You are a document classifier for a personal document vault.
Return a strict JSON object with keys:
category (string), subtype (string), confidence (number from 0 to 1),
suggestedFilename (string), folderPath (array of strings), folderConfidence (number from 0 to 1),
extractedMetadata (object with optional string keys: documentDate, personName, dateOfBirth, documentNumber, vendor, amount, accountNumber, institution, invoiceNumber),
expirationDate (string, YYYY-MM-DD or empty), expirationConfidence (number),
dueDate (string, YYYY-MM-DD or empty), dueDateConfidence (number).
No markdown, no extra keys.

`)

	fmt.Fprintf(&b, "File name: %s\nMIME type: %s\nVault context: %s\n", req.FileName, req.MimeType, req.VaultContext)

	if len(req.ExistingFolders) > 0 {
		b.WriteString("\nExisting folders (prefer filing into one of these when it fits):\n")
		for _, f := range req.ExistingFolders {
			b.WriteString("- " + f.Path + "\n")
		}
	}

	if req.IdentityFields != nil && !req.IdentityFields.Empty() {
		b.WriteString("\nFields extracted from the identity document:\n")
		writeIfSet(&b, "name", req.IdentityFields.FullName)
		writeIfSet(&b, "documentNumber", req.IdentityFields.DocumentNumber)
		writeIfSet(&b, "dateOfBirth", req.IdentityFields.DateOfBirth)
		writeIfSet(&b, "expirationDate", req.IdentityFields.ExpirationDate)
		writeIfSet(&b, "address", req.IdentityFields.Address)
	}
	if req.ExpenseFields != nil && !req.ExpenseFields.Empty() {
		b.WriteString("\nFields extracted from the expense document:\n")
		writeIfSet(&b, "vendor", req.ExpenseFields.Vendor)
		writeIfSet(&b, "date", req.ExpenseFields.Date)
		writeIfSet(&b, "total", req.ExpenseFields.Total)
		writeIfSet(&b, "subtotal", req.ExpenseFields.Subtotal)
		writeIfSet(&b, "tax", req.ExpenseFields.Tax)
	}

	if req.OcrText != "" {
		snippet := req.OcrText
		if len(snippet) > maxPromptText {
			snippet = snippet[:maxPromptText]
		}
		b.WriteString("\nExtracted document text:\n" + snippet + "\n")
	}

	return b.String()
}

func buildReclassificationPrompt(req domain.ReclassificationRequest) string {
	var b strings.Builder

	b.WriteString(`You are re-checking an uncertain document classification.
Pick the single best category for this document, considering the candidates below.
Return a strict JSON object with keys:
category (string), subtype (string), confidence (number from 0 to 1).
No markdown, no extra keys.

`)

	fmt.Fprintf(&b, "File name: %s\nMIME type: %s\n\nCandidate categories:\n", req.FileName, req.MimeType)
	for _, c := range req.Candidates {
		fmt.Fprintf(&b, "- %s (score %.2f)\n", c.Category, c.Score)
	}

	if req.OcrText != "" {
		snippet := req.OcrText
		if len(snippet) > maxPromptText {
			snippet = snippet[:maxPromptText]
		}
		b.WriteString("\nExtracted document text:\n" + snippet + "\n")
	}

	return b.String()
}

func buildPhotoDetectionPrompt() string {
	return `Decide whether this image is a casual photo or a document.
Return a strict JSON object with keys:
isPhoto (boolean), photoSubtype (one of: selfie, people, pet, landscape, screenshot, food, other),
confidence (number from 0 to 1), description (one short sentence).
Documents, receipts, cards, forms and scans are NOT photos.
No markdown, no extra keys.`
}

func writeIfSet(b *strings.Builder, label, value string) {
	if value != "" {
		b.WriteString("- " + label + ": " + value + "\n")
	}
}

package usecase

import (
	"strings"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

// The two field heuristics are independent pattern extractions, not
// mutually exclusive classifications: a document may satisfy both, either
// or neither, and the pipeline records whatever non-empty fields each
// produces.

func extractStructuredFields(ocr domain.OcrResult) (*domain.IdentityFields, *domain.ExpenseFields) {
	var identity *domain.IdentityFields
	var expense *domain.ExpenseFields

	if id := extractIdentityFields(ocr); !id.Empty() {
		identity = &id
	}
	if exp := extractExpenseFields(ocr); !exp.Empty() {
		expense = &exp
	}
	return identity, expense
}

// extractIdentityFields reads the identity-document field types the OCR
// engine emits (AnalyzeID vocabulary).
func extractIdentityFields(ocr domain.OcrResult) domain.IdentityFields {
	fullName := ocr.Field("FULL_NAME")
	if fullName == "" {
		first := ocr.Field("FIRST_NAME")
		last := ocr.Field("LAST_NAME")
		if first != "" && last != "" {
			fullName = first + " " + last
		}
	}

	documentNumber := ocr.Field("DOCUMENT_NUMBER")
	if documentNumber == "" {
		documentNumber = ocr.Field("ID_NUMBER")
	}

	return domain.IdentityFields{
		FullName:       strings.TrimSpace(fullName),
		DateOfBirth:    ocr.Field("DATE_OF_BIRTH"),
		DocumentNumber: documentNumber,
		ExpirationDate: ocr.Field("EXPIRATION_DATE"),
		Address:        ocr.Field("ADDRESS"),
	}
}

// extractExpenseFields reads the receipt/invoice field types the OCR engine
// emits (AnalyzeExpense vocabulary).
func extractExpenseFields(ocr domain.OcrResult) domain.ExpenseFields {
	return domain.ExpenseFields{
		Vendor:   ocr.Field("VENDOR_NAME"),
		Date:     ocr.Field("INVOICE_RECEIPT_DATE"),
		Total:    ocr.Field("TOTAL"),
		Subtotal: ocr.Field("SUBTOTAL"),
		Tax:      ocr.Field("TAX"),
	}
}

// ocrExpirationConfidence is the fixed trust assigned to an OCR-sourced
// expiration date when the classifier left the field empty.
const ocrExpirationConfidence = 0.85

// mergeOcrMetadata fills classifier gaps from the OCR heuristics. The
// classifier's own value always wins when present; OCR never overwrites.
func mergeOcrMetadata(result *domain.AnalysisResult, identity *domain.IdentityFields, expense *domain.ExpenseFields, rawText string) {
	if identity != nil {
		if result.ExtractedMetadata.PersonName == "" && identity.FullName != "" {
			result.ExtractedMetadata.PersonName = identity.FullName
		}
		if result.ExtractedMetadata.DocumentNumber == "" && identity.DocumentNumber != "" {
			result.ExtractedMetadata.DocumentNumber = identity.DocumentNumber
		}
		if result.ExpirationDate == nil && identity.ExpirationDate != "" {
			// Unparseable OCR dates are dropped, not merged.
			if normalized, ok := domain.NormalizeDate(identity.ExpirationDate); ok {
				result.ExpirationDate = &normalized
				result.ExpirationConfidence = ocrExpirationConfidence
			}
		}
	}

	if expense != nil {
		if result.ExtractedMetadata.Vendor == "" && expense.Vendor != "" {
			result.ExtractedMetadata.Vendor = expense.Vendor
		}
		if result.ExtractedMetadata.Amount == "" && expense.Total != "" {
			result.ExtractedMetadata.Amount = expense.Total
		}
	}

	if result.ExtractedMetadata.RawText == "" && rawText != "" {
		result.ExtractedMetadata.RawText = truncate(rawText, 500)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

package textract

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

func (e *Engine) analyzeID(ctx context.Context, key string) (domain.OcrResult, error) {
	out, err := e.client.AnalyzeID(ctx, &textract.AnalyzeIDInput{
		DocumentPages: []types.Document{*e.document(key)},
	})
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("textract analyze id: %w", err)
	}

	res := domain.OcrResult{PageCount: 1}
	var lines []string
	var sum float64
	var n int
	for _, doc := range out.IdentityDocuments {
		for _, f := range doc.IdentityDocumentFields {
			if f.Type == nil || f.ValueDetection == nil {
				continue
			}
			value := aws.ToString(f.ValueDetection.Text)
			if value == "" {
				continue
			}
			conf := 0.0
			if f.ValueDetection.Confidence != nil {
				conf = float64(*f.ValueDetection.Confidence) / 100
				sum += conf
				n++
			}
			fieldType := aws.ToString(f.Type.Text)
			res.Fields = append(res.Fields, domain.OcrField{
				Type:       fieldType,
				Value:      value,
				Confidence: conf,
			})
			lines = append(lines, fieldType+": "+value)
		}
	}
	res.Text = strings.Join(lines, "\n")
	if n > 0 {
		res.Confidence = sum / float64(n)
	}
	return res, nil
}

func (e *Engine) analyzeExpense(ctx context.Context, key string) (domain.OcrResult, error) {
	out, err := e.client.AnalyzeExpense(ctx, &textract.AnalyzeExpenseInput{
		Document: e.document(key),
	})
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("textract analyze expense: %w", err)
	}

	res := domain.OcrResult{PageCount: 1}
	var lines []string
	var sum float64
	var n int
	for _, doc := range out.ExpenseDocuments {
		for _, f := range doc.SummaryFields {
			if f.Type == nil || f.ValueDetection == nil {
				continue
			}
			value := aws.ToString(f.ValueDetection.Text)
			if value == "" {
				continue
			}
			conf := 0.0
			if f.ValueDetection.Confidence != nil {
				conf = float64(*f.ValueDetection.Confidence) / 100
				sum += conf
				n++
			}
			fieldType := aws.ToString(f.Type.Text)
			res.Fields = append(res.Fields, domain.OcrField{
				Type:       fieldType,
				Value:      value,
				Confidence: conf,
			})
			lines = append(lines, fieldType+": "+value)
		}
	}
	res.Text = strings.Join(lines, "\n")
	if n > 0 {
		res.Confidence = sum / float64(n)
	}
	return res, nil
}

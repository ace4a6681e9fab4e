package textract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

const (
	asyncPollInterval = 2 * time.Second
	asyncMaxPolls     = 30
)

// Engine extracts text and structured fields from objects already uploaded
// to S3. PDFs go through the asynchronous text-detection API, images use the
// synchronous calls.
type Engine struct {
	client *textract.Client
	bucket string
	logger *slog.Logger
}

func New(ctx context.Context, region, bucket string, logger *slog.Logger) (*Engine, error) {
	if bucket == "" {
		return nil, fmt.Errorf("textract source bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Engine{
		client: textract.NewFromConfig(cfg),
		bucket: bucket,
		logger: logger,
	}, nil
}

// Analyze routes the document to the most specific Textract API the file
// name suggests, falling back to plain text detection when a specialized
// call fails or nothing about the name hints at a known document family.
func (e *Engine) Analyze(ctx context.Context, storageKey, mimeType, fileName string) (domain.OcrResult, error) {
	if strings.Contains(strings.ToLower(mimeType), "pdf") {
		return e.detectTextAsync(ctx, storageKey)
	}

	switch routeByFileName(fileName) {
	case routeIdentity:
		res, err := e.analyzeID(ctx, storageKey)
		if err == nil {
			return res, nil
		}
		e.logger.Warn("analyze-id failed, falling back to text detection",
			slog.String("key", storageKey), slog.String("error", err.Error()))
	case routeExpense:
		res, err := e.analyzeExpense(ctx, storageKey)
		if err == nil {
			return res, nil
		}
		e.logger.Warn("analyze-expense failed, falling back to text detection",
			slog.String("key", storageKey), slog.String("error", err.Error()))
	}

	return e.detectText(ctx, storageKey)
}

type route int

const (
	routeText route = iota
	routeIdentity
	routeExpense
)

var identityHints = []string{"license", "licence", "passport", "id_card", "id-card", "idcard", "identity"}
var expenseHints = []string{"invoice", "receipt", "bill", "statement"}

func routeByFileName(fileName string) route {
	name := strings.ToLower(fileName)
	for _, h := range identityHints {
		if strings.Contains(name, h) {
			return routeIdentity
		}
	}
	for _, h := range expenseHints {
		if strings.Contains(name, h) {
			return routeExpense
		}
	}
	return routeText
}

func (e *Engine) document(key string) *types.Document {
	return &types.Document{
		S3Object: &types.S3Object{
			Bucket: aws.String(e.bucket),
			Name:   aws.String(key),
		},
	}
}

func (e *Engine) detectText(ctx context.Context, key string) (domain.OcrResult, error) {
	out, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: e.document(key),
	})
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("textract detect text: %w", err)
	}
	text, conf := joinLines(out.Blocks)
	return domain.OcrResult{Text: text, Confidence: conf, PageCount: 1}, nil
}

func (e *Engine) detectTextAsync(ctx context.Context, key string) (domain.OcrResult, error) {
	start, err := e.client.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(e.bucket),
				Name:   aws.String(key),
			},
		},
	})
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("textract start text detection: %w", err)
	}

	jobID := aws.ToString(start.JobId)
	var blocks []types.Block
	pageCount := 1

	for attempt := 0; attempt < asyncMaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return domain.OcrResult{}, ctx.Err()
		case <-time.After(asyncPollInterval):
		}

		var nextToken *string
		done := false
		for {
			out, err := e.client.GetDocumentTextDetection(ctx, &textract.GetDocumentTextDetectionInput{
				JobId:     aws.String(jobID),
				NextToken: nextToken,
			})
			if err != nil {
				return domain.OcrResult{}, fmt.Errorf("textract get text detection: %w", err)
			}
			switch out.JobStatus {
			case types.JobStatusSucceeded:
				blocks = append(blocks, out.Blocks...)
				if out.DocumentMetadata != nil && out.DocumentMetadata.Pages != nil {
					pageCount = int(*out.DocumentMetadata.Pages)
				}
				if out.NextToken == nil {
					done = true
				}
				nextToken = out.NextToken
			case types.JobStatusFailed:
				return domain.OcrResult{}, fmt.Errorf("textract job %s failed: %s", jobID, aws.ToString(out.StatusMessage))
			default:
				// still in progress, poll again
			}
			if nextToken == nil {
				break
			}
			if out.JobStatus != types.JobStatusSucceeded {
				break
			}
		}
		if done {
			text, conf := joinLines(blocks)
			return domain.OcrResult{Text: text, Confidence: conf, PageCount: pageCount}, nil
		}
	}

	return domain.OcrResult{}, fmt.Errorf("textract job %s did not finish in time", jobID)
}

func joinLines(blocks []types.Block) (string, float64) {
	var lines []string
	var sum float64
	var n int
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeLine {
			continue
		}
		lines = append(lines, aws.ToString(b.Text))
		if b.Confidence != nil {
			sum += float64(*b.Confidence)
			n++
		}
	}
	conf := 0.0
	if n > 0 {
		conf = sum / float64(n) / 100
	}
	return strings.Join(lines, "\n"), conf
}

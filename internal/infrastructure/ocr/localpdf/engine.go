package localpdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/vault-doc-analyzer/internal/core/ports"
)

// Embedded PDF text is exact, but the extractor misses scanned pages and
// layout, so we report it below a perfect score.
const embeddedTextConfidence = 0.95

// Engine extracts embedded text from PDFs stored locally. It stands in for
// the cloud OCR service in mock mode; images come back empty and the
// pipeline degrades the same way it does on an OCR outage.
type Engine struct {
	store  ports.ObjectStore
	logger *slog.Logger
}

func New(store ports.ObjectStore, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

func (e *Engine) Analyze(ctx context.Context, storageKey, mimeType, _ string) (domain.OcrResult, error) {
	if !strings.Contains(strings.ToLower(mimeType), "pdf") {
		e.logger.Debug("local ocr supports only pdf, returning empty result",
			slog.String("key", storageKey), slog.String("mimeType", mimeType))
		return domain.OcrResult{PageCount: 1}, nil
	}

	data, err := e.store.Get(ctx, storageKey)
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("fetch pdf %s: %w", storageKey, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("open pdf %s: %w", storageKey, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("extract pdf text %s: %w", storageKey, err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("read pdf text %s: %w", storageKey, err)
	}

	trimmed := strings.TrimSpace(string(text))
	conf := 0.0
	if trimmed != "" {
		conf = embeddedTextConfidence
	}
	return domain.OcrResult{
		Text:       trimmed,
		Confidence: conf,
		PageCount:  reader.NumPage(),
	}, nil
}

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, apiKey, model, embedModel string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// visionUserMessage pairs the prompt with the document image when a URL is
// available; text-only otherwise.
func visionUserMessage(prompt, documentURL, mimeType string) message {
	if documentURL == "" || !strings.HasPrefix(mimeType, "image/") {
		return message{Role: "user", Content: prompt}
	}
	return message{Role: "user", Content: []contentPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &imageURL{URL: documentURL}},
	}}
}

func (c *Client) chatJSON(ctx context.Context, operation string, messages []message) (string, error) {
	request := map[string]any{
		"model":           c.model,
		"messages":        messages,
		"temperature":     0.1,
		"response_format": map[string]string{"type": "json_object"},
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/v1/chat/completions", request, &response, operation); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai %s: empty choices", operation)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := e.client.postJSON(ctx, "/v1/embeddings", request, &response, "embed"); err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(response.Data))
	for _, d := range response.Data {
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type PhotoDetector struct {
	client *Client
}

func NewPhotoDetector(client *Client) *PhotoDetector {
	return &PhotoDetector{client: client}
}

func (d *PhotoDetector) Detect(ctx context.Context, documentURL, mimeType string) (domain.PhotoDetection, error) {
	respText, err := d.client.chatJSON(ctx, "photo-detect", []message{
		visionUserMessage(buildPhotoDetectionPrompt(), documentURL, mimeType),
	})
	if err != nil {
		return domain.PhotoDetection{}, err
	}

	var result domain.PhotoDetection
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.PhotoDetection{}, fmt.Errorf("parse photo detection json: %w", err)
	}
	return result, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

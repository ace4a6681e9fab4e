package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/vault-doc-analyzer/internal/core/ports"
	"github.com/kirillkom/vault-doc-analyzer/internal/infrastructure/resilience"
)

// globalScope marks reference examples shared across all vaults, as opposed
// to examples a user confirmed inside one vault.
const globalScope = "global"

const compareLimit = 5

// Index compares document text against the reference example corpus stored
// in a qdrant collection. Comparison is advisory: callers treat errors as a
// missing similarity signal, and the circuit breaker keeps a flapping vector
// store from slowing every analysis down.
type Index struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
	guard      *resilience.Guard

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func NewIndex(baseURL, collection string, embedder ports.Embedder, guard *resilience.Guard) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
		guard:      guard,
	}
}

func (i *Index) Compare(ctx context.Context, text, aiCategory, vaultID string) (*domain.SimilarityResult, error) {
	var result *domain.SimilarityResult
	err := i.guard.Do(ctx, "goldset-compare", func(ctx context.Context) error {
		var err error
		result, err = i.compare(ctx, text, aiCategory, vaultID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (i *Index) compare(ctx context.Context, text, aiCategory, vaultID string) (*domain.SimilarityResult, error) {
	vector, err := i.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed document text: %w", err)
	}

	scopes := []string{globalScope}
	if vaultID != "" {
		scopes = append(scopes, vaultID)
	}
	should := make([]map[string]any, 0, len(scopes))
	for _, s := range scopes {
		should = append(should, map[string]any{
			"key":   "scope",
			"match": map[string]any{"value": s},
		})
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        compareLimit,
		"with_payload": true,
		"filter":       map[string]any{"should": should},
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", i.baseURL, i.collection)
	if err := i.doJSON(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}
	if len(searchResp.Result) == 0 {
		return nil, fmt.Errorf("gold set is empty for scope %v", scopes)
	}

	top := searchResp.Result[0]
	matched := getStringPayload(top.Payload, "category")
	return &domain.SimilarityResult{
		MatchedCategory:  matched,
		Similarity:       top.Score,
		ExamplesCompared: len(searchResp.Result),
		AgreesWithAI:     strings.EqualFold(matched, aiCategory),
	}, nil
}

func (i *Index) ensureCollection(ctx context.Context, vectorSize int) error {
	i.ensureMu.Lock()
	if i.ensuredCollection && i.ensuredVectorSize == vectorSize {
		i.ensureMu.Unlock()
		return nil
	}
	i.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", i.baseURL, i.collection)
	req, err := i.newJSONRequest(ctx, http.MethodPut, url, reqBody, "ensure collection")
	if err != nil {
		return err
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		i.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		return formatQdrantHTTPError("ensure collection", resp)
	}
	i.markCollectionEnsured(vectorSize)
	return nil
}

func (i *Index) markCollectionEnsured(vectorSize int) {
	i.ensureMu.Lock()
	defer i.ensureMu.Unlock()
	i.ensuredCollection = true
	i.ensuredVectorSize = vectorSize
}

func (i *Index) newJSONRequest(ctx context.Context, method, url string, payload any, operation string) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (i *Index) doJSON(ctx context.Context, method, url string, payload, out any, operation string) error {
	req, err := i.newJSONRequest(ctx, method, url, payload, operation)
	if err != nil {
		return err
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return formatQdrantHTTPError(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func formatQdrantHTTPError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// seedExample is one reference document in the seed corpus file.
type seedExample struct {
	Category string `yaml:"category"`
	Subtype  string `yaml:"subtype"`
	Text     string `yaml:"text"`
}

type seedFile struct {
	Examples []seedExample `yaml:"examples"`
}

// SeedFromFile loads the reference corpus from a YAML file and upserts it
// into the collection under the global scope. Seeding is idempotent only in
// effect, not in storage: re-running inserts fresh points, so it is meant
// for first boot against an empty collection.
func (i *Index) SeedFromFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed corpus: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse seed corpus: %w", err)
	}
	if len(file.Examples) == 0 {
		return 0, nil
	}

	texts := make([]string, 0, len(file.Examples))
	for _, ex := range file.Examples {
		if ex.Category == "" || ex.Text == "" {
			return 0, fmt.Errorf("seed corpus entry needs both category and text")
		}
		texts = append(texts, ex.Text)
	}

	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed seed corpus: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("seed corpus embeddings mismatch: %d texts, %d vectors", len(texts), len(vectors))
	}

	if err := i.ensureCollection(ctx, len(vectors[0])); err != nil {
		return 0, err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(file.Examples))
	for idx, ex := range file.Examples {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: vectors[idx],
			Payload: map[string]any{
				"category": ex.Category,
				"subtype":  ex.Subtype,
				"text":     ex.Text,
				"scope":    globalScope,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", i.baseURL, i.collection)
	if err := i.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "seed upsert"); err != nil {
		return 0, err
	}
	return len(points), nil
}

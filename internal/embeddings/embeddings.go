// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package embeddings turns chunk text into vectors for the vector sink.
package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/the-hive/segmenter/internal/config"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedText generates an embedding vector for the given text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for several texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimension of the embedding vectors.
	Dimension() int
}

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
	defaultDimension   = 768
)

// NewEmbedder builds the embedder selected by cfg.Provider ("ollama" or "mock").
func NewEmbedder(cfg config.EmbedderConfig) (Embedder, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = defaultDimension
	}

	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		url := cfg.URL
		if url == "" {
			url = defaultOllamaURL
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(url, model, dim), nil
	case "", "mock":
		return NewMockEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", cfg.Provider)
	}
}

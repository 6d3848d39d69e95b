package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/generative-ai-go/genai"

	"multi-industry-rag/internal/config"
)

// Embedder maps text to fixed-dimension vectors. The same implementation
// (and model) must be used for ingestion and query so that vectors stay
// comparable.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GeminiEmbedder produces embeddings via Google Generative AI
// (text-embedding-004 by default).
type GeminiEmbedder struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	maxTries uint
}

func NewGeminiEmbedder(client *genai.Client, cfg *config.Config) *GeminiEmbedder {
	return &GeminiEmbedder{
		client:   client,
		model:    cfg.EmbeddingModel,
		timeout:  time.Duration(cfg.EmbedTimeoutSec) * time.Second,
		maxTries: uint(cfg.MaxRetries),
	}
}

// EmbedText returns the embedding vector for a single text.
func (e *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return backoff.Retry(ctx, func() ([]float32, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		em := e.client.EmbeddingModel(e.model)
		resp, err := em.EmbedContent(attemptCtx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, backoff.Permanent(fmt.Errorf("no embedding returned for text"))
		}
		return resp.Embedding.Values, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(e.maxTries))
}

// EmbedTexts embeds a batch of texts in one API call, preserving order.
func (e *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	return backoff.Retry(ctx, func() ([][]float32, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		em := e.client.EmbeddingModel(e.model)
		batch := em.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}

		resp, err := em.BatchEmbedContents(attemptCtx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, backoff.Permanent(fmt.Errorf("embedding count mismatch: got %d, want %d",
				len(resp.Embeddings), len(texts)))
		}

		vectors := make([][]float32, len(texts))
		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, backoff.Permanent(fmt.Errorf("empty embedding at position %d", i))
			}
			vectors[i] = emb.Values
		}
		return vectors, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(e.maxTries))
}

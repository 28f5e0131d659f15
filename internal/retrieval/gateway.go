// Package retrieval fronts the external embedder and the nearest-neighbor
// index behind embed and search operations, applying dimensionality
// reduction so native embedder vectors fit the index width.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	cache "github.com/campus-agent/backend/internal/cache/redis"
	"github.com/campus-agent/backend/internal/metrics"
	"github.com/campus-agent/backend/internal/vector/milvus"
	"github.com/campus-agent/backend/internal/vector/reduce"
	"github.com/campus-agent/backend/pkg/logger"
	"github.com/campus-agent/backend/pkg/utils"
)

const embeddingCacheTTL = 24 * time.Hour

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.SearchResult, error)
}

type Gateway struct {
	embedder  Embedder
	searcher  Searcher
	cache     *cache.Client
	targetDim int
}

// NewGateway wires the gateway. The cache is optional; pass nil to embed on
// every call.
func NewGateway(embedder Embedder, searcher Searcher, embCache *cache.Client, targetDim int) *Gateway {
	return &Gateway{
		embedder:  embedder,
		searcher:  searcher,
		cache:     embCache,
		targetDim: targetDim,
	}
}

// Embed returns the text's embedding reduced to the index width. External
// embedder failures propagate; cache failures are logged and ignored.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	textHash := utils.HashString(text)

	if g.cache != nil {
		cached, found, err := g.cache.GetEmbedding(ctx, textHash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		} else if found {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	embedding, err := g.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	if len(embedding) > g.targetDim {
		embedding, err = reduce.Reduce(embedding, g.targetDim)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce embedding: %w", err)
		}
	}

	if g.cache != nil {
		if err := g.cache.SetEmbedding(ctx, textHash, embedding, embeddingCacheTTL); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return embedding, nil
}

// Search delegates to the nearest-neighbor index.
func (g *Gateway) Search(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error) {
	return g.searcher.Search(ctx, embedding, topK)
}

// Retrieve embeds the question, searches the top-K nearest chunks, and joins
// their text fields into one grounding context block.
func (g *Gateway) Retrieve(ctx context.Context, question string, topK int) (string, error) {
	embedding, err := g.Embed(ctx, question)
	if err != nil {
		return "", err
	}

	results, err := g.Search(ctx, embedding, topK)
	if err != nil {
		return "", fmt.Errorf("failed to search index: %w", err)
	}

	contexts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Text != "" {
			contexts = append(contexts, r.Text)
		}
	}

	logger.Debug("Context retrieved",
		zap.Int("topK", topK),
		zap.Int("chunks", len(contexts)),
	)

	return strings.Join(contexts, "\n\n"), nil
}

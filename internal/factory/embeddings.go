package factory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kennyhq/kenny-memory/internal/config"
	emb "github.com/kennyhq/kenny-memory/internal/embeddings"
	"github.com/kennyhq/kenny-memory/internal/embeddings/ollama"
)

// NewEmbeddingProviders creates the turn and memory embedding providers.
// The two models are intentionally distinct; their vector spaces never mix.
func NewEmbeddingProviders(ctx context.Context, cfg *config.Config, log zerolog.Logger) (turn, memory emb.EmbeddingProvider) {
	switch cfg.EmbedProvider {
	case "", "ollama":
	default:
		log.Warn().Str("provider", cfg.EmbedProvider).Msg("unknown embedding provider; using ollama")
	}
	turnProvider := ollama.New(cfg.OllamaURL, cfg.TurnEmbedModel)
	memoryProvider := ollama.New(cfg.OllamaURL, cfg.MemoryEmbedModel)

	// Async warmup; startup does not block on the embedding daemon.
	go warmup(ctx, log, turnProvider, cfg.TurnEmbedModel)
	go warmup(ctx, log, memoryProvider, cfg.MemoryEmbedModel)

	return turnProvider, memoryProvider
}

func warmup(ctx context.Context, log zerolog.Logger, p emb.EmbeddingProvider, model string) {
	warmupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if vec, err := p.Embed(warmupCtx, "factory-warmup-check"); err != nil || len(vec) == 0 {
		log.Warn().Err(err).Str("model", model).Msg("embedding provider warmup failed")
	} else {
		log.Debug().Str("model", model).Int("dims", len(vec)).Msg("embedding provider warmup completed")
	}
}

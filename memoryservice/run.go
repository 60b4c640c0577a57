// Package memoryservice wires configuration, the store, the embedders and
// the HTTP transport into a runnable service.
package memoryservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kennyhq/kenny-memory/internal/api"
	"github.com/kennyhq/kenny-memory/internal/config"
	emb "github.com/kennyhq/kenny-memory/internal/embeddings"
	"github.com/kennyhq/kenny-memory/internal/factory"
	"github.com/kennyhq/kenny-memory/internal/health"
	"github.com/kennyhq/kenny-memory/internal/logger"
	"github.com/kennyhq/kenny-memory/internal/services"
	"github.com/kennyhq/kenny-memory/internal/sessioncache"
	"github.com/kennyhq/kenny-memory/internal/store"
)

// Run starts the memory service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("memory-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("embed_provider", cfg.EmbedProvider).
		Str("turn_embed_model", cfg.TurnEmbedModel).
		Str("memory_embed_model", cfg.MemoryEmbedModel).
		Msg("Memory service starting")

	// Cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store unavailable")
		return err
	}
	turnEmb, memEmb := factory.NewEmbeddingProviders(ctx, cfg, log)

	sessions, err := sessioncache.New(cfg.SessionCacheSize, cfg.SessionCacheTTL())
	if err != nil {
		log.Error().Stack().Err(err).Msg("Session cache unavailable")
		return err
	}
	defer sessions.Close()

	router := api.NewRouter(api.RouterDeps{
		Conversations:   services.NewConversationService(st, sessions, turnEmb),
		Memories:        services.NewMemoryService(st, memEmb),
		Patterns:        services.NewPatternService(st),
		Analytics:       services.NewAnalyticsService(st),
		Retention:       services.NewRetentionService(st, sessions, log),
		DefaultSweepAge: cfg.RetentionAge(),
	})

	storeHealth := startHealthCheckers(ctx, cfg, log, st, turnEmb, memEmb)

	// Block startup until the store reports healthy; fail fast otherwise.
	// The embedders are not startup-critical: callers may always supply
	// their own vectors, so an unreachable embedding daemon only degrades
	// search-by-text and keeps /api/health reporting unhealthy.
	if err := waitUntilHealthy(ctx, cfg, storeHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// startHealthCheckers starts component checkers and the service-level
// aggregator, binds the aggregate to /api/health, and returns the store
// checker for the startup gate.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, turnEmb, memEmb emb.EmbeddingProvider) *store.StoreHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	var checkers []health.HealthChecker

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	checkers = append(checkers, storeChecker)

	turnChecker := emb.NewProviderHealthChecker(turnEmb, log, probeTimeout)
	go turnChecker.Start(ctx, interval)
	checkers = append(checkers, turnChecker)

	memChecker := emb.NewProviderHealthChecker(memEmb, log, probeTimeout)
	go memChecker.Start(ctx, interval)
	checkers = append(checkers, memChecker)

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	api.BindServiceHealth(svcHealth.IsHealthy)
	return storeChecker
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// healthProbe is the readiness signal waitUntilHealthy polls.
type healthProbe interface {
	IsHealthy() bool
}

// waitUntilHealthy blocks until the probe reports healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, probe healthProbe) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if probe.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

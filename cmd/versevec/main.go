package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/openscripture/versevec/internal/config"
	"github.com/openscripture/versevec/internal/db"
	dbRedis "github.com/openscripture/versevec/internal/db/redis"
	"github.com/openscripture/versevec/internal/domain"
	logpkg "github.com/openscripture/versevec/internal/logger"
	"github.com/openscripture/versevec/internal/metrics"
	"github.com/openscripture/versevec/internal/registry"
	"github.com/openscripture/versevec/internal/repository/embcache"
	searchrepo "github.com/openscripture/versevec/internal/repository/search"
	verserepo "github.com/openscripture/versevec/internal/repository/verse"
	chiTransport "github.com/openscripture/versevec/internal/transport/chi"
	openaiEmb "github.com/openscripture/versevec/internal/transport/openai"
	"github.com/openscripture/versevec/internal/transport/ws"
	healthuc "github.com/openscripture/versevec/internal/usecase/health"
	searchuc "github.com/openscripture/versevec/internal/usecase/search"
	"github.com/openscripture/versevec/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting versevec API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Redis and Valkey speak the same protocol; the driver switch is kept
	// so configs stay explicit about which one they target.
	var store db.Store
	switch cfg.Database.Driver {
	case "valkey", "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Database.Addrs,
			Password:    cfg.Database.Password,
			MaxSessions: cfg.Database.MaxSessions,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		// The registry serves its fallback corpora until the store comes
		// back, so an unreachable store delays nothing but searches.
		logger.Warn("Store not ready, continuing with degraded service", zap.Error(err))
	} else {
		logger.Info("Connected to store")
	}

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	if cfg.Embedding.APIKey == "" {
		logger.Warn("Embedding API key is empty, searches will fail until one is set")
	}
	queryEmbedder := buildEmbedder(cfg.Embedding, store, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	corpusRegistry := registry.New(store, registry.Config{
		TTL:       time.Duration(cfg.Registry.TTLSec) * time.Second,
		AllowList: cfg.Registry.Corpora,
		Fallback:  cfg.Registry.Fallback,
	}, logger)

	searchSvc := searchuc.New(
		store,
		corpusRegistry,
		queryEmbedder,
		searchrepo.New(),
		verserepo.New(),
		logger,
	)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(queryEmbedder))

	server := chiTransport.NewServer(searchSvc, corpusRegistry, healthSvc, cfg.Search.DefaultCorpus, logger)
	sessionHandler := ws.NewHandler(store, searchSvc, cfg.Search.DefaultCorpus, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)
	r.Method(http.MethodGet, "/semantic-search/session", sessionHandler)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction
func buildEmbedder(cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.CacheTTLSec > 0 {
		embedder = embcache.New(
			base, store,
			time.Duration(cfg.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	// Instruction prefix goes outermost so the cache key includes it.
	if cfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}

	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":  "internal_error",
						"error": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request.
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/seekwell/seekwell/internal/ai"
	"github.com/seekwell/seekwell/internal/chunker"
	"github.com/seekwell/seekwell/internal/config"
	"github.com/seekwell/seekwell/internal/db"
	"github.com/seekwell/seekwell/internal/embedcache"
	"github.com/seekwell/seekwell/internal/handler"
	"github.com/seekwell/seekwell/internal/job"
	"github.com/seekwell/seekwell/internal/middleware"
	"github.com/seekwell/seekwell/internal/repo"
	"github.com/seekwell/seekwell/internal/schedule"
	"github.com/seekwell/seekwell/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "seekwell",
		Short: "seekwell retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run seekwell server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model),
	)

	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	embeddingRepo := repo.NewEmbeddingRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(aiProvider, cfg.AI.Model)
	embedTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second

	cache := embedcache.New(
		cacheRepo,
		cfg.Cache.LRUSize,
		time.Duration(cfg.Cache.LRUTTLMinutes)*time.Minute,
	)
	splitter := chunker.New(chunker.Options{
		MinTokens: cfg.Chunking.MinTokens,
		MaxTokens: cfg.Chunking.MaxTokens,
	})

	ingestService := service.NewIngestService(
		docRepo, chunkRepo, embeddingRepo,
		cache, embedder, splitter,
		embedTimeout, cfg.AI.EmbedConcurrency,
	)
	searchService := service.NewSearchService(chunkRepo, cache, embedder, embedTimeout, cfg.Search.MaxK, cfg.Search.DefaultAlpha)

	deps := handler.RouterDeps{
		Documents:    handler.NewDocumentHandler(ingestService),
		Search:       handler.NewSearchHandler(searchService, cfg.Search.DefaultK),
		JWTSecret:    []byte(cfg.JWTSecret),
		IngestWindow: time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	retryJob := job.NewEmbeddingRetryJob(chunkRepo, embeddingRepo, docRepo, cache, embedder, cfg.Jobs.RetryBatchSize)
	if err := scheduler.AddJob(retryJob, cfg.Jobs.EmbeddingRetrySpec); err != nil {
		return fmt.Errorf("schedule embedding retry: %w", err)
	}
	cleanupJob := job.NewCacheCleanupJob(cacheRepo, cfg.Cache.RetentionDays)
	if err := scheduler.AddJob(cleanupJob, cfg.Jobs.CacheCleanupSpec); err != nil {
		return fmt.Errorf("schedule cache cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

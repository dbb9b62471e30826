// Package main 混合查询服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/joho/godotenv"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/application/hybridquery"
	"ufdr-insight-api/internal/application/report"
	"ufdr-insight-api/internal/config"
	"ufdr-insight-api/internal/infrastructure/embedding"
	"ufdr-insight-api/internal/infrastructure/llm"
	"ufdr-insight-api/internal/infrastructure/persistence/milvus"
	"ufdr-insight-api/internal/infrastructure/persistence/neo4j"
	"ufdr-insight-api/internal/infrastructure/persistence/postgres"
	"ufdr-insight-api/internal/infrastructure/persistence/redis"
	"ufdr-insight-api/internal/interfaces/http/handler"
	"ufdr-insight-api/internal/interfaces/http/middleware"
	"ufdr-insight-api/internal/interfaces/http/router"
	einoobs "ufdr-insight-api/internal/observability/eino"
	"ufdr-insight-api/pkg/logger"
	"ufdr-insight-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting query-svc",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 初始化 Eino 全局 callbacks（追踪/Token 指标）
	einoobs.Init()

	// 存储客户端。三个证据库都参与案件开通，缺一不可。
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to connect postgres", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", err)
	}
	defer redisClient.Close()

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to connect milvus", err)
	}
	defer milvusClient.Close()

	neo4jClient, err := neo4j.NewClient(ctx, &cfg.Graph.Neo4j)
	if err != nil {
		logger.Fatal(ctx, "failed to connect neo4j", err)
	}
	defer neo4jClient.Close(ctx)

	// 案件登记表
	caseRepo := postgres.NewCaseRepo(pgClient)
	if err := caseRepo.Migrate(); err != nil {
		logger.Fatal(ctx, "failed to migrate case registry", err)
	}

	// 三路存储仓库
	schemaManager := postgres.NewSchemaManager(pgClient)
	evidenceRepo := postgres.NewEvidenceRepo(pgClient)
	vectorRepo := milvus.NewRepository(milvusClient, &cfg.Vector.Milvus, cfg.Embedding.Dimension)
	graphRepo := neo4j.NewRepository(neo4jClient)
	queryCache := redis.NewQueryCache(redisClient)

	// Embedding 不可用时混合查询自动降级，不拦截启动
	var embedder einoembedding.Embedder
	if e, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding); err != nil {
		log.Warn("embedder unavailable, semantic retrieval degraded", "error", err)
	} else {
		embedder = e
	}

	llmFactory := llm.NewEinoFactory(cfg)
	narrator := llm.NewNarrator(llmFactory, &cfg.LLM)

	// 应用服务
	registry := casespace.NewRegistry(caseRepo, schemaManager, vectorRepo, graphRepo)
	coordinator := hybridquery.NewCoordinator(evidenceRepo, vectorRepo, graphRepo, &cfg.Query)
	queryService := hybridquery.NewService(registry, coordinator, embedder, narrator, queryCache, &cfg.Query)
	reportGenerator := report.NewGenerator(registry, evidenceRepo, graphRepo, narrator)

	// HTTP 层
	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(pgClient, redisClient, milvusClient, neo4jClient),
		Case:   handler.NewCaseHandler(registry, evidenceRepo, queryCache),
		Query:  handler.NewQueryHandler(queryService),
		Report: handler.NewReportHandler(reportGenerator),
	}
	rateLimit := middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
		Enabled:           cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: cfg.Security.RateLimit.RequestsPerSecond,
		Burst:             cfg.Security.RateLimit.Burst,
	}, redisClient.Redis())

	r := router.New(cfg, handlers, rateLimit)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"sam-assistant/internal/ai"
	"sam-assistant/internal/app"
	"sam-assistant/internal/cache"
	"sam-assistant/internal/config"
	"sam-assistant/internal/pkg/logger"
	"sam-assistant/internal/platform/database"
	rabbitmqClient "sam-assistant/internal/platform/rabbitmq"
	redisClient "sam-assistant/internal/platform/redis"
	"sam-assistant/internal/repository"
	"sam-assistant/internal/scrape"
	"sam-assistant/internal/worker"
)

type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	MQConn    *amqp.Connection
	JobWorker *worker.ScrapeJobWorker
	Services  *Services

	StartedAt time.Time
}

// Services are the use cases the HTTP surface and the job worker drive.
type Services struct {
	Auth      *app.AuthService
	Scraper   *app.ScraperService
	Embedding *app.EmbeddingService
	Retrieval *app.RetrievalService
	Status    *app.StatusService
	Chat      *app.ChatService
	Jobs      *app.ScrapeJobService
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger.Setup(cfg.App.Env)

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, cfg.LLM.EmbeddingDimensions); err != nil {
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	publisher := rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.ScrapeJobQueue)
	services, err := NewServices(cfg, db, redisCli, publisher)
	if err != nil {
		return nil, err
	}

	jobWorker := worker.NewScrapeJobWorker(mqConn, services.Jobs, cfg.RabbitMQ.ScrapeJobQueue)
	if err := jobWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start scrape job worker failed: %w", err)
	}

	log.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("scrape_provider", cfg.Scrape.Provider).
		Str("embedding_model", cfg.LLM.EmbeddingModel).
		Msg("application bootstrapped")

	return &App{
		Config:    cfg,
		DB:        db,
		Redis:     redisCli,
		MQConn:    mqConn,
		JobWorker: jobWorker,
		Services:  services,
		StartedAt: time.Now(),
	}, nil
}

// NewServices wires the use cases. redisCli and publisher may be nil, which
// disables caching and background jobs respectively.
func NewServices(cfg *config.Config, db *gorm.DB, redisCli *redis.Client, publisher app.JobPublisher) (*Services, error) {
	pageScraper, err := scrape.New(cfg.Scrape)
	if err != nil {
		return nil, err
	}

	chunkRepo := repository.NewContentChunkRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	llmClient := ai.NewOpenAICompatibleClient()
	embedder := ai.NewEmbedder(llmClient, ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	})

	var (
		queryCache app.QueryEmbeddingCache
		history    app.ConversationStore
	)
	if redisCli != nil {
		queryCache = cache.NewEmbeddingCache(redisCli, seconds(cfg.RAG.QueryCacheTTLSeconds))
		history = cache.NewConversationCache(redisCli, seconds(cfg.Redis.HistoryTTLSeconds), cfg.LLM.MaxHistory)
	}

	scraperSvc := app.NewScraperService(
		pageScraper,
		chunkRepo,
		app.NewChunkerFromConfig(cfg.RAG),
		cfg.RAG.MinContentChars,
		time.Duration(cfg.Scrape.DelayMS)*time.Millisecond,
	)
	embeddingSvc := app.NewEmbeddingService(
		chunkRepo,
		embedder,
		time.Duration(cfg.RAG.EmbedDelayMS)*time.Millisecond,
		cfg.RAG.EmbedBatchSize,
	)
	retrievalSvc := app.NewRetrievalService(chunkRepo, embedder, queryCache, cfg.RAG.MatchCount, cfg.RAG.MatchThreshold)

	return &Services{
		Auth: app.NewAuthService(
			operatorRepo,
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
			cfg.Auth.AllowRegister,
		),
		Scraper:   scraperSvc,
		Embedding: embeddingSvc,
		Retrieval: retrievalSvc,
		Status:    app.NewStatusService(chunkRepo),
		Chat: app.NewChatService(
			retrievalSvc,
			llmClient,
			history,
			ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model},
			cfg.Assistant,
			cfg.RAG.ContextChunks,
			cfg.LLM.MaxHistory,
		),
		Jobs: app.NewScrapeJobService(publisher, scraperSvc, embeddingSvc),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.JobWorker != nil {
		a.JobWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

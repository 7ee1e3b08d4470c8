package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"sam-assistant/internal/bootstrap"
	"sam-assistant/internal/config"
	"sam-assistant/internal/platform/rabbitmq"
	"sam-assistant/internal/transport/http/handler"
	"sam-assistant/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	health := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, map[string]handler.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := app.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		},
		"rabbitmq": func(ctx context.Context) error {
			return rabbitmq.Ping(ctx, app.MQConn)
		},
	})
	return newEngine(app.Config, app.Services, health)
}

func newEngine(cfg *config.Config, svc *bootstrap.Services, health *handler.HealthHandler) *gin.Engine {
	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())

	authHandler := handler.NewAuthHandler(svc.Auth)
	adminHandler := handler.NewAdminHandler(svc.Scraper, svc.Embedding, svc.Retrieval, svc.Status, svc.Jobs)
	chatHandler := handler.NewChatHandler(svc.Chat)

	router.GET("/healthz", health.Check)

	v1 := router.Group("/api/v1")
	v1.GET("/rag/status", adminHandler.Status)
	v1.POST("/chat", chatHandler.SendMessage)

	authGroup := v1.Group("/auth")
	if cfg.Auth.AllowRegister {
		authGroup.POST("/register", authHandler.Register)
	}
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(cfg.Auth.JWTSecret), authHandler.Me)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(middleware.AuthJWT(cfg.Auth.JWTSecret))
	adminGroup.POST("/scrape", adminHandler.Scrape)
	adminGroup.POST("/scrape/jobs", adminHandler.EnqueueScrape)
	adminGroup.POST("/embeddings", adminHandler.GenerateEmbeddings)
	adminGroup.GET("/status", adminHandler.Status)
	adminGroup.POST("/search", adminHandler.Search)
	adminGroup.DELETE("/content", adminHandler.ClearContent)
	adminGroup.POST("/documents/pdf", adminHandler.UploadPDF)

	return router
}

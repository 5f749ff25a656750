// Package main runs the membership portal HTTP server with the voting API,
// the live vote feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/guild-portal/backend/config"
	"github.com/guild-portal/backend/internal/auth"
	"github.com/guild-portal/backend/internal/middleware"
	"github.com/guild-portal/backend/internal/models"
	"github.com/guild-portal/backend/internal/realtime"
	"github.com/guild-portal/backend/internal/voterhash"
	"github.com/guild-portal/backend/internal/votes"
	"github.com/guild-portal/backend/pkg/database"
	"github.com/guild-portal/backend/pkg/redis"
	"github.com/guild-portal/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: time.Hour,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis only fans lifecycle events out across instances; without it each
	// instance serves its own live clients.
	var (
		redisPub realtime.RedisPublisher
		redisSub realtime.RedisSubscriber
	)
	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable, live feed is local to this instance", zap.Error(err))
		} else {
			defer rdb.Close()
			bridge := realtime.NewRedisPubSub(rdb.Client, logger)
			redisPub, redisSub = bridge, bridge
		}
	}
	hub := realtime.NewHub(logger, redisPub, redisSub)

	hasher, err := voterhash.New(cfg.Voting.VoterHashSecret)
	if err != nil {
		logger.Fatal("voter hash", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Accounts
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, cfg.JWT.AdminEmails, logger)

	// Voting
	voteRepo := votes.NewRepository(pool)
	voteService := votes.NewService(voteRepo, hasher, hub,
		time.Duration(cfg.Voting.RequestTimeoutSec)*time.Second, logger)
	voteHandler := votes.NewHandler(voteService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "live_clients": hub.ClientCount()})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public with optional identity
	optional := router.Group("")
	optional.Use(middleware.OptionalJWT(jwtService))
	{
		optional.GET("/votes/active", voteHandler.Active)
		optional.GET("/ws/votes", realtime.ServeWs(hub, cfg.Server.CORSAllowedOrigins, logger))
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/votes/questions/:id/ballot", voteHandler.Cast)

		admin := api.Group("")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/accounts", authHandler.List)

			admin.POST("/votes/questions", voteHandler.Create)
			admin.GET("/votes/questions/:id", voteHandler.Get)
			admin.DELETE("/votes/questions/:id", voteHandler.Delete)
			admin.POST("/votes/questions/:id/activate", voteHandler.Activate)
			admin.POST("/votes/questions/:id/close", voteHandler.Close)
			admin.PUT("/votes/questions/:id/eligibility", voteHandler.SetEligibility)
			admin.GET("/votes/questions/:id/eligibility", voteHandler.GetEligibility)
			admin.GET("/votes/questions/:id/results", voteHandler.Results)
			admin.GET("/votes/history", voteHandler.History)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

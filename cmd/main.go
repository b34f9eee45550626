package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/engine"
	"anonchat/backend/internal/ledger"
	"anonchat/backend/internal/media"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/relay"
	"anonchat/backend/internal/storage"
	"anonchat/backend/internal/telegram"
)

// setupDatabase connects to PostgreSQL and runs migrations.
func setupDatabase(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Dialog{},
		&models.QueueEntry{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// setupRedis connects to Redis; failing to reach the state store at
// startup is the one fatal condition.
func setupRedis(cfg *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}
	return rdb
}

func main() {
	log.Println("Starting AnonChat Backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 1. State store (pluggable backend) + optional database.
	var db *gorm.DB
	if cfg.DatabaseDSN != "" {
		db = setupDatabase(cfg.DatabaseDSN)
	}

	var store storage.StateStore
	var users storage.UserDirectory
	switch cfg.StateBackend {
	case config.BackendRedis:
		store = storage.NewRedisStore(setupRedis(cfg), cfg.QueueTTL, cfg.PairTTL)
	case config.BackendPostgres:
		gs := storage.NewGormStore(db, cfg.QueueTTL)
		store = gs
		users = gs
	default:
		store = storage.NewMemoryStore(cfg.QueueTTL, cfg.PairTTL)
	}
	log.Printf("State store initialized (%s backend)", cfg.StateBackend)

	ctx := context.Background()

	// 2. Durable dialog ledger (best-effort, async).
	var led engine.Ledger
	if cfg.LedgerEnabled {
		svc := ledger.NewService(db)
		go svc.Run(ctx)
		led = svc
	}

	// 3. Matchmaking engine + relay dispatcher.
	eng := engine.New(store, led)

	mediaStore, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		log.Fatalf("Failed to prepare media storage: %v", err)
	}
	dispatcher := relay.NewDispatcher(eng, mediaStore)

	// 4. Telegram transport.
	if cfg.TelegramToken != "" {
		botService, err := telegram.NewBotService(cfg.TelegramToken, eng, dispatcher, users)
		if err != nil {
			log.Fatalf("Failed to start Telegram bot: %v", err)
		}
		go botService.Run(ctx)
	} else {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, Telegram transport disabled")
	}

	// 5. HTTP surface: health, stats, metrics and the WebSocket
	// transport.
	r := gin.Default()
	h := handler.NewHandler(eng, dispatcher, store, cfg.JWTSecret)

	r.GET("/healthz", h.Healthz)
	r.GET("/stats", h.Stats)
	r.GET("/metrics", h.Metrics)
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
	log.Fatal(server.ListenAndServe())
}

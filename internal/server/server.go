package server

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ledger-service/internal/access"
	"ledger-service/internal/config"
	"ledger-service/internal/events"
	eventskafka "ledger-service/internal/events/kafka"
	rh "ledger-service/internal/handler/rest"
	wsh "ledger-service/internal/handler/websocket"
	"ledger-service/internal/repository"
	"ledger-service/internal/repository/memory"
	mongostore "ledger-service/internal/repository/mongo"
	"ledger-service/internal/repository/postgres"
	"ledger-service/internal/router"
	"ledger-service/internal/usecase/ledger"
)

func NewServer(cfg config.AppConfig) *http.Server {
	// --- Init Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	// --- Init Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	log.Println("[Redis] Connected successfully")

	// --- Init Ledger Store ---
	var (
		store     repository.LedgerStore
		directory repository.PartyDirectory
	)
	switch cfg.StoreBackend {
	case "memory":
		store = memory.NewStore()
		directory = memory.NewDirectory()
		log.Println("[Store] Using in-memory ledger store")
	case "mongo":
		db, err := config.ConnectMongo(cfg)
		if err != nil {
			log.Fatalf("failed to connect Mongo: %v", err)
		}
		ms := mongostore.NewStore(db, logger)
		if err := ms.Migrate(context.Background()); err != nil {
			log.Fatalf("failed to migrate Mongo indexes: %v", err)
		}
		store = ms
		directory = mongostore.NewDirectory(db)
	default:
		pool, err := config.ConnectDB()
		if err != nil {
			log.Fatalf("failed to connect DB: %v", err)
		}
		store = postgres.NewStore(pool, logger)
		directory = postgres.NewDirectory(pool)
	}

	// --- Init Event Publisher (optional) ---
	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = eventskafka.NewPublisher(cfg.KafkaBrokers)
		log.Println("[Kafka] Event publisher enabled")
	}

	// --- Init Core ---
	guard := access.NewGuard(store, logger)
	hub := wsh.NewHub(logger)
	svc := ledger.NewService(store, guard, directory, hub, publisher, logger)

	// --- Init Handlers ---
	ledgerHandler := rh.NewLedgerHandler(svc, logger)
	wsHandler := wsh.NewHandler(hub, svc, logger)

	// --- Router ---
	r := chi.NewRouter()
	router.SetupRoutes(r, ledgerHandler, wsHandler, rdb, cfg.JWTSecret, logger)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
}

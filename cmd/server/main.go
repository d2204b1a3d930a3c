package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/krish/fieldserve/config"
	"github.com/krish/fieldserve/internal/handler"
	"github.com/krish/fieldserve/internal/middleware"
	"github.com/krish/fieldserve/internal/notify"
	"github.com/krish/fieldserve/internal/repository"
	"github.com/krish/fieldserve/internal/service"
	"github.com/krish/fieldserve/pkg/cache"
	"github.com/krish/fieldserve/pkg/db"
	"github.com/krish/fieldserve/pkg/mq"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ── Connect to RabbitMQ ─────────────────────────────
	rabbit, err := mq.NewRabbitMQ(cfg.Rabbit)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer rabbit.Close()
	log.Println("✓ RabbitMQ connected")

	publisher, err := notify.NewAMQPPublisher(rabbit.Chan, cfg.Rabbit.Exchange)
	if err != nil {
		log.Fatalf("failed to declare notification exchange: %v", err)
	}

	// ── Initialize layers ───────────────────────────────
	requestRepo := repository.NewRequestRepository(pgPool)
	quoteRepo := repository.NewQuoteRepository(pgPool)
	operatorRepo := repository.NewOperatorRepository(pgPool)
	pricingRepo := repository.NewPricingRepository(pgPool, redisClient)
	eventRepo := repository.NewEventRepository(pgPool)

	matchingSvc := service.NewMatchingService(requestRepo, operatorRepo)
	quotingSvc := service.NewQuotingService(pricingRepo)
	lifecycleSvc := service.NewLifecycleService(
		requestRepo, quoteRepo, operatorRepo, eventRepo, quotingSvc, publisher)

	matchHandler := handler.NewMatchHandler(matchingSvc)
	requestHandler := handler.NewRequestHandler(requestRepo, eventRepo, lifecycleSvc)
	quoteHandler := handler.NewQuoteHandler(requestRepo, quoteRepo, operatorRepo, quotingSvc, lifecycleSvc)
	pricingHandler := handler.NewPricingHandler(pricingRepo)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()

	// Health check endpoint.
	router.HandleFunc("/health", healthHandler(pgPool, redisClient, rabbit)).Methods(http.MethodGet)

	// API v1 routes.
	api := router.PathPrefix("/api/v1").Subrouter()
	// Service request CRUD and lifecycle
	api.HandleFunc("/requests", requestHandler.CreateRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id}", requestHandler.GetRequest).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}/events", requestHandler.GetEvents).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}/start", requestHandler.StartWork).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id}/complete", requestHandler.CompleteWork).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id}/cancel", requestHandler.Cancel).Methods(http.MethodPost)
	// Matching
	api.HandleFunc("/requests/{id}/operators", matchHandler.EligibleOperators).Methods(http.MethodGet)
	// Quoting
	api.HandleFunc("/requests/{id}/quotes", quoteHandler.SubmitQuote).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id}/quotes", quoteHandler.ListQuotes).Methods(http.MethodGet)
	api.HandleFunc("/quotes/preview", quoteHandler.PreviewQuote).Methods(http.MethodPost)
	api.HandleFunc("/quotes/{id}/accept", quoteHandler.AcceptQuote).Methods(http.MethodPost)
	api.HandleFunc("/quotes/{id}/withdraw", quoteHandler.WithdrawQuote).Methods(http.MethodPost)
	api.HandleFunc("/quotes/{id}/decline", quoteHandler.DeclineQuote).Methods(http.MethodPost)
	// Operator pricing
	api.HandleFunc("/operators/{id}/pricing", pricingHandler.UpsertPricing).Methods(http.MethodPut)

	// Middleware chain: CORS outermost, then request logging, then recovery.
	h := middleware.CORS(middleware.RequestLogger(middleware.Recoverer(router)))

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG, Redis, and
// RabbitMQ connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client, rabbit *mq.RabbitMQ) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		if err := rabbit.HealthCheck(); err != nil {
			resp.Status = "degraded"
			resp.Services["rabbitmq"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["rabbitmq"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}

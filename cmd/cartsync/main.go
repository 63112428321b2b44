package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shopez/cartsync/internal/cache"
	"github.com/shopez/cartsync/internal/config"
	"github.com/shopez/cartsync/internal/consumer"
	h "github.com/shopez/cartsync/internal/http"
	"github.com/shopez/cartsync/internal/remote"
	s "github.com/shopez/cartsync/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up MongoDB connection
	ctx := context.Background()
	mongoDB, err := remote.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	store := remote.NewBreakerStore(remote.NewMongoStore(mongoDB))
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	// Local mirror
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	mirror := cache.NewRedisMirror(redisClient)

	engine := s.NewSyncEngine(store, mirror)

	// Reconcile carts when an identity authenticates
	authConsumer := consumer.New(engine, cfg.AuthEventsTopic, cfg.ConsumerGroup, cfg.KafkaBrokers...)
	defer authConsumer.Close()
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go authConsumer.Run(consumerCtx)

	cartHandler := h.NewCartHandler(engine, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware. No router-level timeout: /cart/watch streams
	// indefinitely.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(h.AuthMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Get("/watch", cartHandler.WatchCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Post("/reconcile", cartHandler.Reconcile)
		})
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     otelhttp.NewHandler(r, "cartsync"),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: it would cut the SSE cart stream.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("cartsync starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}

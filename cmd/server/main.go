package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/hafeefas/investment-simulator/internal/auth"
	"github.com/hafeefas/investment-simulator/internal/config"
	"github.com/hafeefas/investment-simulator/internal/metrics"
	"github.com/hafeefas/investment-simulator/internal/quote"
	"github.com/hafeefas/investment-simulator/internal/store"
	"github.com/hafeefas/investment-simulator/internal/trading"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Quote source ---
	var quotes quote.Source
	if cfg.QuoteAPIURL != "" {
		quotes = quote.NewHTTPSource(cfg.QuoteAPIURL, nil, cfg.QuoteTimeout)
		slog.Info("using HTTP quote provider", "url", cfg.QuoteAPIURL)
	} else {
		slog.Warn("QUOTE_API_URL not set, using static dev prices")
		quotes = quote.NewStaticSource(map[string]decimal.Decimal{
			"AAPL": decimal.NewFromFloat(178.50),
			"MSFT": decimal.NewFromFloat(412.20),
			"GOOG": decimal.NewFromFloat(141.80),
			"TSLA": decimal.NewFromFloat(248.30),
			"AMZN": decimal.NewFromFloat(186.40),
		})
	}

	cached, err := quote.NewCachedSource(quotes, cfg.QuoteCacheTTL)
	if err != nil {
		slog.Error("quote cache init failed", "err", err)
		os.Exit(1)
	}
	defer cached.Close()
	quotes = cached

	// --- Auth ---
	tokens, err := auth.NewTokenAuthority(cfg.AuthSecret)
	if err != nil {
		slog.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub and price streamer ---
	hub := trading.NewHub()
	go hub.Run()

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	streamer := trading.NewStreamer(hub, quotes, cfg.StreamInterval)
	go streamer.Run(streamCtx)

	// --- Trading service ---
	svc := trading.NewService(st, quotes, tokens, hub, cfg.OrderMaxAttempts, cfg.StoreTimeout, cfg.StartingBalanceDecimal())

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"investment-simulator"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time price and trade updates.
		r.Get("/ws", hub.HandleWS)

		// Public endpoints.
		r.Post("/auth/register", svc.Register)
		r.Get("/quotes/{symbol}", svc.GetQuote)

		// Authenticated endpoints.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokens))
			r.Post("/orders", svc.PlaceOrder)
			r.Get("/portfolio", svc.GetPortfolio)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("investment-simulator listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down investment-simulator...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("investment-simulator stopped")
}

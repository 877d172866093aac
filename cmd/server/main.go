package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/boersenspiel/market-engine/internal/account"
	"github.com/boersenspiel/market-engine/internal/auth"
	"github.com/boersenspiel/market-engine/internal/config"
	"github.com/boersenspiel/market-engine/internal/market"
	"github.com/boersenspiel/market-engine/internal/metrics"
	"github.com/boersenspiel/market-engine/internal/news"
	"github.com/boersenspiel/market-engine/internal/sim"
	"github.com/boersenspiel/market-engine/internal/trade"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// --- Market state ---
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	universe := market.NewUniverse(market.DefaultStockNames, rng)

	users, err := loadRoster(cfg.UsersFile, cfg.InitialBalance, universe)
	if err != nil {
		slog.Error("failed to seed users", "err", err)
		os.Exit(1)
	}
	registry := account.NewRegistry(users)
	feed := news.NewFeed()

	slog.Info("market seeded", "stocks", len(universe.Stocks()), "users", len(users))

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Trade service ---
	tradeSvc := trade.NewService(registry, universe, feed, wsHub)

	// --- Price simulation ---
	stocks := universe.Stocks()
	tickers := make([]sim.PriceTicker, len(stocks))
	for i, s := range stocks {
		tickers[i] = s
	}
	simulator := sim.NewSimulator(tickers, rng, logger)
	simulator.OnTick(func(step int64) {
		quotes := universe.Quotes()
		for _, q := range quotes {
			metrics.StockPrice.WithLabelValues(q.Name).Set(q.Price)
		}
		wsHub.Broadcast(trade.WSMessage{Type: "tick", Quotes: quotes})
	})

	scheduler, err := sim.NewScheduler(simulator, cfg.TickInterval, logger)
	if err != nil {
		slog.Error("failed to start price simulation", "err", err)
		os.Exit(1)
	}
	scheduler.Start()

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
		w.Write([]byte(`{"status":"ok","service":"market-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint for real-time quotes and trade events.
	r.Get("/ws", wsHub.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Basic(registry))

		r.Get("/stocks", tradeSvc.ListStocks)
		r.Get("/stocks/{name}", tradeSvc.GetStock)

		r.Get("/user", tradeSvc.GetUser)
		r.Get("/user/everybody", tradeSvc.Leaderboard)

		r.Get("/account", tradeSvc.GetAccount)
		r.Post("/account/positions", tradeSvc.PlaceOrder)

		r.Get("/news", tradeSvc.GetNews)

		r.Get("/messages", tradeSvc.GetMessages)
		r.Post("/messages", tradeSvc.PostMessage)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("market-engine listening", "port", cfg.Port)
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

	slog.Info("shutting down market-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	scheduler.Stop()
	fmt.Println("market-engine stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

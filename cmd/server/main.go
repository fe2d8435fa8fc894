package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/playvault/backend/internal/config"
	"github.com/playvault/backend/internal/database"
	"github.com/playvault/backend/internal/events"
	"github.com/playvault/backend/internal/handlers"
	"github.com/playvault/backend/internal/logger"
	"github.com/playvault/backend/internal/metrics"
	mW "github.com/playvault/backend/internal/middleware"
	"github.com/playvault/backend/internal/services"
)

// @title Gaming Platform API
// @version 1.0
// @description Ledger-backed wallet, deposits, withdrawals and game settlement for the gaming platform
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	config.Load()

	log, err := logger.New("gaming-platform-backend", viper.GetString("app.env"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	mongoDB := database.InitMongoOrDie(ctx, log)
	defer mongoDB.Close(ctx)

	if err := mongoDB.EnsureIndexes(ctx); err != nil {
		log.Warn("failed to ensure indexes", zap.Error(err))
	}

	redisClient := database.InitRedis(log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := events.NewPublisher(viper.GetString("kafka.brokers"), viper.GetString("kafka.topic"), log)
	defer publisher.Close()

	metrics.Init()
	metricsServer := metrics.StartMetricsServer(viper.GetString("metrics.port"), mongoDB.Ping)

	// Stores and services
	accountService := services.NewAccountService(mongoDB.DB, log)
	ledgerService := services.NewLedgerService(mongoDB.DB, log)
	depositStore := services.NewMongoDepositStore(mongoDB.DB)
	withdrawalStore := services.NewMongoWithdrawalStore(mongoDB.DB)
	gameStore := services.NewMongoGameStore(mongoDB.DB)

	depositService := services.NewDepositService(depositStore, accountService, ledgerService, mongoDB, publisher, log)
	withdrawalService := services.NewWithdrawalService(withdrawalStore, accountService, ledgerService, mongoDB, publisher, log)
	gameService := services.NewGameService(gameStore, accountService, ledgerService, mongoDB, publisher, log)
	statsService := services.NewStatsService(mongoDB.DB, accountService, redisClient, log)
	authService := services.NewAuthService(accountService, redisClient, log)
	qrService := services.NewQRService(depositService, redisClient)
	bankService := services.NewBankService()
	payoutService := services.NewPayoutService(bankService)

	depositHandler := handlers.NewDepositHandler(depositService, qrService)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalService, payoutService)
	gameHandler := handlers.NewGameHandler(gameService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService)
	userHandler := handlers.NewUserHandler(accountService, depositService)
	statsHandler := handlers.NewStatsHandler(statsService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.Metrics)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check. Mongo down means unhealthy; redis is a cache and only
	// gets reported.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy", "mongo": "up"}
		code := http.StatusOK
		if err := mongoDB.Ping(ctx); err != nil {
			status["status"] = "unhealthy"
			status["mongo"] = "down"
			code = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			status["redis"] = "up"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status["redis"] = "down"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/openapi.yaml"),
	))

	// Serve the OpenAPI document
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yaml")
	})

	// Static file server for game artwork
	r.Handle("/static/game-art/*", http.StripPrefix("/static/game-art/",
		mW.StaticFileServer("./static/game-art")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			r.Get("/transactions", transactionHandler.Mine)
			r.Get("/transactions/{id}", transactionHandler.Get)
			// Legacy clients post plays here instead of /games/play.
			r.Post("/transactions/game", gameHandler.Play)

			r.Get("/games", gameHandler.List)
			r.Get("/games/featured", gameHandler.Featured)
			r.Get("/games/{id}", gameHandler.Get)
			r.Post("/games/play", gameHandler.Play)

			r.Post("/deposits", depositHandler.Create)
			r.Get("/deposits/mine", depositHandler.Mine)
			r.Post("/deposits/qr", depositHandler.GenerateQR)
			r.Post("/deposits/qr/claim", depositHandler.ClaimQR)
			r.Get("/deposits/{id}", depositHandler.Get)

			r.Get("/banks", bankService.GetAllBanks)

			r.Post("/withdrawals", withdrawalHandler.Create)
			r.Get("/withdrawals/mine", withdrawalHandler.Mine)
			r.Get("/withdrawals/{id}", withdrawalHandler.Get)

			r.Get("/users/{userId}", userHandler.Get)
			r.Put("/users/{userId}", userHandler.Update)

			r.Get("/stats/me", statsHandler.Me)

			// Admin endpoints
			r.Route("/admin", func(r chi.Router) {
				r.Use(mW.RequireAdmin)

				r.Get("/users", userHandler.List)
				r.Post("/users/{userId}/deactivate", userHandler.Deactivate)
				r.Post("/users/{userId}/adjust-balance", userHandler.AdjustBalance)

				r.Get("/games", gameHandler.ListAdmin)
				r.Post("/games", gameHandler.Create)
				r.Put("/games/{id}", gameHandler.Update)
				r.Delete("/games/{id}", gameHandler.Delete)

				r.Get("/deposits", depositHandler.ListAll)
				r.Get("/deposits/pending", depositHandler.ListPending)
				r.Post("/deposits/{id}/approve", depositHandler.Approve)
				r.Post("/deposits/{id}/reject", depositHandler.Reject)

				r.Get("/withdrawals", withdrawalHandler.ListAll)
				r.Get("/withdrawals/pending", withdrawalHandler.ListPending)
				r.Post("/withdrawals/{id}/process", withdrawalHandler.Process)
				r.Get("/withdrawals/{id}/payout", withdrawalHandler.Payout)

				r.Get("/transactions", transactionHandler.ListAll)

				r.Get("/stats/dashboard", statsHandler.AdminDashboard)
				r.Get("/stats/revenue-history", statsHandler.RevenueHistory)
			})
		})
	})

	port := viper.GetString("app.port")

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("server starting", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	log.Info("server stopped")
}

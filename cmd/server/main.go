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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	"github.com/zoarius/winastreamv4/internal/config"
	"github.com/zoarius/winastreamv4/internal/database"
	"github.com/zoarius/winastreamv4/internal/handlers"
	mW "github.com/zoarius/winastreamv4/internal/middleware"
	"github.com/zoarius/winastreamv4/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	sweepstakesConfig := config.LoadSweepstakesConfig()

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	notifier := services.NewRedisNotifier(redisClient)
	winnerService := services.NewWinnerService(db)
	drawService := services.NewDrawService(db, winnerService, notifier, notifier, sweepstakesConfig)
	participationService := services.NewParticipationService(db, drawService, notifier, sweepstakesConfig)
	accountService := services.NewAccountService(db, notifier, sweepstakesConfig)
	campaignService := services.NewCampaignService(db, sweepstakesConfig)
	campaignHandler := handlers.NewCampaignHandler(campaignService)

	if err := campaignService.SeedCampaigns(context.Background()); err != nil {
		log.Fatalf("Failed to seed campaigns: %v", err)
	}

	// Recovery sweep for draws interrupted mid-way
	recoveryCtx, cancelRecovery := context.WithCancel(context.Background())
	defer cancelRecovery()
	go func() {
		ticker := time.NewTicker(sweepstakesConfig.DrawStaleAfter)
		defer ticker.Stop()
		for {
			select {
			case <-recoveryCtx.Done():
				return
			case <-ticker.C:
				drawService.RecoverStaleDraws(recoveryCtx)
			}
		}
	}()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Participant-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/accounts/register", accountService.Register)
		r.Get("/campaigns", campaignHandler.ListCampaigns)
		r.Get("/campaigns/{campaignId}", campaignHandler.GetCampaign)
		r.Get("/winners", winnerService.ListWinners)

		// Participant endpoints (X-Participant-ID required)
		r.Group(func(r chi.Router) {
			r.Use(mW.ParticipantMiddleware)

			r.Get("/account", accountService.GetAccount)
			r.Post("/campaigns/{campaignId}/entries", participationService.SubmitEntry)
			r.Get("/campaigns/{campaignId}/entries/me", campaignHandler.GetMyEntry)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

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
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"orphancare/internal/campaign"
	"orphancare/internal/donation"
	"orphancare/internal/fees"
	"orphancare/internal/gateway"
	"orphancare/internal/handler"
	"orphancare/internal/middleware"
	"orphancare/internal/repository/postgres"
	"orphancare/internal/scheduler"
	"orphancare/internal/sponsorship"
	"orphancare/internal/webhook"
	stripehook "orphancare/internal/webhook/stripe"
	"orphancare/pkg/config"
	"orphancare/pkg/logger"
	"orphancare/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("donation-api")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting donation API", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection (scheduler lease)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Redis connected", nil)

	// Repositories
	donationRepo := postgres.NewDonationRepository(db)
	sponsorshipRepo := postgres.NewSponsorshipRepository(db)
	campaignRepo := postgres.NewCampaignRepository(db)
	controlRepo := postgres.NewControlRepository(db)
	orphanRepo := postgres.NewOrphanRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	// Payment gateway
	stripeGateway := gateway.NewStripeGateway(
		cfg.Stripe.SecretKey,
		cfg.Stripe.SubscriptionPrice,
		cfg.Stripe.SuccessURL,
		cfg.Stripe.CancelURL,
	)

	// Services
	feeCalc := fees.NewCalculator(settingsRepo)
	donationService := donation.NewService(donationRepo, controlRepo, feeCalc, stripeGateway, log)
	sponsorshipService := sponsorship.NewService(sponsorshipRepo, orphanRepo, stripeGateway, log)
	campaignService := campaign.NewService(campaignRepo, log)

	// Webhook processor
	verifier := stripehook.NewVerifier(cfg.Stripe.WebhookSecret)
	processor := webhook.NewProcessor(verifier, donationRepo, sponsorshipRepo, campaignRepo, orphanRepo, log)

	// Reconciliation scheduler
	lease := scheduler.NewRedisLease(redisClient, "scheduler:reconcile", cfg.Scheduler.LeaseTTL)
	sched := scheduler.New(
		sponsorshipRepo, campaignRepo, stripeGateway, log,
		scheduler.WithInterval(cfg.Scheduler.SweepInterval),
		scheduler.WithCancelTimeout(cfg.Scheduler.CancelTimeout),
		scheduler.WithLease(lease),
	)
	sched.Start()
	defer sched.Stop()

	// Handlers
	val := validator.New()
	donationHandler := handler.NewDonationHandler(donationService, val, log)
	sponsorshipHandler := handler.NewSponsorshipHandler(sponsorshipService, val, log)
	campaignHandler := handler.NewCampaignHandler(campaignService, val, log)
	settingsHandler := handler.NewSettingsHandler(settingsRepo, log)
	webhookHandler := handler.NewWebhookHandler(processor, log)

	// Router
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Health checks and webhook are unauthenticated; the webhook authenticates
	// with its signature instead.
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ready", readyCheck(db)).Methods("GET")
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleEvent).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)

	api.HandleFunc("/donations/financial", donationHandler.CreateFinancial).Methods("POST")
	api.HandleFunc("/donations/in-kind", donationHandler.CreateInKind).Methods("POST")
	api.HandleFunc("/donations/mine", donationHandler.ListMyDonations).Methods("GET")
	api.HandleFunc("/donations/{id}", donationHandler.GetDonation).Methods("GET")
	api.HandleFunc("/donations/{id}/control", donationHandler.GetControlByDonation).Methods("GET")

	api.HandleFunc("/sponsorships", sponsorshipHandler.Create).Methods("POST")
	api.HandleFunc("/sponsorships/mine", sponsorshipHandler.ListMine).Methods("GET")
	api.HandleFunc("/sponsorships/{id}", sponsorshipHandler.Get).Methods("GET")
	api.HandleFunc("/sponsorships/{id}/cancel", sponsorshipHandler.Cancel).Methods("POST")

	api.HandleFunc("/campaigns", campaignHandler.List).Methods("GET")
	api.HandleFunc("/campaigns/{id}", campaignHandler.Get).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMW.RequireAdmin)
	admin.HandleFunc("/donations", donationHandler.ListDonations).Methods("GET")
	admin.HandleFunc("/campaigns", campaignHandler.Create).Methods("POST")
	admin.HandleFunc("/controls", donationHandler.CreateControl).Methods("POST")
	admin.HandleFunc("/controls/{id}", donationHandler.UpdateControl).Methods("PUT")
	admin.HandleFunc("/settings", settingsHandler.Get).Methods("GET")
	admin.HandleFunc("/settings", settingsHandler.Update).Methods("PUT")

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Donation API started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down donation API...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Donation API forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Donation API stopped gracefully", nil)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"donation-api","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func readyCheck(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r
		if err := db.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"donation-api"}`))
	}
}

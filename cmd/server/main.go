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
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/modelmart/backend/docs"
	"github.com/modelmart/backend/internal/audit"
	"github.com/modelmart/backend/internal/config"
	"github.com/modelmart/backend/internal/database"
	"github.com/modelmart/backend/internal/handlers"
	"github.com/modelmart/backend/internal/ledger"
	mW "github.com/modelmart/backend/internal/middleware"
	"github.com/modelmart/backend/internal/services"
	"github.com/modelmart/backend/internal/store"
)

// @title ModelMart Marketplace API
// @version 1.0
// @description Token-settled marketplace for digital model assets
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

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

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("storage.driver", "STORAGE_DRIVER")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "ModelMart Marketplace API"
	docs.SwaggerInfo.Description = "Token-settled marketplace for digital model assets"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	cfg := config.LoadMarketplaceConfig()

	// Listing storage: in-memory by default, Postgres when configured.
	viper.SetDefault("storage.driver", "memory")
	var listingStore store.Store
	switch driver := viper.GetString("storage.driver"); driver {
	case "postgres":
		db := database.InitDatabase()
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to prepare listings schema: %v", err)
		}
		listingStore = pg
		log.Println("Using Postgres listing store")
	default:
		listingStore = store.NewMemory()
		log.Println("Using in-memory listing store (listings do not survive restarts)")
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Token ledger, seeded with the initial supply.
	auditLogger := audit.NewLogger()
	tokenLedger := ledger.New(cfg.TokenName, cfg.TokenSymbol, cfg.TokenDecimals, auditLogger)
	if err := tokenLedger.Mint(cfg.TreasuryAddress, cfg.InitialSupply); err != nil {
		log.Fatalf("Failed to seed token supply: %v", err)
	}
	log.Printf("Minted %d %s to treasury %s", cfg.InitialSupply, cfg.TokenSymbol, cfg.TreasuryAddress)

	listingService := services.NewListingService(listingStore, cfg)
	tokenService := services.NewTokenService(tokenLedger)
	purchaseService := services.NewPurchaseService(listingStore, tokenLedger, redisClient, cfg)
	authService := services.NewAuthService()
	qrService := services.NewQRService(listingStore, redisClient, cfg)
	qrHandler := handlers.NewQRHandler(qrService)

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Uploaded model assets
	r.Handle("/static/assets/*", http.StripPrefix("/static/assets/",
		mW.StaticFileServer(cfg.UploadDir)))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/token", authService.IssueToken)

		r.Get("/models", listingService.ListModels)
		r.Post("/models", listingService.CreateModel)
		r.Post("/models/sold", listingService.MarkSold)

		r.Post("/purchases", purchaseService.CreatePurchase)

		r.Get("/token", tokenService.GetToken)
		r.Get("/token/balance", tokenService.GetBalance)
		r.Get("/token/allowance", tokenService.GetAllowance)
		r.Post("/token/approve", tokenService.Approve)
		r.Post("/token/transfer", tokenService.Transfer)
		r.Post("/token/transfer-from", tokenService.TransferFrom)
		r.Get("/token/recent-transfer", tokenService.GetRecentTransfer)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)
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

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astroCoder-3409/SSS-Backend/internal/advice"
	"github.com/astroCoder-3409/SSS-Backend/internal/aggregator/plaidapi"
	"github.com/astroCoder-3409/SSS-Backend/internal/api/handlers"
	"github.com/astroCoder-3409/SSS-Backend/internal/api/middleware"
	"github.com/astroCoder-3409/SSS-Backend/internal/config"
	"github.com/astroCoder-3409/SSS-Backend/internal/identity"
	"github.com/astroCoder-3409/SSS-Backend/internal/logger"
	"github.com/astroCoder-3409/SSS-Backend/internal/spending"
	"github.com/astroCoder-3409/SSS-Backend/internal/store"
	syncsvc "github.com/astroCoder-3409/SSS-Backend/internal/sync"
)

func main() {
	// Initialize logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	// Open database and bring the schema up to date
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}

	applied, err := db.Migrate("api")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	if applied > 0 {
		log.Info().Int("applied", applied).Msg("Applied pending migrations")
	}

	// Initialize collaborators
	agg, err := plaidapi.New(plaidapi.Config{
		ClientID:     cfg.PlaidClientID,
		Secret:       cfg.PlaidSecret,
		Environment:  cfg.PlaidEnvironment,
		ClientName:   cfg.PlaidClientName,
		Products:     cfg.PlaidProducts,
		CountryCodes: cfg.PlaidCountryCodes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Plaid client")
	}

	verifier, err := identity.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create identity verifier")
	}

	var adviceClient advice.Client
	switch cfg.AdviceBackend {
	case "gemini":
		adviceClient = advice.NewGeminiClient(cfg.GeminiModel)
		log.Info().Str("model", cfg.GeminiModel).Msg("Using Gemini advice backend")
	default:
		adviceClient = advice.NewHTTPClient(cfg.AdviceBaseURL)
		log.Info().Str("base_url", cfg.AdviceBaseURL).Msg("Using HTTP advice backend")
	}

	spendingSvc := spending.New(db)
	adviceSvc := advice.NewService(spendingSvc, adviceClient, log)
	syncSvc := syncsvc.New(db, agg, log)

	// Initialize handlers
	plaidHandler := handlers.NewPlaidHandler(agg, db, log)
	accountsHandler := handlers.NewAccountsHandler(db, log)
	transactionsHandler := handlers.NewTransactionsHandler(db, log)
	userHandler := handlers.NewUserHandler(db, log)
	syncHandler := handlers.NewSyncHandler(syncSvc, log)
	adviceHandler := handlers.NewAdviceHandler(adviceSvc, log)
	diagnosticsHandler := handlers.NewDiagnosticsHandler(db, adviceSvc, adviceClient, log)

	auth := middleware.NewAuthenticator(verifier, db, log)

	// Create router. Everything under requireAuth needs a verified bearer
	// token; diagnostics and health do not.
	mux := http.NewServeMux()
	requireAuth := func(method string, handler http.HandlerFunc) http.HandlerFunc {
		authed := auth.Require(handler)
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			authed.ServeHTTP(w, r)
		}
	}

	mux.HandleFunc("/api/exchange_public_token", requireAuth(http.MethodPost, plaidHandler.ExchangePublicToken))
	mux.HandleFunc("/api/create_link_token", requireAuth(http.MethodPost, plaidHandler.CreateLinkToken))
	mux.HandleFunc("/api/accounts", requireAuth(http.MethodGet, accountsHandler.ListAccounts))
	mux.HandleFunc("/api/transactions", requireAuth(http.MethodPost, transactionsHandler.ListTransactions))
	mux.HandleFunc("/api/user", requireAuth(http.MethodGet, userHandler.GetUser))
	mux.HandleFunc("/api/protected-data", requireAuth(http.MethodGet, userHandler.ProtectedData))
	mux.HandleFunc("/api/sync", requireAuth(http.MethodGet, syncHandler.Sync))
	mux.HandleFunc("/api/llm/query", requireAuth(http.MethodPost, adviceHandler.Query))
	mux.HandleFunc("/api/llm/spending-data", requireAuth(http.MethodGet, adviceHandler.SpendingData))

	// Unauthenticated smoke tests for the advice backend
	mux.HandleFunc("/api/test/llm-dummy", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		diagnosticsHandler.DummyQuery(w, r)
	})
	mux.HandleFunc("/api/test/llm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		diagnosticsHandler.LiveQuery(w, r)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // advice queries can be slow
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

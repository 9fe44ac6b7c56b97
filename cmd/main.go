package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilla "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/config"
	"github.com/sevasetu/seva-gobackend/internal/db"
	"github.com/sevasetu/seva-gobackend/internal/gateway"
	"github.com/sevasetu/seva-gobackend/internal/handlers"
	"github.com/sevasetu/seva-gobackend/internal/middleware"
	"github.com/sevasetu/seva-gobackend/internal/services"
	"github.com/sevasetu/seva-gobackend/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.New()
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	ctx := context.Background()
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal("mongodb connection failed", zap.Error(err))
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			logger.Error("mongodb disconnect failed", zap.Error(err))
		}
	}()

	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		logger.Fatal("index creation failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
			rdb = nil
		}
	}

	txStore := store.NewTransactionStore(database)
	donationStore := store.NewDonationStore(database)
	walletStore := store.NewWalletStore(database)
	itemStore := store.NewItemStore(database)
	expenseStore := store.NewExpenseStore(database)
	auditStore := store.NewAuditStore(database)
	queueStore := store.NewReconQueueStore(database)

	var runner services.TxRunner = store.NoopTxRunner{}
	if cfg.MongoTransactions {
		runner = store.NewSessionTxRunner(client)
	}

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayWebhookSecret, logger)

	ledger := services.NewLedgerService(txStore, auditStore, logger)
	walletSvc := services.NewWalletService(walletStore, donationStore, expenseStore, auditStore, logger)
	donationSvc := services.NewDonationService(donationStore, txStore, runner, auditStore, logger)
	alloc := services.NewAllocationEngine(walletSvc, itemStore, donationStore, auditStore, logger)
	orch := services.NewOrchestrator(ledger, donationSvc, alloc, txStore, donationStore, gw, queueStore, logger)
	orch.AcceptAuthorized = cfg.AcceptAuthorized

	donationHandler := handlers.NewDonationHandler(gw, donationSvc, alloc, orch, donationStore, logger)
	webhookHandler := handlers.NewWebhookHandler(orch, logger)
	walletHandler := handlers.NewWalletHandler(walletSvc, expenseStore, logger)
	operatorHandler := handlers.NewOperatorHandler(queueStore, orch, alloc, itemStore, logger)

	limiter := middleware.NewRateLimiter(rdb, cfg.RateLimitPerMinute, logger)

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(limiter.Middleware)

	api.HandleFunc("/donation/order", donationHandler.CreateOrder).Methods("POST")
	api.HandleFunc("/donation/verify", donationHandler.Verify).Methods("POST")
	api.HandleFunc("/donation/offline", donationHandler.CreateOffline).Methods("POST")
	api.HandleFunc("/donations", donationHandler.List).Methods("GET")
	api.HandleFunc("/donation/{donationID}", donationHandler.Get).Methods("GET")
	api.HandleFunc("/donation/{donationID}", donationHandler.Delete).Methods("DELETE")

	api.HandleFunc("/payment/webhook", webhookHandler.Handle).Methods("POST")

	api.HandleFunc("/wallet", walletHandler.Balance).Methods("GET")
	api.HandleFunc("/wallet/recompute", walletHandler.Recompute).Methods("POST")
	api.HandleFunc("/expense", walletHandler.CreateExpense).Methods("POST")
	api.HandleFunc("/expense/{expenseID}/approve", walletHandler.ApproveExpense).Methods("POST")

	api.HandleFunc("/items", operatorHandler.CreateItem).Methods("POST")
	api.HandleFunc("/items/{itemID}", operatorHandler.GetItem).Methods("GET")

	api.HandleFunc("/operator/queue", operatorHandler.Queue).Methods("GET")
	api.HandleFunc("/operator/sweep", operatorHandler.Sweep).Methods("POST")
	api.HandleFunc("/operator/replay", operatorHandler.Replay).Methods("POST")
	api.HandleFunc("/operator/reverse", operatorHandler.Reverse).Methods("POST")

	cors := gorilla.CORS(
		gorilla.AllowedOrigins([]string{"*"}),
		gorilla.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		gorilla.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Razorpay-Signature"}),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      cors(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

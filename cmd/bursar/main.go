package main

import (
	"context"
	"strings"

	"bursar/internal/handlers"
	"bursar/internal/ledger"
	"bursar/internal/store"
	"bursar/internal/treasury"
	"bursar/pkg/auth"
	"bursar/pkg/config"
	"bursar/pkg/database"
	"bursar/pkg/kafka"
	"bursar/pkg/logging"
	"bursar/pkg/monitoring"
	"bursar/pkg/server"
	"bursar/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("bursar")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Bursar (Subscription Ledger API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")
	serviceToken := config.RequireEnv("SERVICE_TOKEN")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := database.Migrate(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("bursar", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("bursar", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
		"JWT_SECRET":   jwtSecret,
	}))

	// Create custom ledger metrics
	metrics := &handlers.BursarMetrics{
		ServicesCreated:   metricsCollector.NewCounter("services_created_total", "Paid services registered", []string{"status"}),
		Subscriptions:     metricsCollector.NewCounter("subscriptions_total", "Subscription payments applied", []string{"kind"}),
		Withdrawals:       metricsCollector.NewCounter("withdrawals_total", "Balance withdrawals", []string{"status"}),
		EscrowBalance:     metricsCollector.NewGauge("escrow_balance", "Escrowed balance per service", []string{"service_id"}),
		ActiveSubscribers: metricsCollector.NewGauge("active_subscribers", "Unexpired subscriptions per service", []string{"service_id"}),
	}

	// Create database metrics
	metrics.DBQueries, metrics.DBDuration, _ = metricsCollector.CreateDatabaseMetrics()

	// Select the treasury backend
	var (
		treasuryBackend ledger.Treasury
		ethWallet       *treasury.EthWallet
	)
	if rpcURL := config.GetEnv("ETHEREUM_RPC_URL", ""); rpcURL != "" {
		var err error
		ethWallet, err = treasury.NewEthWallet(treasury.EthWalletConfig{
			RPCURL:        rpcURL,
			PrivateKeyHex: config.RequireEnv("OPERATOR_WALLET_PRIVKEY"),
		}, db, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize Ethereum treasury")
		}
		defer ethWallet.Close()
		treasuryBackend = ethWallet
		healthChecker.AddCheck("ethereum", monitoring.RPCHealthCheck("ethereum", ethWallet))
	} else {
		logger.Warn("ETHEREUM_RPC_URL not set - using in-memory sandbox treasury")
		treasuryBackend = treasury.NewSandbox()
	}

	// Setup Kafka producer for billing events (optional)
	var producer kafka.ProducerInterface
	if brokers := config.GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		p, err := kafka.NewKafkaProducer(strings.Split(brokers, ","), config.GetEnv("KAFKA_CLIENT_ID", "bursar"), logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to create Kafka producer - billing events disabled")
		} else {
			producer = p
			defer p.Close() //nolint:errcheck // close is best-effort
			healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(p.GetClient()))
		}
	}

	// Build the ledger and restore the journaled state
	book := ledger.New(treasuryBackend, ledger.WithEventSink(handlers.EventSink()))
	journal := store.NewJournal(db, logger)
	snap, err := journal.LoadSnapshot(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("Failed to load ledger journal")
	}
	if err := book.Restore(snap); err != nil {
		logger.WithError(err).Fatal("Failed to restore ledger state")
	}

	// Initialize handlers
	handlers.Init(book, db, logger, metrics, producer, ethWallet)

	// Initialize and start JobManager for background ledger tasks
	jobManager := handlers.NewJobManager(logger, ethWallet)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobManager.Start(ctx)
	defer jobManager.Stop()

	logger.Info("JobManager started - background ledger jobs active")

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "bursar", healthChecker, metricsCollector)

	// API routes
	{
		// Wallet login (no auth required)
		router.POST("/auth/wallet", handlers.WalletLogin)

		// Authentication required endpoints
		protected := router.Group("")
		protected.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
		{
			protected.GET("/services", handlers.ListServices)
			protected.POST("/services", handlers.CreateService)
			protected.GET("/services/:service_id", handlers.GetService)
			protected.POST("/services/:service_id/subscribe", handlers.Subscribe)
			protected.POST("/services/:service_id/gift", handlers.GiftSubscription)
			protected.POST("/services/:service_id/withdraw", handlers.Withdraw)
			protected.GET("/deposits/balance", handlers.GetDepositBalance)
		}

		// Access checks (service-to-service)
		serviceAPI := router.Group("")
		serviceAPI.Use(auth.ServiceAuthMiddleware(serviceToken))
		{
			serviceAPI.GET("/services/:service_id/access/:account", handlers.GetAccessStatus)
			serviceAPI.POST("/deposits/credit", handlers.CreditDeposit)
		}
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("bursar", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}

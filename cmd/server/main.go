package main

import (
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"slabwise/server/config"
	"slabwise/server/internal/api"
	"slabwise/server/internal/database"
	"slabwise/server/internal/importer"
	"slabwise/server/internal/ingest"
	"slabwise/server/internal/marketplace"
	"slabwise/server/internal/pricing"
	"slabwise/server/internal/scheduler"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Local overrides; absence is fine in production
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	dbPath := cfg.Server.SQLitePath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", dbPath)

	db, err := database.NewDatabase(dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Separate gorm handle for the ingestion path
	gormDB, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to open gorm connection")
	}

	queue := ingest.NewListingQueue(cfg.BatchProcessing.QueueSize, logger)
	queue.Start()
	defer queue.Close()

	processor := ingest.NewBatchProcessor(gormDB, queue, cfg, logger)
	processor.Start()
	defer processor.Stop()

	repricer := pricing.NewRepricer(db, cfg, logger)
	imp := importer.NewImporter(db, logger)

	var fetcher *marketplace.Fetcher
	if cfg.Marketplace.ClientID != "" && cfg.Marketplace.ClientSecret != "" {
		client := marketplace.NewClient(cfg)
		fetcher = marketplace.NewFetcher(client, db, queue, cfg, logger)
	} else {
		logger.Warn("Marketplace credentials not configured, comp fetching disabled")
	}

	sched := scheduler.NewScheduler(fetcher, repricer, logger)
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(db, cfg, repricer, fetcher, imp, logger)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))

	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}

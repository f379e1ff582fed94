package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	importhandler "github.com/budgetbee/importer/internal/domain/importer/handler"
	"github.com/budgetbee/importer/internal/domain/importer/mapper"
	importrepo "github.com/budgetbee/importer/internal/domain/importer/repository"
	importservice "github.com/budgetbee/importer/internal/domain/importer/service"
	"github.com/budgetbee/importer/pkg/config"
	"github.com/budgetbee/importer/pkg/db"
	"github.com/budgetbee/importer/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Repositories
	ImportRepo   importrepo.ImportRepository
	MappingStore mapper.MappingStore

	// Services
	ImportService *importservice.ImportService

	// Handlers
	ImportHandler *importhandler.ImportHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database
	d.Logger.Info("database connected successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)
	d.MappingStore = mapper.NewPostgresMappingStore(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	importMetrics := metrics.New(d.Registry)

	d.ImportService = importservice.NewImportService(d.ImportRepo, d.MappingStore, d.Logger).
		WithMetrics(importMetrics)

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler layer dependencies
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Close releases held resources
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}

package app

import (
	"context"
	"fmt"

	"github.com/snapsolve/backend/config"
	"github.com/snapsolve/backend/middleware"
	"github.com/snapsolve/backend/repositories"
	"github.com/snapsolve/backend/repositories/postgres"
	"github.com/snapsolve/backend/services/auth"
	"github.com/snapsolve/backend/services/tier"
	"github.com/snapsolve/backend/services/token"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Accounts  repositories.AccountRepository
	Sessions  repositories.SessionRepository
	TxManager repositories.TransactionManager

	// Services
	TokenCodec  *token.Codec
	AuthService *auth.Service
	Reconciler  *tier.Reconciler

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
	TierGate       *middleware.TierGate
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and applies the schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Accounts = repos.Accounts
	d.Sessions = repos.Sessions
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices wires the domain services and the middleware built on them
func (d *Dependencies) initServices(cfg *config.Config) error {
	codec, err := token.NewCodec(cfg.Auth, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}
	d.TokenCodec = codec

	d.AuthService = auth.NewService(d.Accounts, d.Sessions, codec, cfg.Auth, d.Logger)
	d.Reconciler = tier.NewReconciler(d.Accounts, d.Sessions, d.TxManager, cfg.Billing, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.AuthService, d.Logger)
	d.TierGate = middleware.NewTierGate(d.Accounts, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// Close releases held resources, primarily the database pool
func (d *Dependencies) Close() error {
	if d.RepoFactory != nil {
		return d.RepoFactory.Close()
	}
	return nil
}

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/display"
	"github.com/SamiESK/insta-scrapper/internal/interfaces"
	"github.com/SamiESK/insta-scrapper/internal/outreach"
	"github.com/SamiESK/insta-scrapper/internal/proxy"
	"github.com/SamiESK/insta-scrapper/internal/queue"
	"github.com/SamiESK/insta-scrapper/internal/runner"
	"github.com/SamiESK/insta-scrapper/internal/sessions"
	"github.com/SamiESK/insta-scrapper/internal/storage/badger"
	"github.com/SamiESK/insta-scrapper/internal/vault"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Account isolation resources
	Vault          *vault.Vault
	SessionStore   *sessions.Store
	DisplayManager *display.Manager
	ProxyAllocator *proxy.Allocator

	// Outreach
	MessageGenerator interfaces.MessageGenerator

	// Run execution
	Runner       *runner.Runner
	QueueService *queue.Service
	Scheduler    *queue.Scheduler
}

// New creates the application with all components wired
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    config,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager
	logger.Info().Str("path", config.Storage.Badger.Path).Msg("Storage initialized")

	credentialVault, err := vault.New(config.Vault.Key, logger)
	if err != nil {
		cancel()
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize credential vault: %w", err)
	}
	app.Vault = credentialVault

	app.SessionStore = sessions.NewStore(config.Sessions.Dir, logger)
	app.DisplayManager = display.NewManager(config.Display, logger)
	app.ProxyAllocator = proxy.NewAllocator(config.Proxy.List)

	// The generator is only required when outreach is on; discovery-only
	// deployments run without an LLM key.
	if config.Outreach.Enabled {
		generator, err := outreach.NewGenerator(ctx, config.LLM, logger)
		if err != nil {
			cancel()
			storageManager.Close()
			return nil, fmt.Errorf("failed to initialize message generator: %w", err)
		}
		app.MessageGenerator = generator
	}

	app.Runner = runner.New(
		storageManager,
		credentialVault,
		app.SessionStore,
		app.DisplayManager,
		app.ProxyAllocator,
		app.MessageGenerator,
		config,
		logger,
	)

	app.QueueService = queue.NewService(storageManager, app.Runner.Run, config.Queue, logger)
	app.Scheduler = queue.NewScheduler(app.QueueService, config.Scheduler, logger)

	return app, nil
}

// Start launches the queue workers and the cron scheduler
func (a *App) Start() error {
	a.QueueService.Start()
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.Logger.Info().Msg("Application started")
	return nil
}

// Close gracefully shuts down all application components
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	a.Scheduler.Stop()
	a.QueueService.Stop()
	a.cancelCtx()

	a.DisplayManager.Shutdown()

	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to close storage")
		return err
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}

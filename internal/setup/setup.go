// Package setup bootstraps the application: configuration, logging, and the
// external scoring and extraction clients.
package setup

import (
	"time"

	"github.com/wardenhq/warden/internal/nlp"
	"github.com/wardenhq/warden/internal/scoring"
	"github.com/wardenhq/warden/internal/setup/config"
	"github.com/wardenhq/warden/internal/setup/logging"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config     *config.Config   // Application configuration
	Logger     *zap.Logger      // Main application logger
	Scorer     scoring.Scorer   // Toxicity scoring client
	Extractor  nlp.Extractor    // Entity extraction client
	LogManager *logging.Manager // Log management system
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(logDir string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := logging.NewManager(logDir, &cfg.Debug)

	logger, err := logManager.GetLogger()
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration",
		zap.String("configDir", configDir),
		zap.String("instanceID", logManager.GetInstanceID()))

	scorer := scoring.NewPerspectiveClient(
		cfg.Perspective.Endpoint,
		cfg.Perspective.APIKey,
		time.Duration(cfg.Perspective.RequestTimeout)*time.Millisecond,
		cfg.Perspective.MaxConcurrent,
		logger,
	)

	extractor := nlp.NewNERClient(
		cfg.NER.Endpoint,
		time.Duration(cfg.NER.RequestTimeout)*time.Millisecond,
		logger,
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Scorer:     scorer,
		Extractor:  extractor,
		LogManager: logManager,
	}, nil
}

// Cleanup flushes buffered logs before shutdown.
func (s *App) Cleanup() {
	_ = s.Logger.Sync()
}

// Package app wires configuration, storage, and services into the
// shared core behind cmd/blink-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
	"github.com/blinkcredit/blink/internal/scoring"
	"github.com/blinkcredit/blink/internal/services/rescorer"
	"github.com/blinkcredit/blink/internal/services/score"
	"github.com/blinkcredit/blink/internal/storage"
)

// App holds all initialized services and storage.
type App struct {
	Config       *common.Config
	Logger       *common.Logger
	Storage      interfaces.StorageManager
	Engine       *scoring.Engine
	ScoreService interfaces.ScoreService
	Rescorer     *rescorer.Rescorer
	StartupTime  time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, BLINK_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("BLINK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "blink.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/blink.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	ctx := context.Background()
	storageManager, err := storage.NewManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := bootstrapClient(ctx, storageManager.InternalStore(), &config.Auth, logger); err != nil {
		logger.Warn().Err(err).Msg("Failed to register bootstrap client")
	}

	engine := scoring.NewEngine(logger)
	scoreService := score.NewService(storageManager, engine, config.Scoring, logger)
	resc := rescorer.NewRescorer(scoreService, storageManager, logger, config.Rescorer)

	a := &App{
		Config:       config,
		Logger:       logger,
		Storage:      storageManager,
		Engine:       engine,
		ScoreService: scoreService,
		Rescorer:     resc,
		StartupTime:  startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// StartRescorer launches the background rescoring worker when enabled.
func (a *App) StartRescorer() {
	if !a.Config.Rescorer.Enabled {
		a.Logger.Info().Msg("Rescorer disabled by config")
		return
	}
	a.Rescorer.Start()
}

// Close releases all resources held by the App.
// Shutdown order: stop the rescorer, then close storage.
func (a *App) Close() {
	if a.Rescorer != nil {
		a.Rescorer.Stop()
		a.Rescorer = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

// bootstrapClient registers the configured bootstrap credential so the
// batch deployment can authenticate before any client has been
// provisioned. An already registered client is left untouched.
func bootstrapClient(ctx context.Context, store interfaces.InternalStore, auth *common.AuthConfig, logger *common.Logger) error {
	if auth.BootstrapClientID == "" || auth.BootstrapClientSecret == "" {
		return nil
	}

	if _, err := store.GetClient(ctx, auth.BootstrapClientID); err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(auth.BootstrapClientSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap secret: %w", err)
	}

	client := &models.ServiceClient{
		ClientID:   auth.BootstrapClientID,
		SecretHash: string(hash),
		Name:       "bootstrap",
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.SaveClient(ctx, client); err != nil {
		return fmt.Errorf("failed to save bootstrap client: %w", err)
	}

	logger.Info().Str("client_id", client.ClientID).Msg("Bootstrap client registered")
	return nil
}

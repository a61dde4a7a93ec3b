package app

import (
	"context"
	"fmt"

	"stackctl/internal/config"
	"stackctl/pkg/logging"
)

// Application is the main application structure that bootstraps and runs stackctl
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration and wires every component of a run.
// Logging must already be initialised.
func NewApplication(cfg *Config) (*Application, error) {
	stackCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load stackctl configuration")
		return nil, fmt.Errorf("failed to load stackctl configuration: %w", err)
	}
	if cfg.Environment != "" {
		stackCfg.Environment = cfg.Environment
	}
	if cfg.WorkDir != "" {
		stackCfg.WorkDir = cfg.WorkDir
	}
	if cfg.ConfigPath != "" {
		logging.Info("Bootstrap", "Loaded configuration from %s", cfg.ConfigPath)
	} else {
		logging.Debug("Bootstrap", "Loaded layered configuration")
	}
	cfg.StackctlConfig = &stackCfg

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Run executes one lifecycle operation and returns its error, if any.
func (a *Application) Run(ctx context.Context, mode Mode) error {
	return runMode(ctx, mode, a.config, a.services)
}

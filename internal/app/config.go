package app

import (
	"stackctl/internal/config"
	"stackctl/internal/gate"
)

// Config holds the application configuration
type Config struct {
	// Configuration file given with --config
	ConfigPath string

	// Overrides for the loaded configuration
	Environment string
	WorkDir     string

	// Confirmation settings
	NonInteractive bool
	AutoApprove    bool
	Approvals      []gate.ID

	// CopySummary puts the endpoint summary on the clipboard after a run
	CopySummary bool

	// Loaded configuration, set by NewApplication
	StackctlConfig *config.StackctlConfig
}

// NewConfig creates a new application configuration
func NewConfig(configPath string) *Config {
	return &Config{ConfigPath: configPath}
}

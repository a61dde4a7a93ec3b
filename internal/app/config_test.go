package app

import (
	"testing"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "explicit config file", path: "/etc/stackctl/config.yaml"},
		{name: "layered configuration", path: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(tt.path)

			if cfg.ConfigPath != tt.path {
				t.Errorf("ConfigPath = %q, want %q", cfg.ConfigPath, tt.path)
			}
			if cfg.AutoApprove || cfg.NonInteractive || len(cfg.Approvals) != 0 {
				t.Error("approvals must be opt-in")
			}
			if cfg.StackctlConfig != nil {
				t.Error("StackctlConfig should be nil before loading")
			}
		})
	}
}

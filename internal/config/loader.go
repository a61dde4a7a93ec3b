package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stackctl/pkg/logging"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/stackctl"
	projectConfigDir = ".stackctl"
	configFileName   = "config.yaml"
)

// LoadConfig loads the stackctl configuration by layering default, user,
// project and (optionally) explicit settings, then validates the result.
func LoadConfig(explicitPath string) (StackctlConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. User-specific configuration
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else if err := overlayIfExists(&config, userConfigPath); err != nil {
		return StackctlConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
	}

	// 3. Project-specific configuration
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine project config path: %v", err)
	} else if err := overlayIfExists(&config, projectConfigPath); err != nil {
		return StackctlConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
	}

	// 4. Explicit --config file must exist
	if explicitPath != "" {
		if err := overlayFromFile(&config, explicitPath); err != nil {
			return StackctlConfig{}, fmt.Errorf("error loading config from %s: %w", explicitPath, err)
		}
	}

	if err := Validate(config); err != nil {
		return StackctlConfig{}, err
	}
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func overlayIfExists(config *StackctlConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return overlayFromFile(config, path)
}

// overlayFromFile decodes a YAML file on top of config. yaml.v3 leaves fields
// absent from the document untouched, so the file only overrides what it
// sets; lists are replaced wholesale.
func overlayFromFile(config *StackctlConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	expanded := expandEnv(string(data))
	if strings.TrimSpace(expanded) == "" {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil {
		return err
	}
	logging.Debug("Config", "Applied configuration layer %s", path)
	return nil
}

// expandEnv replaces ${VAR} and ${VAR:-default}. Bare $VAR is left alone so
// values such as passwords containing '$' survive.
func expandEnv(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start

		b.WriteString(s[:start])
		expr := s[start+2 : end]
		name, def, hasDefault := strings.Cut(expr, ":-")
		if value, ok := os.LookupEnv(name); ok && (value != "" || !hasDefault) {
			b.WriteString(value)
		} else if hasDefault {
			b.WriteString(def)
		}
		s = s[end+1:]
	}
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// ResolvePath joins p onto base unless p is already absolute.
func ResolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

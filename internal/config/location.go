package config

import (
	"os"
	"path/filepath"
)

// ConfigEnvVar overrides the configuration file path.
const ConfigEnvVar = "CRAM_CONFIG"

// GetConfigPath returns the configuration file path: $CRAM_CONFIG when set,
// otherwise ~/.cram/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(ConfigEnvVar); configPath != "" {
		return configPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cram", "config"), nil
}

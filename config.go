package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// appConfig is the optional on-disk configuration. Everything has a
// working default; the file only overrides.
type appConfig struct {
	IgnoreDirs          []string `json:"ignoreDirs"`
	RegistrySizeCeiling int      `json:"registrySizeCeiling"`
}

// configSearchPaths lists candidate config files, most specific first.
func configSearchPaths(root string) []string {
	paths := make([]string, 0, 3)
	if envPath := strings.TrimSpace(os.Getenv("PARLEY_CONFIG")); envPath != "" {
		paths = append(paths, envPath)
	}
	if root != "" {
		paths = append(paths, filepath.Join(root, ".parley.json"))
	}
	if cfgRoot, err := os.UserConfigDir(); err == nil && cfgRoot != "" {
		paths = append(paths, filepath.Join(cfgRoot, "parley", "config.json"))
	}
	return paths
}

// loadConfig reads the first config file that exists and parses. Missing or
// malformed files fall back to defaults.
func loadConfig(root string, logger *slog.Logger) appConfig {
	var cfg appConfig
	for _, path := range configSearchPaths(root) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			logger.Warn("ignoring malformed config", "path", path, "error", err)
			continue
		}
		break
	}
	return cfg
}

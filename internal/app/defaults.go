package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	ConfigPathEnv = "HIST_CONFIG_PATH"
	HomeEnv       = "HIST_HOME"
)

// Defaults are the paths hist uses when nothing else is configured.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment
// variables first:
//   - HIST_CONFIG_PATH: config file location (default: ~/.config/hist.toml)
//   - HIST_HOME: base directory for hist data (default: ~/.local/share/hist)
func GetDefaults() (*Defaults, error) {
	configPath, err := fromEnvOrHome(ConfigPathEnv, ".config", "hist.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := fromEnvOrHome(HomeEnv, ".local", "share", "hist")
	if err != nil {
		return nil, err
	}
	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

func fromEnvOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}

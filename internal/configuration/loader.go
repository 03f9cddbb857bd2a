package configuration

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir = "internal/static"
	ConfigDirEnv     = "CAPKV_CONFIG_DIR"
)

// Load reads application.yml from dir, then the application-<profile>.yml it
// selects, on top of Default(). An empty dir falls back to $CAPKV_CONFIG_DIR
// and then to internal/static.
func Load(dir string) (*Properties, error) {
	if dir == "" {
		dir = os.Getenv(ConfigDirEnv)
	}
	if dir == "" {
		dir = DefaultConfigDir
	}

	cfg := Default()
	cfg.App.Profile = ""

	if err := loadInto(dir, "application", cfg); err != nil {
		slog.Error("Error loading base config", "dir", dir, "error", err)
		return nil, err
	}

	if cfg.App.Profile == "" {
		return nil, errors.New("app.profile is not set in application.yml")
	}

	if err := loadInto(dir, "application-"+cfg.App.Profile, cfg); err != nil {
		slog.Error("Error loading profile config", "profile", cfg.App.Profile, "error", err)
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadInto(dir, name string, cfg *Properties) error {
	raw, err := LoadAndExpandYaml(dir, name)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal([]byte(raw), cfg); err != nil {
		return fmt.Errorf("parse %s.yml: %w", name, err)
	}

	return nil
}

func LoadAndExpandYaml(baseDir, filename string) (string, error) {
	file := filepath.Join(baseDir, filename+".yml")
	if _, err := os.Stat(file); err != nil {
		return "", fmt.Errorf("%s.yml not found in %s", filename, baseDir)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	return ExpandEnvStrict(string(raw))
}

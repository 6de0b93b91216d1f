package configuration

import (
	"fmt"
	"log/slog"
	"os"

	"tuplespace/internal/configuration/util"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = "internal/static"

// Load reads the base application.yml and overlays the profile file
// (application-<profile>.yml) from the same directory. The directory can
// be overridden with TUPLESPACE_CONFIG_DIR.
func Load() (*Properties, error) {
	dir := os.Getenv("TUPLESPACE_CONFIG_DIR")
	if dir == "" {
		dir = defaultConfigDir
	}
	return LoadDir(dir)
}

func LoadDir(dir string) (*Properties, error) {
	cfg, err := loadBaseConfig(dir)
	if err != nil {
		return nil, err
	}

	if err := loadProfileConfig(dir, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBaseConfig(dir string) (*Properties, error) {
	baseConfig, err := util.LoadAndExpandYaml(dir, "application")
	if err != nil {
		slog.Error("Error loading base config", "Error", err.Error())
		return nil, err
	}

	cfg := Properties{}
	if err := yaml.Unmarshal([]byte(baseConfig), &cfg); err != nil {
		slog.Error("Error parsing base config", "Error", err.Error())
		return nil, err
	}

	return &cfg, nil
}

func loadProfileConfig(dir string, cfg *Properties) error {
	if cfg.App.Profile == "" {
		return fmt.Errorf("app.profile is not set in base config")
	}

	profileConfig, err := util.LoadAndExpandYaml(dir, fmt.Sprintf("application-%s", cfg.App.Profile))
	if err != nil {
		slog.Error("Error loading profile config", "Error", err.Error())
		return err
	}

	if err := yaml.Unmarshal([]byte(profileConfig), cfg); err != nil {
		slog.Error("Error parsing profile config", "Error", err.Error())
		return err
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"healthpipe/internal/common"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/models"
)

func GetConfigPath() string {
	// Check for environment variable first
	if configPath := os.Getenv("HEALTHPIPE_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".healthpipe")
}

func GetConfigFile() string {
	if configFile := os.Getenv("HEALTHPIPE_CONFIG"); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// Load reads the yaml config file, then layers .env and SNOWFLAKE_* process
// environment variables over it. Env always wins, matching the original
// deploy scripts which were driven entirely by environment variables.
//
// The file is discovered with viper: HEALTHPIPE_CONFIG pins the exact path,
// otherwise a config.yaml in the working directory wins over the one in
// ~/.healthpipe. A missing file is not an error.
func Load() (*models.Config, error) {
	// A .env in the working directory is optional.
	_ = godotenv.Load()

	cfg := Default()

	v := viper.New()
	if configFile := os.Getenv("HEALTHPIPE_CONFIG"); configFile != "" {
		cleanedPath, err := common.CleanPath(configFile)
		if err != nil {
			return nil, fmt.Errorf("invalid config file path: %w", err)
		}
		v.SetConfigFile(cleanedPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(GetConfigPath())
	}

	switch err := v.ReadInConfig(); {
	case err == nil:
		data, err := os.ReadFile(v.ConfigFileUsed()) // #nosec G304 - path is validated
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case isConfigNotFound(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// isConfigNotFound matches both viper's search miss and a missing pinned
// file path.
func isConfigNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || os.IsNotExist(err)
}

// Default returns the built-in configuration: the standard two sources and
// the dependency-gated stage graph.
func Default() *models.Config {
	return &models.Config{
		Backend: warehouse.BackendSnowflake,
		Snowflake: models.Snowflake{
			Role:      "DATA_ENGINEER_ROLE",
			Warehouse: "DEV_WH",
			Database:  "PUBLIC_HEALTH_MODERNIZATION_DEMO",
		},
		SQLite: models.SQLite{Path: "healthpipe.db"},
		Sources: []models.Source{
			{Name: "CDC_PLACES", StagePath: "stage/cdc_places.csv", TargetTable: "RAW_CDC_PLACES_DATA"},
			{Name: "ENVIRONMENTAL", StagePath: "stage/environmental.csv", TargetTable: "RAW_ENVIRONMENTAL_HEALTH_DATA"},
		},
		Scheduler: models.Scheduler{
			Stages: []models.Stage{
				{Name: "ingest_cdc_places", Schedule: "0 2 * * *", Enabled: true},
				{Name: "ingest_environmental", Schedule: "0 2 * * *", Enabled: true},
				{Name: "curate", Schedule: "30 2 * * *", After: []string{"ingest_cdc_places", "ingest_environmental"}, Enabled: true},
				{Name: "build_mart", Schedule: "0 3 * * *", After: []string{"curate"}, Enabled: true},
				{Name: "monitor_failures", Schedule: "0 * * * *", Enabled: true},
			},
		},
		Server: models.Server{Addr: ":8080"},
	}
}

func applyEnvOverrides(cfg *models.Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Snowflake.Account, "SNOWFLAKE_ACCOUNT")
	set(&cfg.Snowflake.Username, "SNOWFLAKE_USER")
	set(&cfg.Snowflake.Password, "SNOWFLAKE_PASSWORD")
	set(&cfg.Snowflake.Role, "SNOWFLAKE_ROLE")
	set(&cfg.Snowflake.Warehouse, "SNOWFLAKE_WAREHOUSE")
	set(&cfg.Snowflake.Database, "SNOWFLAKE_DATABASE")
	set(&cfg.Backend, "HEALTHPIPE_BACKEND")
	set(&cfg.SQLite.Path, "HEALTHPIPE_SQLITE_PATH")
}

// ApplyEnvironment overlays a named environment (dev/prod) onto the base
// Snowflake settings. Unset fields keep the base values.
func ApplyEnvironment(cfg *models.Config, name string) error {
	if name == "" {
		return nil
	}
	for _, env := range cfg.Environments {
		if env.Name != name {
			continue
		}
		overlay := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		overlay(&cfg.Snowflake.Account, env.Account)
		overlay(&cfg.Snowflake.Username, env.Username)
		overlay(&cfg.Snowflake.Password, env.Password)
		overlay(&cfg.Snowflake.Role, env.Role)
		overlay(&cfg.Snowflake.Warehouse, env.Warehouse)
		overlay(&cfg.Snowflake.Database, env.Database)
		return nil
	}
	return fmt.Errorf("environment %q not found in config", name)
}

func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigFile(), data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

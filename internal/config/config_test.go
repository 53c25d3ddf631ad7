package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthpipe/internal/config"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/models"
)

// chdir changes the working directory for the duration of the test,
// matching the behavior of testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, warehouse.BackendSnowflake, cfg.Backend)
	assert.Equal(t, "PUBLIC_HEALTH_MODERNIZATION_DEMO", cfg.Snowflake.Database)
	assert.Equal(t, "DATA_ENGINEER_ROLE", cfg.Snowflake.Role)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "CDC_PLACES", cfg.Sources[0].Name)
	assert.Equal(t, "RAW_CDC_PLACES_DATA", cfg.Sources[0].TargetTable)
	assert.Equal(t, "ENVIRONMENTAL", cfg.Sources[1].Name)

	require.Len(t, cfg.Scheduler.Stages, 5)
	names := make([]string, 0, len(cfg.Scheduler.Stages))
	for _, st := range cfg.Scheduler.Stages {
		names = append(names, st.Name)
		assert.True(t, st.Enabled, st.Name)
	}
	assert.Equal(t, []string{
		"ingest_cdc_places", "ingest_environmental", "curate", "build_mart", "monitor_failures",
	}, names)

	// Downstream stages are gated on their producers.
	assert.Equal(t, []string{"ingest_cdc_places", "ingest_environmental"}, cfg.Scheduler.Stages[2].After)
	assert.Equal(t, []string{"curate"}, cfg.Scheduler.Stages[3].After)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("HEALTHPIPE_CONFIG", configFile)

	cfg := config.Default()
	cfg.Backend = warehouse.BackendSQLite
	cfg.SQLite.Path = "/var/lib/healthpipe/pipeline.db"
	cfg.Snowflake.Account = "xy12345.us-east-1"

	require.NoError(t, config.Save(cfg))
	assert.True(t, config.Exists())

	loaded, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, warehouse.BackendSQLite, loaded.Backend)
	assert.Equal(t, "/var/lib/healthpipe/pipeline.db", loaded.SQLite.Path)
	assert.Equal(t, "xy12345.us-east-1", loaded.Snowflake.Account)
	assert.Len(t, loaded.Scheduler.Stages, 5)
}

func TestLoadHonorsWorkingDirectoryConfig(t *testing.T) {
	t.Setenv("HEALTHPIPE_CONFIG", "")
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	data := []byte("backend: sqlite\nsqlite:\n  path: local.db\n")
	require.NoError(t, os.WriteFile("config.yaml", data, 0o600))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, warehouse.BackendSQLite, cfg.Backend)
	assert.Equal(t, "local.db", cfg.SQLite.Path)
}

func TestLoadEnvConfigPathBeatsWorkingDirectory(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("config.yaml", []byte("backend: sqlite\nsqlite:\n  path: cwd.db\n"), 0o600))

	pinned := filepath.Join(t.TempDir(), "pinned.yaml")
	require.NoError(t, os.WriteFile(pinned, []byte("backend: sqlite\nsqlite:\n  path: pinned.db\n"), 0o600))
	t.Setenv("HEALTHPIPE_CONFIG", pinned)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "pinned.db", cfg.SQLite.Path)
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	t.Setenv("HEALTHPIPE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Default().Backend, cfg.Backend)
	assert.Len(t, cfg.Sources, 2)
}

func TestEnvOverridesFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("HEALTHPIPE_CONFIG", configFile)

	cfg := config.Default()
	cfg.Snowflake.Account = "from-file"
	require.NoError(t, config.Save(cfg))

	t.Setenv("SNOWFLAKE_ACCOUNT", "from-env")
	t.Setenv("SNOWFLAKE_USER", "etl_user")
	t.Setenv("HEALTHPIPE_BACKEND", warehouse.BackendSQLite)
	t.Setenv("HEALTHPIPE_SQLITE_PATH", "override.db")

	loaded, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", loaded.Snowflake.Account)
	assert.Equal(t, "etl_user", loaded.Snowflake.Username)
	assert.Equal(t, warehouse.BackendSQLite, loaded.Backend)
	assert.Equal(t, "override.db", loaded.SQLite.Path)
}

func TestGetConfigFileFromEnv(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv("HEALTHPIPE_CONFIG", configFile)

	assert.Equal(t, configFile, config.GetConfigFile())
	assert.Equal(t, filepath.Dir(configFile), config.GetConfigPath())
}

func TestApplyEnvironment(t *testing.T) {
	cfg := config.Default()
	cfg.Snowflake.Account = "base-account"
	cfg.Environments = []models.Environment{
		{Name: "prod", Account: "prod-account", Warehouse: "PROD_WH"},
	}

	require.NoError(t, config.ApplyEnvironment(cfg, "prod"))
	assert.Equal(t, "prod-account", cfg.Snowflake.Account)
	assert.Equal(t, "PROD_WH", cfg.Snowflake.Warehouse)
	// Fields the environment leaves empty keep the base values.
	assert.Equal(t, "DATA_ENGINEER_ROLE", cfg.Snowflake.Role)
}

func TestApplyEnvironmentUnknown(t *testing.T) {
	cfg := config.Default()
	err := config.ApplyEnvironment(cfg, "staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `environment "staging" not found`)
}

func TestApplyEnvironmentEmptyNameIsNoop(t *testing.T) {
	cfg := config.Default()
	account := cfg.Snowflake.Account
	require.NoError(t, config.ApplyEnvironment(cfg, ""))
	assert.Equal(t, account, cfg.Snowflake.Account)
}

func TestSavePermissions(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv("HEALTHPIPE_CONFIG", configFile)

	require.NoError(t, config.Save(config.Default()))

	info, err := os.Stat(configFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, dir string, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	tempFilePath := filepath.Join(dir, configFileName)
	err := os.WriteFile(tempFilePath, []byte(content), 0644)
	require.NoError(t, err)
	return tempFilePath
}

// mockConfigPaths points the user and project config lookups at the given
// files and restores the originals when the test ends.
func mockConfigPaths(t *testing.T, userPath, projectPath string) {
	t.Helper()
	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	})

	getUserConfigPath = func() (string, error) { return userPath, nil }
	getProjectConfigPath = func() (string, error) { return projectPath, nil }
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := t.TempDir()
	mockConfigPaths(t,
		filepath.Join(tempDir, "non-existent-user-config.yaml"),
		filepath.Join(tempDir, "non-existent-project-config.yaml"))

	loadedConfig, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(), loadedConfig)
	assert.Equal(t, DefaultParallel, loadedConfig.Parallel)
	assert.Equal(t, DefaultEnvironment, loadedConfig.Environment)
	assert.False(t, loadedConfig.Report.IsEnabled())
	assert.Equal(t, []string{"json"}, loadedConfig.Report.Formats)
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := t.TempDir()

	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	originalOsUserHomeDir := osUserHomeDir
	defer func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
		osUserHomeDir = originalOsUserHomeDir
	}()

	osUserHomeDir = func() (string, error) { return tempDir, nil }
	getUserConfigPath = func() (string, error) {
		home, err := osUserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, userConfigDir, configFileName), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "no-project", configFileName), nil
	}

	createTempConfigFile(t, filepath.Join(tempDir, userConfigDir), `
parallel: 8
tags: ["~@skipme"]
report:
  enabled: true
  formats: [json, cucumber]
`)

	loadedConfig, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8, loadedConfig.Parallel)
	assert.Equal(t, []string{"~@skipme"}, loadedConfig.Tags)
	assert.True(t, loadedConfig.Report.IsEnabled())
	assert.Equal(t, []string{"json", "cucumber"}, loadedConfig.Report.Formats)
	// untouched fields keep their defaults
	assert.Equal(t, "features", loadedConfig.Root)
	assert.Equal(t, GetDefaultConfig().Report.Dir, loadedConfig.Report.Dir)
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := t.TempDir()
	userPath := createTempConfigFile(t, filepath.Join(tempDir, "user"), `
parallel: 8
scenarioTimeout: 1m
report:
  enabled: true
environments:
  dev:
    vars:
      baseUrl: https://dev.example.com
      token: user-token
`)
	projectPath := createTempConfigFile(t, filepath.Join(tempDir, "project"), `
parallel: 3
report:
  enabled: false
environments:
  dev:
    vars:
      baseUrl: http://localhost:8080
  e2e:
    vars:
      baseUrl: https://e2e.example.com
`)
	mockConfigPaths(t, userPath, projectPath)

	loadedConfig, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, loadedConfig.Parallel)
	assert.Equal(t, time.Minute, loadedConfig.ScenarioTimeout)
	assert.False(t, loadedConfig.Report.IsEnabled(), "an explicit false in the project layer wins")

	require.Contains(t, loadedConfig.Environments, "dev")
	assert.Equal(t, map[string]string{
		"baseUrl": "http://localhost:8080",
		"token":   "user-token",
	}, loadedConfig.Environments["dev"].Vars)
	assert.Contains(t, loadedConfig.Environments, "e2e")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	projectPath := createTempConfigFile(t, filepath.Join(tempDir, "project"), "parallel: [not, a, number]\n")
	mockConfigPaths(t, filepath.Join(tempDir, "missing.yaml"), projectPath)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading project config")
}

func TestLoadConfig_PathErrorsAreWarnings(t *testing.T) {
	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	defer func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	}()
	getUserConfigPath = func() (string, error) { return "", errors.New("no home") }
	getProjectConfigPath = func() (string, error) { return "", errors.New("no cwd") }

	loadedConfig, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), loadedConfig)
}

func TestLoadConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	path := createTempConfigFile(t, tempDir, "root: e2e/features\nhistory: runs.db\n")

	loadedConfig, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "e2e/features", loadedConfig.Root)
	assert.Equal(t, "runs.db", loadedConfig.History)
	assert.Equal(t, DefaultParallel, loadedConfig.Parallel)

	_, err = LoadConfigFile(filepath.Join(tempDir, "absent.yaml"))
	assert.Error(t, err)
}

func TestMergeConfigs_DoesNotAliasBase(t *testing.T) {
	base := GetDefaultConfig()
	base.Environments["dev"] = Environment{Vars: map[string]string{"a": "1"}}

	merged := mergeConfigs(base, ScenctlConfig{
		Environments: map[string]Environment{"dev": {Vars: map[string]string{"b": "2"}}},
	})

	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, merged.Environments["dev"].Vars)
	assert.Equal(t, map[string]string{"a": "1"}, base.Environments["dev"].Vars)
}

func TestVars(t *testing.T) {
	t.Run("no environments configured", func(t *testing.T) {
		vars, err := GetDefaultConfig().Vars("qa")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"env": "qa"}, vars)
	})

	cfg := GetDefaultConfig()
	cfg.Environments = map[string]Environment{
		"dev":  {Vars: map[string]string{"baseUrl": "http://localhost"}},
		"prod": {Vars: map[string]string{"baseUrl": "https://example.com"}},
	}

	t.Run("known environment", func(t *testing.T) {
		vars, err := cfg.Vars("prod")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"env": "prod", "baseUrl": "https://example.com"}, vars)
	})

	t.Run("unknown environment", func(t *testing.T) {
		_, err := cfg.Vars("staging")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown environment "staging"`)
		assert.Contains(t, err.Error(), "[dev prod]")
	})
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/scenctl"
	projectConfigDir = ".scenctl"
	configFileName   = "config.yaml"
)

// LoadConfig loads the scenctl configuration by layering default, user, and project settings.
func LoadConfig() (ScenctlConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. User-specific configuration
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// user config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
		userConfig, err := loadConfigFromFile(userConfigPath)
		if err != nil {
			return ScenctlConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
		config = mergeConfigs(config, userConfig)
	}

	// 3. Project-specific configuration
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
		projectConfig, err := loadConfigFromFile(projectConfigPath)
		if err != nil {
			return ScenctlConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
		config = mergeConfigs(config, projectConfig)
	}

	return config, nil
}

// LoadConfigFile layers an explicit configuration file over the defaults,
// skipping the user and project files.
func LoadConfigFile(path string) (ScenctlConfig, error) {
	fileConfig, err := loadConfigFromFile(path)
	if err != nil {
		return ScenctlConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return mergeConfigs(GetDefaultConfig(), fileConfig), nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a ScenctlConfig from a YAML file.
func loadConfigFromFile(filePath string) (ScenctlConfig, error) {
	var config ScenctlConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ScenctlConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ScenctlConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config.
func mergeConfigs(base, overlay ScenctlConfig) ScenctlConfig {
	merged := base

	if overlay.Root != "" {
		merged.Root = overlay.Root
	}
	if overlay.Parallel != 0 {
		merged.Parallel = overlay.Parallel
	}
	if len(overlay.Tags) > 0 {
		merged.Tags = append([]string(nil), overlay.Tags...)
	}
	if overlay.Environment != "" {
		merged.Environment = overlay.Environment
	}
	if overlay.Timeout != 0 {
		merged.Timeout = overlay.Timeout
	}
	if overlay.ScenarioTimeout != 0 {
		merged.ScenarioTimeout = overlay.ScenarioTimeout
	}
	if overlay.History != "" {
		merged.History = overlay.History
	}

	// Report settings: only explicitly set fields override
	if overlay.Report.Enabled != nil {
		enabled := *overlay.Report.Enabled
		merged.Report.Enabled = &enabled
	}
	if overlay.Report.Dir != "" {
		merged.Report.Dir = overlay.Report.Dir
	}
	if len(overlay.Report.Formats) > 0 {
		merged.Report.Formats = append([]string(nil), overlay.Report.Formats...)
	}

	// Environments merge by name, variables merge by key
	envs := make(map[string]Environment, len(base.Environments)+len(overlay.Environments))
	for name, env := range base.Environments {
		envs[name] = Environment{Vars: copyVars(env.Vars)}
	}
	for name, env := range overlay.Environments {
		existing := envs[name]
		if existing.Vars == nil {
			existing.Vars = make(map[string]string, len(env.Vars))
		}
		for k, v := range env.Vars {
			existing.Vars[k] = v
		}
		envs[name] = existing
	}
	merged.Environments = envs

	return merged
}

func copyVars(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Vars returns the variables of the named environment, plus "env" holding
// the environment name. An unknown name is an error only when environments
// are configured at all.
func (c ScenctlConfig) Vars(envName string) (map[string]string, error) {
	vars := map[string]string{"env": envName}
	if len(c.Environments) == 0 {
		return vars, nil
	}

	env, ok := c.Environments[envName]
	if !ok {
		names := make([]string, 0, len(c.Environments))
		for name := range c.Environments {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown environment %q, configured environments: %v", envName, names)
	}
	for k, v := range env.Vars {
		vars[k] = v
	}
	return vars, nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

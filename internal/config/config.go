// Package config loads operator-facing settings: a viper singleton
// populated from a precedence-ordered file search plus environment
// variables, with a secondary TOML file for per-machine overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

var v *viper.Viper

const envPrefix = "DATAPLANE"

// Initialize sets up the configuration singleton. Should be called
// once at process startup, before any Get* call.
//
// Precedence (highest to lowest): environment variables (DATAPLANE_*)
// > ~/.config/dataplane/local.toml > the resolved dataplane.yaml >
// built-in defaults. dataplane.yaml itself is resolved by walking up
// from the working directory for a project .dataplane/ directory,
// then falling back to the user config dir, then the home directory.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			path := filepath.Join(dir, ".dataplane", "dataplane.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
				break
			}
		}
	}
	if !configFileSet {
		if dir, err := os.UserConfigDir(); err == nil {
			path := filepath.Join(dir, "dataplane", "dataplane.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
			}
		}
	}
	if !configFileSet {
		if home, err := os.UserHomeDir(); err == nil {
			path := filepath.Join(home, ".dataplane", "dataplane.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read dataplane.yaml: %w", err)
		}
	}

	if err := loadLocalOverrides(v); err != nil {
		return err
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("use-braintrust-prompts", false)

	// Shared connection pool.
	v.SetDefault("database.pool-size", 15)
	v.SetDefault("warehouse.dsn", "")

	// Timeout budget.
	v.SetDefault("timeouts.llm-soft", "60s")
	v.SetDefault("timeouts.llm-hard", "180s")
	v.SetDefault("timeouts.probe", "30s")
	v.SetDefault("timeouts.bulk-upsert", "30s")
	v.SetDefault("probe.row-cap", 100)

	v.SetDefault("agent.modes-file", "modes.jsonc")
	v.SetDefault("agent.model", "claude-sonnet-4-5")

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.max-size-mb", 100)
	v.SetDefault("log.max-backups", 7)
	v.SetDefault("log.max-age-days", 28)
	v.SetDefault("log.level", "info")
}

// localOverrides is the shape of the optional per-machine TOML file, a
// developer's escape hatch for pinning a value (a local warehouse DSN,
// a smaller pool size) without editing the shared dataplane.yaml.
type localOverrides struct {
	WarehouseDSN string `toml:"warehouse_dsn"`
	PoolSize     int    `toml:"pool_size"`
	LogDir       string `toml:"log_dir"`
}

func loadLocalOverrides(v *viper.Viper) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(dir, "dataplane", "local.toml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	var overrides localOverrides
	if _, err := toml.DecodeFile(path, &overrides); err != nil {
		return fmt.Errorf("parse local.toml: %w", err)
	}
	// Merged into the config layer (over dataplane.yaml) rather than set
	// with v.Set, which would also outrank DATAPLANE_* env vars.
	merged := map[string]any{}
	if overrides.WarehouseDSN != "" {
		merged["warehouse"] = map[string]any{"dsn": overrides.WarehouseDSN}
	}
	if overrides.PoolSize > 0 {
		merged["database"] = map[string]any{"pool-size": overrides.PoolSize}
	}
	if overrides.LogDir != "" {
		merged["log"] = map[string]any{"dir": overrides.LogDir}
	}
	return v.MergeConfigMap(merged)
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a key at runtime, mainly for tests and for flags that
// win over every file/env source.
func Set(key string, value interface{}) {
	if v == nil {
		v = viper.New()
		setDefaults(v)
	}
	v.Set(key, value)
}

// Timeouts bundles the configured timeout budget. The doctor command
// reports it; the agent's LLM client and the metric probe use their own
// package constants (60s/180s and 30s with a 100-row cap) instead.
type Timeouts struct {
	LLMSoft     time.Duration
	LLMHard     time.Duration
	Probe       time.Duration
	BulkUpsert  time.Duration
	ProbeRowCap int
}

// LoadTimeouts reads the timeout budget from the initialized config,
// falling back to built-in defaults if Initialize was never called
// (e.g. in a unit test that constructs services directly).
func LoadTimeouts() Timeouts {
	t := Timeouts{
		LLMSoft:     60 * time.Second,
		LLMHard:     180 * time.Second,
		Probe:       30 * time.Second,
		BulkUpsert:  30 * time.Second,
		ProbeRowCap: 100,
	}
	if v == nil {
		return t
	}
	if d := GetDuration("timeouts.llm-soft"); d > 0 {
		t.LLMSoft = d
	}
	if d := GetDuration("timeouts.llm-hard"); d > 0 {
		t.LLMHard = d
	}
	if d := GetDuration("timeouts.probe"); d > 0 {
		t.Probe = d
	}
	if d := GetDuration("timeouts.bulk-upsert"); d > 0 {
		t.BulkUpsert = d
	}
	if c := GetInt("probe.row-cap"); c > 0 {
		t.ProbeRowCap = c
	}
	return t
}

// PoolSize returns the shared connection-pool size.
func PoolSize() int {
	if n := GetInt("database.pool-size"); n > 0 {
		return n
	}
	return 15
}

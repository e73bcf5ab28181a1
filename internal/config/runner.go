package config

import (
	"time"

	"github.com/spf13/viper"
)

// RunnerConfig is the loader/runner configuration.
type RunnerConfig struct {
	ArtifactPaths []string   `mapstructure:"artifact_paths"`
	Artifact      string     `mapstructure:"artifact"`
	LogLevel      string     `mapstructure:"log_level"`
	Wasm          WasmConfig `mapstructure:"wasm"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory. Empty keeps the cache in memory.
	CacheDir string `mapstructure:"cache_dir"`
	// Execution timeout for the whole run (seconds, 0 disables).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

// Timeout returns the execution timeout as a duration.
func (w WasmConfig) Timeout() time.Duration {
	return time.Duration(w.ExecutionTimeout) * time.Second
}

func LoadRunnerConfig(configPath string) (*RunnerConfig, error) {
	v := viper.New()

	v.SetDefault("artifact_paths", []string{"./artifacts"})
	v.SetDefault("artifact", "add")
	v.SetDefault("log_level", "info")

	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.execution_timeout", 30)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg RunnerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".repominer"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for repominer settings.
const envPrefix = "REPOMINER"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("repository.branch", DefaultBranch)
	viperCfg.SetDefault("repository.clone_dir", DefaultCloneDir)
	viperCfg.SetDefault("repository.commit_cache_size", DefaultCommitCacheSize)

	viperCfg.SetDefault("mining.workers", DefaultWorkers)
	viperCfg.SetDefault("mining.comment_markers", DefaultCommentMarkers())
	viperCfg.SetDefault("mining.rules_file", DefaultRulesFile)
	viperCfg.SetDefault("mining.comment_detection", DefaultCommentDetection)

	viperCfg.SetDefault("relevance.extensions", []string{})
	viperCfg.SetDefault("relevance.languages", []string{})
	viperCfg.SetDefault("relevance.content_markers", []string{})
	viperCfg.SetDefault("relevance.skip_vendored", false)

	viperCfg.SetDefault("state.dir", DefaultStateDir)
	viperCfg.SetDefault("state.codec", DefaultStateCodec)
	viperCfg.SetDefault("state.compress", DefaultStateCompress)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)
	viperCfg.SetDefault("logging.file", DefaultLogFile)
	viperCfg.SetDefault("logging.max_size_mb", DefaultLogMaxSizeMB)
	viperCfg.SetDefault("logging.max_backups", DefaultLogMaxBackups)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("telemetry.otlp_headers", DefaultOTLPHeaders)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.verbose", DefaultTraceVerbose)
	viperCfg.SetDefault("telemetry.debug", DefaultTraceDebug)
}

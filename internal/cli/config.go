package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyCacheSize = "cache_size"

	// envCacheSize overrides cache_size from config.yaml.
	envCacheSize = "SOURCECHAIN_CACHE_SIZE"
)

// configFile is the structure of config.yaml.
type configFile struct {
	Backend   string `yaml:"backend"`
	DataDir   string `yaml:"data_dir,omitempty"`
	CacheSize int    `yaml:"cache_size,omitempty"`
}

// defaultConfigYAML is the header written above the generated settings.
const defaultConfigYAML = `# sourcechain configuration
#
# backend:    storage backend (sqlite)
# data_dir:   data directory; --data-dir overrides it
# cache_size: number of records kept in the read cache
`

// loadConfig reads config.yaml from configDir using Viper. A missing file is
// not an error; defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyCacheSize, types.DefaultCacheSize)
	if err := v.BindEnv(cfgKeyCacheSize, envCacheSize); err != nil {
		return nil, fmt.Errorf("bind %s: %w", envCacheSize, err)
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml in configDir with the given
// settings. An existing file is left untouched. It reports whether the file
// was written.
func writeConfigIfMissing(configDir string, cfg configFile) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	content := append([]byte(defaultConfigYAML), data...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

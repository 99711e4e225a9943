// Config loading for the fleetsync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir     = "data_dir"
	cfgKeyRemoteFile  = "remote_file"
	cfgKeySyncEnabled = "sync_enabled"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# Fleetsync CLI configuration

# Directory holding the local database (default: <config-dir>/data)
# data_dir:

# Remote store snapshot file. Two instances pointing at the same file
# behave like two devices sharing one account.
# remote_file:

# Whether syncing starts enabled.
sync_enabled: true
`

// loadConfig reads config.yaml from the config directory, creating the
// directory and a default file on first run. A missing config.yaml is not
// an error.
func loadConfig(configDir string) (types.Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyDataDir, filepath.Join(configDir, "data"))
	v.SetDefault(cfgKeySyncEnabled, true)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return types.Config{
		DataDir:     v.GetString(cfgKeyDataDir),
		RemoteFile:  v.GetString(cfgKeyRemoteFile),
		SyncEnabled: v.GetBool(cfgKeySyncEnabled),
	}, nil
}

// ensureDefaultConfigFile creates a default config.yaml when the file does
// not exist yet.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

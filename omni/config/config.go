package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/omnisearch/omni"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Indexer   IndexerConfig   `mapstructure:"indexer"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Duplicate DuplicateConfig `mapstructure:"duplicate"`
}

// IndexerConfig stores enumeration driver settings.
type IndexerConfig struct {
	Drive              string   `mapstructure:"drive"`
	IncludeDirectories bool     `mapstructure:"includeDirectories"`
	ScanAllDrives      bool     `mapstructure:"scanAllDrives"`
	EnumBufferSize     int      `mapstructure:"enumBufferSize"`
	ProgressStride     uint64   `mapstructure:"progressStride"`
	IgnorePatterns     []string `mapstructure:"ignorePatterns"`
}

// WatcherConfig stores live journal watcher settings.
type WatcherConfig struct {
	PollInterval           time.Duration `mapstructure:"pollInterval"`
	ReadBufferSize         int           `mapstructure:"readBufferSize"`
	JournalMaxSize         uint64        `mapstructure:"journalMaxSize"`
	JournalAllocationDelta uint64        `mapstructure:"journalAllocationDelta"`
}

// DuplicateConfig stores duplicate engine settings.
type DuplicateConfig struct {
	MinFileSize      uint64 `mapstructure:"minFileSize"`
	MaxGroups        int    `mapstructure:"maxGroups"`
	MaxFilesPerGroup int    `mapstructure:"maxFilesPerGroup"`
	MaxWorkers       int    `mapstructure:"maxWorkers"`
	ReservedCores    int    `mapstructure:"reservedCores"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("indexer.drive", internal.DefaultDrive)
	viper.SetDefault("indexer.includeDirectories", false)
	viper.SetDefault("indexer.scanAllDrives", false)
	viper.SetDefault("indexer.enumBufferSize", internal.DefaultEnumBufferSize)
	viper.SetDefault("indexer.progressStride", 16384)
	viper.SetDefault("indexer.ignorePatterns", []string{})

	viper.SetDefault("watcher.pollInterval", 120*time.Millisecond)
	viper.SetDefault("watcher.readBufferSize", internal.DefaultWatchBufferSize)
	viper.SetDefault("watcher.journalMaxSize", uint64(32*1024*1024))
	viper.SetDefault("watcher.journalAllocationDelta", uint64(8*1024*1024))

	viper.SetDefault("duplicate.minFileSize", uint64(0))
	viper.SetDefault("duplicate.maxGroups", 200)
	viper.SetDefault("duplicate.maxFilesPerGroup", 50)
	viper.SetDefault("duplicate.maxWorkers", 0)
	viper.SetDefault("duplicate.reservedCores", 2)

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. indexer.enumBufferSize becomes INDEXER_ENUMBUFFERSIZE

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}

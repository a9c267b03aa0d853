package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings holds all configuration values
type Settings struct {
	// Logging configuration
	Logging struct {
		LogFile string
		Persist bool
		Level   string
	}

	// Transcript rendering configuration
	Transcript struct {
		Theme          string
		Width          int
		Color          bool
		ShowTimestamps bool
		ShowReasoning  bool
	}

	// ConfigFile stores the path to the config file used
	ConfigFile string
}

// Global settings instance
var Global *Settings

// Init initializes the configuration system
func Init(cfgFile string) error {
	Global = &Settings{}

	// Set config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		Global.ConfigFile = cfgFile
	} else {
		viper.AddConfigPath("./.loom")
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
		Global.ConfigFile = ".loom/settings.yaml"
	}

	// Set all defaults
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	// Load settings into global struct
	return Load()
}

// setDefaults sets all default configuration values
func setDefaults() {
	// Logging defaults
	viper.SetDefault("logging.log_file", "loom.log")
	viper.SetDefault("logging.persist", false)
	viper.SetDefault("logging.level", "info")

	// Transcript defaults
	viper.SetDefault("transcript.theme", "monokai")
	viper.SetDefault("transcript.width", 80)
	viper.SetDefault("transcript.color", true)
	viper.SetDefault("transcript.show_timestamps", true)
	viper.SetDefault("transcript.show_reasoning", true)
}

// Load loads configuration from viper into the Settings struct
func Load() error {
	// Logging settings
	Global.Logging.LogFile = viper.GetString("logging.log_file")
	Global.Logging.Persist = viper.GetBool("logging.persist")
	Global.Logging.Level = viper.GetString("logging.level")

	// Transcript settings
	Global.Transcript.Theme = viper.GetString("transcript.theme")
	Global.Transcript.Width = viper.GetInt("transcript.width")
	Global.Transcript.Color = viper.GetBool("transcript.color")
	Global.Transcript.ShowTimestamps = viper.GetBool("transcript.show_timestamps")
	Global.Transcript.ShowReasoning = viper.GetBool("transcript.show_reasoning")

	return nil
}

// WriteDefaultConfig writes default configuration values to disk, preserving existing settings
func WriteDefaultConfig() error {
	if Global.ConfigFile == "" {
		return fmt.Errorf("config file path not set")
	}

	// Ensure config directory exists
	configDir := filepath.Dir(Global.ConfigFile)
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// Write current configuration to file (preserves existing + adds defaults)
	if err := viper.WriteConfigAs(Global.ConfigFile); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}

	return nil
}

// Get returns the global settings instance
func Get() *Settings {
	if Global == nil {
		panic("config not initialized - call Init() first")
	}
	return Global
}

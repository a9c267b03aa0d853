package cmd

import (
	"fmt"
	"os"

	"github.com/killallgit/loom/pkg/config"
	"github.com/killallgit/loom/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Conversation merge debugger",
	Long: `Replay and inspect recorded agent sessions through the conversation
merge engine. Feeds durable snapshots and live event logs through the same
code path the dashboard uses and prints what a viewer would see.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", ".loom/settings.yaml", "config file (default is .loom/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().Bool("no-color", false, "disable ANSI colors in rendered output")
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	viper.SetDefault("logging.log_file", "loom.log")
	viper.SetDefault("logging.persist", false)
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("transcript.theme", "monokai")
	viper.SetDefault("transcript.width", 80)
	viper.SetDefault("transcript.color", true)
	viper.SetDefault("transcript.show_timestamps", true)
	viper.SetDefault("transcript.show_reasoning", true)
}

func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The flag beats the settings file so piped output stays clean
	if viper.GetBool("no_color") {
		config.Get().Transcript.Color = false
	}

	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}

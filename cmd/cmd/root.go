// Package cmd defines the newsmosaic command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsmosaic/internal/config"
	"newsmosaic/internal/logger"
	"newsmosaic/internal/services"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "newsmosaic",
	Short: "Personalized news intelligence from the command line",
	Long: `newsmosaic ingests news by keyword, enriches articles into structured
cards, and answers questions through a conversational agent with
per-user interests and session memory.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.newsmosaic.yaml)")
}

func initConfig() {
	logger.Init()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)
}

// newBundle constructs the service graph from the loaded configuration.
func newBundle() (*services.Bundle, error) {
	return services.New(config.Get())
}

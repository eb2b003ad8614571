// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the knockout-engine CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured from --log-level before any subcommand runs.
var logger = slog.Default()

// rootCmd is the base command for the knockout-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "knockout-engine",
	Short: "Search metabolic models for gene and reaction knockouts that raise production",
	Long: `knockout-engine screens a constraint-based metabolic model for knockout
sets that increase flux through a production target while keeping growth
above a floor. Each candidate is scored with flux balance analysis on a
private copy of the network.

Use discover to find a production target, baseline to check the wild-type
optimum, and search to screen knockouts. Runs can be recorded to a history
database and saved as run files for later reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelName, _ := cmd.Flags().GetString("log-level")
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelName)); err != nil {
			return fmt.Errorf("invalid --log-level %q: use debug, info, warn or error", levelName)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./knockout-engine.yaml or ~/.config/knockout-engine/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "diagnostic log level: debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("knockout-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "knockout-engine"))
		}
	}

	viper.SetEnvPrefix("KNOCKOUT_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

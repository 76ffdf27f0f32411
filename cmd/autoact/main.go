// Package main is the AutoAct command: a browser with a knowledge-base
// toolbar on every page, a side panel in the terminal, and admin
// commands for the context store.
package main

import (
	"fmt"
	"os"

	"github.com/entrhq/autoact/pkg/config"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	configPath string
	verbosity  string
)

var rootCmd = &cobra.Command{
	Use:   "autoact",
	Short: "Capture page selections into a knowledge base and act on them",
	Long: `AutoAct opens a browser in which selecting text offers to save it as a
context in your knowledge base. The side panel runs in this terminal and
lists, edits and adds contexts.

Run "autoact run" to start the browser and the panel.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the AutoAct version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "AutoAct v%s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration (default: ~/.autoact/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "", "Override logging verbosity: quiet, normal, verbose, debug")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(contextsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbosity != "" {
		cfg.Logging.Verbosity = verbosity
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupLogging points the file logger at the configured directory and
// returns the root logger.
func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseVerbosity(cfg.Logging.Verbosity)
	if err != nil {
		return nil, err
	}
	dir, err := config.ExpandHome(cfg.Logging.Directory)
	if err != nil {
		return nil, err
	}
	logging.Configure(dir, level)
	return logging.MustLogger("autoact"), nil
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tk103331/eino-chatlab/config"
	"github.com/tk103331/eino-chatlab/logger"
	"github.com/tk103331/eino-chatlab/mcp"
)

var (
	configPath string
	envFile    string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "chatlab",
	Short: "Chat with a model and keep its markdown snippets copyable",
	Long: `chatlab serves a research chat interface backed by an eino chat model.
Markdown documents in model replies are rendered as snippets that can be
switched to their raw source and copied.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(); err != nil {
			return err
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := mcp.ValidateConfig(cfg); err != nil {
			return err
		}

		return logger.Init(logger.Options{
			Path:    cfg.Log.Path,
			Level:   cfg.Log.Level,
			Console: cfg.Log.Console,
		})
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Close()
	},
}

// loadEnv reads the env file when it exists. Variables already set win.
func loadEnv() error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	defaultConfigPath := filepath.Join(homeDir, ".eino-chatlab", "config.yml")

	RootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "configuration file path")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")
}

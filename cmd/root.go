/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/sceneit/apiserver/config"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sceneit",
	Short: "SceneIt movie discovery and review backend",
	Long: `SceneIt serves the movie discovery and review API, runs its
database migrations and delivers queued mail.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// newLogger installs the process-wide slog logger: JSON in production,
// human readable text with debug output everywhere else.
func newLogger(cfg config.Config) *slog.Logger {
	var handler slog.Handler
	if cfg.Production() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler).With("app_env", cfg.AppEnv)
	slog.SetDefault(logger)
	return logger
}

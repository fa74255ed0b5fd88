/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/sceneit/apiserver/config"
	"github.com/sceneit/apiserver/internal/services"
	"github.com/sceneit/apiserver/internal/storage"
	"github.com/spf13/cobra"
)

// avatarsCmd represents the avatars command
var avatarsCmd = &cobra.Command{
	Use:   "avatars",
	Short: "Manage the selectable avatar images",
}

var avatarsSyncCmd = &cobra.Command{
	Use:   "sync DIR",
	Short: "Upload the avatar images found in DIR to avatar storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		store, err := storage.Open(cmd.Context(), cfg.Avatars)
		if err != nil {
			return fmt.Errorf("open avatar storage: %w", err)
		}
		if err := store.EnsureBucket(cmd.Context()); err != nil {
			return fmt.Errorf("prepare avatar storage: %w", err)
		}

		avatars := services.NewAvatarService(store)
		n, err := avatars.Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		removed := 0
		if prune, _ := cmd.Flags().GetBool("prune"); prune {
			if removed, err = avatars.Prune(cmd.Context(), args[0]); err != nil {
				return err
			}
		}
		logger.Info("avatars synced", "uploaded", n, "removed", removed,
			"backend", cfg.Avatars.Backend, "bucket", store.Bucket())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(avatarsCmd)
	avatarsCmd.AddCommand(avatarsSyncCmd)

	avatarsSyncCmd.Flags().Bool("prune", false, "Delete stored avatars that are missing from DIR")
}
